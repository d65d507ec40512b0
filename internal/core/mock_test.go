package core

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// mockKindAPI is a KindAPI backed by fixed coordinates.
type mockKindAPI struct {
	kind       string
	apiVersion string
	gvr        schema.GroupVersionResource
	namespaced bool

	mu        sync.Mutex
	refreshes int
	refresh   func(namespace string) (string, error)
}

func newMockKindAPI(kind, group, version, resource string, namespaced bool) *mockKindAPI {
	apiVersion := version
	if group != "" {
		apiVersion = group + "/" + version
	}
	return &mockKindAPI{
		kind:       kind,
		apiVersion: apiVersion,
		gvr:        schema.GroupVersionResource{Group: group, Version: version, Resource: resource},
		namespaced: namespaced,
	}
}

func (m *mockKindAPI) Kind() string                                      { return m.kind }
func (m *mockKindAPI) APIVersion() string                                { return m.apiVersion }
func (m *mockKindAPI) APIBase() string                                   { return APIBase(m.gvr) }
func (m *mockKindAPI) GroupVersionResource() schema.GroupVersionResource { return m.gvr }
func (m *mockKindAPI) Namespaced() bool                                  { return m.namespaced }

func (m *mockKindAPI) WatchURL(namespace, resourceVersion string) string {
	q := url.Values{"watch": {"1"}}
	if resourceVersion != "" {
		q.Set("resourceVersion", resourceVersion)
	}
	return m.ObjectURL(namespace, "") + "?" + q.Encode()
}

func (m *mockKindAPI) ObjectURL(namespace, name string) string {
	prefix := "/api/" + m.gvr.Version
	if m.gvr.Group != "" {
		prefix = "/apis/" + m.gvr.Group + "/" + m.gvr.Version
	}
	if m.namespaced && namespace != "" {
		prefix += "/namespaces/" + namespace
	}
	path := prefix + "/" + m.gvr.Resource
	if name != "" {
		path += "/" + name
	}
	return path
}

func (m *mockKindAPI) List(context.Context, string, int64, string) (*unstructured.UnstructuredList, error) {
	return &unstructured.UnstructuredList{}, nil
}

func (m *mockKindAPI) RefreshResourceVersion(_ context.Context, namespace string) (string, error) {
	m.mu.Lock()
	m.refreshes++
	fn := m.refresh
	m.mu.Unlock()
	if fn == nil {
		return "", errors.New("refresh not configured")
	}
	return fn(namespace)
}

func (m *mockKindAPI) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// mockKinds resolves the given KindAPIs.
type mockKinds []KindAPI

func (k mockKinds) ForObject(apiVersion, kind string) (KindAPI, bool) {
	for _, api := range k {
		if api.APIVersion() == apiVersion && api.Kind() == kind {
			return api, true
		}
	}
	return nil, false
}

func (k mockKinds) ForAPIBase(apiBase string) (KindAPI, bool) {
	for _, api := range k {
		if api.APIBase() == apiBase {
			return api, true
		}
	}
	return nil, false
}

// denyKinds refuses the listed kinds.
type denyKinds map[string]bool

func (d denyKinds) IsAllowed(api KindAPI) bool { return !d[api.Kind()] }

// mockStreamRepo hands out one pipe per Open. Tests write stream
// lines into the pipe returned by next.
type mockStreamRepo struct {
	mu      sync.Mutex
	opened  chan *mockStream
	openErr error
}

type mockStream struct {
	apis []string
	w    *io.PipeWriter
	ctx  context.Context
}

func newMockStreamRepo() *mockStreamRepo {
	return &mockStreamRepo{opened: make(chan *mockStream, 16)}
}

func (r *mockStreamRepo) Open(ctx context.Context, apis []string) (io.ReadCloser, error) {
	r.mu.Lock()
	err := r.openErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	r.opened <- &mockStream{apis: apis, w: pw, ctx: ctx}
	return pr, nil
}

func (r *mockStreamRepo) next(t *testing.T) *mockStream {
	t.Helper()
	select {
	case s := <-r.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func (r *mockStreamRepo) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case s := <-r.opened:
		t.Fatalf("unexpected connection for %v", s.apis)
	case <-time.After(within):
	}
}

// send writes raw stream bytes; it fails the test only when the stream
// was closed unexpectedly.
func (s *mockStream) send(t *testing.T, data string) {
	t.Helper()
	if _, err := s.w.Write([]byte(data)); err != nil {
		t.Fatalf("write stream: %v", err)
	}
}

// mockStore records its bulk loads.
type mockStore struct {
	apis []KindAPI

	mu      sync.Mutex
	loads   [][]string
	loaded  bool
	loadErr error
	block   chan struct{}
}

func (s *mockStore) SubscribeAPIs() []KindAPI { return s.apis }

func (s *mockStore) LoadAll(ctx context.Context, namespaces []string) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, namespaces)
	if s.loadErr != nil {
		return s.loadErr
	}
	s.loaded = true
	return nil
}

func (s *mockStore) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *mockStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loads)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
