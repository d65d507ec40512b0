// Package store provides cached resource collections fed by the
// watch engine.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/kubewatch/internal/core"
)

// listPageSize bounds a single list request of LoadAll.
const listPageSize = 500

// ObjectStore caches the objects of one kind. LoadAll fills it from a
// bulk list and Apply keeps it current from watch messages.
type ObjectStore struct {
	api      core.KindAPI
	versions *core.ResumptionTable
	log      *slog.Logger

	mu      sync.RWMutex
	objects map[string]*unstructured.Unstructured
	loaded  bool
}

var _ core.Store = (*ObjectStore)(nil)

// NewObjectStore returns an empty store for api. List versions are
// recorded into versions so that the watch resumes after the list.
func NewObjectStore(api core.KindAPI, versions *core.ResumptionTable) *ObjectStore {
	return &ObjectStore{
		api:      api,
		versions: versions,
		log:      slog.Default().With("component", "object-store", "kind", api.Kind()),
		objects:  make(map[string]*unstructured.Unstructured),
	}
}

func (s *ObjectStore) API() core.KindAPI { return s.api }

func (s *ObjectStore) SubscribeAPIs() []core.KindAPI {
	return []core.KindAPI{s.api}
}

// LoadAll replaces the cached objects with a list of every namespace,
// or of the whole cluster for cluster-scoped kinds and when no
// namespace is given.
func (s *ObjectStore) LoadAll(ctx context.Context, namespaces []string) error {
	if !s.api.Namespaced() || len(namespaces) == 0 {
		namespaces = []string{""}
	}

	var (
		mu      sync.Mutex
		objects = make(map[string]*unstructured.Unstructured)
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, ns := range namespaces {
		eg.Go(func() error {
			items, version, err := s.list(egCtx, ns)
			if err != nil {
				return fmt.Errorf("list %s in %q: %w", s.api.Kind(), ns, err)
			}

			mu.Lock()
			for _, item := range items {
				objects[objectKey(item.GetNamespace(), item.GetName())] = item
			}
			mu.Unlock()

			if s.versions != nil {
				s.versions.Set(s.api.Kind(), ns, version)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.objects = objects
	s.loaded = true
	s.mu.Unlock()

	s.log.Debug("loaded", "namespaces", len(namespaces), "objects", len(objects))
	return nil
}

// list pages through one namespace. The returned version is the one of
// the first page, the point the list is consistent with.
func (s *ObjectStore) list(ctx context.Context, namespace string) ([]*unstructured.Unstructured, string, error) {
	var (
		items         []*unstructured.Unstructured
		version       string
		continueToken string
	)
	for {
		page, err := s.api.List(ctx, namespace, listPageSize, continueToken)
		if err != nil {
			return nil, "", err
		}
		if version == "" {
			version = page.GetResourceVersion()
		}
		for i := range page.Items {
			items = append(items, &page.Items[i])
		}

		continueToken = page.GetContinue()
		if continueToken == "" {
			return items, version, nil
		}
	}
}

func (s *ObjectStore) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Apply folds a data message into the cache. Messages for other
// stores are ignored.
func (s *ObjectStore) Apply(msg core.WatchMessage) bool {
	if msg.Type != core.MessageData || msg.Store != core.Store(s) || msg.Object == nil {
		return false
	}

	key := objectKey(msg.Object.GetNamespace(), msg.Object.GetName())

	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Event {
	case core.WatchEventAdded, core.WatchEventModified:
		s.objects[key] = msg.Object
	case core.WatchEventDeleted:
		delete(s.objects, key)
	default:
		return false
	}
	return true
}

// Get returns a cached object.
func (s *ObjectStore) Get(namespace, name string) (*unstructured.Unstructured, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(namespace, name)]
	return obj, ok
}

// Items returns the cached objects ordered by namespace and name.
func (s *ObjectStore) Items() []*unstructured.Unstructured {
	s.mu.RLock()
	items := make([]*unstructured.Unstructured, 0, len(s.objects))
	for _, obj := range s.objects {
		items = append(items, obj)
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b *unstructured.Unstructured) int {
		return strings.Compare(objectKey(a.GetNamespace(), a.GetName()), objectKey(b.GetNamespace(), b.GetName()))
	})
	return items
}

func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func objectKey(namespace, name string) string {
	return namespace + "/" + name
}
