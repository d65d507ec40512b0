package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"testing"

	"connectrpc.com/authn"
	"k8s.io/client-go/rest"

	"github.com/otterscale/kubewatch/internal/core"
)

type seenRequest struct {
	path   string
	query  string
	auth   string
	user   string
	groups []string
}

func newFakeAPIServer(t *testing.T) (*httptest.Server, <-chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- seenRequest{
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			user:   r.Header.Get("Impersonate-User"),
			groups: r.Header.Values("Impersonate-Group"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"PodList","items":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestAPIProxy_Forwards(t *testing.T) {
	apiserver, seen := newFakeAPIServer(t)

	mux := http.NewServeMux()
	if err := NewAPIProxy(&rest.Config{Host: apiserver.URL, BearerToken: "service-account"}).Mount(mux); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/namespaces/default/pods?limit=1", nil)
	req.Header.Set("Authorization", "Bearer caller-token")
	req.Header.Set("Impersonate-User", "system:admin")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	got := <-seen
	if got.path != "/api/v1/namespaces/default/pods" || got.query != "limit=1" {
		t.Errorf("unexpected upstream request %s?%s", got.path, got.query)
	}
	if got.auth != "Bearer service-account" {
		t.Errorf("expected the server's credentials upstream, got %q", got.auth)
	}
	if got.user != "" {
		t.Errorf("caller-supplied impersonation must be dropped, got %q", got.user)
	}
}

func TestAPIProxy_KeepsRequestPath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantPath  string
		wantQuery string
	}{
		{"collection", "/api/v1/namespaces/default/pods?limit=1", "/api/v1/namespaces/default/pods", "limit=1"},
		{"object", "/apis/apps/v1/namespaces/default/deployments/web", "/apis/apps/v1/namespaces/default/deployments/web", ""},
		{"cluster collection", "/api/v1/nodes?labelSelector=a%3Db", "/api/v1/nodes", "labelSelector=a%3Db"},
		{"discovery root", "/apis", "/apis", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiserver, seen := newFakeAPIServer(t)
			mux := http.NewServeMux()
			if err := NewAPIProxy(&rest.Config{Host: apiserver.URL}).Mount(mux); err != nil {
				t.Fatalf("Mount() error = %v", err)
			}
			srv := httptest.NewServer(mux)
			defer srv.Close()

			resp, err := srv.Client().Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			resp.Body.Close()

			got := <-seen
			if got.path != tt.wantPath || got.query != tt.wantQuery {
				t.Errorf("upstream got %s?%s, want %s?%s", got.path, got.query, tt.wantPath, tt.wantQuery)
			}
		})
	}
}

func TestLocation_KeepsHostPrefix(t *testing.T) {
	target, _ := url.Parse("https://rancher.example.com/k8s/clusters/c1/")
	req, _ := url.Parse("/api/v1/pods?watch=1")

	got := location(target, req)
	if got.String() != "https://rancher.example.com/k8s/clusters/c1/api/v1/pods?watch=1" {
		t.Errorf("location() = %s", got)
	}
}

func TestAPIProxy_ImpersonatesAuthenticatedUser(t *testing.T) {
	apiserver, seen := newFakeAPIServer(t)

	mux := http.NewServeMux()
	if err := NewAPIProxy(&rest.Config{Host: apiserver.URL, BearerToken: "service-account"}).Mount(mux); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	auth := authn.NewMiddleware(func(context.Context, *http.Request) (any, error) {
		return core.UserInfo{Subject: "alice", Groups: []string{"system:authenticated", "oidc:dev"}}, nil
	})
	srv := httptest.NewServer(auth.Wrap(mux))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/v1/pods")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	got := <-seen
	if got.user != "alice" {
		t.Errorf("expected Impersonate-User alice, got %q", got.user)
	}
	if !slices.Equal(got.groups, []string{"system:authenticated", "oidc:dev"}) {
		t.Errorf("unexpected Impersonate-Group %v", got.groups)
	}
}
