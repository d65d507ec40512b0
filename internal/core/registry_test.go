package core

import (
	"slices"
	"sync/atomic"
	"testing"
)

func renderAll(urls []WatchURL, versions *ResumptionTable) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.Render(versions))
	}
	return out
}

func TestSubscriptionRegistry_RefCounting(t *testing.T) {
	pods := newMockKindAPI("Pod", "", "v1", "pods", true)
	r := NewSubscriptionRegistry(AllowAll{}, StaticNamespaces{"default"})

	var changes atomic.Int32
	r.OnChange(func() { changes.Add(1) })

	first := r.Subscribe(pods)
	second := r.Subscribe(pods)
	if got := r.Count(pods); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	first()
	afterFirst := changes.Load()
	first()
	if got := changes.Load(); got != afterFirst {
		t.Errorf("repeated dispose ran the change hook (%d -> %d)", afterFirst, got)
	}
	if got := r.Count(pods); got != 1 {
		t.Errorf("count after disposing once (twice) = %d, want 1", got)
	}
	if !r.IsActive() {
		t.Error("expected registry to stay active")
	}

	second()
	if got := r.Count(pods); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
	if r.IsActive() {
		t.Error("expected registry to be inactive")
	}
	if len(r.Targets()) != 0 {
		t.Errorf("expected no targets, got %d", len(r.Targets()))
	}
	// Two subscribes and two effective releases.
	if got := changes.Load(); got != 4 {
		t.Errorf("change hook ran %d times, want 4", got)
	}
}

func TestSubscriptionRegistry_SameAPIBaseIsOneTarget(t *testing.T) {
	a := newMockKindAPI("Pod", "", "v1", "pods", true)
	b := newMockKindAPI("Pod", "", "v1", "pods", true)
	r := NewSubscriptionRegistry(AllowAll{}, nil)

	r.Subscribe(a)
	r.Subscribe(b)

	if got := r.Count(a); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	if got := len(r.Targets()); got != 1 {
		t.Errorf("targets = %d, want 1", got)
	}
}

func TestSubscriptionRegistry_EmptySubscribe(t *testing.T) {
	r := NewSubscriptionRegistry(AllowAll{}, nil)
	called := false
	r.OnChange(func() { called = true })

	r.Subscribe()()
	if called {
		t.Error("expected no change for an empty subscription")
	}
}

func TestSubscriptionRegistry_EffectiveTargets(t *testing.T) {
	pods := newMockKindAPI("Pod", "", "v1", "pods", true)
	nodes := newMockKindAPI("Node", "", "v1", "nodes", false)
	secrets := newMockKindAPI("Secret", "", "v1", "secrets", true)
	deployments := newMockKindAPI("Deployment", "apps", "v1", "deployments", true)

	r := NewSubscriptionRegistry(denyKinds{"Secret": true}, StaticNamespaces{"b", "a", "b"})
	r.Subscribe(pods, nodes, secrets, deployments)

	got := renderAll(r.EffectiveTargets(), NewResumptionTable())
	want := []string{
		"/api/v1/nodes?watch=1",
		"/api/v1/namespaces/a/pods?watch=1",
		"/api/v1/namespaces/b/pods?watch=1",
		"/apis/apps/v1/namespaces/a/deployments?watch=1",
		"/apis/apps/v1/namespaces/b/deployments?watch=1",
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestSubscriptionRegistry_NamespacedWithoutNamespaces(t *testing.T) {
	pods := newMockKindAPI("Pod", "", "v1", "pods", true)
	r := NewSubscriptionRegistry(AllowAll{}, StaticNamespaces{})
	r.Subscribe(pods)

	if got := r.EffectiveTargets(); len(got) != 0 {
		t.Errorf("expected no URLs without namespaces, got %d", len(got))
	}
}

func TestWatchURL_RenderResumes(t *testing.T) {
	pods := newMockKindAPI("Pod", "", "v1", "pods", true)
	versions := NewResumptionTable()
	versions.Set("Pod", "default", "42")

	u := WatchURL{API: pods, Namespace: "default"}
	if got, want := u.Render(versions), "/api/v1/namespaces/default/pods?resourceVersion=42&watch=1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSameTargets(t *testing.T) {
	pods := newMockKindAPI("Pod", "", "v1", "pods", true)
	nodes := newMockKindAPI("Node", "", "v1", "nodes", false)

	a := []WatchURL{{API: pods, Namespace: "default"}, {API: nodes}}
	b := []WatchURL{{API: pods, Namespace: "default"}, {API: nodes}}
	if !SameTargets(a, b) {
		t.Error("expected equal target lists")
	}
	if SameTargets(a, b[:1]) {
		t.Error("expected different lengths to differ")
	}
	if SameTargets(a, []WatchURL{{API: pods, Namespace: "other"}, {API: nodes}}) {
		t.Error("expected different namespaces to differ")
	}
}

func TestResumptionTable(t *testing.T) {
	versions := NewResumptionTable()

	versions.Record("Pod", "default", "10")
	if got := versions.Get("Pod", "default"); got != "10" {
		t.Errorf("namespaced version = %q, want 10", got)
	}
	if got := versions.Get("Pod", ""); got != "10" {
		t.Errorf("cluster version = %q, want 10", got)
	}

	versions.Set("Pod", "default", "")
	if got := versions.Get("Pod", "default"); got != "10" {
		t.Errorf("empty version overwrote entry: %q", got)
	}

	versions.Set("Pod", "kube-system", "11")
	if got := versions.Get("Pod", ""); got != "10" {
		t.Errorf("Set touched the cluster entry: %q", got)
	}
	if versions.Len() != 3 {
		t.Errorf("len = %d, want 3", versions.Len())
	}

	versions.Reset()
	if versions.Len() != 0 {
		t.Errorf("len after reset = %d", versions.Len())
	}
}
