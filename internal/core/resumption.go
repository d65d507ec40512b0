package core

import "sync"

// ResumptionKey identifies a resumption token: a resource kind and a
// namespace, where the empty namespace is the cluster-wide entry.
type ResumptionKey struct {
	Kind      string
	Namespace string
}

// ResumptionTable holds the last resourceVersion observed per
// (kind, namespace). Entries survive reconnects and are cleared only
// by Reset when the owning client is torn down.
type ResumptionTable struct {
	mu       sync.RWMutex
	versions map[ResumptionKey]string
}

func NewResumptionTable() *ResumptionTable {
	return &ResumptionTable{versions: make(map[ResumptionKey]string)}
}

// Get returns the stored version, or "" when none is known.
func (t *ResumptionTable) Get(kind, namespace string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.versions[ResumptionKey{Kind: kind, Namespace: namespace}]
}

// Set stores version for exactly (kind, namespace). Empty versions are
// ignored.
func (t *ResumptionTable) Set(kind, namespace, version string) {
	if version == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.versions[ResumptionKey{Kind: kind, Namespace: namespace}] = version
}

// Record stores version under namespace and under the cluster-wide
// key, so that a cluster-scoped refresh sees the newest version no
// matter which namespaced watch observed it.
func (t *ResumptionTable) Record(kind, namespace, version string) {
	if version == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.versions[ResumptionKey{Kind: kind, Namespace: namespace}] = version
	t.versions[ResumptionKey{Kind: kind}] = version
}

func (t *ResumptionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.versions)
}

func (t *ResumptionTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.versions)
}
