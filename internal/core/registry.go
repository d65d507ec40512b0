package core

import (
	"slices"
	"strings"
	"sync"
)

// WatchURL is one entry of the effective target list: a KindAPI
// watched in a namespace ("" for cluster scope).
type WatchURL struct {
	API       KindAPI
	Namespace string
}

// Key identifies the entry independently of any resumption token.
func (u WatchURL) Key() string {
	return u.API.APIBase() + "@" + u.Namespace
}

// Render returns the URL to request, resuming from versions.
func (u WatchURL) Render(versions *ResumptionTable) string {
	return u.API.WatchURL(u.Namespace, versions.Get(u.API.Kind(), u.Namespace))
}

type subscription struct {
	api   KindAPI
	count int
}

// SubscriptionRegistry is the reference-counted set of active watch
// targets. Every mutation invokes the change hook outside the lock.
type SubscriptionRegistry struct {
	access     AccessChecker
	namespaces NamespaceProvider

	mu       sync.Mutex
	entries  map[string]*subscription
	onChange func()
}

func NewSubscriptionRegistry(access AccessChecker, namespaces NamespaceProvider) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		access:     access,
		namespaces: namespaces,
		entries:    make(map[string]*subscription),
	}
}

// OnChange sets the hook called after every count change.
func (r *SubscriptionRegistry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Subscribe increments the count of every target and returns a
// disposer that decrements them again. The disposer is idempotent.
func (r *SubscriptionRegistry) Subscribe(targets ...KindAPI) func() {
	if len(targets) == 0 {
		return func() {}
	}

	r.mu.Lock()
	for _, api := range targets {
		key := api.APIBase()
		if sub, ok := r.entries[key]; ok {
			sub.count++
			continue
		}
		r.entries[key] = &subscription{api: api, count: 1}
	}
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook()
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(targets) })
	}
}

func (r *SubscriptionRegistry) release(targets []KindAPI) {
	r.mu.Lock()
	for _, api := range targets {
		key := api.APIBase()
		sub, ok := r.entries[key]
		if !ok {
			continue
		}
		sub.count--
		if sub.count <= 0 {
			delete(r.entries, key)
		}
	}
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Count returns the reference count of target, 0 when absent.
func (r *SubscriptionRegistry) Count(target KindAPI) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.entries[target.APIBase()]; ok {
		return sub.count
	}
	return 0
}

// IsActive reports whether at least one target is registered.
func (r *SubscriptionRegistry) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}

// Targets returns the registered targets ordered by APIBase.
func (r *SubscriptionRegistry) Targets() []KindAPI {
	r.mu.Lock()
	targets := make([]KindAPI, 0, len(r.entries))
	for _, sub := range r.entries {
		targets = append(targets, sub.api)
	}
	r.mu.Unlock()

	slices.SortFunc(targets, func(a, b KindAPI) int {
		return strings.Compare(a.APIBase(), b.APIBase())
	})
	return targets
}

// EffectiveTargets derives the watch URLs for the registered targets:
// denied kinds contribute nothing, namespaced kinds one URL per
// watched namespace, cluster-scoped kinds a single URL. The order is
// deterministic so that two results can be compared with
// SameTargets.
func (r *SubscriptionRegistry) EffectiveTargets() []WatchURL {
	targets := r.Targets()
	if len(targets) == 0 {
		return nil
	}

	var namespaces []string
	if r.namespaces != nil {
		namespaces = slices.Clone(r.namespaces.Namespaces())
		slices.Sort(namespaces)
		namespaces = slices.Compact(namespaces)
	}

	var urls []WatchURL
	for _, api := range targets {
		if r.access != nil && !r.access.IsAllowed(api) {
			continue
		}
		if !api.Namespaced() {
			urls = append(urls, WatchURL{API: api})
			continue
		}
		for _, ns := range namespaces {
			urls = append(urls, WatchURL{API: api, Namespace: ns})
		}
	}
	return urls
}

// SameTargets reports whether a and b name the same watch URLs in the
// same order.
func SameTargets(a, b []WatchURL) bool {
	return slices.EqualFunc(a, b, func(x, y WatchURL) bool {
		return x.Key() == y.Key()
	})
}
