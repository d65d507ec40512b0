package core

import (
	"context"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// KindAPI is the per-kind REST handle of a watchable resource. It is
// the watch target the engine reference-counts: two KindAPI values
// are the same target when their APIBase is equal.
type KindAPI interface {
	// Kind returns the object kind, e.g. "Pod".
	Kind() string
	// APIVersion returns the object apiVersion, e.g. "apps/v1".
	APIVersion() string
	// APIBase returns the cluster-scoped collection path, e.g.
	// "/apis/apps/v1/deployments". It identifies the target.
	APIBase() string
	// GroupVersionResource returns the resource coordinates.
	GroupVersionResource() schema.GroupVersionResource
	// Namespaced reports whether the resource lives in namespaces.
	Namespaced() bool
	// WatchURL returns the watch URL for namespace (ignored for
	// cluster-scoped kinds), resuming after resourceVersion when it
	// is non-empty.
	WatchURL(namespace, resourceVersion string) string
	// ObjectURL returns the path of a single object, or of the
	// collection when name is empty.
	ObjectURL(namespace, name string) string
	// List returns a page of objects of namespace ("" for all
	// namespaces), continuing after continueToken when it is set.
	List(ctx context.Context, namespace string, limit int64, continueToken string) (*unstructured.UnstructuredList, error)
	// RefreshResourceVersion asks the backend for the latest
	// resourceVersion of the collection in namespace.
	RefreshResourceVersion(ctx context.Context, namespace string) (string, error)
}

// KindResolver maps stream data back to registered KindAPIs.
type KindResolver interface {
	// ForObject resolves an object's apiVersion and kind.
	ForObject(apiVersion, kind string) (KindAPI, bool)
	// ForAPIBase resolves a collection path as returned by APIBase.
	ForAPIBase(apiBase string) (KindAPI, bool)
}

// AccessChecker decides whether the current session may watch a kind.
type AccessChecker interface {
	IsAllowed(api KindAPI) bool
}

// NamespaceProvider returns the namespaces currently watched.
type NamespaceProvider interface {
	Namespaces() []string
}

// Store is a cached resource collection fed by the watch stream.
type Store interface {
	// SubscribeAPIs returns the targets the store needs watched.
	SubscribeAPIs() []KindAPI
	// LoadAll performs the bulk load for namespaces.
	LoadAll(ctx context.Context, namespaces []string) error
	// IsLoaded reports whether a bulk load has completed.
	IsLoaded() bool
}

// StreamRepo issues the single streamed watch request. The returned
// body yields newline-delimited WatchEvent JSON; closing it (or
// cancelling ctx) aborts the request.
type StreamRepo interface {
	Open(ctx context.Context, apis []string) (io.ReadCloser, error)
}

// TargetWatcher opens the upstream watch for one target of the watch
// route.
type TargetWatcher interface {
	Watch(ctx context.Context, ref APIRef) (Watcher, error)
}

// AllowAll is an AccessChecker that permits every kind.
type AllowAll struct{}

func (AllowAll) IsAllowed(KindAPI) bool { return true }

// StaticNamespaces is a NamespaceProvider with a fixed list.
type StaticNamespaces []string

func (s StaticNamespaces) Namespaces() []string { return s }
