package kubernetes

import (
	"context"
	"net/url"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/otterscale/kubewatch/internal/core"
)

// kindAPI implements core.KindAPI for one discovered resource on top
// of the dynamic client.
type kindAPI struct {
	kind       string
	gvr        schema.GroupVersionResource
	namespaced bool
	watchList  bool
	dynamic    dynamic.Interface
}

var _ core.KindAPI = (*kindAPI)(nil)

func (a *kindAPI) Kind() string { return a.kind }

func (a *kindAPI) APIVersion() string { return a.gvr.GroupVersion().String() }

func (a *kindAPI) APIBase() string { return core.APIBase(a.gvr) }

func (a *kindAPI) GroupVersionResource() schema.GroupVersionResource { return a.gvr }

func (a *kindAPI) Namespaced() bool { return a.namespaced }

// WatchURL resumes from resourceVersion when it is known. Without
// one, servers supporting streaming lists are asked for the initial
// state followed by a bookmark.
// See https://kubernetes.io/docs/reference/using-api/api-concepts/#streaming-lists
func (a *kindAPI) WatchURL(namespace, resourceVersion string) string {
	q := url.Values{"watch": {"1"}}
	switch {
	case resourceVersion != "":
		q.Set("resourceVersion", resourceVersion)
	case a.watchList:
		q.Set("sendInitialEvents", "true")
		q.Set("resourceVersionMatch", string(metav1.ResourceVersionMatchNotOlderThan))
		q.Set("allowWatchBookmarks", "true")
	}
	return a.ObjectURL(namespace, "") + "?" + q.Encode()
}

func (a *kindAPI) ObjectURL(namespace, name string) string {
	prefix := "/api/" + a.gvr.Version
	if a.gvr.Group != "" {
		prefix = "/apis/" + a.gvr.Group + "/" + a.gvr.Version
	}
	if a.namespaced && namespace != "" {
		prefix += "/namespaces/" + url.PathEscape(namespace)
	}
	path := prefix + "/" + a.gvr.Resource
	if name != "" {
		path += "/" + url.PathEscape(name)
	}
	return path
}

// List returns a page of objects in namespace ("" for all namespaces
// or a cluster-scoped kind).
func (a *kindAPI) List(ctx context.Context, namespace string, limit int64, continueToken string) (*unstructured.UnstructuredList, error) {
	list, err := a.resource(namespace).List(ctx, metav1.ListOptions{Limit: limit, Continue: continueToken})
	if err != nil {
		return nil, wrapK8sError(err)
	}
	return list, nil
}

// RefreshResourceVersion lists a single object to learn the current
// resourceVersion of the collection.
func (a *kindAPI) RefreshResourceVersion(ctx context.Context, namespace string) (string, error) {
	list, err := a.List(ctx, namespace, 1, "")
	if err != nil {
		return "", err
	}
	version := list.GetResourceVersion()
	if version == "" {
		return "", &core.DomainError{
			Code:    core.ErrorCodeUnavailable,
			Message: "list of " + a.gvr.String() + " carried no resourceVersion",
		}
	}
	return version, nil
}

func (a *kindAPI) resource(namespace string) dynamic.ResourceInterface {
	return a.resourceFor(a.dynamic, namespace)
}

// resourceFor scopes dyn to the kind and, for namespaced kinds, to
// namespace.
func (a *kindAPI) resourceFor(dyn dynamic.Interface, namespace string) dynamic.ResourceInterface {
	if a.namespaced && namespace != "" {
		return dyn.Resource(a.gvr).Namespace(namespace)
	}
	return dyn.Resource(a.gvr)
}
