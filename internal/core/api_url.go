package core

import (
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// APIRef is a parsed Kubernetes API path such as
// /apis/apps/v1/namespaces/default/deployments/web?watch=1.
type APIRef struct {
	Prefix    string // "/api" or "/apis"
	Group     string
	Version   string
	Namespace string
	Resource  string
	Name      string
	Query     url.Values
}

// ParseAPIURL parses a watch or object URL. Absolute URLs are accepted;
// only the path and query are used.
func ParseAPIURL(raw string) (APIRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return APIRef{}, &ErrInvalidInput{Field: "url", Message: err.Error()}
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	ref := APIRef{Query: u.Query()}

	switch {
	case len(parts) >= 3 && parts[0] == "api":
		ref.Prefix = "/api"
		ref.Version = parts[1]
		parts = parts[2:]
	case len(parts) >= 4 && parts[0] == "apis":
		ref.Prefix = "/apis"
		ref.Group = parts[1]
		ref.Version = parts[2]
		parts = parts[3:]
	default:
		return APIRef{}, &ErrInvalidInput{Field: "url", Message: fmt.Sprintf("%q is not a kubernetes api path", raw)}
	}

	// "namespaces/<ns>/<resource>..." selects a namespaced collection;
	// "namespaces/<name>" alone is the namespace object itself.
	if parts[0] == "namespaces" && len(parts) >= 3 {
		ref.Namespace = parts[1]
		parts = parts[2:]
	}

	ref.Resource = parts[0]
	if len(parts) > 1 {
		ref.Name = parts[1]
	}
	if ref.Resource == "" {
		return APIRef{}, &ErrInvalidInput{Field: "url", Message: fmt.Sprintf("%q has no resource", raw)}
	}

	return ref, nil
}

// APIBase returns the cluster-scoped collection path of the resource.
func (r APIRef) APIBase() string {
	return APIBase(r.GroupVersionResource())
}

func (r APIRef) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: r.Group, Version: r.Version, Resource: r.Resource}
}

// ResourceVersion returns the resourceVersion query parameter.
func (r APIRef) ResourceVersion() string {
	return r.Query.Get("resourceVersion")
}

// APIBase builds the collection path for gvr: /api/v1/pods for the
// core group and /apis/<group>/<version>/<resource> otherwise.
func APIBase(gvr schema.GroupVersionResource) string {
	if gvr.Group == "" {
		return "/api/" + gvr.Version + "/" + gvr.Resource
	}
	return "/apis/" + gvr.Group + "/" + gvr.Version + "/" + gvr.Resource
}
