package kubernetes

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"

	"github.com/otterscale/kubewatch/internal/core"
)

// minWatchListVersion is the minimum Kubernetes version that supports
// the WatchList streaming feature (beta, default-on since 1.34).
var minWatchListVersion = semver.MustParse("v1.34.0")

// KindRegistry resolves watchable resources discovered on the cluster.
// It implements core.KindResolver.
type KindRegistry struct {
	apis      []*kindAPI
	byAPIBase map[string]*kindAPI
	byObject  map[string]*kindAPI
	byName    map[string]*kindAPI
}

var _ core.KindResolver = (*KindRegistry)(nil)

// NewKindRegistry discovers the preferred version of every resource
// that supports list and watch. Groups that fail discovery are
// skipped with a warning.
func NewKindRegistry(k *Kubernetes) (*KindRegistry, error) {
	lists, err := discovery.ServerPreferredResources(k.discovery)
	if err != nil {
		if !discovery.IsGroupDiscoveryFailedError(err) {
			return nil, wrapK8sError(err)
		}
		slog.Warn("partial api discovery", "error", err)
	}

	watchList, err := supportsWatchList(k.discovery)
	if err != nil {
		slog.Warn("failed to detect server version, disabling streaming lists", "error", err)
	}

	return newKindRegistry(lists, k.dynamic, watchList), nil
}

// supportsWatchList reports whether the cluster supports the WatchList
// streaming feature (Kubernetes >= 1.34).
func supportsWatchList(client discovery.ServerVersionInterface) (bool, error) {
	info, err := client.ServerVersion()
	if err != nil {
		return false, wrapK8sError(err)
	}

	kubeVersion, err := semver.NewVersion(info.String())
	if err != nil {
		return false, err
	}

	return kubeVersion.GreaterThanEqual(minWatchListVersion), nil
}

func newKindRegistry(lists []*metav1.APIResourceList, dyn dynamic.Interface, watchList bool) *KindRegistry {
	r := &KindRegistry{
		byAPIBase: make(map[string]*kindAPI),
		byObject:  make(map[string]*kindAPI),
		byName:    make(map[string]*kindAPI),
	}

	for _, list := range lists {
		if list == nil {
			continue
		}
		gv, err := schema.ParseGroupVersion(list.GroupVersion)
		if err != nil {
			slog.Debug("skipping unparsable group version", "group_version", list.GroupVersion, "error", err)
			continue
		}

		for i := range list.APIResources {
			res := &list.APIResources[i]
			if strings.Contains(res.Name, "/") || !hasVerbs(res.Verbs, "list", "watch") {
				continue
			}

			api := &kindAPI{
				kind:       res.Kind,
				gvr:        gv.WithResource(res.Name),
				namespaced: res.Namespaced,
				watchList:  watchList,
				dynamic:    dyn,
			}
			if _, ok := r.byAPIBase[api.APIBase()]; ok {
				continue
			}

			r.apis = append(r.apis, api)
			r.byAPIBase[api.APIBase()] = api
			r.byObject[objectKey(api.APIVersion(), api.kind)] = api

			r.index(res.Name+"."+gv.Group, api)
			r.index(res.Name, api)
			r.index(strings.ToLower(res.Kind), api)
			if res.SingularName != "" {
				r.index(res.SingularName, api)
			}
			for _, short := range res.ShortNames {
				r.index(short, api)
			}
		}
	}

	slices.SortFunc(r.apis, func(a, b *kindAPI) int {
		return strings.Compare(a.APIBase(), b.APIBase())
	})
	return r
}

// index keeps the first resource registered under name, so that core
// resources win over same-named resources of later groups.
func (r *KindRegistry) index(name string, api *kindAPI) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if _, ok := r.byName[name]; !ok {
		r.byName[name] = api
	}
}

func (r *KindRegistry) ForObject(apiVersion, kind string) (core.KindAPI, bool) {
	api, ok := r.byObject[objectKey(apiVersion, kind)]
	return api, ok
}

func (r *KindRegistry) ForAPIBase(apiBase string) (core.KindAPI, bool) {
	api, ok := r.byAPIBase[apiBase]
	return api, ok
}

// Lookup resolves a user-supplied resource name such as "pods",
// "po", "Pod" or "deployments.apps".
func (r *KindRegistry) Lookup(name string) (core.KindAPI, error) {
	if api, ok := r.byName[strings.ToLower(name)]; ok {
		return api, nil
	}
	return nil, &core.ErrKindNotFound{Resource: name}
}

// LookupAll resolves every name, failing on the first unknown one.
func (r *KindRegistry) LookupAll(names []string) ([]core.KindAPI, error) {
	apis := make([]core.KindAPI, 0, len(names))
	for _, name := range names {
		api, err := r.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", name, err)
		}
		apis = append(apis, api)
	}
	return apis, nil
}

// APIs returns every registered resource ordered by APIBase.
func (r *KindRegistry) APIs() []core.KindAPI {
	apis := make([]core.KindAPI, len(r.apis))
	for i, api := range r.apis {
		apis[i] = api
	}
	return apis
}

func objectKey(apiVersion, kind string) string {
	return apiVersion + "|" + kind
}

func hasVerbs(verbs metav1.Verbs, want ...string) bool {
	for _, w := range want {
		if !slices.Contains(verbs, w) {
			return false
		}
	}
	return true
}
