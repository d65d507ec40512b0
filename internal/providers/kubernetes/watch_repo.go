package kubernetes

import (
	"context"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"

	"github.com/otterscale/kubewatch/internal/core"
)

// WatchRepo opens the upstream watches of the watch route through the
// dynamic client. When the context carries a core.UserInfo the watch
// is opened impersonating that user. It implements core.TargetWatcher.
type WatchRepo struct {
	kinds       *KindRegistry
	impersonate func(core.UserInfo) (dynamic.Interface, error)
}

var _ core.TargetWatcher = (*WatchRepo)(nil)

func NewWatchRepo(kube *Kubernetes, kinds *KindRegistry) *WatchRepo {
	return &WatchRepo{
		kinds:       kinds,
		impersonate: kube.impersonating,
	}
}

// Watch opens the watch named by ref. Streaming-list parameters of
// the request are honored.
func (r *WatchRepo) Watch(ctx context.Context, ref core.APIRef) (core.Watcher, error) {
	api, ok := r.kinds.byAPIBase[ref.APIBase()]
	if !ok {
		return nil, &core.ErrKindNotFound{Resource: ref.APIBase()}
	}

	opts := metav1.ListOptions{
		Watch:               true,
		AllowWatchBookmarks: ref.Query.Get("allowWatchBookmarks") == "true",
		ResourceVersion:     ref.ResourceVersion(),
		LabelSelector:       ref.Query.Get("labelSelector"),
		FieldSelector:       ref.Query.Get("fieldSelector"),
	}
	if ref.Query.Get("sendInitialEvents") == "true" {
		sendInitialEvents := true
		opts.SendInitialEvents = &sendInitialEvents
		opts.ResourceVersionMatch = metav1.ResourceVersionMatch(ref.Query.Get("resourceVersionMatch"))
	}

	res := api.resource(ref.Namespace)
	if user, ok := core.UserInfoFrom(ctx); ok {
		dyn, err := r.impersonate(user)
		if err != nil {
			return nil, err
		}
		res = api.resourceFor(dyn, ref.Namespace)
	}

	w, err := res.Watch(ctx, opts)
	if err != nil {
		return nil, wrapK8sError(err)
	}
	return newWatcher(w), nil
}

// watcher adapts a client-go watch.Interface to core.Watcher.
type watcher struct {
	source watch.Interface
	ch     chan core.WatchEvent
	done   chan struct{}
	once   sync.Once
}

func newWatcher(source watch.Interface) *watcher {
	w := &watcher{
		source: source,
		ch:     make(chan core.WatchEvent),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *watcher) ResultChan() <-chan core.WatchEvent { return w.ch }

func (w *watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.source.Stop()
	})
}

func (w *watcher) run() {
	defer close(w.ch)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.source.ResultChan():
			if !ok {
				return
			}
			select {
			case w.ch <- toWatchEvent(ev):
			case <-w.done:
				return
			}
		}
	}
}

func toWatchEvent(ev watch.Event) core.WatchEvent {
	event := core.WatchEvent{Type: core.WatchEventType(ev.Type)}
	if ev.Object == nil {
		return event
	}

	if u, ok := ev.Object.(runtime.Unstructured); ok {
		event.Object = u.UnstructuredContent()
		return event
	}

	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(ev.Object)
	if err == nil {
		event.Object = obj
	}
	if _, ok := ev.Object.(*metav1.Status); ok && event.Object != nil {
		event.Object["kind"] = "Status"
		event.Object["apiVersion"] = "v1"
	}
	return event
}
