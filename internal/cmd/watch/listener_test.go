package watch

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/providers/store"
)

type fakeKindAPI struct {
	core.KindAPI
	kind string
}

func (f fakeKindAPI) Kind() string { return f.kind }

func newPod(name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("v1")
	obj.SetKind("Pod")
	obj.SetNamespace("default")
	obj.SetName(name)
	return obj
}

func TestStoreListener(t *testing.T) {
	pods := store.NewObjectStore(fakeKindAPI{kind: "Pod"}, core.NewResumptionTable())
	nodes := store.NewObjectStore(fakeKindAPI{kind: "Node"}, core.NewResumptionTable())
	listen := newStoreListener([]*store.ObjectStore{nodes, pods})

	listen(core.WatchMessage{Type: core.MessageData, Event: core.WatchEventAdded, Object: newPod("web-0"), Store: pods})
	listen(core.WatchMessage{Type: core.MessageData, Event: core.WatchEventAdded, Object: newPod("web-1"), Store: pods})
	listen(core.WatchMessage{Type: core.MessageData, Event: core.WatchEventDeleted, Object: newPod("web-0"), Store: pods})

	// Unowned data, errors and stream ends leave the stores alone.
	listen(core.WatchMessage{Type: core.MessageData, Event: core.WatchEventAdded, Object: newPod("orphan")})
	listen(core.WatchMessage{Type: core.MessageData, Event: core.WatchEventAdded})
	listen(core.WatchMessage{Type: core.MessageError, Error: map[string]any{"reason": "Expired"}})
	listen(core.WatchMessage{Type: core.MessageStreamEnd, URL: "/api/v1/pods?watch=1"})

	if got := pods.Len(); got != 1 {
		t.Fatalf("pods.Len() = %d, want 1", got)
	}
	if _, ok := pods.Get("default", "web-1"); !ok {
		t.Error("expected web-1 in the pod store")
	}
	if got := nodes.Len(); got != 0 {
		t.Errorf("nodes.Len() = %d, want 0", got)
	}
}
