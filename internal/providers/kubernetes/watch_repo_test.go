package kubernetes

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	k8stesting "k8s.io/client-go/testing"

	"github.com/otterscale/kubewatch/internal/core"
)

func newPodObject(name, rv string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion("v1")
	obj.SetKind("Pod")
	obj.SetNamespace("default")
	obj.SetName(name)
	obj.SetResourceVersion(rv)
	return obj
}

func receive(t *testing.T, w core.Watcher) (core.WatchEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-w.ResultChan():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watch event")
		return core.WatchEvent{}, false
	}
}

func TestWatchRepo_Watch(t *testing.T) {
	client := newFakeDynamic()
	source := watch.NewFake()
	var gotNamespace string
	client.PrependWatchReactor("pods", func(action k8stesting.Action) (bool, watch.Interface, error) {
		gotNamespace = action.GetNamespace()
		return true, source, nil
	})

	registry := newKindRegistry(testResourceLists(), client, false)
	repo := NewWatchRepo(&Kubernetes{dynamic: client}, registry)

	ref, err := core.ParseAPIURL("/api/v1/namespaces/default/pods?watch=1&resourceVersion=5")
	if err != nil {
		t.Fatalf("ParseAPIURL: %v", err)
	}
	w, err := repo.Watch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	if gotNamespace != "default" {
		t.Errorf("namespace = %q, want default", gotNamespace)
	}

	go source.Add(newPodObject("web-0", "6"))
	ev, ok := receive(t, w)
	if !ok || ev.Type != core.WatchEventAdded {
		t.Fatalf("got %+v, %v", ev, ok)
	}
	if name, _, _ := unstructured.NestedString(ev.Object, "metadata", "name"); name != "web-0" {
		t.Errorf("name = %q, want web-0", name)
	}

	go source.Error(&metav1.Status{Status: metav1.StatusFailure, Code: http.StatusGone, Reason: metav1.StatusReasonExpired, Message: "too old"})
	ev, _ = receive(t, w)
	if ev.Type != core.WatchEventError || ev.Object["kind"] != "Status" || ev.Object["reason"] != "Expired" {
		t.Errorf("got %+v", ev)
	}

	go source.Stop()
	if _, ok := receive(t, w); ok {
		t.Error("expected the result channel to close with the source")
	}
}

func TestWatchRepo_UnknownKind(t *testing.T) {
	repo := NewWatchRepo(&Kubernetes{}, newKindRegistry(testResourceLists(), newFakeDynamic(), false))

	ref, err := core.ParseAPIURL("/apis/example.com/v1/widgets?watch=1")
	if err != nil {
		t.Fatalf("ParseAPIURL: %v", err)
	}
	_, err = repo.Watch(context.Background(), ref)
	var notFound *core.ErrKindNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrKindNotFound, got %v", err)
	}
}

func TestWatcher_StopClosesChannel(t *testing.T) {
	w := newWatcher(watch.NewFake())
	w.Stop()
	w.Stop()

	if _, ok := receive(t, w); ok {
		t.Error("expected a closed channel after Stop")
	}
}

func TestWatchRepo_Impersonation(t *testing.T) {
	shared := newFakeDynamic()
	userClient := newFakeDynamic()
	userClient.PrependWatchReactor("pods", func(k8stesting.Action) (bool, watch.Interface, error) {
		return true, watch.NewFake(), nil
	})

	var gotUser core.UserInfo
	repo := &WatchRepo{
		kinds: newKindRegistry(testResourceLists(), shared, false),
		impersonate: func(user core.UserInfo) (dynamic.Interface, error) {
			gotUser = user
			return userClient, nil
		},
	}

	ref, _ := core.ParseAPIURL("/api/v1/pods?watch=1")
	ctx := core.WithUserInfo(context.Background(), core.UserInfo{Subject: "alice", Groups: []string{"oidc:dev"}})
	w, err := repo.Watch(ctx, ref)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	w.Stop()

	if gotUser.Subject != "alice" {
		t.Errorf("impersonated subject = %q, want alice", gotUser.Subject)
	}
	if n := len(shared.Actions()); n != 0 {
		t.Errorf("expected no calls on the shared client, got %d", n)
	}
	if n := len(userClient.Actions()); n != 1 {
		t.Errorf("expected one watch on the user client, got %d", n)
	}
}

func TestKubernetes_ImpersonatingWithoutConfig(t *testing.T) {
	_, err := (&Kubernetes{}).impersonating(core.UserInfo{Subject: "alice"})
	var notReady *core.ErrNotReady
	if !errors.As(err, &notReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestKubernetes_Impersonating(t *testing.T) {
	k := &Kubernetes{config: &rest.Config{Host: "https://127.0.0.1:6443"}}
	if _, err := k.impersonating(core.UserInfo{Subject: "alice"}); err != nil {
		t.Fatalf("impersonating: %v", err)
	}
}
