package kubernetes

import (
	"context"
	"errors"
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/otterscale/kubewatch/internal/core"
)

func TestWrapK8sError(t *testing.T) {
	gr := schema.GroupResource{Resource: "pods"}

	tests := []struct {
		name string
		err  error
		want core.ErrorCode
	}{
		{name: "not found", err: apierrors.NewNotFound(gr, "web-0"), want: core.ErrorCodeNotFound},
		{name: "forbidden", err: apierrors.NewForbidden(gr, "web-0", errors.New("denied")), want: core.ErrorCodePermissionDenied},
		{name: "unauthorized", err: apierrors.NewUnauthorized("expired token"), want: core.ErrorCodeUnauthenticated},
		{name: "expired resource version", err: apierrors.NewResourceExpired("too old resource version"), want: core.ErrorCodeFailedPrecondition},
		{name: "invalid", err: apierrors.NewBadRequest("bad selector"), want: core.ErrorCodeInvalidArgument},
		{name: "timeout", err: apierrors.NewTimeoutError("slow", 1), want: core.ErrorCodeDeadlineExceeded},
		{name: "internal", err: apierrors.NewInternalError(errors.New("etcd")), want: core.ErrorCodeInternal},
		{name: "unavailable", err: apierrors.NewServiceUnavailable("down"), want: core.ErrorCodeUnavailable},
		{name: "too many requests", err: apierrors.NewTooManyRequests("slow down", 1), want: core.ErrorCodeResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapK8sError(tt.err)
			if got := core.CodeOf(err); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected the original error to stay reachable")
			}
		})
	}
}

func TestWrapK8sError_Passthrough(t *testing.T) {
	if wrapK8sError(nil) != nil {
		t.Error("expected nil for nil")
	}
	if got := core.CodeOf(wrapK8sError(context.DeadlineExceeded)); got != core.ErrorCodeDeadlineExceeded {
		t.Errorf("deadline code = %v, want DeadlineExceeded", got)
	}
	plain := errors.New("dial tcp: refused")
	if got := wrapK8sError(plain); got != plain {
		t.Errorf("got %v, want the original error", got)
	}
}
