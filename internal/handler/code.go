package handler

import (
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/otterscale/kubewatch/internal/core"
)

// domainCodeToReason maps domain-level error codes to the Kubernetes
// status reason and HTTP code reported on the stream.
var domainCodeToReason = map[core.ErrorCode]struct {
	reason metav1.StatusReason
	code   int32
}{
	core.ErrorCodeInternal:           {metav1.StatusReasonInternalError, http.StatusInternalServerError},
	core.ErrorCodeInvalidArgument:    {metav1.StatusReasonBadRequest, http.StatusBadRequest},
	core.ErrorCodeNotFound:           {metav1.StatusReasonNotFound, http.StatusNotFound},
	core.ErrorCodeAlreadyExists:      {metav1.StatusReasonAlreadyExists, http.StatusConflict},
	core.ErrorCodeUnauthenticated:    {metav1.StatusReasonUnauthorized, http.StatusUnauthorized},
	core.ErrorCodePermissionDenied:   {metav1.StatusReasonForbidden, http.StatusForbidden},
	core.ErrorCodeFailedPrecondition: {metav1.StatusReasonExpired, http.StatusGone},
	core.ErrorCodeDeadlineExceeded:   {metav1.StatusReasonTimeout, http.StatusGatewayTimeout},
	core.ErrorCodeResourceExhausted:  {metav1.StatusReasonTooManyRequests, http.StatusTooManyRequests},
	core.ErrorCodeUnimplemented:      {metav1.StatusReasonMethodNotAllowed, http.StatusMethodNotAllowed},
	core.ErrorCodeUnavailable:        {metav1.StatusReasonServiceUnavailable, http.StatusServiceUnavailable},
}

// domainErrorToStatus converts a domain error into a Kubernetes Status
// with a semantically equivalent reason. Unrecognised errors fall back
// to InternalError.
func domainErrorToStatus(err error) *metav1.Status {
	mapped, ok := domainCodeToReason[core.CodeOf(err)]
	if !ok {
		mapped = domainCodeToReason[core.ErrorCodeInternal]
	}
	return &metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusFailure,
		Message:  err.Error(),
		Reason:   mapped.reason,
		Code:     mapped.code,
	}
}

// statusObject renders err as the generic object of an ERROR event.
func statusObject(err error) map[string]any {
	obj, convErr := runtime.DefaultUnstructuredConverter.ToUnstructured(domainErrorToStatus(err))
	if convErr != nil {
		return map[string]any{
			"kind":       "Status",
			"apiVersion": "v1",
			"status":     metav1.StatusFailure,
			"message":    err.Error(),
		}
	}
	return obj
}

// writeError reports a request-level failure as a plain Status body.
func writeError(w http.ResponseWriter, err error) {
	status := domainErrorToStatus(err)
	writeJSON(w, int(status.Code), status)
}
