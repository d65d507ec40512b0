package kubernetes

import (
	"context"
	"errors"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/otterscale/kubewatch/internal/core"
)

// wrapK8sError translates an API server failure into a
// core.DomainError. Errors that carry no API status are returned
// unchanged, except for an expired context deadline.
func wrapK8sError(err error) error {
	if err == nil {
		return nil
	}

	var status apierrors.APIStatus
	if !errors.As(err, &status) {
		if errors.Is(err, context.DeadlineExceeded) {
			return &core.DomainError{Code: core.ErrorCodeDeadlineExceeded, Message: err.Error(), Cause: err}
		}
		return err
	}

	return &core.DomainError{
		Code:    codeFor(err),
		Message: status.Status().Message,
		Cause:   err,
	}
}

// codeFor classifies an API status error. An expired or gone resource
// version is a failed precondition: the watch can resume once the
// caller refreshes its resource version.
func codeFor(err error) core.ErrorCode {
	switch {
	case apierrors.IsResourceExpired(err), apierrors.IsGone(err), apierrors.IsConflict(err):
		return core.ErrorCodeFailedPrecondition
	case apierrors.IsUnauthorized(err):
		return core.ErrorCodeUnauthenticated
	case apierrors.IsForbidden(err):
		return core.ErrorCodePermissionDenied
	case apierrors.IsNotFound(err):
		return core.ErrorCodeNotFound
	case apierrors.IsAlreadyExists(err):
		return core.ErrorCodeAlreadyExists
	case apierrors.IsBadRequest(err), apierrors.IsInvalid(err),
		apierrors.IsNotAcceptable(err), apierrors.IsUnsupportedMediaType(err):
		return core.ErrorCodeInvalidArgument
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return core.ErrorCodeDeadlineExceeded
	case apierrors.IsTooManyRequests(err), apierrors.IsRequestEntityTooLargeError(err):
		return core.ErrorCodeResourceExhausted
	case apierrors.IsMethodNotSupported(err):
		return core.ErrorCodeUnimplemented
	case apierrors.IsServiceUnavailable(err):
		return core.ErrorCodeUnavailable
	}
	return core.ErrorCodeInternal
}
