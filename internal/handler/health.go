package handler

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
)

// WatchServiceName is the health service name reported by both the
// watch route server and the watch client.
const WatchServiceName = "kubewatch.v1.Watch"

// ClientState is the part of the watch client the health check reads.
type ClientState interface {
	IsConnected() bool
	IsActive() bool
}

// ClientChecker reports the watch client as serving unless it has
// targets to watch but no open stream.
type ClientChecker struct {
	client ClientState
}

var _ grpchealth.Checker = (*ClientChecker)(nil)

func NewClientChecker(client ClientState) *ClientChecker {
	return &ClientChecker{client: client}
}

func (c *ClientChecker) Check(_ context.Context, req *grpchealth.CheckRequest) (*grpchealth.CheckResponse, error) {
	if req.Service != "" && req.Service != WatchServiceName {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unknown service %q", req.Service))
	}
	if c.client.IsActive() && !c.client.IsConnected() {
		return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
	}
	return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
}
