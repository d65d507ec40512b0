package server

import (
	"net/http"

	"connectrpc.com/grpchealth"

	"github.com/otterscale/kubewatch/internal/handler"
)

type Handler struct {
	watch *handler.WatchHandler
	proxy *handler.APIProxy
}

func NewHandler(watch *handler.WatchHandler, proxy *handler.APIProxy) *Handler {
	return &Handler{
		watch: watch,
		proxy: proxy,
	}
}

// Mount registers all handlers and observability tools to the mux.
// The API proxy claims every path the other routes leave unmatched.
func (h *Handler) Mount(mux *http.ServeMux) error {
	ops := handler.NewOps(grpchealth.NewStaticChecker(handler.WatchServiceName))
	if err := ops.Mount(mux); err != nil {
		return err
	}

	if err := h.watch.Mount(mux); err != nil {
		return err
	}

	return h.proxy.Mount(mux)
}
