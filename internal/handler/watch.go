package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/middleware"
)

// WatchPath is the route of the multiplexed watch stream.
const WatchPath = "/api/watch"

const maxRequestBytes = 1 << 20

// WatchHandler serves the multiplexed watch route. Each request body
// names a set of watch URLs; the handler opens one upstream watch per
// URL and writes every event as a JSON line onto a single chunked
// response. A target whose upstream watch closes is reported with a
// STREAM_END line carrying its URL.
type WatchHandler struct {
	watcher core.TargetWatcher
	log     *slog.Logger
}

// NewWatchHandler returns a WatchHandler that opens upstream watches
// through watcher.
func NewWatchHandler(watcher core.TargetWatcher) *WatchHandler {
	return &WatchHandler{
		watcher: watcher,
		log:     slog.Default().With("component", "watch-handler"),
	}
}

// Mount registers the watch route on mux.
func (h *WatchHandler) Mount(mux *http.ServeMux) error {
	mux.Handle("POST "+WatchPath, h)
	return nil
}

func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req core.WatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, &core.ErrInvalidInput{Field: "body", Message: err.Error()})
		return
	}
	apis := sets.List(sets.New(req.APIs...))
	if len(apis) == 0 {
		writeError(w, &core.ErrInvalidInput{Field: "apis", Message: "at least one watch url is required"})
		return
	}

	// The server-wide timeouts would cut the stream short.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.log.Warn("streaming not supported by response writer", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if user, ok := middleware.UserInfo(ctx); ok {
		ctx = core.WithUserInfo(ctx, user)
	}

	events := make(chan core.WatchEvent)
	var wg sync.WaitGroup
	for _, raw := range apis {
		wg.Go(func() {
			h.forward(ctx, raw, events)
		})
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	h.log.Debug("watch stream opened", "targets", len(apis), "client", r.Header.Get(core.ClientIDHeader))

	enc := json.NewEncoder(w)
	for event := range events {
		if event.Object != nil {
			cleanObject(event.Object)
		}
		if err := enc.Encode(event); err != nil {
			h.log.Debug("watch stream write failed", "error", err)
			cancel()
			break
		}
		if err := rc.Flush(); err != nil {
			cancel()
			break
		}
	}
	for range events {
	}

	h.log.Debug("watch stream closed", "targets", len(apis))
}

// forward relays the upstream watch of one target into out until the
// watch ends or ctx is cancelled.
func (h *WatchHandler) forward(ctx context.Context, raw string, out chan<- core.WatchEvent) {
	send := func(event core.WatchEvent) bool {
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	ref, err := core.ParseAPIURL(raw)
	if err != nil {
		send(errorEvent(raw, err))
		return
	}

	watcher, err := h.watcher.Watch(ctx, ref)
	if err != nil {
		h.log.Warn("failed to open upstream watch", "url", raw, "error", err)
		if send(errorEvent(raw, err)) && retryable(err) {
			send(core.WatchEvent{Type: core.WatchEventStreamEnd, URL: raw})
		}
		return
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.ResultChan():
			if !ok {
				send(core.WatchEvent{Type: core.WatchEventStreamEnd, URL: raw})
				return
			}
			if !send(event) {
				return
			}
		}
	}
}

func errorEvent(raw string, err error) core.WatchEvent {
	return core.WatchEvent{
		Type:   core.WatchEventError,
		Object: statusObject(err),
		URL:    raw,
	}
}

// retryable reports whether the client should be told to resume a
// target whose watch failed to open.
func retryable(err error) bool {
	switch core.CodeOf(err) {
	case core.ErrorCodeInvalidArgument, core.ErrorCodeNotFound,
		core.ErrorCodePermissionDenied, core.ErrorCodeUnauthenticated:
		return false
	}
	return true
}
