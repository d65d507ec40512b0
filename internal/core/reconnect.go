package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
)

const (
	// DefaultStreamEndAttempts is the number of resource version
	// refreshes tried for one STREAM_END before giving up.
	DefaultStreamEndAttempts = 5
	// DefaultStreamEndDelay separates two refresh attempts.
	DefaultStreamEndDelay = time.Second
)

// ReconnectController resumes a single target after the server ended
// its sub-stream: it refreshes the target's resource version and then
// asks for a full reconnect. Every STREAM_END runs independently with
// its own attempt budget.
type ReconnectController struct {
	kinds     KindResolver
	versions  *ResumptionTable
	isActive  func() bool
	reconnect func()
	clock     clock.Clock
	attempts  int
	delay     time.Duration
	metrics   *watchMetrics
	log       *slog.Logger

	wg sync.WaitGroup
}

// NewReconnectController returns a controller. isActive reports
// whether any target is still subscribed; reconnect triggers a full
// reconnect of the multiplexed stream.
func NewReconnectController(kinds KindResolver, versions *ResumptionTable, isActive func() bool, reconnect func(), clk clock.Clock, attempts int, delay time.Duration) *ReconnectController {
	if attempts <= 0 {
		attempts = DefaultStreamEndAttempts
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &ReconnectController{
		kinds:     kinds,
		versions:  versions,
		isActive:  isActive,
		reconnect: reconnect,
		clock:     clk,
		attempts:  attempts,
		delay:     delay,
		metrics:   newWatchMetrics(),
		log:       slog.Default().With("component", "watch-reconnect"),
	}
}

// StreamEnded starts the resume cycle for url in the background.
func (r *ReconnectController) StreamEnded(ctx context.Context, url string) {
	ref, err := ParseAPIURL(url)
	if err != nil {
		r.log.Warn("ignoring stream end for unparsable url", "url", url, "error", err)
		return
	}

	api, ok := r.kinds.ForAPIBase(ref.APIBase())
	if !ok {
		r.log.Debug("ignoring stream end for unknown target", "url", url)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.resume(ctx, api, ref.Namespace, url)
	}()
}

// Wait blocks until every resume cycle has returned.
func (r *ReconnectController) Wait() {
	r.wg.Wait()
}

// resume tries up to r.attempts refreshes. The remaining budget is
// local to this call, so concurrent cycles for different targets
// cannot consume each other's attempts.
func (r *ReconnectController) resume(ctx context.Context, api KindAPI, namespace, url string) {
	for remaining := r.attempts; ; {
		version, err := api.RefreshResourceVersion(ctx, namespace)
		if err == nil {
			r.versions.Set(api.Kind(), namespace, version)
			r.reconnect()
			return
		}

		remaining--
		r.log.Warn("failed to refresh resource version on stream end",
			"url", url,
			"remaining_attempts", remaining,
			"error", err,
		)

		if remaining <= 0 || !r.isActive() {
			r.log.Info("giving up on stream end", "url", url)
			return
		}

		select {
		case <-r.clock.After(r.delay):
			r.metrics.streamEndRetry()
		case <-ctx.Done():
			return
		}
	}
}
