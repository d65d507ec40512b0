package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

type namespaceRefresher interface {
	Refresh(ctx context.Context) error
}

type accessInvalidator interface {
	Invalidate()
}

type targetRefresher interface {
	Refresh()
}

// refreshListener periodically re-lists the watched namespaces, drops
// cached access verdicts and asks the client to re-evaluate its
// targets. It participates in the managed lifecycle alongside the
// client.
type refreshListener struct {
	namespaces namespaceRefresher
	access     accessInvalidator
	client     targetRefresher
	interval   time.Duration
	clock      clock.Clock
	log        *slog.Logger
}

func newRefreshListener(namespaces namespaceRefresher, access accessInvalidator, client targetRefresher, interval time.Duration) *refreshListener {
	return &refreshListener{
		namespaces: namespaces,
		access:     access,
		client:     client,
		interval:   interval,
		clock:      clock.WallClock,
		log:        slog.Default().With("component", "target-refresher"),
	}
}

func (l *refreshListener) Start(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.interval):
			l.tick(ctx)
		}
	}
}

func (l *refreshListener) Stop(_ context.Context) error {
	return nil // stops when its context is cancelled
}

func (l *refreshListener) tick(ctx context.Context) {
	if err := l.namespaces.Refresh(ctx); err != nil {
		l.log.Warn("failed to refresh namespaces, keeping previous list", "error", err)
	}
	l.access.Invalidate()
	l.client.Refresh()
}
