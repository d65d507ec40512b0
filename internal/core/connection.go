package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// readChunkSize is the size of a single read from the response body.
const readChunkSize = 32 << 10

type streamEventKind int

const (
	streamOpened streamEventKind = iota
	streamLines
	streamClosed
)

// streamEvent is posted by a reader goroutine to the client loop.
type streamEvent struct {
	requestID uint64
	kind      streamEventKind
	lines     []json.RawMessage
	err       error
}

// ConnectionManager owns the single logical watch connection. Apart
// from the reader goroutines, every method is called from the client
// loop, so the connection state needs no lock; only the connected
// flag is published atomically for outside readers.
type ConnectionManager struct {
	repo      StreamRepo
	maxBuffer int
	metrics   *watchMetrics
	log       *slog.Logger

	requestID uint64
	cancel    context.CancelFunc
	connected atomic.Bool

	events  chan streamEvent
	readers sync.WaitGroup
}

// NewConnectionManager returns an idle manager. maxBuffer bounds each
// connection's StreamParser.
func NewConnectionManager(repo StreamRepo, maxBuffer int) *ConnectionManager {
	return &ConnectionManager{
		repo:      repo,
		maxBuffer: maxBuffer,
		metrics:   newWatchMetrics(),
		log:       slog.Default().With("component", "watch-connection"),
		events:    make(chan streamEvent),
	}
}

// IsConnected reports whether the current attempt has received its
// response headers and has not ended.
func (m *ConnectionManager) IsConnected() bool {
	return m.connected.Load()
}

// RequestID returns the id of the latest attempt.
func (m *ConnectionManager) RequestID() uint64 {
	return m.requestID
}

// streamEvents is the channel the client loop drains.
func (m *ConnectionManager) streamEvents() <-chan streamEvent {
	return m.events
}

// Connect replaces any existing connection with a new attempt for
// apis. Nothing is opened when apis is empty or the network is
// offline. The attempt runs on its own goroutine; its output reaches
// the loop through streamEvents and is discarded once superseded.
func (m *ConnectionManager) Connect(ctx context.Context, apis []string, online bool) {
	m.Disconnect()

	if len(apis) == 0 || !online {
		m.log.Debug("staying idle", "apis", len(apis), "online", online)
		return
	}

	m.requestID++
	id := m.requestID

	attemptCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.log.Info("connecting", "request_id", id, "apis", len(apis))

	m.readers.Add(1)
	go m.read(attemptCtx, id, apis)
}

// Disconnect cancels the active attempt, if any, and invalidates its
// request id so that output already in flight is discarded. It is a
// no-op when idle.
func (m *ConnectionManager) Disconnect() {
	if m.cancel == nil {
		m.connected.Store(false)
		return
	}
	m.cancel()
	m.cancel = nil
	m.requestID++
	m.connected.Store(false)
}

// handle applies a reader event. dispatch is called for every line of
// the current attempt, in arrival order.
func (m *ConnectionManager) handle(ev streamEvent, dispatch func(json.RawMessage)) {
	if ev.requestID != m.requestID {
		if ev.kind == streamOpened {
			m.metrics.attemptStale()
			m.log.Debug("discarding stale connection", "request_id", ev.requestID, "current", m.requestID)
		}
		return
	}

	switch ev.kind {
	case streamOpened:
		m.connected.Store(true)
		m.metrics.connectionOpened()
		m.log.Info("connected", "request_id", ev.requestID)

	case streamLines:
		for _, line := range ev.lines {
			dispatch(line)
		}

	case streamClosed:
		if ev.err != nil {
			if errors.Is(ev.err, ErrBufferOverflow) || errors.Is(ev.err, ErrMalformedLine) {
				m.metrics.parserFailed()
			}
			m.log.Warn("watch stream failed", "request_id", ev.requestID, "error", ev.err)
		} else {
			m.log.Info("watch stream ended", "request_id", ev.requestID)
		}
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.connected.Store(false)
	}
}

// Wait blocks until every reader goroutine has returned.
func (m *ConnectionManager) Wait() {
	m.readers.Wait()
}

func (m *ConnectionManager) read(ctx context.Context, id uint64, apis []string) {
	defer m.readers.Done()

	body, err := m.repo.Open(ctx, apis)
	if err != nil {
		m.post(ctx, streamEvent{requestID: id, kind: streamClosed, err: err})
		return
	}
	defer body.Close()

	// Closing the body unblocks a pending Read once the attempt is
	// cancelled, whatever the transport.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	if !m.post(ctx, streamEvent{requestID: id, kind: streamOpened}) {
		return
	}

	parser := NewStreamParser(m.maxBuffer)
	buf := make([]byte, readChunkSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			lines, perr := parser.Feed(buf[:n])
			if len(lines) > 0 && !m.post(ctx, streamEvent{requestID: id, kind: streamLines, lines: lines}) {
				return
			}
			if perr != nil {
				m.post(ctx, streamEvent{requestID: id, kind: streamClosed, err: perr})
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			m.post(ctx, streamEvent{requestID: id, kind: streamClosed, err: err})
			return
		}
	}
}

// post hands ev to the loop. It gives up once the attempt is
// cancelled, so a superseded reader never blocks.
func (m *ConnectionManager) post(ctx context.Context, ev streamEvent) bool {
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
