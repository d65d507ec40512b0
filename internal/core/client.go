package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDebounce coalesces bursts of subscription changes.
	DefaultDebounce = time.Second
	// DefaultHealthInterval is how often an idle but active client
	// reconnects on its own.
	DefaultHealthInterval = 5 * time.Minute
)

// ClientOptions tunes a Client. Zero values select the defaults.
type ClientOptions struct {
	// ID identifies the client instance; a random UUID when empty.
	ID                string
	Debounce          time.Duration
	HealthInterval    time.Duration
	StreamEndAttempts int
	StreamEndDelay    time.Duration
	MaxBufferBytes    int
	Clock             clock.Clock
}

func (o *ClientOptions) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = DefaultHealthInterval
	}
	if o.StreamEndAttempts <= 0 {
		o.StreamEndAttempts = DefaultStreamEndAttempts
	}
	if o.StreamEndDelay <= 0 {
		o.StreamEndDelay = DefaultStreamEndDelay
	}
	if o.MaxBufferBytes <= 0 {
		o.MaxBufferBytes = DefaultMaxBufferBytes
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
}

// SubscribeOptions controls SubscribeStores.
type SubscribeOptions struct {
	// Preload bulk-loads every store for the watched namespaces.
	Preload bool
	// WaitUntilLoaded defers the subscription until all preloads
	// succeed; a failed preload cancels the subscription.
	WaitUntilLoaded bool
	// LoadOnce skips the preload of stores that are already loaded.
	LoadOnce bool
}

// DefaultSubscribeOptions preloads and waits for the load.
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{Preload: true, WaitUntilLoaded: true}
}

// Client maintains one multiplexed watch stream for the union of its
// subscribers. All connection state is owned by the goroutine running
// Start; other goroutines talk to it through a mailbox.
type Client struct {
	id         string
	opts       ClientOptions
	namespaces NamespaceProvider
	registry   *SubscriptionRegistry
	versions   *ResumptionTable
	dispatcher *Dispatcher
	conn       *ConnectionManager
	reconnect  *ReconnectController
	log        *slog.Logger

	online atomic.Bool

	mu      sync.Mutex
	pending []func(context.Context)
	wake    chan struct{}

	evaluations sync.WaitGroup

	// loop-owned
	debounce     clock.Timer
	dirty        bool
	applied      []WatchURL
	evalGen      uint64
	forcePending bool
}

// NewClient wires the watch engine. It does nothing until Start runs.
func NewClient(repo StreamRepo, kinds KindResolver, access AccessChecker, namespaces NamespaceProvider, opts ClientOptions) *Client {
	opts.setDefaults()

	c := &Client{
		id:         opts.ID,
		opts:       opts,
		namespaces: namespaces,
		registry:   NewSubscriptionRegistry(access, namespaces),
		versions:   NewResumptionTable(),
		conn:       NewConnectionManager(repo, opts.MaxBufferBytes),
		wake:       make(chan struct{}, 1),
	}
	c.log = slog.Default().With("component", "watch-client", "client_id", c.id)
	c.online.Store(true)

	c.reconnect = NewReconnectController(kinds, c.versions, c.registry.IsActive, c.Reconnect,
		opts.Clock, opts.StreamEndAttempts, opts.StreamEndDelay)
	c.dispatcher = NewDispatcher(kinds, c.versions, c.reconnect.StreamEnded)
	c.registry.OnChange(func() { c.enqueue(c.markDirty) })

	return c
}

// ID returns the client instance id.
func (c *Client) ID() string { return c.id }

// Versions exposes the resumption table, e.g. to stores that record
// the version of a bulk list.
func (c *Client) Versions() *ResumptionTable { return c.versions }

// Subscribe registers targets and returns the disposer.
func (c *Client) Subscribe(targets ...KindAPI) func() {
	return c.registry.Subscribe(targets...)
}

// SubscriberCount returns the reference count of target.
func (c *Client) SubscriberCount(target KindAPI) int {
	return c.registry.Count(target)
}

// OnMessage adds a listener and returns its disposer.
func (c *Client) OnMessage(fn Listener) func() {
	return c.dispatcher.Subscribe(fn)
}

// IsConnected reports whether the stream is currently established.
func (c *Client) IsConnected() bool { return c.conn.IsConnected() }

// IsActive reports whether any target is subscribed.
func (c *Client) IsActive() bool { return c.registry.IsActive() }

// Targets returns the current effective watch URLs.
func (c *Client) Targets() []string {
	return c.render(c.registry.EffectiveTargets())
}

// Reconnect re-opens the stream with the current targets.
func (c *Client) Reconnect() {
	c.enqueue(func(context.Context) { c.evaluate(true) })
}

// Refresh re-evaluates the effective targets after a change the
// registry cannot see, such as the watched namespaces or an access
// verdict. The stream is reopened after the debounce window, and only
// if the targets differ.
func (c *Client) Refresh() {
	c.enqueue(c.markDirty)
}

// Disconnect closes the stream. A later trigger connects again.
func (c *Client) Disconnect() {
	c.enqueue(func(context.Context) { c.conn.Disconnect() })
}

// SetOnline reports a network transition. Going offline disconnects;
// coming back online reconnects immediately, bypassing the debounce.
func (c *Client) SetOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}
	c.enqueue(func(context.Context) {
		if !c.online.Load() {
			c.log.Info("network offline, disconnecting")
			c.conn.Disconnect()
			return
		}
		c.log.Info("network online, reconnecting")
		c.evaluate(true)
	})
}

// SubscribeStores subscribes the targets of stores, optionally after
// preloading them. The returned function cancels the whole operation,
// including a subscription that has not happened yet.
func (c *Client) SubscribeStores(ctx context.Context, stores []Store, opts SubscribeOptions) func() {
	var targets []KindAPI
	seen := make(map[string]struct{})
	for _, store := range stores {
		c.dispatcher.RegisterStore(store)
		for _, api := range store.SubscribeAPIs() {
			if _, ok := seen[api.APIBase()]; ok {
				continue
			}
			seen[api.APIBase()] = struct{}{}
			targets = append(targets, api)
		}
	}

	ctx, cancel := context.WithCancel(ctx)

	var (
		mu        sync.Mutex
		disposed  bool
		disposers []func()
	)
	subscribe := func() {
		mu.Lock()
		defer mu.Unlock()
		if disposed {
			return
		}
		disposers = append(disposers, c.Subscribe(targets...))
	}

	switch {
	case !opts.Preload || len(targets) == 0:
		subscribe()
	case opts.WaitUntilLoaded:
		go func() {
			if err := c.preload(ctx, stores, opts.LoadOnce); err != nil {
				if ctx.Err() == nil {
					c.log.Error("loading stores failed, not subscribing", "stores", len(stores), "error", err)
				}
				return
			}
			subscribe()
		}()
	default:
		go func() {
			if err := c.preload(ctx, stores, opts.LoadOnce); err != nil && ctx.Err() == nil {
				c.log.Error("loading stores failed", "stores", len(stores), "error", err)
			}
		}()
		subscribe()
	}

	return func() {
		mu.Lock()
		if disposed {
			mu.Unlock()
			return
		}
		disposed = true
		list := disposers
		disposers = nil
		mu.Unlock()

		cancel()
		for _, dispose := range list {
			dispose()
		}
	}
}

// preload loads every store concurrently for the watched namespaces.
func (c *Client) preload(ctx context.Context, stores []Store, loadOnce bool) error {
	var namespaces []string
	if c.namespaces != nil {
		namespaces = c.namespaces.Namespaces()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, store := range stores {
		if loadOnce && store.IsLoaded() {
			continue
		}
		eg.Go(func() error {
			return store.LoadAll(egCtx, namespaces)
		})
	}
	return eg.Wait()
}

// Start runs the client loop until ctx is cancelled. The connection is
// closed, all background work is drained and the resumption table is
// cleared before it returns.
func (c *Client) Start(ctx context.Context) error {
	c.log.Info("starting",
		"debounce", c.opts.Debounce,
		"health_interval", c.opts.HealthInterval,
	)

	clk := c.opts.Clock
	c.debounce = clk.NewTimer(c.opts.Debounce)
	c.debounce.Stop()
	health := clk.After(c.opts.HealthInterval)

	dispatch := func(line json.RawMessage) {
		if err := c.dispatcher.Dispatch(ctx, line); err != nil {
			c.log.Warn("dropping undecodable event", "error", err)
		}
	}

	defer func() {
		c.conn.Disconnect()
		c.evaluations.Wait()
		c.conn.Wait()
		c.reconnect.Wait()
		c.versions.Reset()
		c.log.Info("stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			c.debounce.Stop()
			return nil

		case <-c.wake:
			for _, fn := range c.drain() {
				fn(ctx)
			}

		case ev := <-c.conn.streamEvents():
			c.conn.handle(ev, dispatch)

		case <-c.debounce.Chan():
			if !c.dirty {
				continue
			}
			c.dirty = false
			c.evaluate(false)

		case <-health:
			health = clk.After(c.opts.HealthInterval)
			if c.conn.IsConnected() || !c.registry.IsActive() {
				continue
			}
			c.log.Info("health check found stream down, reconnecting")
			c.evaluate(true)
		}
	}
}

// Stop is a no-op; the loop exits when the context given to Start is
// cancelled.
func (c *Client) Stop(context.Context) error {
	return nil
}

// markDirty records a subscription change and restarts the debounce
// window.
func (c *Client) markDirty(context.Context) {
	c.dirty = true
	c.debounce.Reset(c.opts.Debounce)
}

// evaluate computes the effective targets on a separate goroutine,
// as access checks may call the API server, and hands the result back
// to the loop. Only the latest evaluation is applied. force reopens
// the stream even when the targets are unchanged; it sticks until an
// evaluation is applied.
func (c *Client) evaluate(force bool) {
	c.evalGen++
	c.forcePending = c.forcePending || force
	gen := c.evalGen

	c.evaluations.Add(1)
	go func() {
		defer c.evaluations.Done()
		targets := c.registry.EffectiveTargets()
		c.enqueue(func(ctx context.Context) { c.apply(ctx, gen, targets) })
	}()
}

func (c *Client) apply(ctx context.Context, gen uint64, targets []WatchURL) {
	if gen != c.evalGen {
		return
	}
	force := c.forcePending
	c.forcePending = false
	if !force && SameTargets(targets, c.applied) {
		c.log.Debug("targets unchanged, keeping connection")
		return
	}
	c.connect(ctx, targets)
}

func (c *Client) connect(ctx context.Context, targets []WatchURL) {
	c.applied = targets
	c.conn.Connect(ctx, c.render(targets), c.online.Load())
}

func (c *Client) render(targets []WatchURL) []string {
	urls := make([]string, 0, len(targets))
	for _, t := range targets {
		urls = append(urls, t.Render(c.versions))
	}
	return urls
}

// enqueue schedules fn on the loop. It never blocks, so listeners
// running on the loop may call back into the client.
func (c *Client) enqueue(fn func(context.Context)) {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) drain() []func(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fns := c.pending
	c.pending = nil
	return fns
}
