// Package watch implements the runtime of the watch command: a watch
// client that keeps in-memory stores of the configured kinds current
// through one multiplexed stream.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/handler"
	"github.com/otterscale/kubewatch/internal/providers/kubernetes"
	"github.com/otterscale/kubewatch/internal/providers/network"
	"github.com/otterscale/kubewatch/internal/providers/store"
	"github.com/otterscale/kubewatch/internal/transport"
	"github.com/otterscale/kubewatch/internal/transport/http"
)

// Config holds the runtime parameters for a Watcher.
type Config struct {
	ServerURL   string
	Path        string
	BearerToken string

	Kinds      []string
	Namespaces []string

	Debounce          time.Duration
	HealthInterval    time.Duration
	StreamEndAttempts int
	StreamEndDelay    time.Duration
	MaxBufferBytes    int

	Subscribe core.SubscribeOptions

	ProbeInterval   time.Duration
	RefreshInterval time.Duration
	MetricsAddress  string
}

// Watcher binds the watch client to its stores, the network monitor,
// the periodic target refresher and the health and metrics server,
// running them in parallel via transport.Serve.
type Watcher struct {
	version core.Version
	kube    *kubernetes.Kubernetes
	kinds   *kubernetes.KindRegistry
	access  *kubernetes.AccessChecker
	log     *slog.Logger
}

// NewWatcher returns a Watcher resolving kinds through kinds and
// filtering targets through access.
func NewWatcher(version core.Version, kube *kubernetes.Kubernetes, kinds *kubernetes.KindRegistry, access *kubernetes.AccessChecker) *Watcher {
	return &Watcher{
		version: version,
		kube:    kube,
		kinds:   kinds,
		access:  access,
		log:     slog.Default().With("component", "watcher"),
	}
}

// Run subscribes the configured kinds and blocks until ctx is
// cancelled or a component fails.
func (w *Watcher) Run(ctx context.Context, cfg Config) error {
	apis, err := w.kinds.LookupAll(cfg.Kinds)
	if err != nil {
		return err
	}

	namespaces := kubernetes.NewNamespaceProvider(w.kube, cfg.Namespaces)
	if err := namespaces.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	id := uuid.NewString()
	repo, err := kubernetes.NewStreamRepo(cfg.ServerURL, cfg.Path, cfg.BearerToken, id)
	if err != nil {
		return err
	}

	client := core.NewClient(repo, w.kinds, w.access, namespaces, core.ClientOptions{
		ID:                id,
		Debounce:          cfg.Debounce,
		HealthInterval:    cfg.HealthInterval,
		StreamEndAttempts: cfg.StreamEndAttempts,
		StreamEndDelay:    cfg.StreamEndDelay,
		MaxBufferBytes:    cfg.MaxBufferBytes,
	})

	stores := make([]*store.ObjectStore, 0, len(apis))
	for _, api := range apis {
		stores = append(stores, store.NewObjectStore(api, client.Versions()))
	}
	client.OnMessage(newStoreListener(stores))

	monitor, err := network.NewMonitor(cfg.ServerURL, cfg.ProbeInterval, client)
	if err != nil {
		return err
	}

	ops := handler.NewOps(handler.NewClientChecker(client))
	opsSrv, err := http.NewServer(
		http.WithAddress(cfg.MetricsAddress),
		http.WithMount(ops.Mount),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	refresher := newRefreshListener(namespaces, w.access, client, cfg.RefreshInterval)

	dispose := client.SubscribeStores(ctx, asStores(stores), cfg.Subscribe)
	defer dispose()

	w.log.Info("watching",
		"version", w.version,
		"client_id", id,
		"server", cfg.ServerURL,
		"kinds", cfg.Kinds,
		"namespaces", len(namespaces.Namespaces()),
	)

	return transport.Serve(ctx, client, monitor, opsSrv, refresher)
}

func asStores(stores []*store.ObjectStore) []core.Store {
	out := make([]core.Store, len(stores))
	for i, s := range stores {
		out[i] = s
	}
	return out
}
