// Package network reports reachability of the watch backend to the
// watch engine.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/juju/clock"
)

const (
	// DefaultProbeInterval is how often the backend is probed.
	DefaultProbeInterval = 10 * time.Second

	// probeDialTimeout is the TCP dial timeout of a single probe.
	probeDialTimeout = 2 * time.Second

	// failThreshold is the number of consecutive failed probes before
	// the backend is reported offline.
	failThreshold = 2
)

// OnlineSetter receives online/offline transitions.
type OnlineSetter interface {
	SetOnline(online bool)
}

// Monitor probes the backend with a TCP dial and reports transitions
// to its target. It satisfies transport.Listener.
type Monitor struct {
	address  string
	interval time.Duration
	target   OnlineSetter
	clock    clock.Clock
	dial     func(ctx context.Context, address string) error
	log      *slog.Logger
}

// NewMonitor returns a Monitor for the host of serverURL.
func NewMonitor(serverURL string, interval time.Duration, target OnlineSetter) (*Monitor, error) {
	address, err := dialAddress(serverURL)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	dialer := net.Dialer{Timeout: probeDialTimeout}
	return &Monitor{
		address:  address,
		interval: interval,
		target:   target,
		clock:    clock.WallClock,
		dial: func(ctx context.Context, address string) error {
			conn, err := dialer.DialContext(ctx, "tcp", address)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		log: slog.Default().With("component", "network-monitor", "address", address),
	}, nil
}

// Start runs the probe loop, blocking until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	online := true
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.clock.After(m.interval):
		}

		err := m.dial(ctx, m.address)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil {
			failures = 0
			if !online {
				online = true
				m.log.Info("backend reachable again")
				m.target.SetOnline(true)
			}
			continue
		}

		failures++
		m.log.Debug("probe failed", "consecutive_failures", failures, "error", err)
		if online && failures >= failThreshold {
			online = false
			m.log.Warn("backend unreachable, going offline", "consecutive_failures", failures)
			m.target.SetOnline(false)
		}
	}
}

// Stop is a no-op; the probe loop exits when its context is cancelled.
func (m *Monitor) Stop(context.Context) error {
	return nil
}

// dialAddress derives host:port from serverURL, defaulting the port
// from the scheme.
func dialAddress(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
