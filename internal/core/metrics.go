package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/otterscale/kubewatch/internal/core"

// watchMetrics holds the engine's instruments. Instruments are taken
// from the global MeterProvider, which is a no-op until the serving
// layer installs the prometheus exporter.
type watchMetrics struct {
	dispatched  metric.Int64Counter
	connections metric.Int64Counter
	stale       metric.Int64Counter
	retries     metric.Int64Counter
	parserFails metric.Int64Counter
}

func newWatchMetrics() *watchMetrics {
	meter := otel.Meter(meterName)

	return &watchMetrics{
		dispatched:  counter(meter, "kubewatch.events.dispatched", "Watch events dispatched to listeners"),
		connections: counter(meter, "kubewatch.connections.opened", "Multiplexed watch connections established"),
		stale:       counter(meter, "kubewatch.connections.stale", "Connection attempts superseded before they were used"),
		retries:     counter(meter, "kubewatch.stream_end.retries", "Resource version refresh retries after STREAM_END"),
		parserFails: counter(meter, "kubewatch.parser.failures", "Connections dropped because the stream could not be parsed"),
	}
}

// counter falls back to a no-op instrument, which only happens for
// invalid instrument names.
func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (m *watchMetrics) eventDispatched(t WatchEventType) {
	m.dispatched.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", string(t))))
}

func (m *watchMetrics) connectionOpened() { m.connections.Add(context.Background(), 1) }

func (m *watchMetrics) attemptStale() { m.stale.Add(context.Background(), 1) }

func (m *watchMetrics) streamEndRetry() { m.retries.Add(context.Background(), 1) }

func (m *watchMetrics) parserFailed() { m.parserFails.Add(context.Background(), 1) }
