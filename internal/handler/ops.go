package handler

import (
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"connectrpc.com/otelconnect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is the route of the Prometheus scrape endpoint.
const MetricsPath = "/metrics"

// Ops serves the operational endpoints shared by every command:
// gRPC health (with reflection) and Prometheus metrics.
type Ops struct {
	checker grpchealth.Checker
}

// NewOps returns an Ops reporting health through checker.
func NewOps(checker grpchealth.Checker) *Ops {
	return &Ops{
		checker: checker,
	}
}

// Mount registers health, reflection and metrics handlers on mux and
// installs the global MeterProvider the watch engine reports to.
func (o *Ops) Mount(mux *http.ServeMux) error {
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return err
	}

	reflector := grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))

	mux.Handle(grpchealth.NewHandler(o.checker, connect.WithInterceptors(otelInterceptor)))

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return err
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))
	mux.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return nil
}
