// Package server implements the runtime of the serve command: the
// watch route backend that multiplexes upstream Kubernetes watches
// onto one streamed response per client.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"

	"github.com/otterscale/kubewatch/internal/core"
	"github.com/otterscale/kubewatch/internal/handler"
	"github.com/otterscale/kubewatch/internal/middleware"
	"github.com/otterscale/kubewatch/internal/transport"
	"github.com/otterscale/kubewatch/internal/transport/http"
)

// Config holds the runtime parameters for a Server.
type Config struct {
	Address        string
	AllowedOrigins []string
	OIDCIssuer     string
	OIDCClientID   string
}

// Server binds the HTTP server that hosts the watch route, the API
// proxy and the operational endpoints.
type Server struct {
	version core.Version
	handler *Handler
}

// NewServer returns a Server wired to the given handler.
func NewServer(version core.Version, handler *Handler) *Server {
	return &Server{version: version, handler: handler}
}

// Run starts the HTTP server. It blocks until ctx is cancelled or an
// unrecoverable error occurs. When an OIDC issuer is configured every
// route except health, reflection and metrics requires a bearer
// token.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	opts := []http.ServerOption{
		http.WithAddress(cfg.Address),
		http.WithAllowedOrigins(cfg.AllowedOrigins),
		http.WithAllowedHeaders([]string{core.ClientIDHeader}),
		http.WithMount(s.handler.Mount),
	}

	if cfg.OIDCIssuer != "" {
		oidc, err := middleware.NewOIDC(cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to create OIDC middleware: %w", err)
		}
		opts = append(opts,
			http.WithAuthMiddleware(oidc),
			http.WithPublicPaths(publicPaths()),
		)
	} else {
		slog.Warn("no OIDC issuer configured, watch route and API proxy are unauthenticated")
	}

	httpSrv, err := http.NewServer(opts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	slog.Info("serving watch route", "version", s.version, "path", handler.WatchPath)

	return transport.Serve(ctx, httpSrv)
}

func publicPaths() []string {
	return []string{
		"/" + grpchealth.HealthV1ServiceName + "/Check",
		"/" + grpchealth.HealthV1ServiceName + "/Watch",
		"/" + grpcreflect.ReflectV1ServiceName + "/ServerReflectionInfo",
		"/" + grpcreflect.ReflectV1AlphaServiceName + "/ServerReflectionInfo",
		handler.MetricsPath,
	}
}
