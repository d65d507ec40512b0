package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/authn"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	defaultAddress    = ":8080"
	readHeaderTimeout = 5 * time.Second
	// Watch streams clear both per request; every other route keeps them.
	requestTimeout = 5 * time.Minute
	maxHeaderBytes = 8 << 10
	corsMaxAge     = 2 * time.Hour
)

// MountFunc registers routes on mux.
type MountFunc func(mux *http.ServeMux) error

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server serves HTTP/1.1 and cleartext HTTP/2 behind CORS and, when
// configured, authentication. It implements transport.Listener.
type Server struct {
	inner          *http.Server
	address        string
	listener       net.Listener
	mount          MountFunc
	auth           *authn.Middleware
	publicPaths    sets.Set[string]
	allowedOrigins []string
	allowedHeaders []string
	log            *slog.Logger
}

// WithAddress sets the listen address.
func WithAddress(address string) ServerOption {
	return func(s *Server) { s.address = address }
}

// WithListener serves on ln instead of listening on the address.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) { s.listener = ln }
}

// WithMount sets the route registration.
func WithMount(mount MountFunc) ServerOption {
	return func(s *Server) { s.mount = mount }
}

// WithAuthMiddleware requires authentication on every path not listed
// by WithPublicPaths.
func WithAuthMiddleware(m *authn.Middleware) ServerOption {
	return func(s *Server) { s.auth = m }
}

// WithPublicPaths lists exact paths served without authentication. A
// missing leading slash is added.
func WithPublicPaths(paths []string) ServerOption {
	return func(s *Server) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			s.publicPaths.Insert("/" + strings.TrimPrefix(p, "/"))
		}
	}
}

// WithAllowedOrigins restricts CORS to origins. Without it every
// origin is allowed.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithAllowedHeaders adds request headers, beyond the Connect
// protocol headers, that cross-origin callers may send.
func WithAllowedHeaders(headers []string) ServerOption {
	return func(s *Server) { s.allowedHeaders = append(s.allowedHeaders, headers...) }
}

// NewServer mounts the routes and binds the listener.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		address:     defaultAddress,
		publicPaths: sets.New[string](),
		log:         slog.Default().With("component", "http-server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.auth != nil && len(s.allowedOrigins) == 0 {
		return nil, errors.New("http server: allowed origins must be configured when authentication is enabled; " +
			"set --allowed-origins or KUBEWATCH_SERVE_ALLOWED_ORIGINS")
	}

	mux := http.NewServeMux()
	if s.mount != nil {
		if err := s.mount(mux); err != nil {
			return nil, fmt.Errorf("mount routes: %w", err)
		}
	}

	if s.listener == nil {
		ln, err := net.Listen("tcp", s.address)
		if err != nil {
			return nil, fmt.Errorf("http listen %q: %w", s.address, err)
		}
		s.listener = ln
	}

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	s.inner = &http.Server{
		Addr:              s.address,
		Handler:           s.withCORS(s.withAuth(mux)),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		Protocols:         protocols,
	}
	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start serves until Stop is called. Request contexts derive from ctx.
func (s *Server) Start(ctx context.Context) error {
	s.inner.BaseContext = func(net.Listener) context.Context { return ctx }

	s.log.Info("starting",
		"address", s.listener.Addr().String(),
		"auth", s.auth != nil,
		"public_paths", sets.List(s.publicPaths),
		"allowed_origins", s.allowedOrigins,
	)

	if err := s.inner.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Stop drains connections, closing them outright once ctx expires.
// Open watch streams end when their request contexts are cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down")
	if err := s.inner.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed, forcing close", "error", err)
		return s.inner.Close()
	}
	return nil
}

func (s *Server) withAuth(mux *http.ServeMux) http.Handler {
	if s.auth == nil {
		return mux
	}
	protected := s.auth.Wrap(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.publicPaths.Has(r.URL.Path) {
			mux.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return cors.AllowAll().Handler(next)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   connectcors.AllowedMethods(),
		AllowedHeaders:   append(connectcors.AllowedHeaders(), s.allowedHeaders...),
		ExposedHeaders:   connectcors.ExposedHeaders(),
		AllowCredentials: true,
		MaxAge:           int(corsMaxAge.Seconds()),
	}).Handler(next)
}
