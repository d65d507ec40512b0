package http

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/authn"
)

func TestNewServer_PublicPathsBypassAuth(t *testing.T) {
	t.Parallel()

	authMiddleware := authn.NewMiddleware(func(_ context.Context, r *http.Request) (any, error) {
		if r.Header.Get("Authorization") == "" {
			return nil, authn.Errorf("missing bearer token")
		}
		return struct{}{}, nil
	})

	srv, err := NewServer(
		WithListener(newTestListener(t)),
		WithAuthMiddleware(authMiddleware),
		WithAllowedOrigins([]string{"https://console.example.com"}),
		WithPublicPaths([]string{"/public"}),
		WithMount(func(mux *http.ServeMux) error {
			mux.HandleFunc("/public", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			mux.HandleFunc("/private", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	t.Run("public path without token is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("private path without token is blocked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code == http.StatusOK {
			t.Fatalf("expected non-200 status for private path without token, got %d", rec.Code)
		}
	})

	t.Run("private path with token is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer test-token")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})
}

func TestNewServer_AuthRequiresAllowedOrigins(t *testing.T) {
	t.Parallel()

	authMiddleware := authn.NewMiddleware(func(context.Context, *http.Request) (any, error) {
		return struct{}{}, nil
	})

	_, err := NewServer(
		WithListener(newTestListener(t)),
		WithAuthMiddleware(authMiddleware),
	)
	if err == nil {
		t.Fatal("expected error when authentication is enabled without allowed origins")
	}
}

func TestNewServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(
		WithListener(newTestListener(t)),
		WithAllowedOrigins([]string{"https://console.example.com"}),
		WithAllowedHeaders([]string{"X-Kubewatch-Client"}),
		WithMount(func(mux *http.ServeMux) error {
			mux.HandleFunc("POST /api/watch", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	// Browsers send the requested header names lower-cased.
	tests := []struct {
		name           string
		origin         string
		requestHeaders string
		wantAllow      bool
	}{
		{"allowed origin", "https://console.example.com", "x-kubewatch-client", true},
		{"allowed origin with content type", "https://console.example.com", "content-type,x-kubewatch-client", true},
		{"unknown header", "https://console.example.com", "x-unknown", false},
		{"other origin", "https://evil.example.com", "x-kubewatch-client", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/watch", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", tt.requestHeaders)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllow && got != tt.origin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.origin, got)
			}
			if !tt.wantAllow && got != "" {
				t.Errorf("expected no Access-Control-Allow-Origin, got %q", got)
			}
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()

	ln := newTestListener(t)
	srv, err := NewServer(
		WithListener(ln),
		WithMount(func(mux *http.ServeMux) error {
			mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(t.Context()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start() returned %v after Stop", err)
	}
}

func newTestListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}
