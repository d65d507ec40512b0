package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	utilproxy "k8s.io/apimachinery/pkg/util/proxy"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/transport"

	"github.com/otterscale/kubewatch/internal/middleware"
)

// APIProxy forwards every request not claimed by another route to the
// Kubernetes API server, so that object and list URLs resolve against
// the same base URL as the watch route. Requests carry the server's
// own credentials and, when the caller is authenticated, impersonate
// the caller.
type APIProxy struct {
	config *rest.Config
}

// NewAPIProxy returns an APIProxy authenticating with config.
func NewAPIProxy(config *rest.Config) *APIProxy {
	return &APIProxy{
		config: config,
	}
}

// Mount registers the catch-all proxy on mux.
func (p *APIProxy) Mount(mux *http.ServeMux) error {
	targetURL, err := url.Parse(p.config.Host)
	if err != nil {
		return fmt.Errorf("failed to parse k8s host URL: %w", err)
	}

	rt, err := rest.TransportFor(p.config)
	if err != nil {
		return fmt.Errorf("failed to create rest transport: %w", err)
	}

	mux.Handle("/", impersonating(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxy := utilproxy.NewUpgradeAwareHandler(location(targetURL, r.URL), rt, false, false, &errorResponder{})
		proxy.UseLocationHost = true
		proxy.ServeHTTP(w, r)
	})))
	return nil
}

// location maps a request URL onto the API server, keeping the
// request path and query verbatim under any path prefix of the host.
func location(target, req *url.URL) *url.URL {
	loc := *target
	loc.Path = strings.TrimSuffix(target.Path, "/") + req.Path
	loc.RawPath = ""
	loc.RawQuery = req.RawQuery
	return &loc
}

// impersonating drops caller-supplied credentials and impersonation
// headers, then impersonates the authenticated user, if any.
func impersonating(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.Clone(r.Context())
		r.Header.Del("Authorization")
		for key := range r.Header {
			if strings.HasPrefix(key, "Impersonate-") {
				r.Header.Del(key)
			}
		}

		if user, ok := middleware.UserInfo(r.Context()); ok {
			r.Header.Set(transport.ImpersonateUserHeader, user.Subject)
			for _, g := range user.Groups {
				r.Header.Add(transport.ImpersonateGroupHeader, g)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// errorResponder logs proxy errors and answers 502 Bad Gateway.
type errorResponder struct{}

func (r *errorResponder) Error(w http.ResponseWriter, _ *http.Request, err error) {
	slog.Error("proxy error", "error", err)
	http.Error(w, "bad gateway", http.StatusBadGateway)
}
