// Package middleware provides HTTP middleware for the kubewatch
// server, including OIDC-based authentication of watch callers.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/authn"
	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/otterscale/kubewatch/internal/core"
)

// oidcClaims holds the custom claims extracted from an ID token. The
// "groups" claim contains the user's identity provider groups.
type oidcClaims struct {
	Groups []string `json:"groups"`
}

// NewOIDC creates an authentication middleware that verifies incoming
// Bearer tokens against the given OIDC issuer and client ID.
func NewOIDC(issuer, clientID string) (*authn.Middleware, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return authn.NewMiddleware(authenticator(verifier)), nil
}

// authenticator returns the authn.AuthFunc backing NewOIDC. On
// success the authenticated user is returned as core.UserInfo.
// Provider groups are prefixed with "oidc:" to keep them apart from
// Kubernetes built-in groups such as "system:masters".
func authenticator(verifier *oidc.IDTokenVerifier) authn.AuthFunc {
	return func(ctx context.Context, r *http.Request) (any, error) {
		token, found := authn.BearerToken(r)
		if !found || token == "" {
			return nil, authn.Errorf("missing or invalid bearer token")
		}

		idToken, err := verifier.Verify(ctx, token)
		if err != nil {
			return nil, authn.Errorf("invalid token: %s", err)
		}

		var claims oidcClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, authn.Errorf("parse token claims: %s", err)
		}

		groups := make([]string, 0, len(claims.Groups)+1)
		groups = append(groups, "system:authenticated")
		for _, g := range claims.Groups {
			groups = append(groups, "oidc:"+g)
		}

		return core.UserInfo{
			Subject: idToken.Subject,
			Groups:  groups,
		}, nil
	}
}

// UserInfo returns the user authenticated by the middleware for the
// request context ctx.
func UserInfo(ctx context.Context) (core.UserInfo, bool) {
	info, ok := authn.GetInfo(ctx).(core.UserInfo)
	return info, ok
}
