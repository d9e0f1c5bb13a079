// Package ctxutil holds the context accessors shared by the HTTP server and
// the MCP tools, which cannot import each other.
package ctxutil

import (
	"context"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/model"
)

type contextKey string

const (
	keyClaims    contextKey = "claims"
	keyRequestID contextKey = "request_id"
)

// WithClaims returns a context carrying the caller's token claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns the caller's claims, or nil for unauthenticated
// contexts.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v, ok := ctx.Value(keyClaims).(*auth.Claims); ok {
		return v
	}
	return nil
}

// ClientID returns the authenticated client id, or "" if none.
func ClientID(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.ClientID
	}
	return ""
}

// HasRole reports whether the caller holds at least min.
func HasRole(ctx context.Context, min model.ClientRole) bool {
	c := ClaimsFromContext(ctx)
	return c != nil && model.RoleAtLeast(c.Role, min)
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID returns the request id, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}
