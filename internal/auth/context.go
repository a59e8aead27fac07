// ABOUTME: Request context helpers carrying the authenticated caller
// ABOUTME: WithAuth / FromContext mirror across HTTP and WebSocket admission

package auth

import (
	"context"
)

// AuthContext describes an admitted caller
type AuthContext struct {
	KeyID      string // Fingerprint of the presented key
	RemoteAddr string
}

type authContextKey struct{}

// WithAuth returns a context carrying auth.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext returns the AuthContext stored in ctx, or nil.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
