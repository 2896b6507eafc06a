// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithIdentity/IdentityFromContext for propagating the verified identity

package auth

import (
	"context"
)

// identityKey is the key type for storing the identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retrieves the identity from the context.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}

// MustIdentityFromContext retrieves the identity from the context, panicking if not present.
func MustIdentityFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: identity not found in context")
	}
	return identity
}
