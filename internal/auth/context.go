package auth

import (
	"context"
	"fmt"

	"finledger/internal/core"
)

// Principal is the identity resolved for the current request.
type Principal struct {
	Username string
	Roles    []string
}

type contextKey int

const principalKey contextKey = iota

// WithPrincipal returns a context carrying the given principal. The principal
// travels only inside the request context, never in package state, so
// concurrent requests cannot observe each other's identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal installed in the context, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.Username == "" {
		return Principal{}, false
	}
	return p, true
}

// CurrentUsername returns the authenticated caller's username. It is the
// single choke point business logic must call before touching owned data;
// it never falls back to a default identity.
func CurrentUsername(ctx context.Context) (string, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no authenticated user in request context: %w", core.ErrAccessDenied)
	}
	return p.Username, nil
}
