package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finledger/internal/core"
)

const bearerPrefix = "Bearer "

// PrincipalStore resolves a stored account by username. Implemented by the
// storage layer; this is the only persistence shape authentication needs.
type PrincipalStore interface {
	FindByUsername(ctx context.Context, username string) (*core.User, error)
}

// Authenticator is the per-request authentication filter. It never rejects a
// request itself: a missing or invalid token simply leaves the request
// without an identity, and the access policy decides later whether that is
// fatal.
type Authenticator struct {
	codec *TokenCodec
	store PrincipalStore
}

func NewAuthenticator(codec *TokenCodec, store PrincipalStore) *Authenticator {
	return &Authenticator{codec: codec, store: store}
}

// Middleware runs the authentication pass exactly once per request:
// extract the bearer token, verify it, resolve the subject to a stored
// account, re-check the token against the resolved username, and install
// the principal into the request context. Every failure path continues
// downstream unauthenticated.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		token := header[len(bearerPrefix):]

		subject, _, err := a.codec.Verify(token)
		if err != nil {
			// Malformed, bad signature and expired all collapse into
			// "unauthenticated"; none of them is surfaced to the caller.
			slog.DebugContext(r.Context(), "Token rejected", "reason", err)
			next.ServeHTTP(w, r)
			return
		}

		// Do not overwrite an identity installed earlier in the chain.
		if _, already := PrincipalFrom(r.Context()); already {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.store.FindByUsername(r.Context(), subject)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				slog.ErrorContext(r.Context(), "Principal lookup failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		// The token's subject must match the stored account name and the
		// token must still be valid at this instant.
		if !a.codec.ValidForSubject(token, user.Username) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{
			Username: user.Username,
			Roles:    user.Roles,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
