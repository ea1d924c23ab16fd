package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finledger/internal/core"
)

type fakeStore struct {
	users map[string]*core.User
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func newTestAuthenticator(now time.Time) (*Authenticator, *TokenCodec) {
	codec := NewTokenCodec(testKey, time.Hour).WithClock(fixedClock(now))
	store := &fakeStore{users: map[string]*core.User{
		"alice": {ID: 1, Username: "alice", Roles: []string{core.RoleUser}},
	}}
	return NewAuthenticator(codec, store), codec
}

// captivePrincipal runs the middleware and records what identity, if any,
// reached the downstream handler.
func captivePrincipal(t *testing.T, a *Authenticator, header string) (Principal, bool) {
	t.Helper()

	var got Principal
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("filter must never reject; got status %d", rec.Code)
	}
	return got, ok
}

func TestMiddleware_NoHeader(t *testing.T) {
	a, _ := newTestAuthenticator(time.Now())
	if _, ok := captivePrincipal(t, a, ""); ok {
		t.Fatal("expected empty context without Authorization header")
	}
}

func TestMiddleware_WrongScheme(t *testing.T) {
	a, _ := newTestAuthenticator(time.Now())
	if _, ok := captivePrincipal(t, a, "Basic dXNlcjpwYXNz"); ok {
		t.Fatal("expected empty context for non-bearer header")
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	a, codec := newTestAuthenticator(time.Now())
	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, ok := captivePrincipal(t, a, "Bearer "+token)
	if !ok {
		t.Fatal("expected principal to be installed")
	}
	if p.Username != "alice" {
		t.Fatalf("expected alice, got %q", p.Username)
	}
	if len(p.Roles) != 1 || p.Roles[0] != core.RoleUser {
		t.Fatalf("unexpected roles: %v", p.Roles)
	}
}

func TestMiddleware_ExpiredTokenBehavesLikeNoHeader(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	_, issuer := newTestAuthenticator(issued)
	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	a, _ := newTestAuthenticator(time.Now())
	if _, ok := captivePrincipal(t, a, "Bearer "+token); ok {
		t.Fatal("expected empty context for expired token")
	}
}

func TestMiddleware_GarbageToken(t *testing.T) {
	a, _ := newTestAuthenticator(time.Now())
	if _, ok := captivePrincipal(t, a, "Bearer not-a-token"); ok {
		t.Fatal("expected empty context for unparseable token")
	}
}

func TestMiddleware_UnknownSubject(t *testing.T) {
	a, codec := newTestAuthenticator(time.Now())
	token, err := codec.Issue("mallory")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, ok := captivePrincipal(t, a, "Bearer "+token); ok {
		t.Fatal("expected empty context for token whose subject has no account")
	}
}

func TestMiddleware_DoesNotOverwriteExistingPrincipal(t *testing.T) {
	a, codec := newTestAuthenticator(time.Now())
	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{Username: "pre-existing"}))
	a.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if got.Username != "pre-existing" {
		t.Fatalf("expected existing principal to survive, got %q", got.Username)
	}
}
