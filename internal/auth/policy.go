package auth

import (
	"net/http"
	"sort"
	"strings"
)

// Requirement is what a path prefix demands from the caller.
type Requirement int

const (
	// RequireAuth demands a non-empty security context.
	RequireAuth Requirement = iota
	// AllowPublic lets the request through with or without an identity.
	AllowPublic
)

// Rule binds a path prefix to a requirement.
type Rule struct {
	Prefix      string
	Requirement Requirement
}

// AccessPolicy is a static table of path-prefix rules evaluated before
// business logic runs. The longest matching prefix wins; a path matching no
// rule requires authentication (fail closed).
type AccessPolicy struct {
	rules []Rule
}

func NewAccessPolicy(rules ...Rule) *AccessPolicy {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &AccessPolicy{rules: sorted}
}

// DefaultPolicy opens the authentication endpoints and health probes;
// everything else requires an identity.
func DefaultPolicy() *AccessPolicy {
	return NewAccessPolicy(
		Rule{Prefix: "/api/auth/", Requirement: AllowPublic},
		Rule{Prefix: "/healthz", Requirement: AllowPublic},
		Rule{Prefix: "/readyz", Requirement: AllowPublic},
	)
}

// RequirementFor returns the requirement of the longest rule prefix matching
// the path.
func (p *AccessPolicy) RequirementFor(path string) Requirement {
	for _, rule := range p.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule.Requirement
		}
	}
	return RequireAuth
}

// Middleware enforces the policy: protected paths without an installed
// principal are handed to onDenied instead of the next handler.
func (p *AccessPolicy) Middleware(onDenied http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.RequirementFor(r.URL.Path) == RequireAuth {
				if _, ok := PrincipalFrom(r.Context()); !ok {
					onDenied(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
