// Package http exposes the JSON API. Authentication is a two-stage chain:
// the token filter resolves an identity when a valid bearer token is present
// and never rejects on its own; the access policy then turns a missing
// identity on a protected path into a 401.
package http

import (
	"context"
	"net/http"

	"finledger/internal/auth"
	"finledger/internal/middleware/ratelimit"
	"finledger/internal/middleware/security"
	"finledger/internal/middleware/trace"
	"finledger/internal/services"
)

type Server struct {
	http.Server

	users        *services.UserService
	categories   *services.CategoryService
	transactions *services.TransactionService
	reports      *services.ReportService

	rateLimiter *ratelimit.Limiter
}

// Deps bundles everything the server needs.
type Deps struct {
	Users         *services.UserService
	Categories    *services.CategoryService
	Transactions  *services.TransactionService
	Reports       *services.ReportService
	Authenticator *auth.Authenticator
	Policy        *auth.AccessPolicy
}

// NewServer wires routes and the middleware chain, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		users:        deps.Users,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		reports:      deps.Reports,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/reports/financial", s.handleFinancialReport)
	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthlySummary)

	policy := deps.Policy
	if policy == nil {
		policy = auth.DefaultPolicy()
	}

	clientIP := security.NewClientIPResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP.Resolve)

	// Outermost first: tracing, headers, rate limiting, then token
	// resolution and policy enforcement.
	var handler http.Handler = mux
	handler = policy.Middleware(s.unauthorized)(handler)
	handler = deps.Authenticator.Middleware(handler)
	handler = s.rateLimiter.Middleware(clientIP.Resolve, s.rateLimited)(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// Shutdown stops the rate limiter's cleanup goroutine alongside the
// graceful listener shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
