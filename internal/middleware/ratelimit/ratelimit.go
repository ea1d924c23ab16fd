// Package ratelimit applies a per-client fixed-window limit to mutating
// requests. Reads pass through untouched.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

type window struct {
	startedAt time.Time
	count     int
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit           int
	cleanupInterval time.Duration

	limitedTotal int64
	stopCleanup  chan struct{}
	stopOnce     sync.Once
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		windows:         make(map[string]*window),
		limit:           config.RequestsPerMinute,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow records a request for the client and reports whether it is
// within the current one-minute window's budget.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[client]
	if !ok || now.Sub(w.startedAt) > time.Minute {
		l.windows[client] = &window{startedAt: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// Middleware limits POST/PUT/PATCH/DELETE by client IP, invoking
// onLimit for rejected requests.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			if !l.Allow(clientIP(r)) {
				atomic.AddInt64(&l.limitedTotal, 1)
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitedTotal reports how many requests have been rejected.
func (l *Limiter) LimitedTotal() int64 {
	return atomic.LoadInt64(&l.limitedTotal)
}

// ActiveClients returns the number of currently tracked clients.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the background cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.dropStale()
		case <-l.stopCleanup:
			return
		}
	}
}

// dropStale forgets clients idle for more than ten minutes.
func (l *Limiter) dropStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for client, w := range l.windows {
		if w.startedAt.Before(cutoff) {
			delete(l.windows, client)
		}
	}
}
