// Package security provides response hardening headers and client IP
// resolution for the JSON API.
package security

import (
	"fmt"
	"net/http"
)

type HeadersConfig struct {
	// CSP for a pure JSON API: nothing renders, nothing embeds.
	CSP string

	XFrameOptions  string
	ReferrerPolicy string

	// HSTS is only sent on TLS connections.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:            "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:  "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",

		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		HSTSPreload:           true,
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()

		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", h.config.XFrameOptions)
		headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
		if h.config.CSP != "" {
			headers.Set("Content-Security-Policy", h.config.CSP)
		}

		if r.TLS != nil && h.config.HSTSMaxAge > 0 {
			hsts := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
			if h.config.HSTSIncludeSubdomains {
				hsts += "; includeSubDomains"
			}
			if h.config.HSTSPreload {
				hsts += "; preload"
			}
			headers.Set("Strict-Transport-Security", hsts)
		}

		next.ServeHTTP(w, r)
	})
}
