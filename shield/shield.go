// Package shield provides the HTTP middleware stack of the diario API:
// security headers, HEAD handling, body limits, request logging and per-IP
// rate limiting of the expensive trigger routes.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
//	r.With(shield.NewRateLimiter(shield.RateLimitConfig{PerMinute: 6}).Middleware).Get("/api/check", h)
package shield

import "net/http"

// DefaultAPIStack returns the standard middleware for the JSON API.
// Order: HeadToGet → SecurityHeaders → MaxBody → RequestLog.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(1 << 20),
		RequestLog,
	}
}
