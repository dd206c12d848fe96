package handlers

import (
	"log"
	"net/http"
	"time"

	"medgame/internal/security"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	limiter *security.RateLimiter
	origins *security.OriginPolicy
}

// NewMiddleware creates a new middleware instance. A nil limiter disables
// rate limiting.
func NewMiddleware(limiter *security.RateLimiter, origins *security.OriginPolicy) *Middleware {
	if origins == nil {
		origins = security.NewOriginPolicy(nil)
	}
	return &Middleware{
		limiter: limiter,
		origins: origins,
	}
}

// RateLimit rejects clients that exceed the configured request rate
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil {
			ip := security.GetClientIP(r)
			if !m.limiter.Allow(ip) {
				log.Printf("Rate limit exceeded for %s", ip)
				respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// OriginCheck rejects browser requests coming from origins outside the
// allow-list. Requests with neither Origin nor Referer pass.
func (m *Middleware) OriginCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if !m.origins.AllowOrigin(origin) {
				log.Printf("Rejected origin %q", origin)
				respondWithError(w, http.StatusForbidden, ErrOriginNotAllowed, "", nil)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		} else if referer := r.Header.Get("Referer"); referer != "" {
			if !m.origins.AllowReferer(referer) {
				log.Printf("Rejected referer %q", referer)
				respondWithError(w, http.StatusForbidden, ErrRefererNotAllowed, "", nil)
				return
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
