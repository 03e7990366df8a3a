package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"aether/internal/models"
	"aether/internal/security"
	"aether/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ProfileContextKey holds the authenticated *models.Profile
const ProfileContextKey ContextKey = "profile"

// Middleware holds the services needed by the HTTP middleware
type Middleware struct {
	authService *service.AuthService
	ipLimiter   *security.IPLimiter
}

// NewMiddleware creates middleware with the given services
func NewMiddleware(authService *service.AuthService, ipLimiter *security.IPLimiter) *Middleware {
	return &Middleware{
		authService: authService,
		ipLimiter:   ipLimiter,
	}
}

// RequireAuth resolves the session cookie to a profile and stores it in
// the request context. Requests without a valid session get a 401.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(security.SessionCookieName)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication required", "", nil)
			return
		}

		profile, err := m.authService.GetSessionProfile(cookie.Value)
		if err != nil {
			// Stale cookie, clear it so the client stops sending it
			http.SetCookie(w, security.CreateDeleteCookie(r))
			respondWithError(w, http.StatusUnauthorized, "Session expired, please log in again", "", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ProfileContextKey, profile)
		next(w, r.WithContext(ctx))
	}
}

// RequireParent is RequireAuth plus a parent role check
func (m *Middleware) RequireParent(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		profile := ProfileFromContext(r.Context())
		if profile == nil || !profile.IsParent() {
			respondWithError(w, http.StatusForbidden, "Parent account required", "", nil)
			return
		}
		next(w, r)
	})
}

// RequireChild is RequireAuth plus a child role check
func (m *Middleware) RequireChild(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		profile := ProfileFromContext(r.Context())
		if profile == nil || !profile.IsChild() {
			respondWithError(w, http.StatusForbidden, "Child account required", "", nil)
			return
		}
		next(w, r)
	})
}

// LimitByIP throttles unauthenticated endpoints by client IP
func (m *Middleware) LimitByIP(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ipLimiter.Allow(security.GetClientIP(r)) {
			respondWithError(w, http.StatusTooManyRequests, "Too many requests, slow down", "", nil)
			return
		}
		next(w, r)
	}
}

// Logging logs each request with method, path, status and duration
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE handler stream through the logging wrapper
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ProfileFromContext returns the authenticated profile, or nil
func ProfileFromContext(ctx context.Context) *models.Profile {
	profile, _ := ctx.Value(ProfileContextKey).(*models.Profile)
	return profile
}
