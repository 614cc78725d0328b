package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/auth"
	"golang.org/x/time/rate"
)

type contextKey int

const (
	identityKey contextKey = iota
	methodKey
)

// AuthMethodSession and AuthMethodToken identify which verification path
// authenticated the request.
const (
	AuthMethodSession = "session"
	AuthMethodToken   = "token"
)

// SessionStore is the optional server-side session collaborator. When wired,
// an active session authenticates a request before any bearer check; the
// session layer's own guarantees apply.
type SessionStore interface {
	// FromRequest resolves the request's session to a caller identity.
	FromRequest(r *http.Request) (*auth.Identity, bool)

	// Clear invalidates the session bound to the request, if any.
	Clear(w http.ResponseWriter, r *http.Request)
}

// IdentityFromContext returns the verified caller identity and the
// authentication method stored by [RequireAuth].
func IdentityFromContext(ctx context.Context) (*auth.Identity, string, bool) {
	identity, ok := ctx.Value(identityKey).(*auth.Identity)
	if !ok {
		return nil, "", false
	}
	method, _ := ctx.Value(methodKey).(string)
	return identity, method, true
}

// RequireAuth authenticates every request before it reaches a handler.
//
// Policy: an active session wins; otherwise the bearer credential must pass
// the issuer's full signature-and-expiry check. Both absent is a 401 and no
// upstream call is ever attempted.
func RequireAuth(issuer *auth.Issuer, sessions SessionStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions != nil {
				if identity, ok := sessions.FromRequest(r); ok {
					ctx := context.WithValue(r.Context(), identityKey, identity)
					ctx = context.WithValue(ctx, methodKey, AuthMethodSession)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			credential := bearerCredential(r)
			if credential == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing credential")
				return
			}

			identity, err := issuer.Verify(credential)
			if err != nil {
				writeOperationError(w, "unauthorized", err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, methodKey, AuthMethodToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerCredential extracts the credential from the Authorization header.
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Logging records method, path, status, and duration for each request.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RateLimit rejects requests beyond the configured rate with 429.
//
// One process-wide limiter guards the upstream quota; per-caller fairness is
// left to the upstream's own limits.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limited", "try again shortly")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
