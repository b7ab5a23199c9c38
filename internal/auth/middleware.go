package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/metrics"
)

type contextKey string

const (
	subjectKey contextKey = "subject"
	roleKey    contextKey = "role"
)

// SubjectFromContext returns the authenticated caller's name, or "".
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey).(string); ok {
		return s
	}
	return ""
}

// RoleFromContext returns the authenticated caller's role, or "".
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, subjectKey, p.Subject)
	return context.WithValue(ctx, roleKey, p.Role)
}

// keyLookup resolves an API key; *KeyStore satisfies it.
type keyLookup interface {
	Lookup(ctx context.Context, key string) (Principal, error)
}

// Authenticate accepts a bearer JWT (detected by its dots) or an API key.
// Repeated failures from one client address are locked out by limiter,
// which may be nil.
func Authenticate(jwtService *JWTService, keys keyLookup, limiter *RateLimiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)

			if err := limiter.CheckAuthFailures(r.Context(), client); err != nil {
				metrics.APIAuthFailuresTotal.WithLabelValues("locked_out").Inc()
				http.Error(w, `{"error":"too many failed authentication attempts"}`, http.StatusTooManyRequests)
				return
			}

			reject := func(reason, body string) {
				metrics.APIAuthFailuresTotal.WithLabelValues(reason).Inc()
				if err := limiter.RecordAuthFailure(r.Context(), client); err != nil {
					log.Warn().Err(err).Msg("failed to record auth failure")
				}
				http.Error(w, body, http.StatusUnauthorized)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject("missing", `{"error":"authorization header required"}`)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				reject("format", `{"error":"invalid authorization format, expected Bearer <token>"}`)
				return
			}

			token := strings.TrimSpace(parts[1])
			if token == "" {
				reject("empty", `{"error":"empty token"}`)
				return
			}

			var p Principal
			switch {
			case strings.Count(token, ".") == 2 && jwtService != nil:
				claims, err := jwtService.ValidateAccessToken(token)
				if err != nil {
					log.Debug().Err(err).Str("client", client).Msg("jwt rejected")
					reject("jwt", `{"error":"invalid token"}`)
					return
				}
				p = Principal{Subject: claims.Subject, Role: claims.Role}
			case keys != nil:
				found, err := keys.Lookup(r.Context(), token)
				if err != nil {
					reject("api_key", `{"error":"invalid credentials"}`)
					return
				}
				p = found
			default:
				reject("unsupported", `{"error":"invalid credentials"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers whose role is not in roles. Use after
// Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if _, ok := allowed[role]; !ok {
				metrics.APIAuthFailuresTotal.WithLabelValues("forbidden").Inc()
				http.Error(w, `{"error":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit enforces the per-subject request budget. Use after Authenticate.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.AllowRequest(r.Context(), SubjectFromContext(r.Context())); err != nil {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
