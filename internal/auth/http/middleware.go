package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/moviestream/auth/internal/auth/cache"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
	"github.com/moviestream/auth/pkg/slogx"
)

type userIDKey struct{}

// UserID returns the authenticated subject stored by AuthnMiddleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// AuthnMiddleware verifies the access token and stores the subject in the
// request context.
func AuthnMiddleware(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := tokens.VerifyAccess(r.Context(), bearerToken(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated callers whose strongest role is below
// the admin role. Must run after AuthnMiddleware.
func RequireAdmin(roles *service.RolesService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := roles.CheckAdmin(r.Context(), UserID(r.Context()))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if !ok {
				writeServiceError(w, r, service.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByWindow counts requests per client host in fixed one-minute
// windows shared through the session cache, so the ceiling holds across
// every instance of the service. Counter keys carry the window's minute
// and expire just before the next window opens.
func RateLimitByWindow(sessions cache.SessionCache, ceiling int64) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			// Health probes are exempt so monitoring does not eat the
			// budget of a host behind a shared proxy.
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			host := httpx.ClientIP(r)
			now := time.Now().UTC()
			key := fmt.Sprintf("ratelimit:%s:%d", host, now.Minute())

			count, err := sessions.IncrWindow(r.Context(), key, 59*time.Second)
			if err != nil {
				// The cache being down should not take the API with it.
				log.Warn("rate limit counter unavailable", slogx.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > ceiling {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", 60-now.Second()))
				log.Warn("rate limit exceeded",
					"host", host,
					"count", count,
				)
				httpx.WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
