package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/driftmarket/driftmarket/pkg/auth"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/response"
)

// AdminCookie is the cookie the admin UI stores its session token in.
const AdminCookie = "admin_token"

type adminEmailKey struct{}

// AdminEmail returns the authenticated admin's email, if any.
func AdminEmail(ctx context.Context) string {
	if email, ok := ctx.Value(adminEmailKey{}).(string); ok {
		return email
	}
	return ""
}

// AdminAuthOptions configures the admin auth middleware.
type AdminAuthOptions struct {
	AllowList []string // admin emails permitted through
	Bypass    bool     // development-only: skip all checks
}

// AdminAuth validates the admin session token (cookie or bearer header)
// and checks the email claim against the allow-list. Token issuance is
// external; this middleware only verifies.
func AdminAuth(opts AdminAuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Bypass {
				next.ServeHTTP(w, r)
				return
			}

			token := tokenFromRequest(r)
			if token == "" {
				response.Unauthorized(w)
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.Unauthorized(w)
				return
			}

			if !auth.IsAllowListed(claims.Email, opts.AllowList) {
				logger.WithCtx(r.Context()).Warn("admin auth: email not allow-listed", "email", claims.Email)
				response.Forbidden(w)
				return
			}

			ctx := context.WithValue(r.Context(), adminEmailKey{}, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CronAuth guards the cron endpoints with a shared bearer secret.
// Requests may also present the secret in the X-Cron-Key header, which is
// what some schedulers support instead of Authorization.
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				response.Unauthorized(w)
				return
			}

			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if presented == "" || presented == r.Header.Get("Authorization") {
				presented = r.Header.Get("X-Cron-Key")
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				response.Unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AdminCookie); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
