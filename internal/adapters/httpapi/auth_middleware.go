package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/civic-assoc/membership-api/internal/platform/auth/jwtverifier"
)

// TokenVerifier is implemented by *jwtverifier.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (jwtverifier.Principal, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT>.
//
// On success, it stores the authenticated principal (JWT `sub` and role claim) in request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil, nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil, nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil, nil)
				return
			}

			p, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Subject: p.Subject, Role: p.Role})))
		})
	}
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit subject via X-Debug-Subject (and optionally a role via
// X-Debug-Role) and stores it in request context. If the subject header is absent,
// it falls back to defaultSubject (if provided).
//
// Do NOT use this in production deployments.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil, nil)
				return
			}
			role := strings.ToUpper(strings.TrimSpace(r.Header.Get("X-Debug-Role")))

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Subject: sub, Role: role})))
		})
	}
}
