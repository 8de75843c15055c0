package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/vidtube/vidtube/pkg/errors"
	"github.com/vidtube/vidtube/pkg/httputil"
	"github.com/vidtube/vidtube/pkg/logger"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// Principal is the authenticated caller as asserted by a verified access token.
type Principal struct {
	AccountID string
	Username  string
	Email     string
	FullName  string
}

// TokenVerifier verifies an access token and returns its principal.
type TokenVerifier func(token string) (*Principal, error)

// Auth requires a valid access token taken from the accessToken cookie or,
// failing that, an "Authorization: Bearer" header. Every verification
// failure is reported with the same generic 401.
func Auth(verify TokenVerifier, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), fallback)
				return
			}

			principal, err := verify(token)
			if err != nil {
				httputil.WriteError(w, r, apperrors.InvalidToken(err), fallback)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = logger.WithAccountID(ctx, principal.AccountID)
			if l := logger.FromContext(ctx); l != slog.Default() {
				ctx = logger.NewContext(ctx, l.With(slog.String("account_id", principal.AccountID)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the raw access token. The cookie takes precedence.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// PrincipalFromContext returns the principal stored by Auth.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx. Used by tests and internal callers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.AccountID
	}
	return ""
}
