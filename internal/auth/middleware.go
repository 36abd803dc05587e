// Package auth provides bearer-token authentication for Constable's HTTP
// surface. It validates the opaque session token carried in the
// Authorization header and attaches the resolved user to the request
// context.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
)

// AuthorizationHeader is the header carrying the session token.
const AuthorizationHeader = "Authorization"

// BearerPrefix is the expected authentication scheme.
const BearerPrefix = "Bearer "

// SessionValidator resolves a session token to its owning user.
// Implemented by service.SessionService.
type SessionValidator interface {
	Validate(ctx context.Context, tokenID string) (*domain.User, error)
}

type userKey struct{}
type tokenKey struct{}

// FromContext returns the authenticated user attached by Middleware.
// The boolean is false on unauthenticated requests.
func FromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey{}).(*domain.User)
	return user, ok
}

// TokenFromContext returns the raw session token of the current request.
// Used by the logout handler to revoke the presenting token.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// ErrorWriter renders an authentication failure to the client. Supplied by
// the handler package so auth responses share the API's error envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware returns a middleware enforcing bearer-token authentication.
//
// Every failure mode, a missing header, a malformed scheme, an unknown or
// revoked token, surfaces to the client as domain.ErrUnauthenticated. The
// distinction between invalid and expired tokens is logged but deliberately
// not revealed.
func Middleware(sessions SessionValidator, writeError ErrorWriter, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeError(w, r, domain.ErrUnauthenticated)
				return
			}

			user, err := sessions.Validate(r.Context(), token)
			if err != nil {
				logger.Debug().
					Err(err).
					Str("path", r.URL.Path).
					Msg("Session token rejected")
				writeError(w, r, domain.ErrUnauthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			ctx = context.WithValue(ctx, tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// The scheme comparison is case-insensitive per RFC 7235.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(AuthorizationHeader)
	if header == "" {
		return "", false
	}
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
