package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

type contextKey string

const userContextKey contextKey = "user"

// AccessTokenCookie is the cookie fallback for clients that cannot set an
// Authorization header.
const AccessTokenCookie = "access_token"

// CurrentUser returns the authenticated user attached to the context, if any.
func CurrentUser(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userContextKey).(*db.User)
	return user, ok
}

// WithUser attaches an authenticated user to the context. Exposed for tests.
func WithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// Authenticate rejects requests without a valid access token. An expired
// token yields TOKEN_EXPIRED so clients can refresh and retry instead of
// logging the user out.
func Authenticate(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			tokenString, ok := extractToken(r)
			if !ok {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("missing access token"))
				return
			}

			user, err := service.ValidateAccessToken(r.Context(), tokenString)
			if err != nil {
				apperrors.WriteError(w, requestID, mapAuthError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth resolves an identity when a valid token is present but never
// fails the request; anonymous callers proceed with no identity attached.
func OptionalAuth(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := service.ValidateAccessToken(r.Context(), tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// extractToken pulls the access token from the Authorization header, falling
// back to the access token cookie.
func extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}

	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return apperrors.TokenExpired()
	case errors.Is(err, ErrAccountDeactivated):
		return apperrors.AccountDeactivated()
	case errors.Is(err, ErrInvalidToken):
		return apperrors.InvalidToken("invalid access token")
	default:
		return err
	}
}
