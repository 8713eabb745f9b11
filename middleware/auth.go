package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mini-todo/auth"
	"mini-todo/models"
)

// AuthHeader carries the raw token on requests and on login/register responses.
const AuthHeader = "x-auth"

type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth resolves the x-auth header to a user. Requests that fail to
// resolve get an empty 401 and never reach next.
func RequireAuth(tokens TokenResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AuthHeader)

			user, err := tokens.Resolve(r.Context(), token)
			if err != nil {
				var ae *auth.AuthError
				if errors.As(err, &ae) {
					logger.DebugContext(r.Context(), "request rejected", "reason", ae.Reason.String(), "path", r.URL.Path)
				} else {
					logger.ErrorContext(r.Context(), "token resolution failed", "err", err)
				}
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user, token)))
		})
	}
}

// WithIdentity stores the authenticated user and the token it presented.
func WithIdentity(ctx context.Context, user *models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
