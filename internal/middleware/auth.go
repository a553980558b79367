package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// SessionResolver resolves a session token to a user
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// UserKey is the context key for the authenticated user
const UserKey contextKey = "user"

// Auth returns a middleware that requires a valid session cookie. The
// resolved user is stored in the request context.
func Auth(resolver SessionResolver, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				model.NewUnauthorizedError("not authenticated").WriteJSON(w)
				return
			}

			user, err := resolver.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				if isAuthError(err) {
					model.NewUnauthorizedError("not authenticated").WriteJSON(w)
					return
				}
				model.NewInternalError("").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is like Auth but lets unauthenticated requests through.
// It sets user info in context when a valid session cookie is present.
func OptionalAuth(resolver SessionResolver, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUser extracts the authenticated user from context
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserKey).(*model.User); ok {
		return user
	}
	return nil
}

// isAuthError reports whether the session lookup failed because the session
// or its user no longer exists, as opposed to a backend failure.
func isAuthError(err error) bool {
	return errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrUserNotFound)
}
