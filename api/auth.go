package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type TokenIssuer interface {
	Issue(userId string) (string, error)
}

type callerKey struct{}

// Authenticate resolves the bearer token to a caller id. Requests without
// a valid token go through as anonymous; each operation decides whether
// that is allowed.
func Authenticate(tokens TokenVerifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			caller := ""
			if token, ok := bearerToken(r); ok {
				if userId, err := tokens.Verify(token); err == nil {
					caller = userId
				}
			}
			next.ServeHTTP(rw, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func WithCaller(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, callerKey{}, userId)
}

// Caller returns the authenticated user id, or "" for anonymous requests.
func Caller(ctx context.Context) string {
	userId, _ := ctx.Value(callerKey{}).(string)
	return userId
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
