package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/inaiurai/settlement/internal/models"
)

type contextKey string

const (
	ctxCallerKey    contextKey = "caller"
	ctxRequestIDKey contextKey = "request_id"
)

// TokenValidator resolves a bearer token to the identity it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (models.Address, error)
}

// BearerAuth authenticates requests with a JWT bearer token and puts the
// caller identity into the request context.
func BearerAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			caller, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// CallerFromCtx returns the authenticated identity, if any.
func CallerFromCtx(ctx context.Context) (models.Address, bool) {
	a, ok := ctx.Value(ctxCallerKey).(models.Address)
	return a, ok
}

// WithCaller returns a context carrying the given identity.
func WithCaller(ctx context.Context, a models.Address) context.Context {
	return context.WithValue(ctx, ctxCallerKey, a)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
