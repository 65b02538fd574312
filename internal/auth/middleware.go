package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
)

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware attaches the caller identity from a bearer token.
type Middleware struct {
	tokens *TokenIssuer
	logger *zap.SugaredLogger
}

func NewMiddleware(tokens *TokenIssuer, logger *zap.SugaredLogger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

// Require rejects requests without a valid token.
func (m *Middleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			apperr.Write(w, m.logger, fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized))
			return
		}
		userID, err := m.tokens.Verify(token)
		if err != nil {
			apperr.Write(w, m.logger, err)
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

// Optional attaches the identity when a valid token is present and otherwise
// serves the request anonymously.
func (m *Middleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearer(r); token != "" {
			if userID, err := m.tokens.Verify(token); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
		}
		next(w, r)
	}
}
