package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс проверки подписи инструкции
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.AgentClaims, error)
}

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const claimsKey ctxKey = "agent_claims"

// NewMiddleware проверяет Authorization-заголовок и прокидывает клеймы в контекст.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext достает клеймы, положенные middleware.
func ClaimsFromContext(ctx context.Context) (*domain.AgentClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*domain.AgentClaims)
	return claims, ok
}

// IdentityFromContext — подписавшая идентичность текущего запроса ("" если нет).
func IdentityFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Identity()
	}
	return ""
}
