package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// AgentClaims — клеймы RS256-токена, которым подписываются инструкции.
// Subject токена — идентичность, от имени которой выполняется операция
// (агент для политики/платежей, провайдер для счетчиков). BillingAccount
// может оплачивать хранение, но полномочий над содержимым не имеет.
type AgentClaims struct {
	BillingAccount string `json:"billing_account,omitempty"`
	jwt.RegisteredClaims
}

// Identity возвращает подписавшую идентичность.
func (c *AgentClaims) Identity() string { return c.Subject }
