package domain

import (
	"fmt"
	"time"
)

// SettlementEvent — единственный сигнал через границу леджера.
// Эмитится ровно один раз на успешное погашение тикета; доставка внешнему
// сервису расчетов — at-least-once, поэтому потребитель обязан дедуплицировать
// по IdempotencyKey. Сам леджер средств не двигает.
type SettlementEvent struct {
	Agent     string   `json:"agent"`
	Meter     string   `json:"meter"` // Каноническая ссылка authority/endpoint_id
	Amount    uint64   `json:"amount"`
	Category  Category `json:"category"`
	Nonce     uint64   `json:"nonce"`
	Timestamp uint64   `json:"timestamp"` // Тик логических часов на момент погашения
}

// IdempotencyKey — ключ дедупликации (agent, meter, nonce).
// Два наблюдения одного события не должны породить два перевода средств.
func (e SettlementEvent) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%d", e.Agent, e.Meter, e.Nonce)
}

// OutboxEntry — персистентная обертка события в durable outbox.
// Хранится до подтверждения публикации, чтобы потребитель мог пережить даунтайм.
type OutboxEntry struct {
	ID        string          `json:"id"` // UUID строки outbox
	Event     SettlementEvent `json:"event"`
	CreatedAt time.Time       `json:"created_at"`
}
