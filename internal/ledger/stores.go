package ledger

import (
	"context"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

// PolicyStore описывает требования ядра к хранилищу политик.
// GetPolicy возвращает (nil, nil), если записи нет — маппинг в ошибку делает ядро.
type PolicyStore interface {
	UpsertPolicy(ctx context.Context, p *domain.Policy) error
	GetPolicy(ctx context.Context, agentID string) (*domain.Policy, error)
	GetAllPolicies(ctx context.Context) ([]domain.Policy, error)
}

// MeterStore описывает требования к реестру счетчиков.
// CreateMeter обязан вернуть domain.ErrDuplicateMeter при занятом ключе
// (authority, endpoint_id) — insert-if-absent, никаких перезаписей.
type MeterStore interface {
	CreateMeter(ctx context.Context, m *domain.Meter) error
	GetMeter(ctx context.Context, authority, endpointID string) (*domain.Meter, error)
}

// AuthorizationStore описывает требования к хранилищу тикетов.
//
// CreateAuthorization возвращает domain.ErrDuplicateAuthorization, если ключ
// (agent, meter, nonce) уже занят — это и есть replay-защита выдачи.
//
// ConsumeAuthorization атомарно (одна транзакция) переводит used=false -> true
// и кладет событие расчета в durable outbox; проигравший CAS-гонку конкурент
// получает domain.ErrAuthorizationUsed.
type AuthorizationStore interface {
	CreateAuthorization(ctx context.Context, a *domain.Authorization) error
	GetAuthorization(ctx context.Context, key domain.AuthorizationKey) (*domain.Authorization, error)
	ConsumeAuthorization(ctx context.Context, key domain.AuthorizationKey, event domain.SettlementEvent) error
}

// PolicyNotifier транслирует сигнал об изменении политики другим инстансам.
type PolicyNotifier interface {
	PolicyChanged(ctx context.Context, agentID string) error
}
