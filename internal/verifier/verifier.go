package verifier

/*
Пакет verifier определяет границу с внешней возможностью проверки ZK-proof-ов.

Контракт верификатора:
  - Soundness: никакой proof не должен пройти для пары (amount, category),
    нарушающей политику, закоммиченную в PolicyHash, т.е. принятие означает
    amount <= max_per_tx и category == allowed_category без раскрытия приватных полей.
  - Completeness: честно построенный proof от истинной приватной политики и
    комплаентной пары (amount, category) обязан проходить.

Ядро леджера не зависит от конкретной криптографии: ему нужен ровно двухисходный
ответ accept/reject.
*/

import (
	"context"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"go.uber.org/zap"
)

// PublicInputs — публичные входы схемы payment_policy.
// Приватные входы (max_per_tx, allowed_category) скрыты в PolicyHash.
type PublicInputs struct {
	Amount     uint64
	Category   domain.Category
	PolicyHash [32]byte
}

// Verifier — подключаемая возможность проверки proof-а.
// nil = accept, domain.ErrInvalidProof = reject; любая другая ошибка — сбой
// транспорта, операция при этом тоже откатывается (внутренних ретраев нет).
type Verifier interface {
	Verify(ctx context.Context, proof []byte, in PublicInputs) error
}

// Stub принимает любой непустой proof.
//
// ВНИМАНИЕ: экономических гарантий не дает вообще. Это плейсхолдер под
// настоящий succinct-верификатор; до его замены леджеру нельзя доверять
// реальные средства. Требование дизайна, а не опциональное ужесточение.
type Stub struct {
	logger *zap.Logger
}

func NewStub(logger *zap.Logger) *Stub {
	return &Stub{logger: logger.Named("verifier-stub")}
}

func (s *Stub) Verify(ctx context.Context, proof []byte, in PublicInputs) error {
	if len(proof) == 0 {
		return domain.ErrInvalidProof
	}

	s.logger.Debug("proof accepted by stub verifier",
		zap.Uint64("amount", in.Amount),
		zap.Uint8("category", uint8(in.Category)),
		zap.Int("proof_len", len(proof)),
	)
	return nil
}
