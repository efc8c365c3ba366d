package postgres

/*
Файл authorization_repo.go — персистентность одноразовых платежных тикетов.

Два инварианта обеспечиваются самой базой:
  - составной PK (agent_id, meter_authority, endpoint_id, nonce) дает
    детерминированный отказ на повторной выдаче (replay-защита);
  - CAS-условие WHERE used = FALSE исключает двойное погашение даже при
    конкурентных запросах — ровно один коммитит, второй проигрывает.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

func (s *Store) CreateAuthorization(ctx context.Context, a *domain.Authorization) error {
	query := `
		INSERT INTO authorizations (agent_id, meter_authority, endpoint_id, nonce,
		                            amount, category, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())`

	_, err := s.pool.Exec(ctx, query,
		a.Agent, a.MeterAuthority, a.EndpointID, int64(a.Nonce),
		int64(a.Amount), int16(a.Category), int64(a.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAuthorization
		}
		return fmt.Errorf("postgres: failed to create authorization: %w", err)
	}
	return nil
}

func (s *Store) GetAuthorization(ctx context.Context, key domain.AuthorizationKey) (*domain.Authorization, error) {
	query := `
		SELECT agent_id, meter_authority, endpoint_id, nonce, amount, category, expires_at, used, created_at
		FROM authorizations
		WHERE agent_id = $1 AND meter_authority = $2 AND endpoint_id = $3 AND nonce = $4`

	a := &domain.Authorization{}
	var nonce, amount, expiresAt int64
	var category int16

	err := s.pool.QueryRow(ctx, query, key.Agent, key.MeterAuthority, key.EndpointID, int64(key.Nonce)).Scan(
		&a.Agent, &a.MeterAuthority, &a.EndpointID, &nonce, &amount, &category, &expiresAt, &a.Used, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get authorization: %w", err)
	}

	a.Nonce = uint64(nonce)
	a.Amount = uint64(amount)
	a.Category = domain.Category(category)
	a.ExpiresAt = uint64(expiresAt)
	return a, nil
}

// ConsumeAuthorization атомарно гасит тикет и кладет событие расчета в outbox.
// Одна транзакция: либо коммитятся обе записи, либо ни одной.
func (s *Store) ConsumeAuthorization(ctx context.Context, key domain.AuthorizationKey, event domain.SettlementEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op после успешного Commit

	// CAS: условие used = FALSE гарантирует ровно одно погашение
	ct, err := tx.Exec(ctx, `
		UPDATE authorizations
		SET used = TRUE
		WHERE agent_id = $1 AND meter_authority = $2 AND endpoint_id = $3 AND nonce = $4
		  AND used = FALSE`,
		key.Agent, key.MeterAuthority, key.EndpointID, int64(key.Nonce),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to consume authorization: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Либо ID неверный, либо (что чаще) конкурент успел погасить раньше.
		// Существование записи ядро уже проверило, значит — повторное погашение.
		return domain.ErrAuthorizationUsed
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO settlement_outbox (id, agent_id, meter_ref, amount, category, nonce, tick, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		uuid.New().String(), event.Agent, event.Meter,
		int64(event.Amount), int16(event.Category), int64(event.Nonce), int64(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to enqueue settlement event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit consume tx: %w", err)
	}
	return nil
}
