package postgres

/*
Файл policy_repo.go отвечает за долговременное хранение политик расходов.
Слой отделяет персистентность в PostgreSQL от мгновенной проверки
в оперативной памяти леджера (PolicyCache).
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

// UpsertPolicy — идемпотентная перезапись: одна живая запись на агента,
// все поля заменяются целиком, истории нет.
func (s *Store) UpsertPolicy(ctx context.Context, p *domain.Policy) error {
	query := `
		INSERT INTO policies (agent_id, policy_hash, allowed_category, max_per_tx, frozen, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
			policy_hash = EXCLUDED.policy_hash,
			allowed_category = EXCLUDED.allowed_category,
			max_per_tx = EXCLUDED.max_per_tx,
			frozen = EXCLUDED.frozen,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.Agent, p.PolicyHash[:], int16(p.AllowedCategory), int64(p.MaxPerTx), p.Frozen,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, agentID string) (*domain.Policy, error) {
	query := `
		SELECT agent_id, policy_hash, allowed_category, max_per_tx, frozen, updated_at
		FROM policies
		WHERE agent_id = $1`

	p := &domain.Policy{}
	var hash []byte
	var category int16
	var maxPerTx int64

	err := s.pool.QueryRow(ctx, query, agentID).Scan(
		&p.Agent, &hash, &category, &maxPerTx, &p.Frozen, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Возвращаем nil — маппинг в ErrPolicyNotFound делает ядро
		}
		return nil, fmt.Errorf("postgres: failed to get policy: %w", err)
	}

	copy(p.PolicyHash[:], hash)
	p.AllowedCategory = domain.Category(category)
	p.MaxPerTx = uint64(maxPerTx)
	return p, nil
}

// GetAllPolicies выполняет "холодную загрузку" всех политик для прогрева кэша.
func (s *Store) GetAllPolicies(ctx context.Context) ([]domain.Policy, error) {
	query := `SELECT agent_id, policy_hash, allowed_category, max_per_tx, frozen, updated_at FROM policies`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query policies: %w", err)
	}
	defer rows.Close()

	var results []domain.Policy
	for rows.Next() {
		var p domain.Policy
		var hash []byte
		var category int16
		var maxPerTx int64
		if err := rows.Scan(&p.Agent, &hash, &category, &maxPerTx, &p.Frozen, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan policy: %w", err)
		}
		copy(p.PolicyHash[:], hash)
		p.AllowedCategory = domain.Category(category)
		p.MaxPerTx = uint64(maxPerTx)
		results = append(results, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
