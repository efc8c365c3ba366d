package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

// FetchUnpublished возвращает пачку невыгруженных событий расчета
// в порядке создания (курсор релея).
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	query := `
		SELECT id, agent_id, meter_ref, amount, category, nonce, tick, created_at
		FROM settlement_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to fetch outbox: %w", err)
	}
	defer rows.Close()

	// Пустой слайс вместо nil — релею так проще
	entries := make([]domain.OutboxEntry, 0, limit)
	for rows.Next() {
		var e domain.OutboxEntry
		var amount, nonce, tick int64
		var category int16
		if err := rows.Scan(&e.ID, &e.Event.Agent, &e.Event.Meter, &amount, &category, &nonce, &tick, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan outbox entry: %w", err)
		}
		e.Event.Amount = uint64(amount)
		e.Event.Category = domain.Category(category)
		e.Event.Nonce = uint64(nonce)
		e.Event.Timestamp = uint64(tick)
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return entries, nil
}

// MarkPublished подтверждает выгрузку пачки. Вызывается ПОСЛЕ публикации,
// поэтому падение между публикацией и отметкой дает повторную доставку —
// at-least-once, дедупликация на стороне потребителя.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE settlement_outbox SET published_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: failed to mark outbox published: %w", err)
	}
	return nil
}

// CountUnpublished — бэклог для метрики насыщения.
func (s *Store) CountUnpublished(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM settlement_outbox WHERE published_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count outbox backlog: %w", err)
	}
	return n, nil
}
