package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

// CreateMeter — чистый insert-if-absent: составной PK (authority, endpoint_id)
// и никакого UPDATE/DELETE — счетчик неизменяем на всю жизнь.
// Буфер кошелька пишется фиксированной емкостью с явной длиной рядом,
// так что исходная строка восстанавливается байт-в-байт.
func (s *Store) CreateMeter(ctx context.Context, m *domain.Meter) error {
	query := `
		INSERT INTO meters (authority, endpoint_id, price_per_call, category,
		                    merchant_wallet_ref, merchant_wallet_ref_len, requires_zk, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		m.Authority, m.EndpointID, int64(m.PricePerCall), int16(m.Category),
		m.MerchantWalletRef.Padded(), int16(m.MerchantWalletRef.Len()), m.RequiresZK,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateMeter
		}
		return fmt.Errorf("postgres: failed to create meter: %w", err)
	}
	return nil
}

func (s *Store) GetMeter(ctx context.Context, authority, endpointID string) (*domain.Meter, error) {
	query := `
		SELECT authority, endpoint_id, price_per_call, category,
		       merchant_wallet_ref, merchant_wallet_ref_len, requires_zk, created_at
		FROM meters
		WHERE authority = $1 AND endpoint_id = $2`

	m := &domain.Meter{}
	var price int64
	var category, refLen int16
	var refBuf []byte

	err := s.pool.QueryRow(ctx, query, authority, endpointID).Scan(
		&m.Authority, &m.EndpointID, &price, &category, &refBuf, &refLen, &m.RequiresZK, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get meter: %w", err)
	}

	m.PricePerCall = uint64(price)
	m.Category = domain.Category(category)
	m.MerchantWalletRef = domain.WalletRefFromStored(refBuf, uint8(refLen))
	return m, nil
}
