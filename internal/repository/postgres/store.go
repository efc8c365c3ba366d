package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store держит пул соединений; репозитории по типам записей разнесены
// по файлам (policy_repo, meter_repo, authorization_repo, outbox_repo).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создает пул и проверяет доступность базы.
func NewStore(ctx context.Context, connString string, maxConns, minConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping проверяет доступность базы (для healthcheck).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// isUniqueViolation распознает нарушение составного первичного ключа —
// это штатный механизм insert-if-absent всего протокола.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
