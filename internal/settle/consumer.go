package settle

/*
Файл consumer.go — воркер расчетов: внешний потребитель событий леджера.

Доставка событий — at-least-once (durable outbox + Redis-очередь), поэтому
ключ (agent, meter, nonce) трактуется как ключ идемпотентности: сколько бы
раз событие ни было доставлено, перевод средств исполняется один раз.
Страховка второго уровня — тот же ключ уходит в кастодиальный API.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"go.uber.org/zap"
)

// MeterSource резолвит кошелек мерчанта по ссылке из события.
type MeterSource interface {
	GetMeter(ctx context.Context, authority, endpointID string) (*domain.Meter, error)
}

// Deduper — клейм на обработку события. Claim возвращает false, если событие
// уже наблюдалось; Release снимает клейм при провале, чтобы редоставка повторила.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeduper — SETNX-маркер наблюдения события.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.rdb.SetNX(ctx, infra.SettleDedupKey(key), "processing", d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, infra.SettleDedupKey(key)).Err()
}

type Consumer struct {
	rdb    *redis.Client
	meters MeterSource
	wallet WalletClient
	dedup  Deduper
	logger *zap.Logger
}

func NewConsumer(rdb *redis.Client, meters MeterSource, wallet WalletClient, dedup Deduper, logger *zap.Logger) *Consumer {
	return &Consumer{
		rdb:    rdb,
		meters: meters,
		wallet: wallet,
		dedup:  dedup,
		logger: logger.Named("settle-consumer"),
	}
}

// Run вычитывает очередь расчетов до отмены контекста.
// Необработанное событие уходит в DLQ, а не теряется.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("settlement consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("settlement consumer stopping by context...")
			return
		}

		// Блокирующее чтение с таймаутом, чтобы регулярно проверять ctx
		res, err := c.rdb.BLPop(ctx, 2*time.Second, infra.RedisKeySettlementQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Error("settlement queue read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		// BLPop возвращает [key, value]
		payload := []byte(res[1])

		if err := c.ProcessEvent(ctx, payload); err != nil {
			c.logger.Error("settlement failed, sending to DLQ", zap.Error(err))
			if dlqErr := c.rdb.RPush(ctx, infra.RedisKeySettlementDLQ, payload).Err(); dlqErr != nil {
				c.logger.Error("DLQ push failed, event dropped", zap.Error(dlqErr))
			}
		}
	}
}

// ProcessEvent исполняет одно наблюдение события: клейм -> резолв кошелька -> перевод.
// Повторное наблюдение (false от Claim) — штатный случай, не ошибка.
func (c *Consumer) ProcessEvent(ctx context.Context, payload []byte) error {
	var event domain.SettlementEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("malformed settlement event: %w", err)
	}

	idemKey := event.IdempotencyKey()

	first, err := c.dedup.Claim(ctx, idemKey)
	if err != nil {
		return fmt.Errorf("dedup claim failed: %w", err)
	}
	if !first {
		c.logger.Debug("duplicate settlement event skipped", zap.String("key", idemKey))
		return nil
	}

	authority, endpointID, ok := strings.Cut(event.Meter, "/")
	if !ok {
		return fmt.Errorf("malformed meter ref %q", event.Meter)
	}

	meter, err := c.meters.GetMeter(ctx, authority, endpointID)
	if err == nil && meter == nil {
		err = domain.ErrMeterNotFound
	}
	if err != nil {
		// Снимаем клейм: редоставка попробует еще раз
		c.releaseClaim(ctx, idemKey)
		return fmt.Errorf("meter resolve failed for %q: %w", event.Meter, err)
	}

	err = c.wallet.Transfer(ctx, TransferRequest{
		AgentWallet:    event.Agent,
		MerchantWallet: meter.MerchantWalletRef.String(),
		Amount:         event.Amount,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		c.releaseClaim(ctx, idemKey)
		return fmt.Errorf("transfer failed: %w", err)
	}

	c.logger.Info("settlement executed",
		zap.String("agent", event.Agent),
		zap.String("meter", event.Meter),
		zap.Uint64("amount", event.Amount),
		zap.Uint64("nonce", event.Nonce),
	)
	return nil
}

func (c *Consumer) releaseClaim(ctx context.Context, key string) {
	if err := c.dedup.Release(ctx, key); err != nil {
		// Клейм протухнет по TTL; хуже дубликата перевода не будет —
		// кастодиал дедуплицирует по тому же ключу
		c.logger.Warn("dedup release failed", zap.String("key", key), zap.Error(err))
	}
}
