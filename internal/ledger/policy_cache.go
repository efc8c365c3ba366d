package ledger

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"go.uber.org/zap"
)

// PolicyCache — in-memory витрина политик для hot path авторизации.
// В распределенной системе синхронизируется с БД по сигналу в Redis,
// но в рантайме AuthorizePayment обращается только к памяти.
// Freeze на пишущем инстансе виден мгновенно (SetPolicy кладет запись
// в кэш синхронно), на остальных — в пределах латентности сигнала.
type PolicyCache struct {
	mu       sync.RWMutex
	policies map[string]domain.Policy // agent_id -> Policy

	repo   PolicyStore // Используется только для Refresh()
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPolicyCache(repo PolicyStore, rdb *redis.Client, logger *zap.Logger) *PolicyCache {
	return &PolicyCache{
		policies: make(map[string]domain.Policy),
		repo:     repo,
		rdb:      rdb,
		logger:   logger.Named("policy-cache"),
	}
}

// Get — максимально быстрый метод для проверки в Hot Path.
func (c *PolicyCache) Get(agentID string) (domain.Policy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.policies[agentID]
	return p, ok
}

// Put кладет свежую запись (после успешного UpsertPolicy или промаха кэша).
func (c *PolicyCache) Put(p domain.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[p.Agent] = p
}

// Refresh выполняет «холодную загрузку» всех политик из PostgreSQL в память
// (при старте и при каждом переподключении к Redis).
func (c *PolicyCache) Refresh(ctx context.Context) error {
	policiesDb, err := c.repo.GetAllPolicies(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]domain.Policy, len(policiesDb))
	for _, p := range policiesDb {
		fresh[p.Agent] = p
	}

	c.mu.Lock()
	c.policies = fresh
	c.mu.Unlock()

	c.logger.Info("policy cache refreshed", zap.Int("count", len(fresh)))
	return nil
}

// StartListener подписывается на инвалидацию в реальном времени.
// Сигнал несет agent_id; пустой payload или "refresh" = полная перезагрузка.
func (c *PolicyCache) StartListener(ctx context.Context) {
	ListenResilient(ctx, c.rdb, c.logger, infra.RedisChanPolicyUpdate,
		func() error { return c.Refresh(ctx) }, // Синхронизация при (пере)подключении
		func(payload string) {
			if payload == "" || payload == "refresh" {
				if err := c.Refresh(ctx); err != nil {
					c.logger.Error("full refresh on signal failed", zap.Error(err))
				}
				return
			}
			// Точечная инвалидация: выкидываем агента, следующий Get промахнется в БД
			c.mu.Lock()
			delete(c.policies, payload)
			c.mu.Unlock()
			c.logger.Debug("policy invalidated", zap.String("agent", payload))
		},
	)
}
