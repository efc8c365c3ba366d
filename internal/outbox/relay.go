package outbox

/*
Файл relay.go реализует выгрузку durable outbox: события расчета, записанные
той же транзакцией, что и погашение тикета, доставляются во внешнюю очередь.

Ключевые свойства:
- At-least-once: публикация в Redis предшествует отметке published_at,
  поэтому падение между ними дает повторную доставку, а не потерю.
- Batching: события выгружаются пачками по таймеру, задержка публикации
  не влияет на латентность RecordPayment (тот пишет только в Postgres).
- Drain Pattern: при остановке релей делает финальный проход по бэклогу,
  чтобы не оставлять свежие события до следующего рестарта.
*/

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"go.uber.org/zap"
)

// Repository определяет, откуда релей читает невыгруженные события.
type Repository interface {
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string) error
	CountUnpublished(ctx context.Context) (int64, error)
}

// Queue — внешняя очередь доставки. В проде это Redis-список
// (RPUSH релеем, BLPOP воркером расчетов); в тестах — фейк.
type Queue interface {
	Push(ctx context.Context, payload []byte) error
}

type Relay struct {
	repo     Repository
	queue    Queue
	logger   *zap.Logger
	interval time.Duration
	batch    int
	backlog  prometheus.Gauge // может быть nil

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewRelay(repo Repository, queue Queue, interval time.Duration, batch int, backlog prometheus.Gauge, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{
		repo:     repo,
		queue:    queue,
		logger:   logger.Named("outbox-relay"),
		interval: interval,
		batch:    batch,
		backlog:  backlog,
		stop:     make(chan struct{}),
	}
}

func (r *Relay) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop останавливает воркер и дожидается финального прохода по бэклогу.
func (r *Relay) Stop() {
	r.logger.Info("stopping outbox relay: draining backlog...")
	close(r.stop)
	r.wg.Wait()
	r.logger.Info("outbox relay stopped gracefully")
}

func (r *Relay) worker() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			// Финальный сброс: основной контекст может быть уже закрыт,
			// поэтому работаем от Background с жестким пределом
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.Flush(ctx)
			cancel()
			r.logger.Info("outbox relay worker finished")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval*4)
			r.Flush(ctx)
			cancel()
		}
	}
}

// Flush выгружает один батч: fetch -> publish -> mark.
// Ошибка на любом шаге не фатальна — невыгруженное подберет следующий тик.
func (r *Relay) Flush(ctx context.Context) {
	entries, err := r.repo.FetchUnpublished(ctx, r.batch)
	if err != nil {
		r.logger.Error("outbox fetch failed", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		r.reportBacklog(ctx)
		return
	}

	published := make([]string, 0, len(entries))
	for _, e := range entries {
		payload, err := json.Marshal(e.Event)
		if err != nil {
			// Битую запись пропускаем, но отмечаем: вечный цикл хуже потери
			r.logger.Error("outbox entry marshal failed", zap.String("id", e.ID), zap.Error(err))
			published = append(published, e.ID)
			continue
		}
		if err := r.queue.Push(ctx, payload); err != nil {
			r.logger.Error("settlement queue push failed", zap.String("id", e.ID), zap.Error(err))
			break // Очередь лежит — остаток батча подберем позже, порядок сохраняем
		}
		published = append(published, e.ID)
	}

	if err := r.repo.MarkPublished(ctx, published); err != nil {
		// Уже опубликованные события будут доставлены повторно — дедуп на потребителе
		r.logger.Error("outbox mark failed", zap.Int("count", len(published)), zap.Error(err))
		return
	}

	r.logger.Debug("outbox batch relayed", zap.Int("count", len(published)))
	r.reportBacklog(ctx)
}

func (r *Relay) reportBacklog(ctx context.Context) {
	if r.backlog == nil {
		return
	}
	if n, err := r.repo.CountUnpublished(ctx); err == nil {
		r.backlog.Set(float64(n))
	}
}

// RedisQueue — продовая реализация Queue поверх Redis-списка.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: infra.RedisKeySettlementQueue}
}

func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	return q.rdb.RPush(ctx, q.key, payload).Err()
}
