package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"go.uber.org/zap"
)

// ListenResilient — универсальный цикл «живучей» подписки на сигналы Redis.
// Обрабатывает переподключения, логирование и доставку сообщений в callback.
func ListenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func() error, // Callback для синхронизации при переподключении
	onMessage func(payload string), // Callback для обработки сообщения
) {
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			pubsub.Close()
			time.Sleep(5 * time.Second)
			continue
		}

		// Синхронизация (Refresh) при каждом успешном коннекте
		if err := onReconnect(); err != nil {
			logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}

// RedisNotifier публикует сигнал изменения политики для остальных инстансов.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, logger: logger.Named("notifier")}
}

func (n *RedisNotifier) PolicyChanged(ctx context.Context, agentID string) error {
	return n.rdb.Publish(ctx, infra.RedisChanPolicyUpdate, agentID).Err()
}
