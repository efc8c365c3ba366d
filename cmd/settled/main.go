package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"github.com/xela07ax/agentpay-ledger/internal/repository/postgres"
	"github.com/xela07ax/agentpay-ledger/internal/settle"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Завершение по SIGINT/SIGTERM через отмену контекста
	appCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 2. Инфраструктура: Postgres (резолв кошельков), Redis (очередь + дедуп)
	store, err := postgres.NewStore(appCtx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(appCtx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// 3. Кастодиальный клиент + защитные слои
	var wallet settle.WalletClient
	switch cfg.Settle.WalletMode {
	case "circle":
		wallet = settle.NewCircleClient(cfg.Settle.CircleURL, cfg.Settle.CircleAPIKey)
		logger.Info("using circle custodial client", zap.String("url", cfg.Settle.CircleURL))
	default:
		wallet = &settle.MockWalletClient{}
		logger.Warn("using MOCK wallet client: no funds will move")
	}
	safeWallet := settle.NewReliabilityWrapper(wallet, cfg.Settle.RateLimit, cfg.Settle.CBInterval, cfg.Settle.CBTimeout)

	// 4. Воркер расчетов: блокирующее чтение очереди до сигнала
	consumer := settle.NewConsumer(
		rdb,
		store,
		safeWallet,
		settle.NewRedisDeduper(rdb, cfg.Settle.DedupTTL),
		logger,
	)
	consumer.Run(appCtx)

	logger.Info("settlement worker exited properly")
}
