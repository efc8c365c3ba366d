package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agentpay-ledger/internal/api"
	"github.com/xela07ax/agentpay-ledger/internal/infra"
	"github.com/xela07ax/agentpay-ledger/internal/infra/auth"
	"github.com/xela07ax/agentpay-ledger/internal/ledger"
	"github.com/xela07ax/agentpay-ledger/internal/outbox"
	"github.com/xela07ax/agentpay-ledger/internal/repository/postgres"
	"github.com/xela07ax/agentpay-ledger/internal/verifier"
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

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
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

	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse auth public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)

	// 3. Кэш политик: холодная загрузка + слушатель инвалидации
	cache := ledger.NewPolicyCache(store, rdb, logger)
	if err := cache.Refresh(appCtx); err != nil {
		logger.Fatal("failed to warm up policy cache", zap.Error(err))
	}
	go cache.StartListener(appCtx)

	// 4. Верификатор proof-ов
	var zk verifier.Verifier
	switch cfg.Ledger.VerifierMode {
	case "remote":
		zk = verifier.NewRemote(cfg.Ledger.VerifierURL, cfg.Ledger.VerifierTimeout)
		logger.Info("using remote proof verifier", zap.String("url", cfg.Ledger.VerifierURL))
	default:
		zk = verifier.NewStub(logger)
		logger.Warn("using STUB proof verifier: any non-empty proof is accepted, do not use in production")
	}

	// 5. Метрики
	reg := prometheus.NewRegistry()
	metrics := ledger.NewMetrics(reg)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics endpoint started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 6. Релей durable outbox -> очередь расчетов
	relay := outbox.NewRelay(
		store,
		outbox.NewRedisQueue(rdb),
		cfg.Ledger.OutboxPollInterval,
		cfg.Ledger.OutboxBatchSize,
		metrics.OutboxBacklog,
		logger,
	)
	relay.Start()

	// 7. Сборка ядра леджера
	core := ledger.New(
		store,
		cache,
		store,
		store,
		zk,
		ledger.UnixClock{},
		ledger.NewRedisNotifier(rdb, logger),
		metrics,
		logger,
	)

	// 8. HTTP Server
	server := api.NewServer(validator, api.NewHandler(core, logger), logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("ledger API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("ledger stopping...")
	cancel() // Останавливаем слушателей Pub/Sub

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}

	// Релей гасим последним: дренаж бэклога после остановки трафика
	relay.Stop()
	logger.Info("ledger exited properly")
}
