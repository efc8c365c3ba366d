package ledger

/*
Файл core.go — ядро протокола авторизации: машина состояний, превращающая
"агент просит оплатить счетчик M на сумму A" в одноразовый, истекающий,
replay-безопасный платежный тикет.

Каждая операция атомарна: либо все мутации коммитятся, либо первый же
проваленный предикат откатывает операцию без частичной записи. Средства ядро
не двигает никогда — наружу уходит только событие расчета через durable outbox.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/verifier"
	"go.uber.org/zap"
)

type Ledger struct {
	policies PolicyStore
	cache    *PolicyCache // может быть nil — тогда каждый раз ходим в БД
	meters   MeterStore
	auths    AuthorizationStore
	verify   verifier.Verifier
	clock    Clock
	notifier PolicyNotifier // может быть nil (single-instance режим)
	metrics  *Metrics
	logger   *zap.Logger
}

func New(
	policies PolicyStore,
	cache *PolicyCache,
	meters MeterStore,
	auths AuthorizationStore,
	v verifier.Verifier,
	clock Clock,
	notifier PolicyNotifier,
	metrics *Metrics,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		policies: policies,
		cache:    cache,
		meters:   meters,
		auths:    auths,
		verify:   v,
		clock:    clock,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("ledger"),
	}
}

// observe — единый паттерн учета операции (latency + исход + класс ошибки).
// Вызывается только из defer-замыкания: err должен читаться на выходе из
// операции, а не в момент постановки defer.
func (l *Ledger) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		l.metrics.ErrorsTotal.WithLabelValues(op, string(domain.KindOf(err))).Inc()
	}
	l.metrics.OpsTotal.WithLabelValues(op).Inc()
	l.metrics.OpDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// SetPolicy создает или целиком перезаписывает политику агента (идемпотентная
// перезапись, истории нет). Проверка подписи agentIdentity — на HTTP-слое;
// сюда запрос доходит уже аутентифицированным.
func (l *Ledger) SetPolicy(ctx context.Context, agent string, policyHash [32]byte, allowedCategory domain.Category, maxPerTx uint64, frozen bool) (err error) {
	start := time.Now()
	defer func() { l.observe("set_policy", start, err) }()

	p := &domain.Policy{
		Agent:           agent,
		PolicyHash:      policyHash,
		AllowedCategory: allowedCategory,
		MaxPerTx:        maxPerTx,
		Frozen:          frozen,
		UpdatedAt:       time.Now(),
	}

	if err = l.policies.UpsertPolicy(ctx, p); err != nil {
		return fmt.Errorf("set policy: %w", err)
	}

	// Свой инстанс видит изменение сразу, остальные — по сигналу
	if l.cache != nil {
		l.cache.Put(*p)
	}
	if l.notifier != nil {
		if nerr := l.notifier.PolicyChanged(ctx, agent); nerr != nil {
			// Запись уже в БД; сигнал не критичен — кэши сойдутся при переподписке
			l.logger.Warn("policy update signal failed", zap.String("agent", agent), zap.Error(nerr))
		}
	}

	l.logger.Info("policy set",
		zap.String("agent", agent),
		zap.Uint8("allowed_category", uint8(allowedCategory)),
		zap.Uint64("max_per_tx", maxPerTx),
		zap.Bool("frozen", frozen),
	)
	return nil
}

// CreateMeter регистрирует платный эндпоинт. Повторная регистрация того же
// (authority, endpoint_id) падает с ErrDuplicateMeter; пути обновления нет —
// цена и категория неизменяемы на всю жизнь счетчика.
func (l *Ledger) CreateMeter(ctx context.Context, authority, endpointID string, pricePerCall uint64, category domain.Category, merchantWalletRef string, requiresZK bool) (err error) {
	start := time.Now()
	defer func() { l.observe("create_meter", start, err) }()

	// Дешевая проверка границы — до любого похода в хранилище
	ref, err := domain.NewWalletRef(merchantWalletRef)
	if err != nil {
		return err
	}

	m := &domain.Meter{
		Authority:         authority,
		EndpointID:        endpointID,
		PricePerCall:      pricePerCall,
		Category:          category,
		MerchantWalletRef: ref,
		RequiresZK:        requiresZK,
		CreatedAt:         time.Now(),
	}

	if err = l.meters.CreateMeter(ctx, m); err != nil {
		return err
	}

	l.logger.Info("meter created",
		zap.String("meter", m.ID()),
		zap.Uint64("price_per_call", pricePerCall),
		zap.Uint8("category", uint8(category)),
		zap.Bool("requires_zk", requiresZK),
	)
	return nil
}

// AuthorizePayment проверяет комплаенс-proof и выдает одноразовый тикет.
//
// Порядок предикатов значим и сохранен из исходного протокола
// (дешевые проверки — раньше дорогой верификации):
//  1. frozen -> ErrPolicyFrozen
//  2. категория счетчика -> ErrCategoryMismatch (верификатор не вызывается)
//  3. proof -> ErrInvalidProof
//  4. вставка по ключу (agent, meter, nonce) -> ErrDuplicateAuthorization,
//     независимо от валидности proof-а в ретрае.
func (l *Ledger) AuthorizePayment(ctx context.Context, agent, meterAuthority, endpointID string, amount uint64, category domain.Category, nonce uint64, expiresAt uint64, proof []byte) (err error) {
	start := time.Now()
	defer func() { l.observe("authorize_payment", start, err) }()

	policy, err := l.getPolicy(ctx, agent)
	if err != nil {
		return err
	}

	// 1. Kill-switch политики
	if policy.Frozen {
		return domain.ErrPolicyFrozen
	}

	meter, err := l.getMeter(ctx, meterAuthority, endpointID)
	if err != nil {
		return err
	}

	// 2. Категория платежа должна совпадать с категорией счетчика
	if meter.Category != category {
		return domain.ErrCategoryMismatch
	}

	// 3. ZK-верификация: proof доказывает amount <= max_per_tx и
	// category == allowed_category, не раскрывая приватные поля политики
	if err = l.verify.Verify(ctx, proof, verifier.PublicInputs{
		Amount:     amount,
		Category:   category,
		PolicyHash: policy.PolicyHash,
	}); err != nil {
		if errors.Is(err, domain.ErrInvalidProof) {
			return err
		}
		return fmt.Errorf("proof verification failed: %w", err)
	}

	// 4. Создание тикета; занятый ключ = replay, падаем без перезаписи
	auth := &domain.Authorization{
		Agent:          agent,
		MeterAuthority: meterAuthority,
		EndpointID:     endpointID,
		Amount:         amount,
		Category:       category,
		Nonce:          nonce,
		ExpiresAt:      expiresAt,
		Used:           false,
		CreatedAt:      time.Now(),
	}
	if err = l.auths.CreateAuthorization(ctx, auth); err != nil {
		return err
	}

	l.logger.Info("payment authorized",
		zap.String("agent", agent),
		zap.String("meter", meter.ID()),
		zap.Uint64("amount", amount),
		zap.Uint64("nonce", nonce),
		zap.Uint64("expires_at", expiresAt),
	)
	return nil
}

// RecordPayment погашает тикет: used=false -> true ровно один раз и эмитит
// событие расчета в durable outbox той же транзакцией. Средства не двигает.
func (l *Ledger) RecordPayment(ctx context.Context, agent, meterAuthority, endpointID string, nonce uint64) (err error) {
	start := time.Now()
	defer func() { l.observe("record_payment", start, err) }()

	key := domain.AuthorizationKey{
		Agent:          agent,
		MeterAuthority: meterAuthority,
		EndpointID:     endpointID,
		Nonce:          nonce,
	}

	// 1. Лукап по ключу: привязка agent/meter проверяется самим ключом,
	// отсутствие записи = несовпадение
	auth, err := l.auths.GetAuthorization(ctx, key)
	if err != nil {
		return err
	}
	if auth == nil {
		return domain.ErrAuthorizationNotFound
	}

	// 2. Повторное погашение
	if auth.Used {
		return domain.ErrAuthorizationUsed
	}

	// 3. Истечение — чистое сравнение с логическими часами, ничего не пишем
	now, err := l.clock.Tick(ctx)
	if err != nil {
		return fmt.Errorf("clock unavailable: %w", err)
	}
	if now > auth.ExpiresAt {
		return domain.ErrAuthorizationExpired
	}

	// 4-5. Атомарно: used=true + событие в outbox (CAS в хранилище,
	// проигравший гонку получит ErrAuthorizationUsed)
	event := domain.SettlementEvent{
		Agent:     auth.Agent,
		Meter:     key.MeterID(),
		Amount:    auth.Amount,
		Category:  auth.Category,
		Nonce:     auth.Nonce,
		Timestamp: now,
	}
	if err = l.auths.ConsumeAuthorization(ctx, key, event); err != nil {
		return err
	}

	l.logger.Info("payment recorded",
		zap.String("agent", auth.Agent),
		zap.String("meter", event.Meter),
		zap.Uint64("amount", auth.Amount),
		zap.Uint64("nonce", nonce),
	)
	return nil
}

// getPolicy — hot path через RAM-кэш, мимо кэша — в БД.
func (l *Ledger) getPolicy(ctx context.Context, agent string) (*domain.Policy, error) {
	if l.cache != nil {
		if p, ok := l.cache.Get(agent); ok {
			return &p, nil
		}
	}
	p, err := l.policies.GetPolicy(ctx, agent)
	if err != nil {
		return nil, fmt.Errorf("policy lookup: %w", err)
	}
	if p == nil {
		return nil, domain.ErrPolicyNotFound
	}
	if l.cache != nil {
		l.cache.Put(*p)
	}
	return p, nil
}

func (l *Ledger) getMeter(ctx context.Context, authority, endpointID string) (*domain.Meter, error) {
	m, err := l.meters.GetMeter(ctx, authority, endpointID)
	if err != nil {
		return nil, fmt.Errorf("meter lookup: %w", err)
	}
	if m == nil {
		return nil, domain.ErrMeterNotFound
	}
	return m, nil
}
