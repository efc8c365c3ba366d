package settle

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// TransferRequest — перевод стейблкоина с кошелька агента на кошелек мерчанта.
// IdempotencyKey прокидывается до кастодиального API: даже если дедуп
// на нашей стороне даст сбой, второй перевод по тому же ключу не пройдет.
type TransferRequest struct {
	AgentWallet    string // Идентичность агента (резолв кошелька — на стороне кастодиала)
	MerchantWallet string // merchant_wallet_ref из счетчика
	Amount         uint64 // Мин. единицы стейблкоина
	IdempotencyKey string // "agent:meter:nonce"
}

// WalletClient — граница с кастодиальным сервисом, который реально двигает средства.
type WalletClient interface {
	Transfer(ctx context.Context, req TransferRequest) error
}

// MockWalletClient имитирует кастодиальный API для локальной разработки:
// случайная задержка, перегрузка и нестабильный кошелек.
type MockWalletClient struct{}

func (c *MockWalletClient) Transfer(ctx context.Context, req TransferRequest) error {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.Intn(250)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	switch req.MerchantWallet {
	case "wallet-throttled":
		return &ThrottleError{
			RetryAfter: 2 * time.Second,
			Cause:      fmt.Errorf("simulated 429 from custodial API"),
		}
	case "wallet-unstable":
		return fmt.Errorf("custodial service internal error")
	default:
		return nil
	}
}
