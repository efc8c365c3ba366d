package settle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// CircleClient — адаптер к кастодиальному API Circle: исполняет перевод
// USDC между developer-controlled кошельками по событию расчета.
type CircleClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCircleClient(baseURL, apiKey string) *CircleClient {
	return &CircleClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			// Защитный предел на сам вызов, даже если ретрай-слой имеет свой
			Timeout: 15 * time.Second,
		},
	}
}

type circleTransferRequest struct {
	SourceWallet      string `json:"source_wallet"`
	DestinationWallet string `json:"destination_wallet"`
	Amount            string `json:"amount"` // Мин. единицы, строкой — так требует API
	IdempotencyKey    string `json:"idempotency_key"`
}

// Transfer реализует интерфейс WalletClient.
func (c *CircleClient) Transfer(ctx context.Context, req TransferRequest) error {
	body, err := json.Marshal(circleTransferRequest{
		SourceWallet:      req.AgentWallet,
		DestinationWallet: req.MerchantWallet,
		Amount:            strconv.FormatUint(req.Amount, 10),
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("circle: failed to marshal transfer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("circle: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("circle: transfer call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Перевод с этим idempotency key уже исполнен — для нас это успех
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("circle returned 429"),
		}
	default:
		return fmt.Errorf("circle: transfer failed with status %d", resp.StatusCode)
	}
}

func parseRetryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Second // Разумный дефолт, если заголовка нет
}
