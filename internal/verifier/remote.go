package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
)

// Remote — адаптер к внешнему сервису верификации (например, Sunspot-генерированный
// верификатор за HTTP-фасадом). Леджер не ретраит сам: транспортная ошибка
// откатывает операцию, повтор — забота вызывающего оркестратора.
type Remote struct {
	url    string
	client *http.Client
}

func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url: url,
		client: &http.Client{
			// Защитный предел на сам вызов, даже если контекст живет дольше
			Timeout: timeout,
		},
	}
}

type verifyRequest struct {
	Proof      string `json:"proof"` // base64
	Amount     uint64 `json:"amount"`
	Category   uint8  `json:"category"`
	PolicyHash string `json:"policy_hash"` // hex, 32 байта
}

func (r *Remote) Verify(ctx context.Context, proof []byte, in PublicInputs) error {
	body, err := json.Marshal(verifyRequest{
		Proof:      base64.StdEncoding.EncodeToString(proof),
		Amount:     in.Amount,
		Category:   uint8(in.Category),
		PolicyHash: hex.EncodeToString(in.PolicyHash[:]),
	})
	if err != nil {
		return fmt.Errorf("verifier: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("verifier: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("verifier: call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Верификатор осознанно отклонил proof
		return fmt.Errorf("%w: verifier returned %d", domain.ErrInvalidProof, resp.StatusCode)
	default:
		return fmt.Errorf("verifier: unexpected status %d", resp.StatusCode)
	}
}
