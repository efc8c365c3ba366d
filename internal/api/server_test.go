package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/ledger"
	"github.com/xela07ax/agentpay-ledger/internal/verifier"
	"go.uber.org/zap"
)

// fakeValidator трактует токен буквально как subject — подпись не проверяем,
// тестируем привязку идентичности, а не криптографию.
type fakeValidator struct{}

func (fakeValidator) VerifyToken(tokenStr string) (*domain.AgentClaims, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("empty token")
	}
	return &domain.AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: tokenStr},
	}, nil
}

// In-memory хранилища под HTTP-тесты

type memPolicies struct{ m map[string]domain.Policy }

func (s *memPolicies) UpsertPolicy(ctx context.Context, p *domain.Policy) error {
	s.m[p.Agent] = *p
	return nil
}
func (s *memPolicies) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	if p, ok := s.m[id]; ok {
		return &p, nil
	}
	return nil, nil
}
func (s *memPolicies) GetAllPolicies(ctx context.Context) ([]domain.Policy, error) { return nil, nil }

type memMeters struct{ m map[string]domain.Meter }

func (s *memMeters) CreateMeter(ctx context.Context, m *domain.Meter) error {
	if _, ok := s.m[m.ID()]; ok {
		return domain.ErrDuplicateMeter
	}
	s.m[m.ID()] = *m
	return nil
}
func (s *memMeters) GetMeter(ctx context.Context, authority, endpointID string) (*domain.Meter, error) {
	if m, ok := s.m[domain.MeterID(authority, endpointID)]; ok {
		return &m, nil
	}
	return nil, nil
}

type memAuths struct{ m map[domain.AuthorizationKey]domain.Authorization }

func (s *memAuths) CreateAuthorization(ctx context.Context, a *domain.Authorization) error {
	if _, ok := s.m[a.Key()]; ok {
		return domain.ErrDuplicateAuthorization
	}
	s.m[a.Key()] = *a
	return nil
}
func (s *memAuths) GetAuthorization(ctx context.Context, key domain.AuthorizationKey) (*domain.Authorization, error) {
	if a, ok := s.m[key]; ok {
		return &a, nil
	}
	return nil, nil
}
func (s *memAuths) ConsumeAuthorization(ctx context.Context, key domain.AuthorizationKey, event domain.SettlementEvent) error {
	a, ok := s.m[key]
	if !ok || a.Used {
		return domain.ErrAuthorizationUsed
	}
	a.Used = true
	s.m[key] = a
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	core := ledger.New(
		&memPolicies{m: make(map[string]domain.Policy)},
		nil,
		&memMeters{m: make(map[string]domain.Meter)},
		&memAuths{m: make(map[domain.AuthorizationKey]domain.Authorization)},
		verifier.NewStub(zap.NewNop()),
		ledger.NewManualClock(10),
		nil,
		ledger.NewMetrics(nil),
		zap.NewNop(),
	)
	srv := NewServer(fakeValidator{}, NewHandler(core, zap.NewNop()), zap.NewNop())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func seedPolicyAndMeter(t *testing.T, ts *httptest.Server, frozen bool) {
	t.Helper()
	hash := domain.ComputePolicyHash(500_000, domain.CategoryAIAPI, []byte("salt"))
	resp := doJSON(t, ts, http.MethodPut, "/v1/agents/agent-1/policy", "agent-1", map[string]any{
		"policy_hash":      hex.EncodeToString(hash[:]),
		"allowed_category": 1,
		"max_per_tx":       500_000,
		"frozen":           frozen,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/v1/meters", "merchant-ai", map[string]any{
		"endpoint_id":         "gpt-inference",
		"price_per_call":      400_000,
		"category":            1,
		"merchant_wallet_ref": "circle-wallet-9",
		"requires_zk":         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func authorizeBody(nonce uint64) map[string]any {
	return map[string]any{
		"meter_authority": "merchant-ai",
		"endpoint_id":     "gpt-inference",
		"amount":          400_000,
		"category":        1,
		"nonce":           nonce,
		"expires_at":      100,
		"proof":           []byte("proof-bytes"), // encoding/json кодирует []byte как base64
	}
}

func recordBody(nonce uint64) map[string]any {
	return map[string]any{
		"meter_authority": "merchant-ai",
		"endpoint_id":     "gpt-inference",
		"nonce":           nonce,
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "", authorizeBody(1))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSetPolicyRequiresMatchingSubject(t *testing.T) {
	ts := newTestServer(t)

	hash := domain.ComputePolicyHash(1, domain.CategoryTool, nil)
	resp := doJSON(t, ts, http.MethodPut, "/v1/agents/agent-1/policy", "someone-else", map[string]any{
		"policy_hash": hex.EncodeToString(hash[:]),
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	seedPolicyAndMeter(t, ts, false)

	resp := doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "agent-1", authorizeBody(7))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/v1/payments/record", "agent-1", recordBody(7))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Повторное погашение -> конфликт состояния
	resp = doJSON(t, ts, http.MethodPost, "/v1/payments/record", "agent-1", recordBody(7))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(domain.KindState), body.Kind)
}

func TestErrorMapping(t *testing.T) {
	t.Run("frozen policy -> 422", func(t *testing.T) {
		ts := newTestServer(t)
		seedPolicyAndMeter(t, ts, true)

		resp := doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "agent-1", authorizeBody(1))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("empty proof -> 403", func(t *testing.T) {
		ts := newTestServer(t)
		seedPolicyAndMeter(t, ts, false)

		body := authorizeBody(1)
		body["proof"] = []byte{}
		resp := doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "agent-1", body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("duplicate nonce -> 409", func(t *testing.T) {
		ts := newTestServer(t)
		seedPolicyAndMeter(t, ts, false)

		resp := doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "agent-1", authorizeBody(7))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp = doJSON(t, ts, http.MethodPost, "/v1/payments/authorize", "agent-1", authorizeBody(7))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown authorization -> 404", func(t *testing.T) {
		ts := newTestServer(t)
		seedPolicyAndMeter(t, ts, false)

		resp := doJSON(t, ts, http.MethodPost, "/v1/payments/record", "agent-1", recordBody(999))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("oversized wallet ref -> 422", func(t *testing.T) {
		ts := newTestServer(t)

		resp := doJSON(t, ts, http.MethodPost, "/v1/meters", "merchant-ai", map[string]any{
			"endpoint_id":         "ep",
			"merchant_wallet_ref": string(bytes.Repeat([]byte("x"), domain.MaxWalletRefLen+1)),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
