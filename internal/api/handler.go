package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"github.com/xela07ax/agentpay-ledger/internal/infra/auth"
	"github.com/xela07ax/agentpay-ledger/internal/ledger"
	"go.uber.org/zap"
)

// Handler — HTTP-фасад над ядром леджера. Идентичность (agent/authority)
// всегда берется из подписанного токена, не из тела запроса.
type Handler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewHandler(l *ledger.Ledger, logger *zap.Logger) *Handler {
	return &Handler{ledger: l, logger: logger.Named("api")}
}

type setPolicyRequest struct {
	PolicyHash      string          `json:"policy_hash"` // hex, 32 байта
	AllowedCategory domain.Category `json:"allowed_category"`
	MaxPerTx        uint64          `json:"max_per_tx"`
	Frozen          bool            `json:"frozen"`
}

// SetPolicy создает или перезаписывает политику агента.
// PUT /v1/agents/{agent}/policy
// Право на запись — только у самого агента: subject токена обязан совпасть с {agent}.
func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	if agent == "" {
		http.Error(w, "agent is required", http.StatusBadRequest)
		return
	}
	if auth.IdentityFromContext(r.Context()) != agent {
		http.Error(w, "token subject does not match agent", http.StatusForbidden)
		return
	}

	var req setPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	hashBytes, err := hex.DecodeString(req.PolicyHash)
	if err != nil || len(hashBytes) != 32 {
		http.Error(w, "policy_hash must be 32 hex-encoded bytes", http.StatusBadRequest)
		return
	}
	var policyHash [32]byte
	copy(policyHash[:], hashBytes)

	if err := h.ledger.SetPolicy(r.Context(), agent, policyHash, req.AllowedCategory, req.MaxPerTx, req.Frozen); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createMeterRequest struct {
	EndpointID        string          `json:"endpoint_id"`
	PricePerCall      uint64          `json:"price_per_call"`
	Category          domain.Category `json:"category"`
	MerchantWalletRef string          `json:"merchant_wallet_ref"`
	RequiresZK        bool            `json:"requires_zk"`
}

// CreateMeter регистрирует платный эндпоинт мерчанта.
// POST /v1/meters — authority берется из subject токена.
func (h *Handler) CreateMeter(w http.ResponseWriter, r *http.Request) {
	var req createMeterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EndpointID == "" {
		http.Error(w, "endpoint_id is required", http.StatusBadRequest)
		return
	}

	authority := auth.IdentityFromContext(r.Context())
	if err := h.ledger.CreateMeter(r.Context(), authority, req.EndpointID, req.PricePerCall, req.Category, req.MerchantWalletRef, req.RequiresZK); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"meter": domain.MeterID(authority, req.EndpointID),
	})
}

type authorizeRequest struct {
	MeterAuthority string          `json:"meter_authority"`
	EndpointID     string          `json:"endpoint_id"`
	Amount         uint64          `json:"amount"`
	Category       domain.Category `json:"category"`
	Nonce          uint64          `json:"nonce"`
	ExpiresAt      uint64          `json:"expires_at"`
	Proof          []byte          `json:"proof"` // base64 в JSON
}

// AuthorizePayment проверяет proof и выдает одноразовый платежный тикет.
// POST /v1/payments/authorize — agent берется из subject токена.
func (h *Handler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agent := auth.IdentityFromContext(r.Context())
	err := h.ledger.AuthorizePayment(r.Context(), agent,
		req.MeterAuthority, req.EndpointID,
		req.Amount, req.Category, req.Nonce, req.ExpiresAt, req.Proof)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":     "authorized",
		"nonce":      req.Nonce,
		"expires_at": req.ExpiresAt,
	})
}

type recordRequest struct {
	MeterAuthority string `json:"meter_authority"`
	EndpointID     string `json:"endpoint_id"`
	Nonce          uint64 `json:"nonce"`
}

// RecordPayment погашает тикет и эмитит событие расчета.
// POST /v1/payments/record — agent берется из subject токена.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agent := auth.IdentityFromContext(r.Context())
	if err := h.ledger.RecordPayment(r.Context(), agent, req.MeterAuthority, req.EndpointID, req.Nonce); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
