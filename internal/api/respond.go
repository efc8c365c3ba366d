package api

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"go.uber.org/zap"
)

// errorResponse — единый формат ошибки наружу: машинный класс + человекочитаемое сообщение.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor переводит класс доменной ошибки в HTTP-статус.
// Классификация живет в domain.KindOf — тут только маппинг.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindProof:
		return http.StatusForbidden
	case domain.KindState, domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	// Внутренности (ошибки БД и т.п.) наружу не отдаем
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Kind: string(kind), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
