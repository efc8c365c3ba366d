package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrPolicyFrozen, KindValidation},
		{ErrCategoryMismatch, KindValidation},
		{ErrWalletRefTooLong, KindValidation},
		{ErrInvalidProof, KindProof},
		{ErrAuthorizationUsed, KindState},
		{ErrAuthorizationExpired, KindState},
		{ErrDuplicateMeter, KindDuplicate},
		{ErrDuplicateAuthorization, KindDuplicate},
		{ErrPolicyNotFound, KindNotFound},
		{ErrMeterNotFound, KindNotFound},
		{ErrAuthorizationNotFound, KindNotFound},
		{errors.New("connection reset"), KindInternal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), "error %v", tc.err)
	}

	// Классификация видит ошибку и через обертку
	wrapped := fmt.Errorf("authorize: %w", ErrInvalidProof)
	assert.Equal(t, KindProof, KindOf(wrapped))
}

func TestAuthorizationState(t *testing.T) {
	a := &Authorization{ExpiresAt: 100}

	assert.Equal(t, StateActive, a.State(100)) // Граница включительно: now == expires_at еще живой
	assert.Equal(t, StateExpired, a.State(101))

	// Consumed — терминальное, перекрывает истечение
	a.Used = true
	assert.Equal(t, StateConsumed, a.State(101))
}

func TestComputePolicyHash(t *testing.T) {
	h1 := ComputePolicyHash(500_000, CategoryAIAPI, []byte("salt-a"))
	h2 := ComputePolicyHash(500_000, CategoryAIAPI, []byte("salt-a"))
	assert.Equal(t, h1, h2, "commitment must be deterministic")

	// Любое приватное поле меняет коммитмент
	assert.NotEqual(t, h1, ComputePolicyHash(500_001, CategoryAIAPI, []byte("salt-a")))
	assert.NotEqual(t, h1, ComputePolicyHash(500_000, CategoryTool, []byte("salt-a")))
	assert.NotEqual(t, h1, ComputePolicyHash(500_000, CategoryAIAPI, []byte("salt-b")))
}

func TestSettlementEventIdempotencyKey(t *testing.T) {
	e := SettlementEvent{Agent: "agent-1", Meter: "merchant/api", Nonce: 7}
	assert.Equal(t, "agent-1:merchant/api:7", e.IdempotencyKey())
}
