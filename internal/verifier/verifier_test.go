package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"go.uber.org/zap"
)

func TestStubRejectsEmptyProof(t *testing.T) {
	s := NewStub(zap.NewNop())

	err := s.Verify(context.Background(), nil, PublicInputs{})
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	err = s.Verify(context.Background(), []byte{}, PublicInputs{})
	assert.ErrorIs(t, err, domain.ErrInvalidProof)
}

func TestStubAcceptsNonEmptyProof(t *testing.T) {
	s := NewStub(zap.NewNop())
	assert.NoError(t, s.Verify(context.Background(), []byte{0x01}, PublicInputs{Amount: 100}))
}

func TestRemoteVerify(t *testing.T) {
	in := PublicInputs{
		Amount:   400_000,
		Category: domain.CategoryAIAPI,
	}
	in.PolicyHash[0] = 0xAB

	t.Run("accept", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req verifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			// Публичные входы доходят до сервиса в точности
			assert.Equal(t, uint64(400_000), req.Amount)
			assert.Equal(t, uint8(1), req.Category)
			assert.Equal(t, 64, len(req.PolicyHash), "hash must be 32 hex-encoded bytes")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		r := NewRemote(srv.URL, time.Second)
		assert.NoError(t, r.Verify(context.Background(), []byte("proof"), in))
	})

	t.Run("reject maps to ErrInvalidProof", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		r := NewRemote(srv.URL, time.Second)
		err := r.Verify(context.Background(), []byte("proof"), in)
		assert.ErrorIs(t, err, domain.ErrInvalidProof)
	})

	t.Run("server error is not a proof rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		r := NewRemote(srv.URL, time.Second)
		err := r.Verify(context.Background(), []byte("proof"), in)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidProof)
	})
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Verify(context.Background(), []byte("p"), PublicInputs{Amount: 1}))

	m.SetResult(domain.ErrInvalidProof)
	assert.ErrorIs(t, m.Verify(context.Background(), []byte("p"), PublicInputs{Amount: 2}), domain.ErrInvalidProof)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, uint64(1), calls[0].Amount)
	assert.Equal(t, uint64(2), calls[1].Amount)
}
