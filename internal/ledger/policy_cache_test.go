package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentpay-ledger/internal/domain"
	"go.uber.org/zap"
)

func TestPolicyCacheRefreshReplacesSnapshot(t *testing.T) {
	store := newFakePolicyStore()
	store.policies["agent-a"] = domain.Policy{Agent: "agent-a", MaxPerTx: 100}
	store.policies["agent-b"] = domain.Policy{Agent: "agent-b", MaxPerTx: 200}

	cache := NewPolicyCache(store, nil, zap.NewNop())

	_, ok := cache.Get("agent-a")
	assert.False(t, ok, "cache must start cold")

	require.NoError(t, cache.Refresh(context.Background()))

	p, ok := cache.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, uint64(100), p.MaxPerTx)

	// Снимок заменяется целиком: исчезнувшая из БД запись уходит и из кэша
	delete(store.policies, "agent-b")
	require.NoError(t, cache.Refresh(context.Background()))
	_, ok = cache.Get("agent-b")
	assert.False(t, ok)
}

func TestPolicyCachePutIsVisibleImmediately(t *testing.T) {
	cache := NewPolicyCache(newFakePolicyStore(), nil, zap.NewNop())

	cache.Put(domain.Policy{Agent: "agent-a", Frozen: true})

	p, ok := cache.Get("agent-a")
	require.True(t, ok)
	assert.True(t, p.Frozen)
}

func TestLedgerUsesCacheOnHotPath(t *testing.T) {
	env := newTestEnv(t)
	cache := NewPolicyCache(env.policies, nil, zap.NewNop())
	env.ledger = New(
		env.policies, cache, env.meters, env.auths,
		env.verify, env.clock, nil,
		NewMetrics(nil), zap.NewNop(),
	)
	env.seed(t, false)

	// SetPolicy синхронно положил запись в кэш
	p, ok := cache.Get(testAgent)
	require.True(t, ok)
	assert.Equal(t, testMaxPerTx, p.MaxPerTx)

	// Заморозка напрямую в кэше видна авторизации сразу — hot path читает память
	p.Frozen = true
	cache.Put(p)
	assert.ErrorIs(t, env.authorize(testNonce), domain.ErrPolicyFrozen)
}
