package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRefRoundTrip(t *testing.T) {
	ref, err := NewWalletRef("wallet-123")
	require.NoError(t, err)

	// Логическое значение восстанавливается байт-в-байт
	assert.Equal(t, 10, ref.Len())
	assert.Equal(t, "wallet-123", ref.String())
	assert.Equal(t, []byte("wallet-123"), ref.Bytes())

	// Хвост буфера — нулевой паддинг, не часть значения
	padded := ref.Padded()
	require.Len(t, padded, MaxWalletRefLen)
	assert.Equal(t, []byte("wallet-123"), padded[:10])
	for i := 10; i < MaxWalletRefLen; i++ {
		assert.Zero(t, padded[i], "padding byte %d must be zero", i)
	}

	// Цикл через колонки БД (буфер + длина)
	restored := WalletRefFromStored(padded, uint8(ref.Len()))
	assert.Equal(t, ref, restored)
}

func TestWalletRefLengthBoundary(t *testing.T) {
	// Ровно 64 байта — проходит
	max := strings.Repeat("a", MaxWalletRefLen)
	ref, err := NewWalletRef(max)
	require.NoError(t, err)
	assert.Equal(t, MaxWalletRefLen, ref.Len())

	// 65 байт — отказ на границе
	_, err = NewWalletRef(max + "b")
	assert.ErrorIs(t, err, ErrWalletRefTooLong)
}

func TestWalletRefJSON(t *testing.T) {
	ref, err := NewWalletRef("circle-wallet-42")
	require.NoError(t, err)

	data, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.Equal(t, `"circle-wallet-42"`, string(data))

	var back WalletRef
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ref, back)

	// Невалидная длина отсекается и при декодировании
	tooLong := `"` + strings.Repeat("x", MaxWalletRefLen+1) + `"`
	assert.ErrorIs(t, json.Unmarshal([]byte(tooLong), &back), ErrWalletRefTooLong)
}
