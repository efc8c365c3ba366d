package domain

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Policy — приватное правило расходов агента. В леджере лежат только публичные
// поля и коммитмент PolicyHash; сами приватные лимиты знает офчейн-прувер.
// Инвариант: на одного агента — не более одной живой записи, SetPolicy
// перезаписывает её целиком (истории нет).
type Policy struct {
	Agent           string    `json:"agent"`            // Идентичность агента (платежный ключ)
	PolicyHash      [32]byte  `json:"policy_hash"`      // Коммитмент к приватным полям (публичный вход proof-а)
	AllowedCategory Category  `json:"allowed_category"` // Разрешенная категория трат
	MaxPerTx        uint64    `json:"max_per_tx"`       // Лимит на одну транзакцию (мин. единицы стейблкоина)
	Frozen          bool      `json:"frozen"`           // Единственный kill-switch: true = никаких авторизаций
	UpdatedAt       time.Time `json:"updated_at"`
}

// ComputePolicyHash строит коммитмент к приватным полям политики.
// Схема: blake2b-256(max_per_tx LE || allowed_category || salt).
// Леджер сам по себе трактует хэш как непрозрачный; хелпер нужен пруверу и тестам.
func ComputePolicyHash(maxPerTx uint64, allowedCategory Category, salt []byte) [32]byte {
	buf := make([]byte, 0, 9+len(salt))
	buf = binary.LittleEndian.AppendUint64(buf, maxPerTx)
	buf = append(buf, byte(allowedCategory))
	buf = append(buf, salt...)
	return blake2b.Sum256(buf)
}
