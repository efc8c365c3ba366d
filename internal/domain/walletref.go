package domain

import (
	"encoding/json"
	"fmt"
)

// MaxWalletRefLen — жесткий предел длины внешнего идентификатора кошелька мерчанта.
const MaxWalletRefLen = 64

// WalletRef — идентификатор кастодиального кошелька мерчанта (например, Circle wallet id).
// Хранится как фиксированный буфер с явной длиной: хвост за пределами length —
// нулевой паддинг и не является частью логического значения, так что исходная
// строка восстанавливается байт-в-байт.
type WalletRef struct {
	buf    [MaxWalletRefLen]byte
	length uint8
}

// NewWalletRef валидирует длину на границе и упаковывает значение.
func NewWalletRef(s string) (WalletRef, error) {
	if len(s) > MaxWalletRefLen {
		return WalletRef{}, fmt.Errorf("%w: got %d bytes", ErrWalletRefTooLong, len(s))
	}
	var ref WalletRef
	copy(ref.buf[:], s)
	ref.length = uint8(len(s))
	return ref, nil
}

// WalletRefFromStored восстанавливает значение из колонок БД (буфер + длина).
func WalletRefFromStored(buf []byte, length uint8) WalletRef {
	var ref WalletRef
	copy(ref.buf[:], buf)
	if int(length) > MaxWalletRefLen {
		length = MaxWalletRefLen
	}
	ref.length = length
	return ref
}

// Bytes возвращает логическое значение без паддинга.
func (r WalletRef) Bytes() []byte { return r.buf[:r.length] }

func (r WalletRef) String() string { return string(r.buf[:r.length]) }

func (r WalletRef) Len() int { return int(r.length) }

// Padded отдает полный 64-байтный буфер (для персистентности фиксированной емкости).
func (r WalletRef) Padded() []byte {
	out := make([]byte, MaxWalletRefLen)
	copy(out, r.buf[:])
	return out
}

func (r WalletRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *WalletRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := NewWalletRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
