package domain

import "time"

// AuthorizationState — read-time классификация тикета.
// Expired никогда не пишется в хранилище: это чистое сравнение с логическими часами.
type AuthorizationState string

const (
	StateActive   AuthorizationState = "ACTIVE"
	StateExpired  AuthorizationState = "EXPIRED"
	StateConsumed AuthorizationState = "CONSUMED" // Терминальное состояние
)

// AuthorizationKey — составной ключ тикета. Он же — защита от replay:
// повторная выдача по занятому ключу детерминированно падает, перезаписи нет.
type AuthorizationKey struct {
	Agent          string
	MeterAuthority string
	EndpointID     string
	Nonce          uint64
}

func (k AuthorizationKey) MeterID() string {
	return MeterID(k.MeterAuthority, k.EndpointID)
}

// Authorization — одноразовый платежный тикет, созданный после успешной
// проверки proof-а. Used переключается из false в true ровно один раз;
// удаления, рефанда и перевыпуска не существует.
type Authorization struct {
	Agent          string    `json:"agent"`
	MeterAuthority string    `json:"meter_authority"`
	EndpointID     string    `json:"endpoint_id"`
	Amount         uint64    `json:"amount"`
	Category       Category  `json:"category"`
	Nonce          uint64    `json:"nonce"`
	ExpiresAt      uint64    `json:"expires_at"` // Тик логических часов хоста
	Used           bool      `json:"used"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *Authorization) Key() AuthorizationKey {
	return AuthorizationKey{
		Agent:          a.Agent,
		MeterAuthority: a.MeterAuthority,
		EndpointID:     a.EndpointID,
		Nonce:          a.Nonce,
	}
}

// State классифицирует тикет относительно текущего тика.
func (a *Authorization) State(now uint64) AuthorizationState {
	if a.Used {
		return StateConsumed
	}
	if now > a.ExpiresAt {
		return StateExpired
	}
	return StateActive
}
