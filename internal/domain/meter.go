package domain

import "time"

// Meter — зарегистрированный платный эндпоинт провайдера.
// Ключ — пара (authority, endpoint id); после создания запись неизменяема:
// инструкций update/delete не существует, смена цены = регистрация нового endpoint id.
type Meter struct {
	Authority         string    `json:"authority"`   // Владелец (идентичность провайдера)
	EndpointID        string    `json:"endpoint_id"` // Внешний идентификатор эндпоинта (например, хэш URL)
	PricePerCall      uint64    `json:"price_per_call"`
	Category          Category  `json:"category"`
	MerchantWalletRef WalletRef `json:"merchant_wallet_ref"` // Куда пойдут средства при расчете
	RequiresZK        bool      `json:"requires_zk"`
	CreatedAt         time.Time `json:"created_at"`
}

// MeterID — каноническая ссылка на счетчик в ключах и событиях.
func MeterID(authority, endpointID string) string {
	return authority + "/" + endpointID
}

func (m *Meter) ID() string { return MeterID(m.Authority, m.EndpointID) }
