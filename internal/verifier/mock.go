package verifier

import (
	"context"
	"sync"
)

// Mock — детерминированный верификатор для тестов: возвращает заранее
// заданный результат и запоминает вызовы, чтобы тест мог проверить,
// что верификатор НЕ вызывался (порядок проверок в ядре значим).
type Mock struct {
	mu     sync.Mutex
	result error
	calls  []PublicInputs
}

func NewMock(result error) *Mock {
	return &Mock{result: result}
}

func (m *Mock) Verify(ctx context.Context, proof []byte, in PublicInputs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
	return m.result
}

// SetResult меняет исход последующих вызовов.
func (m *Mock) SetResult(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = err
}

// Calls возвращает копию зафиксированных публичных входов.
func (m *Mock) Calls() []PublicInputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublicInputs, len(m.calls))
	copy(out, m.calls)
	return out
}
