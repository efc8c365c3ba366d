package ledger

import (
	"context"
	"sync"
	"time"
)

// Clock — инжектируемый источник монотонных логических тиков.
// Сравнение с expires_at — чистая функция от тика: никаких колбэков по таймеру,
// просроченные тикеты никто не вычищает (они остаются мертвым стораджем).
type Clock interface {
	Tick(ctx context.Context) (uint64, error)
}

// UnixClock — продовая реализация: тик = unix-секунды.
type UnixClock struct{}

func (UnixClock) Tick(ctx context.Context) (uint64, error) {
	return uint64(time.Now().Unix()), nil
}

// ManualClock — детерминированные часы для тестов.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Tick(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *ManualClock) Set(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = tick
}

func (c *ManualClock) Advance(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
}
