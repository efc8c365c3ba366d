package settle

import (
	"fmt"
	"time"
)

// ThrottleError сигнализирует, что кастодиальный API попросил подождать
// (считанный Retry-After). Ретрай-слой использует точную задержку вместо
// экспоненциального бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
