package app

import (
	"context"
	"time"
)

// Pacer задаёт темп последовательных обращений к внешнему API.
type Pacer interface {
	// Wait блокируется до момента, когда можно отправить следующий запрос.
	Wait(ctx context.Context) error
}

// FixedDelay — пауза фиксированной длительности.
type FixedDelay time.Duration

// Wait реализует Pacer.
func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
