package athena

import (
	"context"
	"time"
)

// Clock abstracts time for the poll loop so tests can drive the state
// machine without real delays.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production Clock backed by the runtime timer.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
