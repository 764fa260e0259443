// Package lock guards the background scheduler so only one process runs
// the sweep and automation ticks at a time.
package lock

import (
	"context"
	"errors"
)

// ErrLockLost is returned by Renew when another owner holds the lock.
var ErrLockLost = errors.New("scheduler lock lost")

type Locker interface {
	// TryAcquire reports whether this process now owns the lock. It never
	// blocks waiting for another owner.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this process owns it.
	Release(ctx context.Context) error
}

// Renewer is implemented by locks that expire unless refreshed.
type Renewer interface {
	Renew(ctx context.Context) error
}
