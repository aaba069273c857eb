package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/petvoice/subscriptions/pkg/pg"
	domain "github.com/petvoice/subscriptions/pkg/subscription"
)

// Locker adapts a Postgres advisory locker to per-user locks.
// Waiters for the same user inside this process queue on a local lock first,
// so only one of them holds a pooled connection at a time.
type Locker struct {
	local *domain.KeyedLocker
	locks *pg.AdvisoryLocker
}

func NewLocker(locks *pg.AdvisoryLocker) *Locker {
	return &Locker{local: domain.NewKeyedLocker(), locks: locks}
}

func (l *Locker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlock, err := l.locks.LockKey(ctx, userID.String())
	if err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		unlock()
		unlockLocal()
	}, nil
}
