package pg

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"
)

// AdvisoryLocker serializes work on a key across every process sharing the
// database. Each held lock pins one pooled connection until it is released,
// so at most half of the pool can be pinned at once; the rest stays free for
// the queries run while the locks are held.
type AdvisoryLocker struct {
	pool      *pgxpool.Pool
	namespace string
	slots     *semaphore.Weighted
}

// NewAdvisoryLocker creates a locker. Keys are prefixed with namespace before
// hashing so unrelated lock users do not collide.
// Panics if the pool allows fewer than two connections.
func NewAdvisoryLocker(pool *pgxpool.Pool, namespace string) *AdvisoryLocker {
	maxConns := int64(pool.Config().MaxConns)
	if maxConns < 2 {
		panic("pg: advisory locks need a pool of at least 2 connections")
	}
	return &AdvisoryLocker{
		pool:      pool,
		namespace: namespace,
		slots:     semaphore.NewWeighted(maxConns / 2),
	}
}

// LockKey blocks until the lock is held or ctx is done. The returned func
// releases it and may be called more than once.
func (l *AdvisoryLocker) LockKey(ctx context.Context, key string) (func(), error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.slots.Release(1)
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	lockKey := l.namespace + ":" + key
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", lockKey); err != nil {
		// The lock state of the session is unknown; drop the connection.
		conn.Conn().Close(context.WithoutCancel(ctx))
		conn.Release()
		l.slots.Release(1)
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock(hashtext($1))", lockKey); err != nil {
				conn.Conn().Close(context.WithoutCancel(ctx))
			}
			conn.Release()
			l.slots.Release(1)
		})
	}, nil
}
