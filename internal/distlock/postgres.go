package distlock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tryAdvisoryLock = `SELECT pg_try_advisory_xact_lock($1);`

// pgLocker implements Locker using a Postgres transaction-scoped advisory
// lock (pg_try_advisory_xact_lock) held by a single transaction. Committing (Unlock) or the connection
// dying releases the lock server-side, so a crashed process can never
// wedge a key forever.
type pgLocker struct {
	pool  *pgxpool.Pool
	retry time.Duration

	mu     sync.Mutex
	locked bool
	tx     pgx.Tx
}

// NewPostgresLocker returns a Locker backed by pool, retrying acquisition
// every retry interval when Lock blocks.
func NewPostgresLocker(pool *pgxpool.Pool, retry time.Duration) Locker {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &pgLocker{pool: pool, retry: retry}
}

func crushKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *pgLocker) Lock(ctx context.Context, key string) error {
	if l.locked {
		return fmt.Errorf("distlock: Lock called while already held")
	}
	ok, err := l.TryLock(ctx, key)
	if err != nil {
		return fmt.Errorf("distlock: initial lock attempt failed: %w", err)
	}
	if ok {
		return nil
	}

	t := time.NewTicker(l.retry)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			ok, err := l.TryLock(ctx, key)
			if err != nil {
				return fmt.Errorf("distlock: lock attempt failed: %w", err)
			}
			if ok {
				return nil
			}
		}
	}
}

func (l *pgLocker) TryLock(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return false, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := tx.QueryRow(ctx, tryAdvisoryLock, crushKey(key)).Scan(&acquired); err != nil {
		tx.Rollback(ctx)
		return false, fmt.Errorf("distlock: advisory lock query failed: %w", err)
	}
	if !acquired {
		tx.Rollback(ctx)
		return false, nil
	}

	l.locked = true
	l.tx = tx
	return true, nil
}

func (l *pgLocker) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked || l.tx == nil {
		return fmt.Errorf("distlock: Unlock called without a held lock")
	}
	if err := l.tx.Commit(context.Background()); err != nil {
		return fmt.Errorf("distlock: failed to release advisory lock: %w", err)
	}
	l.locked = false
	l.tx = nil
	return nil
}
