package distlock

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source is the manager-facing lock contract: acquiring a lock returns a
// context that's canceled when the lock is released (or lock acquisition
// fails), so callers pass that context through their unit of work and
// defer the returned CancelFunc to release.
type Source interface {
	TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc)
	Lock(ctx context.Context, key string) (context.Context, context.CancelFunc)
}

type pgSource struct {
	pool  *pgxpool.Pool
	retry time.Duration
}

// NewPostgresSource returns a Source backed by Postgres advisory locks, one
// fresh Locker per acquisition so that concurrent keys don't contend on a
// shared mutex.
func NewPostgresSource(pool *pgxpool.Pool, retry time.Duration) Source {
	return &pgSource{pool: pool, retry: retry}
}

func (s *pgSource) TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	l := NewPostgresLocker(s.pool, s.retry)
	ok, err := l.TryLock(ctx, key)
	if err != nil || !ok {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		return cctx, cancel
	}
	return lockedContext(ctx, l)
}

func (s *pgSource) Lock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	l := NewPostgresLocker(s.pool, s.retry)
	if err := l.Lock(ctx, key); err != nil {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		return cctx, cancel
	}
	return lockedContext(ctx, l)
}

func lockedContext(ctx context.Context, l Locker) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	return cctx, func() {
		cancel()
		l.Unlock()
	}
}

// localSource provides process-local locks for single-process or test use,
// with no database dependency.
type localSource struct {
	mu sync.RWMutex
	m  map[string]chan struct{}
}

// NewLocalSource returns a Source backed by in-process channels.
func NewLocalSource() Source {
	return &localSource{m: make(map[string]chan struct{})}
}

func (s *localSource) ch(key string) chan struct{} {
	s.mu.RLock()
	ch, ok := s.m[key]
	s.mu.RUnlock()
	if ok {
		return ch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok = s.m[key]; ok {
		return ch
	}
	ch = make(chan struct{}, 1)
	ch <- struct{}{}
	s.m[key] = ch
	return ch
}

func (s *localSource) TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	ch := s.ch(key)
	select {
	case <-ch:
		return lockedLocalContext(ctx, ch)
	default:
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		return cctx, cancel
	}
}

func (s *localSource) Lock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	ch := s.ch(key)
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		return cctx, cancel
	case <-ch:
		return lockedLocalContext(ctx, ch)
	}
}

func lockedLocalContext(ctx context.Context, ch chan struct{}) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	return cctx, func() {
		cancel()
		ch <- struct{}{}
	}
}
