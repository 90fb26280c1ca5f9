// Package manager orchestrates syncing multiple feeds concurrently: it
// bounds in-flight syncs with a semaphore, takes a distributed lock per
// feed so two manager processes never sync the same feed at once, and
// isolates one feed's failure from the others -- mirroring the sync
// engine's own per-group isolation one level up.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quay/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/feed/sync"
	"github.com/chl3608/anchore-engine/feed/vulnerability"
	"github.com/chl3608/anchore-engine/internal/distlock"
	"github.com/chl3608/anchore-engine/internal/metrics"
	registryfeed "github.com/chl3608/anchore-engine/registry/feed"
)

// runFunc is the sync entry point for one feed. Every feed uses
// sync.Run except vulnerabilities, which wraps it to install the
// group-name cache (see vulnerability.Sync).
type runFunc func(ctx context.Context, store driver.Store, f driver.Feed, repo driver.LocalFeedDataRepo, opts ...sync.Option) feed.Result

type driver_feed struct {
	feed driver.Feed
	run  runFunc
}

func defaultRunFor(name string) runFunc {
	if name == vulnerability.FeedName {
		return vulnerability.Sync
	}
	return sync.Run
}

// RepoProvider returns the downloader-facing manifest and reader for one
// feed's sync attempt.
type RepoProvider func(ctx context.Context, feedName string) (driver.LocalFeedDataRepo, error)

// Manager oversees construction and invocation of feed syncs. It may be
// used one-shot (Run) or in a background loop (Start).
type Manager struct {
	store     driver.Store
	locks     distlock.Source
	client    feed.EventClient
	repos     RepoProvider
	feeds     []driver_feed
	batchSize int
	interval  time.Duration
	fullFlush bool
}

// NewManager builds every feed registered in the feed registry and returns
// a Manager ready to have Run or Start called. Construction fails fast if
// any registered feed fails to bootstrap (e.g. missing FeedMetadata).
func NewManager(ctx context.Context, store driver.Store, locks distlock.Source, repos RepoProvider, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:     store,
		locks:     locks,
		repos:     repos,
		batchSize: defaultBatchSize,
	}

	for _, name := range registryfeed.Registered() {
		f, err := registryfeed.Build(ctx, name, store)
		if err != nil {
			return nil, fmt.Errorf("manager: failed to build feed %q: %w", name, err)
		}
		m.feeds = append(m.feeds, driver_feed{feed: f, run: defaultRunFor(name)})
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start runs every configured feed at the given interval until ctx is
// canceled. Start must only be called once per Manager.
func (m *Manager) Start(ctx context.Context) error {
	if m.interval == 0 {
		return errors.New("manager: Start requires WithInterval to be set")
	}

	zlog.Info(ctx).Msg("starting initial feed sync")
	if err := m.Run(ctx); err != nil {
		zlog.Error(ctx).Err(err).Msg("errors during initial feed sync")
	}

	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := m.Run(ctx); err != nil {
				zlog.Error(ctx).Err(err).Msg("errors during scheduled feed sync")
			}
		}
	}
}

// Run syncs every configured feed, at most batchSize concurrently. A feed
// that fails to acquire its lock (another process is already syncing it)
// is skipped without an error. One feed's failure never stops the others:
// Run returns an error when one or more feeds failed to load their download
// manifest or reported a failure result.
func (m *Manager) Run(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ManagerRunDuration.Observe(time.Since(start).Seconds()) }()

	sem := semaphore.NewWeighted(int64(m.batchSize))
	errCh := make(chan error, len(m.feeds))

	for i := range m.feeds {
		if err := sem.Acquire(ctx, 1); err != nil {
			zlog.Error(ctx).Err(err).Msg("semaphore acquire failed, ending run")
			break
		}
		go func(df driver_feed) {
			defer sem.Release(1)
			if err := m.runOne(ctx, df); err != nil {
				errCh <- err
			}
		}(m.feeds[i])
	}

	// Wait for every in-flight goroutine to finish.
	sem.Acquire(context.Background(), int64(m.batchSize))
	close(errCh)

	var b strings.Builder
	n := 0
	for err := range errCh {
		if n == 0 {
			b.WriteString("manager: errors during run:\n")
		}
		fmt.Fprintf(&b, "\t%v\n", err)
		n++
	}
	if n > 0 {
		return errors.New(b.String())
	}
	return nil
}

func (m *Manager) runOne(ctx context.Context, df driver_feed) error {
	name := df.feed.Name
	lockCtx, done := m.locks.TryLock(ctx, name)
	defer done()
	if err := lockCtx.Err(); err != nil {
		zlog.Debug(ctx).Str("feed", name).Err(err).Msg("could not acquire feed lock, skipping this run")
		return nil
	}

	repo, err := m.repos(lockCtx, name)
	if err != nil {
		return fmt.Errorf("%s: failed to load download manifest: %w", name, err)
	}

	res := df.run(lockCtx, m.store, df.feed,
		repo,
		sync.WithFullFlush(m.fullFlush),
		sync.WithEventClient(m.client),
	)
	if res.Status != feed.StatusSuccess {
		return fmt.Errorf("%s: sync completed with failures", name)
	}
	return nil
}
