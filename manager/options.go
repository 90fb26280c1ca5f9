package manager

import (
	"runtime"
	"time"

	"github.com/chl3608/anchore-engine/feed"
)

// Option specifies optional Manager configuration. Defaults apply where an
// option is not provided.
type Option func(m *Manager)

// WithBatchSize sets the max number of feeds synced in parallel during one
// Run call. Defaults to runtime.GOMAXPROCS(0).
func WithBatchSize(n int) Option {
	return func(m *Manager) { m.batchSize = n }
}

// WithInterval configures the interval at which Start reruns all feeds.
func WithInterval(interval time.Duration) Option {
	return func(m *Manager) { m.interval = interval }
}

// WithEnabled restricts Run to the named feeds. A nil slice (the default)
// runs every feed registered at construction time; an empty, non-nil slice
// runs none.
func WithEnabled(names []string) Option {
	return func(m *Manager) {
		if names == nil {
			return
		}
		enabled := make(map[string]struct{}, len(names))
		for _, n := range names {
			enabled[n] = struct{}{}
		}
		kept := make([]driver_feed, 0, len(m.feeds))
		for _, f := range m.feeds {
			if _, ok := enabled[f.feed.Name]; ok {
				kept = append(kept, f)
			}
		}
		m.feeds = kept
	}
}

// WithEventClient sets the catalog client feed events are submitted to.
func WithEventClient(c feed.EventClient) Option {
	return func(m *Manager) { m.client = c }
}

// WithFullFlush requests a full flush-and-resync on every managed feed's
// next Run.
func WithFullFlush(full bool) Option {
	return func(m *Manager) { m.fullFlush = full }
}

var defaultBatchSize = runtime.GOMAXPROCS(0)
