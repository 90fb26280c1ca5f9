// Package sync implements the generic feed sync engine: given a feed's
// capability record (driver.Feed) and a download manifest, it walks the
// manifest's groups sequentially, merges records in bounded-memory chunks,
// and reports a per-group and per-feed result. A failed group never aborts
// the feed: failure is isolated to that group's result entry.
package sync

import (
	"context"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/feed/events"
	"github.com/chl3608/anchore-engine/internal/metrics"
)

// Option configures a Run call.
type Option func(*options)

type options struct {
	fullFlush   bool
	client      feed.EventClient
	operationID string
	chunkSize   int
}

// WithFullFlush requests that each group's persisted data be flushed before
// its records are re-merged.
func WithFullFlush(full bool) Option {
	return func(o *options) { o.fullFlush = full }
}

// WithEventClient sets the catalog client events are submitted to. A nil
// client (the default) causes events to be logged instead.
func WithEventClient(c feed.EventClient) Option {
	return func(o *options) { o.client = c }
}

// WithOperationID sets the operation id attached to every log line for
// correlation across a sync call.
func WithOperationID(id string) Option {
	return func(o *options) { o.operationID = id }
}

// WithChunkSize overrides feed.RecordsPerChunk. Intended for tests that
// want to exercise the chunk-boundary commit without 500 records.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// Run executes f's sync against repo's manifest, merging only the
// GroupDownloadResults whose Feed matches f.Name.
func Run(ctx context.Context, store driver.Store, f driver.Feed, repo driver.LocalFeedDataRepo, opts ...Option) feed.Result {
	o := &options{chunkSize: feed.RecordsPerChunk}
	for _, opt := range opts {
		opt(o)
	}
	ctx = zlog.ContextWithValues(ctx, "feed", f.Name, "operation_id", o.operationID)

	start := time.Now()
	result := feed.Result{Feed: f.Name}

	failed := 0
	for _, gdr := range repo.Manifest.Results {
		if !strings.EqualFold(gdr.Feed, f.Name) {
			continue
		}
		gr := syncGroup(ctx, store, f, repo, gdr, o)
		result.Groups = append(result.Groups, gr)
		if gr.Status != feed.StatusSuccess {
			failed++
		}
	}

	if err := finalizeTimestamps(ctx, store, f.Name); err != nil {
		zlog.Error(ctx).Err(err).Msg("failed to update feed timestamps")
		result.Status = feed.StatusFailure
		result.TotalTimeSeconds = time.Since(start).Seconds()
		return result
	}

	if failed == 0 {
		result.Status = feed.StatusSuccess
	} else {
		result.Status = feed.StatusFailure
	}
	result.TotalTimeSeconds = time.Since(start).Seconds()
	return result
}

// finalizeTimestamps advances the feed's last_update and last_full_sync
// timestamps together in one transaction, unconditionally -- a non-full
// sync still means the feed's data is current as of now, so both
// timestamps always move forward together, matching the original
// implementation's _update_last_full_sync_timestamp.
func finalizeTimestamps(ctx context.Context, store driver.Store, feedName string) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.SetFeedTimestamps(ctx, feedName, time.Now().UTC()); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// syncGroup runs the chunked merge for one group and never lets an error
// escape: any failure becomes a feed.GroupResult with Status failure, and
// the caller proceeds to the next group.
func syncGroup(ctx context.Context, store driver.Store, f driver.Feed, repo driver.LocalFeedDataRepo, gdr feed.GroupDownloadResult, o *options) feed.GroupResult {
	ctx = zlog.ContextWithValues(ctx, "group", gdr.Group)
	events.Notify(ctx, feed.Event{Kind: feed.EventGroupSyncStarted, Feed: f.Name, Group: gdr.Group}, o.client)

	syncStart := time.Now()
	gr, err := doSyncGroup(ctx, store, f, repo, gdr, o)
	gr.TotalTimeSeconds = time.Since(syncStart).Seconds()
	metrics.GroupSyncDuration.WithLabelValues(f.Name, gdr.Group).Observe(gr.TotalTimeSeconds)
	metrics.UpdatedRecordsTotal.WithLabelValues(f.Name, gdr.Group).Add(float64(gr.UpdatedRecordCount))

	if err != nil {
		zlog.Error(ctx).Err(err).Msg("group sync failed")
		gr.Status = feed.StatusFailure
		metrics.GroupSyncTotal.WithLabelValues(f.Name, gdr.Group, string(feed.StatusFailure)).Inc()
		events.Notify(ctx, feed.Event{Kind: feed.EventGroupSyncFailed, Feed: f.Name, Group: gdr.Group, Error: err.Error()}, o.client)
		return gr
	}
	// doSyncGroup may report a failure result without an error (e.g. an
	// unknown group): that still completes normally, it just didn't
	// succeed, so it gets a Completed event rather than a Failed one.
	if gr.Status == "" {
		gr.Status = feed.StatusSuccess
	}
	metrics.GroupSyncTotal.WithLabelValues(f.Name, gdr.Group, string(gr.Status)).Inc()
	events.Notify(ctx, feed.Event{Kind: feed.EventGroupSyncCompleted, Feed: f.Name, Group: gdr.Group, Result: &gr}, o.client)
	return gr
}

func doSyncGroup(ctx context.Context, store driver.Store, f driver.Feed, repo driver.LocalFeedDataRepo, gdr feed.GroupDownloadResult, o *options) (feed.GroupResult, error) {
	gr := feed.GroupResult{Group: gdr.Group}

	// Confirm the group is known before opening any transaction. The
	// current source emits FeedGroupSyncStarted before calling
	// _sync_group regardless of whether the group turns out to be known
	// -- the caller already did that -- but an unknown group must open no
	// transaction at all, so this check reads the feed metadata through
	// store.FeedMetadata rather than starting a Tx.
	md, err := store.FeedMetadata(ctx, f.Name)
	if err != nil {
		return gr, err
	}
	known := false
	for _, g := range md.Groups {
		if g.Name == gdr.Group {
			known = true
			break
		}
	}
	if !known {
		zlog.Warn(ctx).Msg("group not present in metadata, skipping")
		gr.Status = feed.StatusFailure
		return gr, nil
	}

	mapper, err := f.Mapper.MapperFor(f.Name, gdr.Group)
	if err != nil {
		return gr, err
	}

	started := gdr.Started.UTC()
	c, err := newCommitter(ctx, store, o.chunkSize)
	if err != nil {
		return gr, err
	}

	if o.fullFlush {
		if err := f.Flush(ctx, c.current(), f.Name, gdr.Group); err != nil {
			c.abort(ctx)
			return gr, err
		}
	}

	updated := 0
	fromIndex := 0
	for {
		raws, err := repo.Reader.Read(ctx, f.Name, gdr.Group, fromIndex)
		if err != nil {
			c.abort(ctx)
			return gr, err
		}
		if len(raws) == 0 {
			break
		}
		for _, raw := range raws {
			entity, err := mapper.Map(raw)
			if err != nil {
				c.abort(ctx)
				return gr, &feed.Error{Op: "sync.syncGroup", Kind: feed.ErrMapper, Inner: err}
			}
			if _, err := f.UpdateRecord(ctx, c.current(), gdr.Group, entity); err != nil {
				c.abort(ctx)
				return gr, err
			}
			updated++
			if err := c.advance(ctx); err != nil {
				return gr, err
			}
		}
		fromIndex += len(raws)
		zlog.Debug(ctx).
			Int("updated", updated).
			Int("total", gdr.TotalRecords).
			Msg("sync progress")
	}

	if err := c.finish(ctx); err != nil {
		return gr, err
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return gr, err
	}
	if err := tx.SetGroupLastSync(ctx, f.Name, gdr.Group, started); err != nil {
		tx.Rollback(ctx)
		return gr, err
	}
	if err := tx.Commit(ctx); err != nil {
		return gr, err
	}

	gr.UpdatedRecordCount = updated
	return gr, nil
}
