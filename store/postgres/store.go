package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quay/zlog"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

// Store is the Postgres-backed driver.Store. One Store is shared by every
// feed; which table a given (feedName, groupName) pair resolves to is
// decided by tableFor.
type Store struct {
	pool *pgxpool.Pool
}

var _ driver.Store = (*Store)(nil)

// NewStore returns a Store using pool for every query.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin starts a transaction scoped to one chunk of work, per the
// committer in feed/sync/chunk.go.
func (s *Store) Begin(ctx context.Context) (driver.Tx, error) {
	defer observe("begin", time.Now())
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &feed.Error{Op: "postgres.Store.Begin", Kind: feed.ErrPersistence, Inner: err}
	}
	return &tx{pgtx: pgtx}, nil
}

const feedMetadataQuery = `
SELECT name, last_update, last_full_sync FROM feed_metadata WHERE name = $1;`

const groupMetadataQuery = `
SELECT name, last_sync FROM feed_group_metadata WHERE feed_name = $1 ORDER BY name;`

// FeedMetadata loads a feed's row plus its groups. A missing feed row is
// feed.ErrBootstrap, matching registry.Builder's contract.
func (s *Store) FeedMetadata(ctx context.Context, feedName string) (*feed.Metadata, error) {
	defer observe("feed_metadata", time.Now())

	m := &feed.Metadata{Name: feedName}
	row := s.pool.QueryRow(ctx, feedMetadataQuery, feedName)
	var lastUpdate, lastFullSync *time.Time
	if err := row.Scan(&m.Name, &lastUpdate, &lastFullSync); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &feed.Error{Op: "postgres.Store.FeedMetadata", Kind: feed.ErrBootstrap, Message: "no metadata for feed " + feedName}
		}
		return nil, &feed.Error{Op: "postgres.Store.FeedMetadata", Kind: feed.ErrPersistence, Inner: err}
	}
	if lastUpdate != nil {
		m.LastUpdate = *lastUpdate
	}
	if lastFullSync != nil {
		m.LastFullSync = *lastFullSync
	}

	rows, err := s.pool.Query(ctx, groupMetadataQuery, feedName)
	if err != nil {
		return nil, &feed.Error{Op: "postgres.Store.FeedMetadata", Kind: feed.ErrPersistence, Inner: err}
	}
	defer rows.Close()
	seen := make(map[string]int)
	for rows.Next() {
		var g feed.GroupMetadata
		var lastSync *time.Time
		if err := rows.Scan(&g.Name, &lastSync); err != nil {
			return nil, &feed.Error{Op: "postgres.Store.FeedMetadata", Kind: feed.ErrPersistence, Inner: err}
		}
		g.FeedName = feedName
		g.LastSync = lastSync
		if seen[g.Name] > 0 {
			// The original source's group_by_name logs rather than fails
			// on a duplicate group row; reproduced here, not invented.
			zlog.Warn(ctx).Str("feed", feedName).Str("group", g.Name).Msg("duplicate feed_group_metadata row")
		}
		seen[g.Name]++
		m.Groups = append(m.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, &feed.Error{Op: "postgres.Store.FeedMetadata", Kind: feed.ErrPersistence, Inner: err}
	}
	return m, nil
}

// RecordCount returns the number of persisted primary rows for
// (feedName, groupName), dispatching to the table registered for feedName.
func (s *Store) RecordCount(ctx context.Context, feedName, groupName string) (int, error) {
	defer observe("record_count", time.Now())
	t, ok := tableFor(feedName)
	if !ok {
		err := &feed.Error{Op: "postgres.Store.RecordCount", Kind: feed.ErrPersistence, Message: "no table registered for feed " + feedName}
		zlog.Error(ctx).Err(err).Str("feed", feedName).Str("group", groupName).Msg("record count failed")
		return 0, err
	}
	sql, args, err := t.countSQL(feedName, groupName)
	if err != nil {
		wrapped := &feed.Error{Op: "postgres.Store.RecordCount", Kind: feed.ErrPersistence, Inner: err}
		zlog.Error(ctx).Err(wrapped).Str("feed", feedName).Str("group", groupName).Msg("record count failed")
		return 0, wrapped
	}
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		wrapped := &feed.Error{Op: "postgres.Store.RecordCount", Kind: feed.ErrPersistence, Inner: err}
		zlog.Error(ctx).Err(wrapped).Str("feed", feedName).Str("group", groupName).Msg("record count failed")
		return 0, wrapped
	}
	return n, nil
}
