package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

// tx wraps one pgx.Tx. Every method maps directly onto a single statement
// against the table registered for the feed being touched; there is no
// client-side batching, since the chunk committer already bounds how many
// Merge calls happen per transaction (feed/sync/chunk.go).
type tx struct {
	pgtx pgx.Tx
}

var _ driver.Tx = (*tx)(nil)

func (t *tx) Merge(ctx context.Context, feedName, groupName string, entity interface{}) error {
	defer observe("merge", time.Now())
	tbl, ok := tableFor(feedName)
	if !ok {
		return &feed.Error{Op: "postgres.tx.Merge", Kind: feed.ErrPersistence, Message: "no table registered for feed " + feedName}
	}
	sql, args, err := tbl.upsertSQL(feedName, groupName, entity)
	if err != nil {
		return &feed.Error{Op: "postgres.tx.Merge", Kind: feed.ErrPersistence, Inner: err}
	}
	if _, err := t.pgtx.Exec(ctx, sql, args...); err != nil {
		return &feed.Error{Op: "postgres.tx.Merge", Kind: feed.ErrPersistence, Inner: err}
	}
	return nil
}

func (t *tx) Get(ctx context.Context, feedName, groupName, id string) (interface{}, error) {
	defer observe("get", time.Now())
	tbl, ok := tableFor(feedName)
	if !ok {
		return nil, &feed.Error{Op: "postgres.tx.Get", Kind: feed.ErrPersistence, Message: "no table registered for feed " + feedName}
	}
	sql, args, err := tbl.selectSQL(feedName, groupName, id)
	if err != nil {
		return nil, err
	}
	rows, err := t.pgtx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, err
	}
	return tbl.fromRow(row)
}

// scanRow collects one pgx.Rows row into a column-name-keyed map, the
// common shape every table's fromRow expects.
func scanRow(rows pgx.Rows) (map[string]interface{}, error) {
	fds := rows.FieldDescriptions()
	vals, err := rows.Values()
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{}, len(fds))
	for i, fd := range fds {
		m[string(fd.Name)] = vals[i]
	}
	return m, nil
}

const txGroupMetadataQuery = `
SELECT name, last_sync FROM feed_group_metadata WHERE feed_name = $1 AND name = $2;`

func (t *tx) GroupMetadata(ctx context.Context, feedName, groupName string) (*feed.GroupMetadata, error) {
	row := t.pgtx.QueryRow(ctx, txGroupMetadataQuery, feedName, groupName)
	g := &feed.GroupMetadata{FeedName: feedName}
	var lastSync *time.Time
	if err := row.Scan(&g.Name, &lastSync); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	g.LastSync = lastSync
	return g, nil
}

const setGroupLastSyncSQL = `
UPDATE feed_group_metadata SET last_sync = $3 WHERE feed_name = $1 AND name = $2;`

func (t *tx) SetGroupLastSync(ctx context.Context, feedName, groupName string, ts time.Time) error {
	tag, err := t.pgtx.Exec(ctx, setGroupLastSyncSQL, feedName, groupName, ts)
	if err != nil {
		return &feed.Error{Op: "postgres.tx.SetGroupLastSync", Kind: feed.ErrPersistence, Inner: err}
	}
	if tag.RowsAffected() == 0 {
		return &feed.Error{Op: "postgres.tx.SetGroupLastSync", Kind: feed.ErrBootstrap, Message: "unknown group " + groupName}
	}
	return nil
}

const setFeedTimestampsSQL = `
UPDATE feed_metadata SET last_update = $2, last_full_sync = $2 WHERE name = $1;`

func (t *tx) SetFeedTimestamps(ctx context.Context, feedName string, ts time.Time) error {
	if _, err := t.pgtx.Exec(ctx, setFeedTimestampsSQL, feedName, ts); err != nil {
		return &feed.Error{Op: "postgres.tx.SetFeedTimestamps", Kind: feed.ErrPersistence, Inner: err}
	}
	return nil
}

func (t *tx) DeleteGroup(ctx context.Context, feedName, groupName string) error {
	defer observe("delete_group", time.Now())
	tbl, ok := tableFor(feedName)
	if !ok {
		return &feed.Error{Op: "postgres.tx.DeleteGroup", Kind: feed.ErrPersistence, Message: "no table registered for feed " + feedName}
	}
	sql, args, err := tbl.deleteGroupSQL(feedName, groupName)
	if err != nil {
		return err
	}
	if _, err := t.pgtx.Exec(ctx, sql, args...); err != nil {
		return &feed.Error{Op: "postgres.tx.DeleteGroup", Kind: feed.ErrPersistence, Inner: err}
	}
	return nil
}

// Flush is a no-op: every Merge and DeleteGroup above already executes
// against the live transaction, so there is no client-side buffer to push
// early. It exists to satisfy driver.Tx so callers (e.g.
// driver.DefaultFlush) don't need a Postgres-specific branch.
func (t *tx) Flush(ctx context.Context) error {
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	defer observe("commit", time.Now())
	return t.pgtx.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	defer observe("rollback", time.Now())
	return t.pgtx.Rollback(ctx)
}
