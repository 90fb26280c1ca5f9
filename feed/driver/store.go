package driver

import (
	"context"
	"time"

	"github.com/chl3608/anchore-engine/feed"
)

// Store is the persistence layer's session factory: every sync call begins
// by asking for a Tx, and the chunked-commit loop asks for a fresh one
// after each chunk boundary.
type Store interface {
	// Begin starts a new transaction scoped to one chunk of work.
	Begin(ctx context.Context) (Tx, error)

	// FeedMetadata loads the Metadata row for a feed. Returns an
	// *feed.Error with Kind feed.ErrBootstrap if no row exists.
	FeedMetadata(ctx context.Context, feedName string) (*feed.Metadata, error)

	// RecordCount returns the number of persisted primary entities for
	// (feedName, groupName).
	RecordCount(ctx context.Context, feedName, groupName string) (int, error)
}

// Tx is one unit of transactional work: some number of merges, possibly a
// flush, and exactly one commit or rollback.
type Tx interface {
	// Merge upserts entity by its primary key within groupName.
	Merge(ctx context.Context, feedName, groupName string, entity interface{}) error

	// Get looks up the existing entity with the given primary key, if
	// any. Implementations return (nil, nil) on a not-found lookup: per
	// the spec, any lookup error is treated as "no existing record".
	Get(ctx context.Context, feedName, groupName, id string) (interface{}, error)

	// GroupMetadata locates the GroupMetadata row by name. Returns
	// (nil, nil) if the group is not registered.
	GroupMetadata(ctx context.Context, feedName, groupName string) (*feed.GroupMetadata, error)

	// SetGroupLastSync advances a group's LastSync timestamp.
	SetGroupLastSync(ctx context.Context, feedName, groupName string, ts time.Time) error

	// SetFeedTimestamps unconditionally updates a feed's LastUpdate and
	// LastFullSync to ts in one statement, regardless of whether the run
	// that triggered it was a full flush.
	SetFeedTimestamps(ctx context.Context, feedName string, ts time.Time) error

	// DeleteGroup removes every primary entity row owned by
	// (feedName, groupName). It participates in the caller's transaction
	// and does not commit.
	DeleteGroup(ctx context.Context, feedName, groupName string) error

	// Flush participates in the caller's transaction; see FlushFunc.
	Flush(ctx context.Context) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
