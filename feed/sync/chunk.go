package sync

import (
	"context"

	"github.com/chl3608/anchore-engine/feed/driver"
)

// committer applies the chunked-merge pattern: merge up to
// feed.RecordsPerChunk entities per transaction, commit, and open a fresh
// one, so memory and prepared-statement lifetime stay bounded regardless
// of the total number of records in a group.
//
// It mirrors the queue-until-threshold-then-flush shape of a microbatch
// inserter, but operates over the driver.Store/Tx session abstraction
// rather than a raw SQL batch, since a merge may itself invoke a
// RecordUpdateFunc that does its own sub-queries.
type committer struct {
	store     driver.Store
	chunkSize int

	tx      driver.Tx
	inChunk int
	total   int
}

func newCommitter(ctx context.Context, store driver.Store, chunkSize int) (*committer, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &committer{store: store, chunkSize: chunkSize, tx: tx}, nil
}

// current returns the transaction merges should currently be issued against.
func (c *committer) current() driver.Tx { return c.tx }

// advance records one merge and, if the chunk boundary was reached,
// commits the current transaction and opens a new one.
func (c *committer) advance(ctx context.Context) error {
	c.inChunk++
	c.total++
	if c.inChunk < c.chunkSize {
		return nil
	}
	return c.rotate(ctx)
}

// rotate commits the current transaction unconditionally and opens a new
// one, resetting the in-chunk counter. Used both at the chunk boundary and
// to flush a residual partial chunk at loop end.
func (c *committer) rotate(ctx context.Context) error {
	if err := c.tx.Commit(ctx); err != nil {
		return err
	}
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	c.tx = tx
	c.inChunk = 0
	return nil
}

// finish commits any residual partial chunk. Safe to call when inChunk is
// already 0: it still commits the (empty) transaction opened by the last
// rotate, matching the generic engine's "commit any residual" step.
func (c *committer) finish(ctx context.Context) error {
	return c.tx.Commit(ctx)
}

// abort rolls back the current transaction, discarding any un-committed
// merges in the current chunk.
func (c *committer) abort(ctx context.Context) error {
	return c.tx.Rollback(ctx)
}
