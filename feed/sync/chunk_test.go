package sync

import (
	"context"
	"testing"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/store/memtest"
)

func TestCommitterRotatesAtChunkBoundary(t *testing.T) {
	store := memtest.New(&feed.Metadata{Name: testFeedName})
	ctx := context.Background()

	c, err := newCommitter(ctx, store, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		rec := &record{id: "x"}
		if err := c.current().Merge(ctx, testFeedName, "g", rec); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
		if err := c.advance(ctx); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if err := c.finish(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if c.inChunk != 1 {
		t.Errorf("got inChunk %d after 3 merges with chunk size 2, want 1 (one residual)", c.inChunk)
	}
}

func TestCommitterAbortRollsBack(t *testing.T) {
	store := memtest.New(&feed.Metadata{Name: testFeedName})
	ctx := context.Background()

	c, err := newCommitter(ctx, store, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.current().Merge(ctx, testFeedName, "g", &record{id: "x"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := c.abort(ctx); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if n := store.GroupCount(testFeedName, "g"); n != 0 {
		t.Errorf("got %d rows after abort, want 0", n)
	}
}
