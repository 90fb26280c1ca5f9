package sync

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/store/memtest"
)

const testFeedName = "generic"

type record struct{ id string }

func (r *record) PrimaryKey() string { return r.id }

type passthroughMapper struct{}

func (passthroughMapper) Map(raw []byte) (interface{}, error) {
	return &record{id: string(raw)}, nil
}

func testFeed() driver.Feed {
	return driver.Feed{
		Name: testFeedName,
		Mapper: driver.SingleTypeMapperFactory{
			FeedName: testFeedName,
			New:      func(string, string, string) driver.Mapper { return passthroughMapper{} },
		},
		UpdateRecord: func(ctx context.Context, tx driver.Tx, groupName string, entity interface{}) (bool, error) {
			return true, tx.Merge(ctx, testFeedName, groupName, entity)
		},
		Flush:       driver.DefaultFlush(nil),
		RecordCount: func(ctx context.Context, store driver.Store, feedName, groupName string) (int, error) { return store.RecordCount(ctx, feedName, groupName) },
	}
}

type fakeClient struct {
	submitted []feed.Event
}

func (f *fakeClient) AddEvent(ctx context.Context, event feed.Event) error {
	f.submitted = append(f.submitted, event)
	return nil
}

type sliceReader map[string][][]byte

func (r sliceReader) Read(ctx context.Context, feedName, groupName string, fromIndex int) ([][]byte, error) {
	recs := r[groupName]
	if fromIndex >= len(recs) {
		return nil, nil
	}
	return recs[fromIndex:], nil
}

func newRecords(n int) [][]byte {
	recs := make([][]byte, n)
	for i := range recs {
		recs[i] = []byte("rec-" + strconv.Itoa(i))
	}
	return recs
}

func TestEmptyManifestYieldsSuccessNoGroups(t *testing.T) {
	store := memtest.New(&feed.Metadata{Name: testFeedName})
	repo := driver.LocalFeedDataRepo{Reader: sliceReader{}}

	res := Run(context.Background(), store, testFeed(), repo)
	if res.Status != feed.StatusSuccess {
		t.Errorf("got status %v, want success", res.Status)
	}
	if len(res.Groups) != 0 {
		t.Errorf("got %d groups, want 0", len(res.Groups))
	}
}

func TestExactlyOneChunkBoundary(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   testFeedName,
		Groups: []feed.GroupMetadata{{FeedName: testFeedName, Name: "g"}},
	})
	reader := sliceReader{"g": newRecords(feed.RecordsPerChunk)}
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: testFeedName, Group: "g", Started: time.Now().UTC(), TotalRecords: feed.RecordsPerChunk},
		}},
		Reader: reader,
	}

	res := Run(context.Background(), store, testFeed(), repo, WithChunkSize(feed.RecordsPerChunk))
	if res.Status != feed.StatusSuccess {
		t.Fatalf("got status %v, want success: %+v", res.Status, res)
	}
	if got := res.Groups[0].UpdatedRecordCount; got != feed.RecordsPerChunk {
		t.Errorf("got updated_record_count %d, want %d", got, feed.RecordsPerChunk)
	}
	if got := store.GroupCount(testFeedName, "g"); got != feed.RecordsPerChunk {
		t.Errorf("got %d persisted rows, want %d", got, feed.RecordsPerChunk)
	}
	if got := res.Groups[0].UpdatedImageCount; got != 0 {
		t.Errorf("got updated_image_count %d, want 0 (unset, no image-count source exists)", got)
	}
}

func TestSyncTwiceIsIdempotent(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   testFeedName,
		Groups: []feed.GroupMetadata{{FeedName: testFeedName, Name: "g"}},
	})
	reader := sliceReader{"g": newRecords(10)}
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: testFeedName, Group: "g", Started: time.Now().UTC(), TotalRecords: 10},
		}},
		Reader: reader,
	}

	f := testFeed()
	Run(context.Background(), store, f, repo, WithChunkSize(4))
	firstCount := store.GroupCount(testFeedName, "g")

	repo.Manifest.Results[0].Started = time.Now().UTC().Add(time.Hour)
	res := Run(context.Background(), store, f, repo, WithChunkSize(4))
	if res.Status != feed.StatusSuccess {
		t.Fatalf("second sync failed: %+v", res)
	}
	if got := store.GroupCount(testFeedName, "g"); got != firstCount {
		t.Errorf("got %d rows after re-sync, want %d (idempotent merge, no duplicates)", got, firstCount)
	}
}

func TestRunAlwaysAdvancesBothFeedTimestamps(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   testFeedName,
		Groups: []feed.GroupMetadata{{FeedName: testFeedName, Name: "g"}},
	})
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: testFeedName, Group: "g", Started: time.Now().UTC(), TotalRecords: 1},
		}},
		Reader: sliceReader{"g": newRecords(1)},
	}

	// WithFullFlush is deliberately left at its false default: last_full_sync
	// must still advance, since the original always updates both timestamps
	// together regardless of whether the run was a full flush.
	res := Run(context.Background(), store, testFeed(), repo)
	if res.Status != feed.StatusSuccess {
		t.Fatalf("got status %v, want success", res.Status)
	}

	md, err := store.FeedMetadata(context.Background(), testFeedName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.LastUpdate.IsZero() {
		t.Error("last_update must advance on a non-full sync")
	}
	if md.LastFullSync.IsZero() {
		t.Error("last_full_sync must also advance on a non-full sync")
	}
	if !md.LastUpdate.Equal(md.LastFullSync) {
		t.Errorf("got last_update %v, last_full_sync %v, want equal", md.LastUpdate, md.LastFullSync)
	}
}

func TestSuccessfulGroupAdvancesLastSyncToDownloadStarted(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   testFeedName,
		Groups: []feed.GroupMetadata{{FeedName: testFeedName, Name: "g"}},
	})
	reader := sliceReader{"g": newRecords(1)}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: testFeedName, Group: "g", Started: started, TotalRecords: 1},
		}},
		Reader: reader,
	}

	Run(context.Background(), store, testFeed(), repo)

	md, err := store.FeedMetadata(context.Background(), testFeedName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Groups[0].LastSync == nil || !md.Groups[0].LastSync.Equal(started) {
		t.Errorf("got last_sync %v, want %v", md.Groups[0].LastSync, started)
	}
}

func TestFailedGroupLeavesLastSyncUnchanged(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   testFeedName,
		Groups: []feed.GroupMetadata{{FeedName: testFeedName, Name: "g"}},
	})
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: testFeedName, Group: "missing-in-metadata-group", Started: time.Now().UTC(), TotalRecords: 1},
		}},
		Reader: sliceReader{},
	}

	client := &fakeClient{}
	res := Run(context.Background(), store, testFeed(), repo, WithEventClient(client))
	if res.Groups[0].Status != feed.StatusFailure {
		t.Fatalf("expected group failure, got %+v", res.Groups[0])
	}

	md, err := store.FeedMetadata(context.Background(), testFeedName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Groups[0].LastSync != nil {
		t.Errorf("last_sync must remain unchanged on group failure, got %v", md.Groups[0].LastSync)
	}

	// An unknown group is a failure result, not a raised error: it
	// completes normally (FeedGroupSyncCompleted), it just didn't succeed.
	for _, ev := range client.submitted {
		if ev.Kind == feed.EventGroupSyncFailed {
			t.Errorf("unknown group must not emit FeedGroupSyncFailed, got %+v", ev)
		}
	}
	var completed *feed.Event
	for i, ev := range client.submitted {
		if ev.Kind == feed.EventGroupSyncCompleted {
			completed = &client.submitted[i]
		}
	}
	if completed == nil {
		t.Fatal("expected a FeedGroupSyncCompleted event for the unknown group")
	}
	if completed.Result == nil || completed.Result.Status != feed.StatusFailure {
		t.Errorf("got completed result %+v, want Status=failure", completed.Result)
	}
}
