package vulndb

import (
	"context"
	"testing"
	"time"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/feed/sync"
	"github.com/chl3608/anchore-engine/store/memtest"
)

type staticReader map[string][][]byte

func (r staticReader) Read(ctx context.Context, feedName, groupName string, fromIndex int) ([][]byte, error) {
	recs := r[groupName]
	if fromIndex >= len(recs) {
		return nil, nil
	}
	return recs[fromIndex:], nil
}

func TestSyncMergesRecords(t *testing.T) {
	store := memtest.New(&feed.Metadata{
		Name:   FeedName,
		Groups: []feed.GroupMetadata{{FeedName: FeedName, Name: "adobe"}},
	})
	reader := staticReader{
		"adobe": {[]byte(`{"id":"VULNDB-1","vendor_name":"adobe"}`)},
	}
	repo := driver.LocalFeedDataRepo{
		Manifest: feed.DownloadResult{Results: []feed.GroupDownloadResult{
			{Feed: FeedName, Group: "adobe", Started: time.Now().UTC(), TotalRecords: 1},
		}},
		Reader: reader,
	}

	res := sync.Run(context.Background(), store, Build(nil), repo)
	if res.Status != feed.StatusSuccess {
		t.Fatalf("got status %v, want success: %+v", res.Status, res)
	}
	if store.GroupCount(FeedName, "adobe") != 1 {
		t.Errorf("expected 1 persisted row, got %d", store.GroupCount(FeedName, "adobe"))
	}
}
