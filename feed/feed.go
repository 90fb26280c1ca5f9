package feed

import "time"

// RecordsPerChunk bounds the number of merges a sync performs before it
// commits and opens a fresh transaction. Memory use during a group sync is
// O(RecordsPerChunk), not O(total records).
const RecordsPerChunk = 500

// Metadata is the persisted bookkeeping record for a feed: its name and the
// high-water timestamps of its most recent syncs.
//
// A feed instance refuses to exist unless its Metadata row is already
// present; bootstrapping that row is the job of an external metadata-sync
// step, not this package.
type Metadata struct {
	Name         string
	LastUpdate   time.Time
	LastFullSync time.Time
	Groups       []GroupMetadata
}

// GroupMetadata is the persisted bookkeeping record for one group of a feed.
//
// LastSync is monotonically non-decreasing across successful syncs of this
// group: it is only ever advanced to a download's Started timestamp, and
// only after every record from that download has been merged and committed.
type GroupMetadata struct {
	FeedName string
	Name     string
	LastSync *time.Time
}

// DownloadResult is the manifest produced by the external downloader and
// consumed by a sync call.
type DownloadResult struct {
	Results []GroupDownloadResult
}

// GroupDownloadResult describes one group's worth of downloaded data ready
// to be merged.
type GroupDownloadResult struct {
	Feed         string
	Group        string
	Started      time.Time // UTC; becomes the group's new LastSync on success.
	TotalRecords int
}

// FixedIn identifies a package and version pair in which a vulnerability is
// fixed.
type FixedIn struct {
	Name             string
	EpochlessVersion string
	Version          string
}

// Vulnerability is the mapped entity produced by the vulnerabilities feed's
// Mapper. Its primary key is (NamespaceName, ID).
type Vulnerability struct {
	ID            string
	NamespaceName string
	Description   string
	Severity      string
	Link          string
	FixedIn       []FixedIn
	VulnerableIn  []FixedIn
}

// Status is the terminal state of a feed or group sync.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// GroupResult is the per-group entry in a Result. Field names and JSON tags
// match the stable surface callers already depend on.
type GroupResult struct {
	Group               string  `json:"group"`
	Status              Status  `json:"status"`
	TotalTimeSeconds    float64 `json:"total_time_seconds"`
	UpdatedRecordCount  int     `json:"updated_record_count"`
	UpdatedImageCount   int     `json:"updated_image_count"`
}

// Result is the value returned by a feed sync call.
type Result struct {
	Feed             string        `json:"feed"`
	Status           Status        `json:"status"`
	TotalTimeSeconds float64       `json:"total_time_seconds"`
	Groups           []GroupResult `json:"groups"`
}
