// Package vulndb implements the vulndb feed: VulnDB CPE records, groups
// keyed by vendor namespace. No change-equivalence logic -- every merged
// record is an unconditional upsert.
package vulndb

import (
	"context"
	"encoding/json"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

// FeedName is the registered name of this feed.
const FeedName = "vulndb"

// Entity is the mapped entity: a VulnDBCpe record joined with its
// VulnDBMetadata row. Primary key is (NamespaceName, ID).
type Entity struct {
	ID            string
	NamespaceName string
	VendorName    string
	CPEs          []string
	Description   string
}

// PrimaryKey implements the store's identifiable interface.
func (e *Entity) PrimaryKey() string { return e.ID }

type mapper struct{ feedName, groupName string }

func (m mapper) Map(raw []byte) (interface{}, error) {
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	e.NamespaceName = m.groupName
	return &e, nil
}

// MapperFactory is the SingleTypeMapperFactory for this feed: every group
// is homogeneous, keyed by ID.
func MapperFactory() driver.SingleTypeMapperFactory {
	return driver.SingleTypeMapperFactory{
		FeedName: FeedName,
		New: func(feedName, groupName, keyField string) driver.Mapper {
			return mapper{feedName: feedName, groupName: groupName}
		},
		KeyField: "ID",
	}
}

// UpdateRecord merges the mapped entity with no change detection.
func UpdateRecord(ctx context.Context, tx driver.Tx, groupName string, entity interface{}) (bool, error) {
	e, ok := entity.(*Entity)
	if !ok {
		return false, &feed.Error{Op: "vulndb.UpdateRecord", Kind: feed.ErrMapper, Message: "mapped entity is not *vulndb.Entity"}
	}
	if err := tx.Merge(ctx, FeedName, groupName, e); err != nil {
		return false, err
	}
	return true, nil
}

// Flush deletes every VulnDBCpe and VulnDBMetadata row in the group's
// namespace.
func Flush(helper driver.FlushHelperFunc) driver.FlushFunc {
	return driver.DefaultFlush(helper)
}

// RecordCount returns the number of persisted Entity rows for a group.
func RecordCount(ctx context.Context, store driver.Store, feedName, groupName string) (int, error) {
	return store.RecordCount(ctx, feedName, groupName)
}

// Build constructs the vulndb feed's capability record.
func Build(helper driver.FlushHelperFunc) driver.Feed {
	return driver.Feed{
		Name:         FeedName,
		Mapper:       MapperFactory(),
		UpdateRecord: UpdateRecord,
		Flush:        Flush(helper),
		RecordCount:  RecordCount,
	}
}
