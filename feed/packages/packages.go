// Package packages implements the packages feed: language-ecosystem
// metadata (gem, npm) with no match-equivalence logic -- every merged
// record is simply upserted.
package packages

import (
	"context"
	"encoding/json"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

// FeedName is the registered name of this feed.
const FeedName = "packages"

// Group names. Both groups share the Metadata entity type and one table,
// told apart by group name (see Flush).
const (
	GroupGem = "gem"
	GroupNpm = "npm"
)

// Metadata is the mapped entity for both groups: a package name and the
// versions known to provide it. The primary key is (NamespaceName, Name).
type Metadata struct {
	Name          string
	NamespaceName string
	Versions      []string
	SourceURL     string
	License       string
}

func (m *Metadata) PrimaryKey() string { return m.Name }

type mapper struct{ groupName string }

func (m mapper) Map(raw []byte) (interface{}, error) {
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	md.NamespaceName = m.groupName
	return &md, nil
}

// MapperFactory selects the mapper by group: gem and npm share the same
// entity shape but are homogeneous per-group, so a GroupMapperFactory with
// identical constructors for both groups documents that directly rather
// than implying the groups could diverge in shape later.
func MapperFactory() driver.GroupMapperFactory {
	ctor := func(feedName, groupName string) driver.Mapper { return mapper{groupName: groupName} }
	return driver.GroupMapperFactory{
		FeedName: FeedName,
		ByGroup: map[string]func(feedName, groupName string) driver.Mapper{
			GroupGem: ctor,
			GroupNpm: ctor,
		},
	}
}

// UpdateRecord merges the mapped metadata with no change detection: the
// packages feed has no downstream match recomputation, so every record is
// reported as needing an update.
func UpdateRecord(ctx context.Context, tx driver.Tx, groupName string, entity interface{}) (bool, error) {
	md, ok := entity.(*Metadata)
	if !ok {
		return false, &feed.Error{Op: "packages.UpdateRecord", Kind: feed.ErrMapper, Message: "mapped entity is not *packages.Metadata"}
	}
	if err := tx.Merge(ctx, FeedName, groupName, md); err != nil {
		return false, err
	}
	return true, nil
}

// Flush deletes every Metadata row in the group's namespace (GemMetadata
// for "gem", NpmMetadata for "npm" in the upstream schema; here a single
// generic table keyed by feed+group).
func Flush(helper driver.FlushHelperFunc) driver.FlushFunc {
	return driver.DefaultFlush(helper)
}

// RecordCount returns the number of persisted Metadata rows for a group.
func RecordCount(ctx context.Context, store driver.Store, feedName, groupName string) (int, error) {
	return store.RecordCount(ctx, feedName, groupName)
}

// Build constructs the packages feed's capability record.
func Build(helper driver.FlushHelperFunc) driver.Feed {
	return driver.Feed{
		Name:         FeedName,
		Mapper:       MapperFactory(),
		UpdateRecord: UpdateRecord,
		Flush:        Flush(helper),
		RecordCount:  RecordCount,
	}
}
