// Package driver describes the capability set a concrete feed must supply
// to the generic sync engine: mapper selection, per-record update, flush,
// and record counting. A feed is a value carrying these four operations,
// not a type hierarchy -- the vulnerabilities, packages, nvdv2, and vulndb
// feeds are distinct Feed values built from the same struct.
package driver

import (
	"context"

	"github.com/chl3608/anchore-engine/feed"
)

// Mapper translates one raw record into a mapped entity. Implementations
// must be pure: no I/O, no mutation of shared state.
type Mapper interface {
	Map(raw []byte) (interface{}, error)
}

// MapperFactory selects the Mapper to use for a given group of a feed.
// Unknown groups must return an *feed.Error with Kind feed.ErrMapper.
type MapperFactory interface {
	MapperFor(feedName, groupName string) (Mapper, error)
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(raw []byte) (interface{}, error)

func (f MapperFunc) Map(raw []byte) (interface{}, error) { return f(raw) }

// SingleTypeMapperFactory returns the same Mapper for every group of a feed.
// This is the common case for feeds whose groups are homogeneous, e.g.
// vulnerabilities keyed by name.
type SingleTypeMapperFactory struct {
	FeedName string
	New      func(feedName, groupName, keyField string) Mapper
	KeyField string
}

func (f SingleTypeMapperFactory) MapperFor(feedName, groupName string) (Mapper, error) {
	return f.New(feedName, groupName, f.KeyField), nil
}

// GroupMapperFactory looks a Mapper constructor up by group name. An
// unregistered group is a mapper error, not a panic.
type GroupMapperFactory struct {
	FeedName string
	ByGroup  map[string]func(feedName, groupName string) Mapper
}

func (f GroupMapperFactory) MapperFor(feedName, groupName string) (Mapper, error) {
	ctor, ok := f.ByGroup[groupName]
	if !ok {
		return nil, &feed.Error{
			Op:      "driver.GroupMapperFactory.MapperFor",
			Kind:    feed.ErrMapper,
			Message: "no mapper registered for group " + groupName,
		}
	}
	return ctor(feedName, groupName), nil
}

// RecordUpdateFunc merges one mapped entity into the current transaction
// and reports whether the record needed an update. The vulnerabilities
// feed supplies a RecordUpdateFunc that does change detection (true only
// for a new record or one not match-equivalent to the stored row) and
// invokes a VulnerabilityProcessingFunc; other feeds supply a trivial
// upsert-only version that always reports true. The sync engine ignores
// the returned bool.
type RecordUpdateFunc func(ctx context.Context, tx Tx, groupName string, entity interface{}) (changed bool, err error)

// FlushFunc removes all persisted data owned by (feedName, groupName). It
// must not commit: it participates in the caller's transaction.
type FlushFunc func(ctx context.Context, tx Tx, feedName, groupName string) error

// FlushHelperFunc purges derived cross-table state (e.g. materialized
// image-vulnerability matches) for a group before its primary rows are
// deleted. It runs first so foreign references are removed in the right
// order.
type FlushHelperFunc func(ctx context.Context, tx Tx, feedName, groupName string) error

// DefaultFlush builds a FlushFunc that runs an optional helper and then
// deletes the group's primary rows via Tx.DeleteGroup. This is the shape
// every concrete feed uses: only the helper (and, for Postgres, which
// table DeleteGroup targets) varies per feed.
func DefaultFlush(helper FlushHelperFunc) FlushFunc {
	return func(ctx context.Context, tx Tx, feedName, groupName string) error {
		if helper != nil {
			if err := helper(ctx, tx, feedName, groupName); err != nil {
				return err
			}
		}
		if err := tx.DeleteGroup(ctx, feedName, groupName); err != nil {
			return err
		}
		return tx.Flush(ctx)
	}
}

// RecordCountFunc returns the number of persisted primary entities for a
// group.
type RecordCountFunc func(ctx context.Context, store Store, feedName, groupName string) (int, error)

// Feed is the capability record a concrete feed (vulnerabilities, packages,
// nvdv2, vulndb) supplies to the sync engine. It replaces subclassing: the
// engine is a single free function over this value.
type Feed struct {
	Name         string
	Mapper       MapperFactory
	UpdateRecord RecordUpdateFunc
	Flush        FlushFunc
	RecordCount  RecordCountFunc
}

// GroupDownloadReader exposes an offset-restartable stream of raw records
// for one group of a feed.
type GroupDownloadReader interface {
	// Read returns raw records for (feedName, groupName) starting at
	// fromIndex (0 = from the start). The returned slice is empty, with a
	// nil error, once the group is exhausted.
	Read(ctx context.Context, feedName, groupName string, fromIndex int) ([][]byte, error)
}

// LocalFeedDataRepo is the downloader-facing input to a sync call: the
// download manifest plus a reader for the raw records it describes.
type LocalFeedDataRepo struct {
	Manifest feed.DownloadResult
	Reader   GroupDownloadReader
}

// VulnerabilityProcessingFunc recomputes downstream image matches for a
// merged vulnerability. It runs inside the per-record transaction, before
// commit, and returns the ids of images whose match state changed.
type VulnerabilityProcessingFunc func(ctx context.Context, tx Tx, v *feed.Vulnerability) ([]string, error)
