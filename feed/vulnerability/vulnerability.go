// Package vulnerability is the vulnerabilities feed specialization: it adds
// match-equivalence change detection and downstream image-match
// recomputation on top of the generic sync engine.
package vulnerability

import (
	"context"
	"encoding/json"

	"github.com/quay/zlog"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/feed/groupcache"
	"github.com/chl3608/anchore-engine/feed/sync"
)

// FeedName is the registered name of this feed.
const FeedName = "vulnerabilities"

// rawVulnerability is the JSON shape a raw record is expected to unmarshal
// into before being lifted into a feed.Vulnerability.
type rawVulnerability struct {
	ID            string        `json:"id"`
	NamespaceName string        `json:"namespace_name"`
	Description   string        `json:"description"`
	Severity      string        `json:"severity"`
	Link          string        `json:"link"`
	FixedIn       []rawFixedIn  `json:"fixed_in"`
	VulnerableIn  []rawFixedIn  `json:"vulnerable_in"`
}

type rawFixedIn struct {
	Name             string `json:"name"`
	EpochlessVersion string `json:"epochless_version"`
	Version          string `json:"version"`
}

// mapper implements driver.Mapper, translating a raw JSON record into a
// *feed.Vulnerability keyed by Name (i.e. ID).
type mapper struct {
	feedName, groupName string
}

func (m mapper) Map(raw []byte) (interface{}, error) {
	var rv rawVulnerability
	if err := json.Unmarshal(raw, &rv); err != nil {
		return nil, err
	}
	v := &feed.Vulnerability{
		ID:            rv.ID,
		NamespaceName: rv.NamespaceName,
		Description:   rv.Description,
		Severity:      rv.Severity,
		Link:          rv.Link,
	}
	for _, fi := range rv.FixedIn {
		v.FixedIn = append(v.FixedIn, feed.FixedIn(fi))
	}
	for _, fi := range rv.VulnerableIn {
		v.VulnerableIn = append(v.VulnerableIn, feed.FixedIn(fi))
	}
	return v, nil
}

// MapperFactory is the SingleTypeMapperFactory for this feed: every group
// is homogeneous, keyed by Name.
func MapperFactory() driver.SingleTypeMapperFactory {
	return driver.SingleTypeMapperFactory{
		FeedName: FeedName,
		New: func(feedName, groupName, keyField string) driver.Mapper {
			return mapper{feedName: feedName, groupName: groupName}
		},
		KeyField: "Name",
	}
}

// fixedInSet builds the set used for symmetric-difference comparison.
func fixedInSet(fi []feed.FixedIn) map[feed.FixedIn]struct{} {
	s := make(map[feed.FixedIn]struct{}, len(fi))
	for _, f := range fi {
		s[f] = struct{}{}
	}
	return s
}

// AreMatchEquivalent reports whether a and b are match-equivalent: same id
// and namespace, and equal fixed_in sets (symmetric difference empty).
// vulnerable_in is deliberately excluded from this comparison -- the
// upstream source doesn't consider it either; see the design notes on
// whether that's intentional.
func AreMatchEquivalent(a, b *feed.Vulnerability) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ID != b.ID || a.NamespaceName != b.NamespaceName {
		return false
	}
	sa, sb := fixedInSet(a.FixedIn), fixedInSet(b.FixedIn)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

// UpdateVulnerability is the vulnerabilities feed's driver.RecordUpdateFunc.
// It looks up the existing row, decides whether downstream image-match
// recomputation is needed, merges the new record, and -- if needed and a
// processing function is configured -- invokes it, flushing the transaction
// when it reports changed images so the per-transaction working set stays
// bounded.
//
// The returned bool reports whether the record needed an update; it has no
// bearing on the updated_record_count surface (every merged record counts,
// per the generic engine), only on whether processingFn ran.
func UpdateVulnerability(processingFn driver.VulnerabilityProcessingFunc) driver.RecordUpdateFunc {
	return func(ctx context.Context, tx driver.Tx, groupName string, entity interface{}) (bool, error) {
		v, ok := entity.(*feed.Vulnerability)
		if !ok {
			return false, &feed.Error{Op: "vulnerability.UpdateVulnerability", Kind: feed.ErrMapper, Message: "mapped entity is not *feed.Vulnerability"}
		}

		// Any lookup error is treated as "no existing record" per spec.
		existingAny, lookupErr := tx.Get(ctx, FeedName, groupName, v.ID)
		var existing *feed.Vulnerability
		if lookupErr == nil {
			existing, _ = existingAny.(*feed.Vulnerability)
		}

		needsUpdate := existing == nil || !AreMatchEquivalent(existing, v)

		if err := tx.Merge(ctx, FeedName, groupName, v); err != nil {
			return needsUpdate, err
		}

		if !needsUpdate || processingFn == nil {
			return needsUpdate, nil
		}

		changed, err := processingFn(ctx, tx, v)
		if err != nil {
			return needsUpdate, err
		}
		if len(changed) > 0 {
			if err := tx.Flush(ctx); err != nil {
				return needsUpdate, err
			}
		}
		zlog.Debug(ctx).
			Str("id", v.ID).
			Str("namespace", v.NamespaceName).
			Int("images_changed", len(changed)).
			Msg("recomputed image matches")
		return needsUpdate, nil
	}
}

// Flush deletes every FixedArtifact and Vulnerability row in the group's
// namespace, after running the configured flush helper.
func Flush(helper driver.FlushHelperFunc) driver.FlushFunc {
	return driver.DefaultFlush(helper)
}

// RecordCount returns the number of persisted Vulnerability rows for a
// group.
func RecordCount(ctx context.Context, store driver.Store, feedName, groupName string) (int, error) {
	return store.RecordCount(ctx, feedName, groupName)
}

// Build constructs the vulnerabilities feed's capability record.
func Build(processingFn driver.VulnerabilityProcessingFunc, helper driver.FlushHelperFunc) driver.Feed {
	return driver.Feed{
		Name:         FeedName,
		Mapper:       MapperFactory(),
		UpdateRecord: UpdateVulnerability(processingFn),
		Flush:        Flush(helper),
		RecordCount:  RecordCount,
	}
}

// Sync runs a full sync of the vulnerabilities feed. It installs the
// manifest's group names onto the context's group-name cache before
// delegating to the generic engine, and the cache is scoped to this call:
// it is never visible once Sync returns, success or failure, because it
// lives on a context value rather than a package-level singleton.
func Sync(ctx context.Context, store driver.Store, f driver.Feed, repo driver.LocalFeedDataRepo, opts ...sync.Option) feed.Result {
	names := make([]string, 0, len(repo.Manifest.Results))
	for _, gdr := range repo.Manifest.Results {
		if gdr.Feed == f.Name {
			names = append(names, gdr.Group)
		}
	}
	ctx = groupcache.WithNames(ctx, names)
	return sync.Run(ctx, store, f, repo, opts...)
}
