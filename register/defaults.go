// Package register registers the four in-tree feeds (vulnerabilities,
// packages, nvdv2, vulndb) with the feed registry. Importing this package
// for its side effect wires every concrete feed, mirroring how
// matchers/defaults registers its in-tree updaters.
package register

import (
	"context"
	"sync"
	"time"

	"github.com/chl3608/anchore-engine/feed/driver"
	"github.com/chl3608/anchore-engine/feed/nvdv2"
	"github.com/chl3608/anchore-engine/feed/packages"
	"github.com/chl3608/anchore-engine/feed/vulndb"
	"github.com/chl3608/anchore-engine/feed/vulnerability"
	registryfeed "github.com/chl3608/anchore-engine/registry/feed"
)

var (
	once   sync.Once
	regerr error
)

func init() {
	ctx, done := context.WithTimeout(context.Background(), time.Minute)
	defer done()
	once.Do(func() { regerr = inner(ctx) })
}

// Error reports any error encountered while registering the default feeds.
func Error() error {
	return regerr
}

func inner(ctx context.Context) error {
	registryfeed.Register(vulnerability.FeedName, func(ctx context.Context, store driver.Store) (driver.Feed, error) {
		if _, err := store.FeedMetadata(ctx, vulnerability.FeedName); err != nil {
			return driver.Feed{}, err
		}
		return vulnerability.Build(nil, nil), nil
	})

	registryfeed.Register(packages.FeedName, func(ctx context.Context, store driver.Store) (driver.Feed, error) {
		if _, err := store.FeedMetadata(ctx, packages.FeedName); err != nil {
			return driver.Feed{}, err
		}
		return packages.Build(nil), nil
	})

	registryfeed.Register(nvdv2.FeedName, func(ctx context.Context, store driver.Store) (driver.Feed, error) {
		if _, err := store.FeedMetadata(ctx, nvdv2.FeedName); err != nil {
			return driver.Feed{}, err
		}
		return nvdv2.Build(nil), nil
	})

	registryfeed.Register(vulndb.FeedName, func(ctx context.Context, store driver.Store) (driver.Feed, error) {
		if _, err := store.FeedMetadata(ctx, vulndb.FeedName); err != nil {
			return driver.Feed{}, err
		}
		return vulndb.Build(nil), nil
	})

	return nil
}
