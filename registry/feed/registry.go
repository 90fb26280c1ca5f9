// Package feed holds the registry of feed builders: the explicit, static
// replacement for the upstream source's metaclass-based auto-registration.
// Concrete feeds register a Builder at process init via Register; there is
// no runtime reflection once the registry is built.
package feed

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

// Builder constructs a driver.Feed. Construction loads feed.Metadata from
// the store and must fail with an *feed.Error of Kind feed.ErrBootstrap if
// no row exists.
type Builder func(ctx context.Context, store driver.Store) (driver.Feed, error)

var pkg = struct {
	sync.Mutex
	builders map[string]Builder
}{
	builders: make(map[string]Builder),
}

// Register registers a Builder under name. Lookups are case-insensitive;
// name is normalized to lowercase before storage.
//
// Register panics if the same name is registered twice -- a programming
// error, not a runtime condition.
func Register(name string, b Builder) {
	name = strings.ToLower(name)
	pkg.Lock()
	defer pkg.Unlock()
	if _, ok := pkg.builders[name]; ok {
		panic("feed: Register called twice for " + name)
	}
	pkg.builders[name] = b
}

// Registered returns the sorted set of registered feed names.
func Registered() []string {
	pkg.Lock()
	defer pkg.Unlock()
	names := make([]string, 0, len(pkg.builders))
	for k := range pkg.builders {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get looks up a Builder by name, case-insensitively.
//
// Unlike the upstream source, an unknown name never falls back to an
// arbitrary registered feed: it always returns a *feed.Error with Kind
// feed.ErrNotFound.
func Get(name string) (Builder, error) {
	name = strings.ToLower(name)
	pkg.Lock()
	defer pkg.Unlock()
	b, ok := pkg.builders[name]
	if !ok {
		return nil, &feed.Error{
			Op:      "registry/feed.Get",
			Kind:    feed.ErrNotFound,
			Message: "no feed registered under name " + name,
		}
	}
	return b, nil
}

// Build looks up and immediately invokes the Builder for name.
func Build(ctx context.Context, name string, store driver.Store) (driver.Feed, error) {
	b, err := Get(name)
	if err != nil {
		return driver.Feed{}, err
	}
	return b(ctx, store)
}
