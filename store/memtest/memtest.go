// Package memtest is an in-memory driver.Store used by package tests in
// place of a real database. It keeps the same transaction/rollback
// semantics the Postgres implementation provides (a failed chunk must
// leave no partial state behind) without requiring a live connection.
//
// It plays the role the upstream source's jsonblob-backed non-Postgres
// store plays for tests: a simple, fully in-process Store good enough to
// exercise sync's chunking and failure-isolation behavior.
package memtest

import (
	"context"
	"sync"
	"time"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/driver"
)

type entityKey struct {
	feedName, groupName, id string
}

// Store is a mutex-guarded in-memory driver.Store.
type Store struct {
	mu       sync.Mutex
	metadata map[string]*feed.Metadata
	entities map[entityKey]interface{}
}

// New returns a Store seeded with the given feed metadata.
func New(metadata ...*feed.Metadata) *Store {
	s := &Store{
		metadata: make(map[string]*feed.Metadata, len(metadata)),
		entities: make(map[entityKey]interface{}),
	}
	for _, m := range metadata {
		cp := *m
		cp.Groups = append([]feed.GroupMetadata(nil), m.Groups...)
		s.metadata[m.Name] = &cp
	}
	return s
}

func (s *Store) Begin(ctx context.Context) (driver.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &tx{
		store:    s,
		metadata: cloneMetadata(s.metadata),
		entities: cloneEntities(s.entities),
	}, nil
}

func (s *Store) FeedMetadata(ctx context.Context, feedName string) (*feed.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metadata[feedName]
	if !ok {
		return nil, &feed.Error{Op: "memtest.Store.FeedMetadata", Kind: feed.ErrBootstrap, Message: "no metadata for feed " + feedName}
	}
	cp := *m
	cp.Groups = append([]feed.GroupMetadata(nil), m.Groups...)
	return &cp, nil
}

func (s *Store) RecordCount(ctx context.Context, feedName, groupName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entities {
		if k.feedName == feedName && k.groupName == groupName {
			n++
		}
	}
	return n, nil
}

// Entity exposes the current value stored under (feedName, groupName, id),
// for test assertions.
func (s *Store) Entity(feedName, groupName, id string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entities[entityKey{feedName, groupName, id}]
	return v, ok
}

// GroupCount reports how many entities are currently stored for a group,
// for test assertions.
func (s *Store) GroupCount(feedName, groupName string) int {
	n, _ := s.RecordCount(context.Background(), feedName, groupName)
	return n
}

func cloneMetadata(m map[string]*feed.Metadata) map[string]*feed.Metadata {
	out := make(map[string]*feed.Metadata, len(m))
	for k, v := range m {
		cp := *v
		cp.Groups = append([]feed.GroupMetadata(nil), v.Groups...)
		out[k] = &cp
	}
	return out
}

func cloneEntities(m map[entityKey]interface{}) map[entityKey]interface{} {
	out := make(map[entityKey]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// tx is a copy-on-write transaction: Begin snapshots the store's state,
// mutations apply to the snapshot, Commit writes the snapshot back,
// Rollback discards it. This gives the same all-or-nothing chunk semantics
// a real database transaction provides.
type tx struct {
	store    *Store
	metadata map[string]*feed.Metadata
	entities map[entityKey]interface{}
	done     bool
}

// identifiable is implemented by mapped entities whose primary-key field
// isn't named ID (which would collide with a method of that name):
// PrimaryKey returns that key instead.
type identifiable interface{ PrimaryKey() string }

func idOf(entity interface{}) string {
	switch v := entity.(type) {
	case *feed.Vulnerability:
		return v.ID
	case identifiable:
		return v.PrimaryKey()
	default:
		return ""
	}
}

func (t *tx) Merge(ctx context.Context, feedName, groupName string, entity interface{}) error {
	id := idOf(entity)
	t.entities[entityKey{feedName, groupName, id}] = entity
	return nil
}

func (t *tx) Get(ctx context.Context, feedName, groupName, id string) (interface{}, error) {
	v, ok := t.entities[entityKey{feedName, groupName, id}]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (t *tx) GroupMetadata(ctx context.Context, feedName, groupName string) (*feed.GroupMetadata, error) {
	m, ok := t.metadata[feedName]
	if !ok {
		return nil, nil
	}
	for i := range m.Groups {
		if m.Groups[i].Name == groupName {
			g := m.Groups[i]
			return &g, nil
		}
	}
	return nil, nil
}

func (t *tx) SetGroupLastSync(ctx context.Context, feedName, groupName string, ts time.Time) error {
	m, ok := t.metadata[feedName]
	if !ok {
		return &feed.Error{Op: "memtest.tx.SetGroupLastSync", Kind: feed.ErrBootstrap, Message: "no metadata for feed " + feedName}
	}
	for i := range m.Groups {
		if m.Groups[i].Name == groupName {
			ts := ts
			m.Groups[i].LastSync = &ts
			return nil
		}
	}
	return &feed.Error{Op: "memtest.tx.SetGroupLastSync", Kind: feed.ErrBootstrap, Message: "unknown group " + groupName}
}

func (t *tx) SetFeedTimestamps(ctx context.Context, feedName string, ts time.Time) error {
	m, ok := t.metadata[feedName]
	if !ok {
		return &feed.Error{Op: "memtest.tx.SetFeedTimestamps", Kind: feed.ErrBootstrap, Message: "no metadata for feed " + feedName}
	}
	m.LastUpdate = ts
	m.LastFullSync = ts
	return nil
}

// Flush is a no-op: memtest applies every Merge/DeleteGroup immediately to
// its working set, so there is nothing buffered to push to storage early.
func (t *tx) Flush(ctx context.Context) error {
	return nil
}

// DeleteGroup removes every entity belonging to (feedName, groupName) from
// this transaction's working set.
func (t *tx) DeleteGroup(ctx context.Context, feedName, groupName string) error {
	for k := range t.entities {
		if k.feedName == feedName && k.groupName == groupName {
			delete(t.entities, k)
		}
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.metadata = t.metadata
	t.store.entities = t.entities
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
