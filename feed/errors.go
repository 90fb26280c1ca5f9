// Package feed defines the domain types shared by the feed synchronization
// core: metadata records, download results, errors, and the stable result
// surface returned to callers.
package feed

import (
	"errors"
	"strings"
)

// Error is the feed package error domain type.
//
// Components should create an Error at the system boundary (a database
// client, an HTTP call, a malformed payload) and intermediate layers should
// prefer fmt.Errorf with a "%w" verb over wrapping in another Error, except
// to attach additional [ErrorKind] information.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrNotFound, ErrBootstrap, ErrMapper, ErrPersistence, ErrConfig, ErrInternal:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is] against a declared [ErrorKind].
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap] and [errors.As].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind classifies an Error for programmatic handling.
//
// Callers should compare against a declared ErrorKind with [errors.Is],
// never against a specific *Error value.
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

// Defined error kinds.
var (
	// ErrNotFound is returned by the registry when asked to look up or
	// build a feed name that was never registered. Unlike the Python
	// FeedMeta metaclass this never falls back to an arbitrary registered
	// feed: an unknown name is always an error.
	ErrNotFound = ErrorKind("not found")
	// ErrBootstrap is returned when a feed or group fails to initialize
	// (e.g. metadata can't be loaded or created) before a sync attempt.
	ErrBootstrap = ErrorKind("bootstrap")
	// ErrMapper is returned when a Mapper fails to translate a downloaded
	// record into a domain entity.
	ErrMapper = ErrorKind("mapper")
	// ErrPersistence is returned for any Store/Tx failure: merge, flush,
	// metadata read/write, or count.
	ErrPersistence = ErrorKind("persistence")
	// ErrConfig is returned for invalid construction-time configuration.
	ErrConfig = ErrorKind("config")
	// ErrInternal is used when no more specific kind applies.
	ErrInternal = ErrorKind("internal")
)
