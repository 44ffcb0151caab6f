package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a compare-and-swap write loses against a
// concurrent writer (the expected version no longer matches)
var ErrConflict = errors.New("version conflict")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// VersionAny disables the version check on Put: the document is replaced
// unconditionally and a new version is assigned.
const VersionAny int64 = -1

// Document is a stored value together with its version. Versions start at 1
// on create and increase by 1 on every successful replace.
type Document struct {
	Data    []byte
	Version int64
}

// Store defines the interface for a versioned key-value document store.
// Documents are opaque blobs; there is no partial-field API. Every replace
// goes through Put, whose expected-version check gives callers optimistic
// concurrency: read a document, mutate it in memory, write it back with the
// version you read, and retry on ErrConflict.
type Store interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Document, error)

	// Put replaces the document under key and returns the new version.
	// expect controls the concurrency check:
	//   VersionAny  - replace unconditionally
	//   0           - create; fails with ErrConflict if the key exists
	//   n > 0       - replace only if the current version is n
	// An optional TTL expires the document after the given duration.
	Put(ctx context.Context, key string, value []byte, expect int64, ttl ...time.Duration) (int64, error)

	// Delete removes the document under key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds a live document.
	Exists(ctx context.Context, key string) (bool, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
