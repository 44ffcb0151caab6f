package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyStore is a minimal in-package Store used to drive failover behavior.
type flakyStore struct {
	mu        sync.Mutex
	docs      map[string]Document
	available bool
	pings     int
}

func newFlakyStore(available bool) *flakyStore {
	return &flakyStore{docs: make(map[string]Document), available: available}
}

func (f *flakyStore) setAvailable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = ok
}

func (f *flakyStore) Get(ctx context.Context, key string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return Document{}, ErrBackendUnavailable
	}
	doc, ok := f.docs[key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (f *flakyStore) Put(ctx context.Context, key string, value []byte, expect int64, ttl ...time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return 0, ErrBackendUnavailable
	}
	cur, exists := f.docs[key]
	switch {
	case expect == VersionAny:
	case expect == 0:
		if exists {
			return 0, ErrConflict
		}
	default:
		if !exists || cur.Version != expect {
			return 0, ErrConflict
		}
	}
	next := int64(1)
	if exists {
		next = cur.Version + 1
	}
	f.docs[key] = Document{Data: value, Version: next}
	return next, nil
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return ErrBackendUnavailable
	}
	if _, ok := f.docs[key]; !ok {
		return ErrNotFound
	}
	delete(f.docs, key)
	return nil
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return false, ErrBackendUnavailable
	}
	_, ok := f.docs[key]
	return ok, nil
}

func (f *flakyStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if !f.available {
		return ErrBackendUnavailable
	}
	return nil
}

func (f *flakyStore) Close() error { return nil }

func TestFailoverDemotesOnUnavailable(t *testing.T) {
	primary := newFlakyStore(true)
	fallback := newFlakyStore(true)

	fs := NewFailoverStore(primary, fallback, time.Hour, nil)
	defer fs.Close()

	ctx := context.Background()
	if _, err := fs.Put(ctx, "k", []byte("v"), VersionAny); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	primary.setAvailable(false)

	// Write retried against the fallback after demotion
	if _, err := fs.Put(ctx, "k2", []byte("v2"), VersionAny); err != nil {
		t.Fatalf("Expected failover write to succeed, got %v", err)
	}

	if _, err := fallback.Get(ctx, "k2"); err != nil {
		t.Fatalf("Expected document in fallback store, got %v", err)
	}
}

func TestFailoverDoesNotDemoteOnConflict(t *testing.T) {
	primary := newFlakyStore(true)
	fallback := newFlakyStore(true)

	fs := NewFailoverStore(primary, fallback, time.Hour, nil)
	defer fs.Close()

	ctx := context.Background()
	if _, err := fs.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := fs.Put(ctx, "k", []byte("v"), 0)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	if fs.getActiveStore() != primary {
		t.Fatal("Conflict must not trigger failover")
	}
}

func TestFailoverRecoversToPrimary(t *testing.T) {
	primary := newFlakyStore(false)
	fallback := newFlakyStore(true)

	fs := NewFailoverStoreWithFallbackActive(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	if fs.getActiveStore() != fallback {
		t.Fatal("Expected fallback active at startup")
	}

	primary.setAvailable(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fs.getActiveStore() == primary {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Expected promotion back to primary after recovery")
}
