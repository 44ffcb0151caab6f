// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	t.Run("DocumentOperations", func(t *testing.T) {
		testDocumentOperations(t, factory)
	})
	t.Run("VersionChecks", func(t *testing.T) {
		testVersionChecks(t, factory)
	})
	t.Run("KeyOperations", func(t *testing.T) {
		testKeyOperations(t, factory)
	})
	t.Run("TTLOperations", func(t *testing.T) {
		testTTLOperations(t, factory)
	})
	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, factory)
	})
}

func testDocumentOperations(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"PutGet", testPutGet},
		{"GetNonExistent", testGetNonExistent},
		{"VersionIncrements", testVersionIncrements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testPutGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:doc"
	value := []byte(`{"hello":"world"}`)

	version, err := store.Put(ctx, key, value, kv.VersionAny)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("Expected version 1 on create, got %d", version)
	}

	doc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !reflect.DeepEqual(doc.Data, value) {
		t.Fatalf("Expected %s, got %s", value, doc.Data)
	}
	if doc.Version != version {
		t.Fatalf("Expected version %d, got %d", version, doc.Version)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testVersionIncrements(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:versions"

	for i := int64(1); i <= 3; i++ {
		version, err := store.Put(ctx, key, []byte("v"), kv.VersionAny)
		if err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
		if version != i {
			t.Fatalf("Expected version %d, got %d", i, version)
		}
	}
}

func testVersionChecks(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"CreateRejectsExisting", testCreateRejectsExisting},
		{"ExpectMatch", testExpectMatch},
		{"ExpectMismatch", testExpectMismatch},
		{"ExpectMissing", testExpectMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testCreateRejectsExisting(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:create"

	if _, err := store.Put(ctx, key, []byte("a"), 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.Put(ctx, key, []byte("b"), 0)
	if !errors.Is(err, kv.ErrConflict) {
		t.Fatalf("Expected ErrConflict on duplicate create, got %v", err)
	}

	// Original document must be intact
	doc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(doc.Data) != "a" {
		t.Fatalf("Expected original data to survive, got %s", doc.Data)
	}
}

func testExpectMatch(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:cas"

	v1, err := store.Put(ctx, key, []byte("a"), 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v2, err := store.Put(ctx, key, []byte("b"), v1)
	if err != nil {
		t.Fatalf("CAS with matching version failed: %v", err)
	}
	if v2 != v1+1 {
		t.Fatalf("Expected version %d, got %d", v1+1, v2)
	}
}

func testExpectMismatch(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:cas-stale"

	v1, err := store.Put(ctx, key, []byte("a"), 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Concurrent writer bumps the version
	if _, err := store.Put(ctx, key, []byte("b"), v1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Writing with the stale version must lose
	_, err = store.Put(ctx, key, []byte("c"), v1)
	if !errors.Is(err, kv.ErrConflict) {
		t.Fatalf("Expected ErrConflict on stale version, got %v", err)
	}

	doc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(doc.Data) != "b" {
		t.Fatalf("Expected winner's data intact, got %s", doc.Data)
	}
}

func testExpectMissing(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.Put(ctx, "test:missing", []byte("a"), 7)
	if !errors.Is(err, kv.ErrConflict) {
		t.Fatalf("Expected ErrConflict on absent key with expected version, got %v", err)
	}
}

func testKeyOperations(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"Delete", testDelete},
		{"DeleteNonExistent", testDeleteNonExistent},
		{"Exists", testExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testDelete(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:delete"

	if _, err := store.Put(ctx, key, []byte("x"), kv.VersionAny); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
}

func testDeleteNonExistent(t *testing.T, store kv.Store) {
	ctx := context.Background()

	err := store.Delete(ctx, "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:exists"

	ok, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Fatal("Expected key to not exist")
	}

	if _, err := store.Put(ctx, key, []byte("x"), kv.VersionAny); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ok, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
}

func testTTLOperations(t *testing.T, factory StoreFactory) {
	t.Run("PutWithTTL", func(t *testing.T) {
		store := factory(t)
		defer store.Close()
		testPutWithTTL(t, store)
	})
}

func testPutWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:ttl"

	if _, err := store.Put(ctx, key, []byte("ephemeral"), kv.VersionAny, 50*time.Millisecond); err != nil {
		t.Fatalf("Put with TTL failed: %v", err)
	}

	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	_, err := store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func testHealthCheck(t *testing.T, factory StoreFactory) {
	store := factory(t)
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
