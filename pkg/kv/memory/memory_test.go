package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"github.com/inkhaven/inkhaven-backend/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		// Disable janitor for deterministic tests; lazy expiry still applies
		return New(0)
	})
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	store := New(20 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Put(ctx, "short-lived", []byte("x"), kv.VersionAny, 10*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	_, err := store.Get(ctx, "short-lived")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected janitor to evict expired key, got %v", err)
	}
}

func TestMemoryStoreDefensiveCopy(t *testing.T) {
	store := New(0)
	defer store.Close()

	ctx := context.Background()
	data := []byte("original")
	if _, err := store.Put(ctx, "copy", data, kv.VersionAny); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data[0] = 'X' // mutate caller's slice after Put

	doc, err := store.Get(ctx, "copy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(doc.Data) != "original" {
		t.Fatalf("Store leaked caller's backing array: %s", doc.Data)
	}

	doc.Data[0] = 'Y' // mutate returned slice

	again, err := store.Get(ctx, "copy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(again.Data) != "original" {
		t.Fatalf("Store leaked its backing array: %s", again.Data)
	}
}
