package kv_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"github.com/inkhaven/inkhaven-backend/pkg/kv/memory"
)

// Example demonstrates the read-modify-write cycle with optimistic concurrency.
func Example() {
	store := memory.New(0)
	defer store.Close()

	ctx := context.Background()

	// Create the document
	v1, _ := store.Put(ctx, "posts", []byte(`{}`), 0)
	fmt.Println("created at version", v1)

	// Read, mutate, write back with the version we read
	doc, _ := store.Get(ctx, "posts")
	_, err := store.Put(ctx, "posts", []byte(`{"hello-world":{}}`), doc.Version)
	fmt.Println("cas write ok:", err == nil)

	// A writer holding the stale version loses
	_, err = store.Put(ctx, "posts", []byte(`{"stale":{}}`), doc.Version)
	fmt.Println("stale write conflict:", errors.Is(err, kv.ErrConflict))

	// Output:
	// created at version 1
	// cas write ok: true
	// stale write conflict: true
}
