// Package kv provides a versioned key-value document store abstraction with
// in-memory and Redis-backed implementations.
//
// The package defines a Store interface for opaque JSON-blob documents that
// are read and replaced wholesale. Every document carries a version number,
// and Put takes the version the caller last read, turning whole-document
// replacement into a compare-and-swap: concurrent writers cannot silently
// discard each other's changes, they get ErrConflict and retry.
//
// Example usage:
//
//	cfg := Config{
//		Backend: "memory",
//		JanitorInterval: 30 * time.Second,
//	}
//	store, err := NewStoreFromConfig(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	version, err := store.Put(ctx, "posts", data, kv.VersionAny)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	doc, err := store.Get(ctx, "posts")
//	if err != nil {
//		if errors.Is(err, kv.ErrNotFound) {
//			log.Println("no posts document yet")
//		} else {
//			log.Fatal(err)
//		}
//	}
//
//	// Read-modify-write with optimistic concurrency:
//	_, err = store.Put(ctx, "posts", mutate(doc.Data), doc.Version)
//	if errors.Is(err, kv.ErrConflict) {
//		// someone else wrote in between; reload and retry
//	}
//
// The in-memory implementation provides a first-class development and testing
// experience with TTL support and background expiration. The Redis adapter
// wraps go-redis/v9 for production use while maintaining the same interface.
package kv
