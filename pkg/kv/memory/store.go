package memory

import (
	"context"
	"sync"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.RWMutex
	docs        map[string]kv.Document
	expirations map[string]time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a new in-memory store with optional janitor for TTL cleanup
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		docs:            make(map[string]kv.Document),
		expirations:     make(map[string]time.Time),
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// janitor runs background expiration cleanup
func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// evictExpired removes all expired keys
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.expirations {
		if now.After(expiry) {
			delete(s.docs, key)
			delete(s.expirations, key)
		}
	}
}

// isExpired checks if a key has expired (must hold read lock)
func (s *Store) isExpired(key string) bool {
	if expiry, exists := s.expirations[key]; exists {
		return time.Now().After(expiry)
	}
	return false
}

// setExpiration sets TTL for a key (must hold write lock)
func (s *Store) setExpiration(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expirations[key] = time.Now().Add(ttl)
	} else {
		delete(s.expirations, key)
	}
}

func (s *Store) Get(ctx context.Context, key string) (kv.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[key]
	if !exists || s.isExpired(key) {
		return kv.Document{}, kv.ErrNotFound
	}

	// Copy so callers cannot mutate stored bytes
	out := kv.Document{Data: make([]byte, len(doc.Data)), Version: doc.Version}
	copy(out.Data, doc.Data)
	return out, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expect int64, ttl ...time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[key]
	if exists && s.isExpired(key) {
		delete(s.docs, key)
		delete(s.expirations, key)
		exists = false
	}

	switch {
	case expect == kv.VersionAny:
		// Unconditional replace
	case expect == 0:
		if exists {
			return 0, kv.ErrConflict
		}
	default:
		if !exists || current.Version != expect {
			return 0, kv.ErrConflict
		}
	}

	next := int64(1)
	if exists {
		next = current.Version + 1
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.docs[key] = kv.Document{Data: stored, Version: next}

	if len(ttl) > 0 {
		s.setExpiration(key, ttl[0])
	} else {
		delete(s.expirations, key)
	}

	return next, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.docs[key]
	if !exists || s.isExpired(key) {
		delete(s.docs, key)
		delete(s.expirations, key)
		return kv.ErrNotFound
	}

	delete(s.docs, key)
	delete(s.expirations, key)
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.docs[key]
	return exists && !s.isExpired(key), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.janitorStop)
	})
	<-s.janitorDone
	return nil
}
