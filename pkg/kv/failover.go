package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore wraps a primary and fallback store, automatically failing over
// when the primary becomes unavailable and recovering when it becomes healthy again
type FailoverStore struct {
	primary       Store        // Primary store (usually Redis)
	fallback      Store        // Fallback store (usually in-memory)
	active        atomic.Value // Currently active store (Store)
	probeInterval time.Duration
	logger        LogFunc

	// State management
	mu        sync.Mutex
	probing   bool          // Whether background probing is active
	closed    chan struct{} // Signal to stop background processes
	probeStop chan struct{} // Signal to stop current probe goroutine
	probeDone chan struct{} // Signal that probe goroutine has stopped
	promote   chan struct{} // Signal to promote to primary
}

// NewFailoverStore creates a new failover store that prefers the primary but falls back to fallback
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(msg string, fields ...any) {} // No-op logger
	}

	fs := &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		closed:        make(chan struct{}),
		promote:       make(chan struct{}, 1),
	}

	fs.active.Store(primary)
	go fs.handlePromotions()

	return fs
}

// NewFailoverStoreWithFallbackActive creates a failover store that starts with fallback active
// and probes primary for recovery (used when primary fails at startup)
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := NewFailoverStore(primary, fallback, probeInterval, logger)

	fs.active.Store(fallback)
	fs.startProbing()

	return fs
}

// getActiveStore returns the currently active store
func (fs *FailoverStore) getActiveStore() Store {
	return fs.active.Load().(Store)
}

// demoteToFallback switches to the fallback store and starts background probing for recovery
func (fs *FailoverStore) demoteToFallback() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.getActiveStore() == fs.fallback {
		return
	}

	fs.active.Store(fs.fallback)
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")

	fs.startProbingUnsafe()
}

// handlePromotions handles promotion signals in a separate goroutine
func (fs *FailoverStore) handlePromotions() {
	for {
		select {
		case <-fs.closed:
			return
		case <-fs.promote:
			if fs.getActiveStore() == fs.primary {
				continue
			}

			fs.active.Store(fs.primary)
			fs.logger("Recovered to primary store", "reason", "primary_healthy")

			fs.stopProbing()
		}
	}
}

// signalPromotion signals that primary should be promoted (non-blocking)
func (fs *FailoverStore) signalPromotion() {
	select {
	case fs.promote <- struct{}{}:
		// Signal sent
	default:
		// Channel full, promotion already pending
	}
}

// startProbingUnsafe starts background probing if not already active (must hold mutex)
func (fs *FailoverStore) startProbingUnsafe() {
	if fs.probing {
		return
	}

	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})

	go fs.probeLoop()
}

// startProbing starts background probing (external interface)
func (fs *FailoverStore) startProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startProbingUnsafe()
}

// stopProbing stops background probing (external interface)
func (fs *FailoverStore) stopProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.stopProbingUnsafe()
}

// stopProbingUnsafe stops background probing (must hold mutex)
func (fs *FailoverStore) stopProbingUnsafe() {
	if !fs.probing {
		return
	}

	close(fs.probeStop)
	<-fs.probeDone
	fs.probing = false
}

// probeLoop runs the background health probing
func (fs *FailoverStore) probeLoop() {
	defer close(fs.probeDone)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-fs.probeStop:
			return
		case <-ticker.C:
			if fs.primary == nil {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()

			if err == nil {
				fs.signalPromotion()
				return // Stop probing until next demotion
			}
		}
	}
}

// executeWithFailover executes a function on the active store and handles failover
func (fs *FailoverStore) executeWithFailover(fn func(Store) error) error {
	store := fs.getActiveStore()
	err := fn(store)

	// If primary store failed with a connection error, try failover
	if fs.primary != nil && store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demoteToFallback()

		fallbackStore := fs.getActiveStore()
		if fallbackStore != store {
			return fn(fallbackStore)
		}
	}

	return err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) (Document, error) {
	var doc Document
	err := fs.executeWithFailover(func(store Store) error {
		var err error
		doc, err = store.Get(ctx, key)
		return err
	})
	return doc, err
}

func (fs *FailoverStore) Put(ctx context.Context, key string, value []byte, expect int64, ttl ...time.Duration) (int64, error) {
	var version int64
	err := fs.executeWithFailover(func(store Store) error {
		var err error
		version, err = store.Put(ctx, key, value, expect, ttl...)
		return err
	})
	return version, err
}

func (fs *FailoverStore) Delete(ctx context.Context, key string) error {
	return fs.executeWithFailover(func(store Store) error {
		return store.Delete(ctx, key)
	})
}

func (fs *FailoverStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := fs.executeWithFailover(func(store Store) error {
		var err error
		ok, err = store.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.getActiveStore().Ping(ctx)
}

// Close shuts down background processes and both underlying stores
func (fs *FailoverStore) Close() error {
	fs.mu.Lock()
	select {
	case <-fs.closed:
		fs.mu.Unlock()
		return nil
	default:
		close(fs.closed)
	}
	fs.stopProbingUnsafe()
	fs.mu.Unlock()

	var firstErr error
	if fs.primary != nil {
		if err := fs.primary.Close(); err != nil {
			firstErr = err
		}
	}
	if fs.fallback != nil {
		if err := fs.fallback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
