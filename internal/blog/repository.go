package blog

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"go.uber.org/zap"
)

// Typed errors so callers can tell "nothing there" apart from "store is down"
// and from "someone else won the write".
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Content store document keys, one whole-collection JSON document each.
const (
	keyPosts    = "posts"
	keyComments = "comments"
	keyImages   = "images"
)

// casAttempts bounds the read-modify-write retry loop. Every mutation reads
// the whole collection document, mutates it in memory, and writes it back
// with the version it read; a concurrent writer forces a reload and replay.
const casAttempts = 5

// StoreMetrics is the slice of the metrics surface the repositories use.
// A nil recorder is fine; all methods are skipped.
type StoreMetrics interface {
	RecordStoreOp(ctx context.Context, collection, op string)
	RecordStoreConflict(ctx context.Context, collection string)
}

// collection wraps one whole-document JSON map in the content store.
type collection[T any] struct {
	store   kv.Store
	key     string
	logger  *zap.SugaredLogger
	metrics StoreMetrics
}

// load fetches and decodes the collection document. A missing document is an
// empty collection at version 0, which makes the first save a create.
func (c *collection[T]) load(ctx context.Context) (map[string]T, int64, error) {
	doc, err := c.store.Get(ctx, c.key)
	if errors.Is(err, kv.ErrNotFound) {
		return make(map[string]T), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", c.key, err)
	}

	var m map[string]T
	if err := json.Unmarshal(doc.Data, &m); err != nil {
		return nil, 0, fmt.Errorf("decode %s document: %w", c.key, err)
	}
	if m == nil {
		m = make(map[string]T)
	}
	return m, doc.Version, nil
}

// save writes the collection back as one atomic replace, guarded by the
// version returned from load.
func (c *collection[T]) save(ctx context.Context, m map[string]T, version int64) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.key, err)
	}
	if _, err := c.store.Put(ctx, c.key, data, version); err != nil {
		return err
	}
	return nil
}

// mutate runs the read-modify-write cycle, replaying fn on version conflicts.
// Errors returned by fn itself abort immediately and are never retried.
func (c *collection[T]) mutate(ctx context.Context, op string, fn func(map[string]T) error) error {
	if c.metrics != nil {
		c.metrics.RecordStoreOp(ctx, c.key, op)
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		m, version, err := c.load(ctx)
		if err != nil {
			return err
		}

		if err := fn(m); err != nil {
			return err
		}

		if err := c.save(ctx, m, version); err != nil {
			if errors.Is(err, kv.ErrConflict) {
				if c.metrics != nil {
					c.metrics.RecordStoreConflict(ctx, c.key)
				}
				c.logger.Debugw("Write conflict, replaying mutation",
					"collection", c.key,
					"attempt", attempt+1,
				)
				lastErr = err
				continue
			}
			return fmt.Errorf("save %s: %w", c.key, err)
		}
		return nil
	}

	return fmt.Errorf("%w: gave up after %d attempts: %v", ErrConflict, casAttempts, lastErr)
}

// all returns the collection values, failing soft: a missing backing document
// yields an empty slice and store errors are logged, not raised, so public
// pages keep rendering with what we have (nothing).
func (c *collection[T]) all(ctx context.Context) []T {
	if c.metrics != nil {
		c.metrics.RecordStoreOp(ctx, c.key, "read")
	}

	m, _, err := c.load(ctx)
	if err != nil {
		c.logger.Errorw("Failed to read collection", "collection", c.key, "error", err)
		return []T{}
	}

	items := make([]T, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	return items
}

// nowRFC3339 is the creation/modification timestamp format used everywhere.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newToken builds the time+random composite identifiers used for comments
// and images, e.g. "comment_1714650000123_k3j9x2m1q".
func newToken(prefix string) string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively fatal; fall back to timestamp only
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), b)
}
