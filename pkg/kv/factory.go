package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend names a registered store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config selects and tunes the backend NewStoreFromConfig builds. Zero
// durations pick the defaults noted per field.
type Config struct {
	Backend Backend

	// RedisURL is required for the redis backend, in the usual
	// redis://[:password@]host:port/db form.
	RedisURL string

	// JanitorInterval is how often the in-memory store sweeps expired
	// documents. Zero means the 30s default; expired keys are still dropped
	// lazily on access either way.
	JanitorInterval time.Duration

	// FailoverEnabled wraps the redis backend in a FailoverStore that demotes
	// to memory when redis goes away and promotes back once it recovers.
	FailoverEnabled bool

	// ProbeInterval is how often a demoted FailoverStore retries redis.
	// Zero means 5s.
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the initial redis ping. Zero means 1s.
	StartupProbeTimeout time.Duration

	// Logger receives backend selection and failover events. Nil is fine.
	Logger LogFunc
}

// StoreFactory builds a Store from a Config.
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend makes a backend available to NewStoreFromConfig. Backends
// call this from an init function; importing the package is enough.
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig builds the configured backend, applying defaults for
// unset durations.
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = 1 * time.Second
	}

	switch cfg.Backend {
	case BackendMemory:
		factory, ok := factories[BackendMemory]
		if !ok {
			return nil, fmt.Errorf("memory backend not registered")
		}
		return factory(cfg)

	case BackendRedis:
		return newRedisBacked(cfg)

	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

// newRedisBacked builds the redis store, falling back to memory when redis
// cannot be reached at startup. With failover enabled the fallback is a
// FailoverStore that keeps probing redis; without it the choice made at
// startup is final.
func newRedisBacked(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is %q", BackendRedis)
	}

	memoryFactory, ok := factories[BackendMemory]
	if !ok {
		return nil, fmt.Errorf("memory backend not registered")
	}
	redisFactory, ok := factories[BackendRedis]
	if !ok {
		return nil, fmt.Errorf("redis backend not registered")
	}

	memoryStore, err := memoryFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create fallback memory store: %w", err)
	}

	redisStore, err := redisFactory(cfg)
	if err != nil {
		logf(cfg.Logger, "Redis unavailable at startup, using in-memory store", "error", err.Error())
		return memoryStore, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()
	pingErr := redisStore.Ping(ctx)

	if !cfg.FailoverEnabled {
		if pingErr != nil {
			redisStore.Close()
			logf(cfg.Logger, "Redis ping failed at startup, using in-memory store", "error", pingErr.Error())
			return memoryStore, nil
		}
		memoryStore.Close()
		return redisStore, nil
	}

	if pingErr != nil {
		logf(cfg.Logger, "Redis unhealthy at startup, starting on in-memory store and probing for recovery",
			"error", pingErr.Error())
		return NewFailoverStoreWithFallbackActive(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
	}

	logf(cfg.Logger, "Redis healthy at startup, running with in-memory failover")
	return NewFailoverStore(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
}

func logf(l LogFunc, msg string, fields ...any) {
	if l != nil {
		l(msg, fields...)
	}
}
