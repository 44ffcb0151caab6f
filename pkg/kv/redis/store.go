package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis-backed implementation of the kv.Store interface.
// Each document lives in a Redis hash with "data" and "version" fields so
// the compare-and-swap in Put can be done atomically with a Lua script.
type Store struct {
	client *redis.Client
}

// putScript performs the version check and replace in one atomic step.
// ARGV: data, expected version (-1 any, 0 create), ttl in milliseconds (0 none).
// Returns the new version, or -1 on version conflict.
var putScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
local expect = tonumber(ARGV[2])
if expect == 0 then
  if cur then return -1 end
elseif expect > 0 then
  if (not cur) or tonumber(cur) ~= expect then return -1 end
end
local next = 1
if cur then next = tonumber(cur) + 1 end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', next)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
else
  redis.call('PERSIST', KEYS[1])
end
return next
`)

// IsConnectionError checks if an error is a connection-related error that should trigger failover
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Don't treat redis.Nil as a connection error (it means "key not found")
	if err == redis.Nil {
		return false
	}

	// Context cancellation by caller should not trigger failover
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	// Check error message for common connection issues
	errStr := err.Error()
	connectionErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"timeout",
		"connection closed",
		"EOF",
	}

	for _, connErr := range connectionErrors {
		if strings.Contains(errStr, connErr) {
			return true
		}
	}

	return false
}

// wrapConnectionError wraps connection errors with ErrBackendUnavailable
func (s *Store) wrapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// New creates a new Redis-backed store
func New(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback for simple address format
		u, parseErr := url.Parse("redis://" + redisURL)
		if parseErr != nil {
			return nil, err // Return original error
		}

		db := 0
		if u.Path != "" && u.Path != "/" {
			if dbNum, dbErr := strconv.Atoi(u.Path[1:]); dbErr == nil {
				db = dbNum
			}
		}

		opt = &redis.Options{
			Addr:     u.Host,
			Password: "",
			DB:       db,
		}

		if u.User != nil {
			if password, hasPassword := u.User.Password(); hasPassword {
				opt.Password = password
			}
		}
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, key string) (kv.Document, error) {
	fields, err := s.client.HMGet(ctx, key, "data", "version").Result()
	if err != nil {
		return kv.Document{}, s.wrapConnectionError(err)
	}

	if fields[0] == nil || fields[1] == nil {
		return kv.Document{}, kv.ErrNotFound
	}

	data, ok := fields[0].(string)
	if !ok {
		return kv.Document{}, fmt.Errorf("unexpected data type for key %q", key)
	}
	versionStr, ok := fields[1].(string)
	if !ok {
		return kv.Document{}, fmt.Errorf("unexpected version type for key %q", key)
	}
	version, err := strconv.ParseInt(versionStr, 10, 64)
	if err != nil {
		return kv.Document{}, fmt.Errorf("corrupt version for key %q: %w", key, err)
	}

	return kv.Document{Data: []byte(data), Version: version}, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expect int64, ttl ...time.Duration) (int64, error) {
	var ttlMillis int64
	if len(ttl) > 0 && ttl[0] > 0 {
		ttlMillis = ttl[0].Milliseconds()
	}

	result, err := putScript.Run(ctx, s.client, []string{key}, value, expect, ttlMillis).Int64()
	if err != nil {
		return 0, s.wrapConnectionError(err)
	}
	if result == -1 {
		return 0, kv.ErrConflict
	}
	return result, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return s.wrapConnectionError(err)
	}
	if deleted == 0 {
		return kv.ErrNotFound
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.wrapConnectionError(err)
	}
	return n > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.wrapConnectionError(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
