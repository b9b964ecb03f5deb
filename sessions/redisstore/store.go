package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session-server/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultScanCount = 100

var (
	_ sessions.KeyValueStore     = (*Store)(nil)
	_ sessions.PatternDeleter    = (*Store)(nil)
	_ sessions.CompareAndSwapper = (*Store)(nil)
)

// setIfUnchanged swaps the value only if it still holds ARGV[1]; a missing key never matches.
var setIfUnchanged = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

// Store keeps sessions in Redis.
type Store struct {
	rdb       *redis.Client
	scanCount int64
}

type StoreOption func(*Store)

// WithScanCount sets the SCAN COUNT hint used per page when deleting by pattern
func WithScanCount(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.scanCount = n
		}
	}
}

func New(rdb *redis.Client, options ...StoreOption) *Store {
	s := &Store{rdb: rdb, scanCount: defaultScanCount}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore.Set] %s", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessions.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore.Get] %s", key)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore.Delete] %s", key)
	}
	return nil
}

// DeleteByPattern walks the keyspace with SCAN and unlinks each page of matches, so no single
// command blocks the server for the whole user namespace.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return deleted, errors.Wrapf(err, "[redisstore.DeleteByPattern] scan %s", pattern)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrapf(err, "[redisstore.DeleteByPattern] unlink %s", pattern)
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func (s *Store) SetIfUnchanged(ctx context.Context, key string, previous, value []byte, ttl time.Duration) (bool, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	swapped, err := setIfUnchanged.Run(ctx, s.rdb, []string{key}, previous, value, ms).Int()
	if err != nil {
		return false, errors.Wrapf(err, "[redisstore.SetIfUnchanged] %s", key)
	}
	return swapped == 1, nil
}
