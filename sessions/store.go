package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for a missing or expired key
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore defines the persistence needed for sessions.
type KeyValueStore interface {
	// Set writes value under key, replacing any previous value, expiring after ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value under key or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}

// PatternDeleter is an optional KeyValueStore capability used to revoke every session of a user.
// Implementations must delete incrementally and never hold the store for the whole scan.
type PatternDeleter interface {
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// CompareAndSwapper is an optional KeyValueStore capability that makes rotation atomic.
// SetIfUnchanged writes value only when the stored bytes still equal previous.
type CompareAndSwapper interface {
	SetIfUnchanged(ctx context.Context, key string, previous, value []byte, ttl time.Duration) (bool, error)
}
