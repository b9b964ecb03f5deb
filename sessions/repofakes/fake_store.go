package repofakes

import (
	"bytes"
	"context"
	"path"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session-server/sessions"
)

var (
	_ sessions.KeyValueStore     = (*FakeStore)(nil)
	_ sessions.PatternDeleter    = (*FakeStore)(nil)
	_ sessions.CompareAndSwapper = (*FakeStore)(nil)
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// FakeStore is an in-memory KeyValueStore with every optional capability.
type FakeStore struct {
	entries map[string]entry
	nowFunc func() time.Time
	lock    sync.RWMutex
}

func NewFakeStore(nowFunc func() time.Time) *FakeStore {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &FakeStore{
		entries: make(map[string]entry),
		nowFunc: nowFunc,
	}
}

func (fs *FakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.entries[key] = entry{value: bytes.Clone(value), expiresAt: fs.nowFunc().Add(ttl)}
	return nil
}

func (fs *FakeStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	e, ok := fs.live(key)
	if !ok {
		return nil, sessions.ErrKeyNotFound
	}
	return bytes.Clone(e.value), nil
}

func (fs *FakeStore) Delete(_ context.Context, key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	delete(fs.entries, key)
	return nil
}

func (fs *FakeStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	var deleted int64
	for key := range fs.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(fs.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (fs *FakeStore) SetIfUnchanged(_ context.Context, key string, previous, value []byte, ttl time.Duration) (bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	e, ok := fs.live(key)
	if !ok || !bytes.Equal(e.value, previous) {
		return false, nil
	}
	fs.entries[key] = entry{value: bytes.Clone(value), expiresAt: fs.nowFunc().Add(ttl)}
	return true, nil
}

// TTL returns the remaining lifetime of key, zero when absent
func (fs *FakeStore) TTL(key string) time.Duration {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	e, ok := fs.live(key)
	if !ok {
		return 0
	}
	return e.expiresAt.Sub(fs.nowFunc())
}

// Len returns the number of live keys
func (fs *FakeStore) Len() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	n := 0
	for key := range fs.entries {
		if _, ok := fs.live(key); ok {
			n++
		}
	}
	return n
}

func (fs *FakeStore) live(key string) (entry, bool) {
	e, ok := fs.entries[key]
	if !ok || !fs.nowFunc().Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

// BasicStore exposes only the required KeyValueStore methods of a FakeStore, modelling a
// store without pattern delete or compare-and-swap.
type BasicStore struct {
	inner *FakeStore
}

var _ sessions.KeyValueStore = (*BasicStore)(nil)

func NewBasicStore(inner *FakeStore) *BasicStore {
	return &BasicStore{inner: inner}
}

func (bs *BasicStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return bs.inner.Set(ctx, key, value, ttl)
}

func (bs *BasicStore) Get(ctx context.Context, key string) ([]byte, error) {
	return bs.inner.Get(ctx, key)
}

func (bs *BasicStore) Delete(ctx context.Context, key string) error {
	return bs.inner.Delete(ctx, key)
}
