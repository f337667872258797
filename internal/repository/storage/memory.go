package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// MemoryStorage keeps session values in process. Writers to one session are
// serialized by a per-session lock; different sessions never share a lock.
type MemoryStorage struct {
	mu      sync.Mutex // guards entries and locks
	entries map[string]memoryEntry
	locks   map[string]*sessionLock

	ttl time.Duration
	now func() time.Time
}

func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]memoryEntry),
		locks:   make(map[string]*sessionLock),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (that *MemoryStorage) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	value, ok := that.load(sessionKey(sessionID, key))
	if !ok {
		return nil, ErrKeyNotFound
	}

	return value, nil
}

func (that *MemoryStorage) Set(_ context.Context, sessionID, key string, value []byte) error {
	unlock := that.lockSession(sessionID)
	defer unlock()

	that.mu.Lock()
	defer that.mu.Unlock()

	that.store(sessionKey(sessionID, key), value)

	return nil
}

// Update - holds the session lock for the whole read-modify-write.
func (that *MemoryStorage) Update(_ context.Context, sessionID, key string, fn UpdateFunc) error {
	unlock := that.lockSession(sessionID)
	defer unlock()

	memKey := sessionKey(sessionID, key)

	that.mu.Lock()
	current, ok := that.load(memKey)
	that.mu.Unlock()

	if !ok {
		return ErrKeyNotFound
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	that.mu.Lock()
	that.store(memKey, next)
	that.mu.Unlock()

	return nil
}

func (that *MemoryStorage) Delete(_ context.Context, sessionID, key string) error {
	unlock := that.lockSession(sessionID)
	defer unlock()

	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.entries, sessionKey(sessionID, key))

	return nil
}

// RunJanitor - drops expired entries every interval until ctx is done.
func (that *MemoryStorage) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.purgeExpired()
		}
	}
}

func (that *MemoryStorage) purgeExpired() {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()
	for key, entry := range that.entries {
		if that.expired(entry, now) {
			delete(that.entries, key)
		}
	}
}

func (that *MemoryStorage) Close() error {
	return nil
}

// load - must be called with mu held.
func (that *MemoryStorage) load(key string) ([]byte, bool) {
	entry, ok := that.entries[key]
	if !ok {
		return nil, false
	}

	if that.expired(entry, that.now()) {
		delete(that.entries, key)
		return nil, false
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	return value, true
}

// store - must be called with mu held.
func (that *MemoryStorage) store(key string, value []byte) {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)

	if that.ttl > 0 {
		entry.expiresAt = that.now().Add(that.ttl)
	}

	that.entries[key] = entry
}

func (that *MemoryStorage) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

func (that *MemoryStorage) lockSession(sessionID string) func() {
	that.mu.Lock()
	lock, ok := that.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		that.locks[sessionID] = lock
	}
	lock.refs++
	that.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		that.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(that.locks, sessionID)
		}
		that.mu.Unlock()
	}
}
