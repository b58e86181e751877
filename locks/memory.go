// Package locks provides content-hash scoped locking used to deduplicate
// concurrent identical uploads.
package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token    string
	deadline time.Time
}

// MemoryLocker is an in-process TTL lock table keyed by content hash.
// Expired locks are reclaimed lazily on the next acquisition attempt, so a
// crashed holder blocks others for at most the TTL.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewMemoryLocker creates an empty lock table.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock for contentHash unless a live holder exists.
// The returned token must be presented to Release.
func (l *MemoryLocker) Acquire(ctx context.Context, contentHash string, ttl time.Duration) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.locks[contentHash]; ok && l.now().Before(entry.deadline) {
		return false, "", nil
	}

	token := uuid.NewString()
	l.locks[contentHash] = lockEntry{token: token, deadline: l.now().Add(ttl)}
	return true, token, nil
}

// Release frees the lock if token matches the current holder. Releasing an
// expired or re-acquired lock is a no-op.
func (l *MemoryLocker) Release(ctx context.Context, contentHash, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[contentHash]
	if !ok || entry.token != token {
		return false, nil
	}
	delete(l.locks, contentHash)
	return true, nil
}
