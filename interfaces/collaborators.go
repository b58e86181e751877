package interfaces

import (
	"context"
	"time"
)

// EventNotifier announces pipeline outcomes to the surrounding system.
// Notify is fire-and-forget: implementations must not block the pipeline,
// and delivery failures must be swallowed by the caller.
type EventNotifier interface {
	Notify(ctx context.Context, event Event)
}

// MetadataStore persists object descriptors and artifact references. The
// pipeline does not know or depend on its schema.
type MetadataStore interface {
	SaveObject(ctx context.Context, obj *StorageObject) error
	SaveArtifacts(ctx context.Context, parentKey StorageKey, artifacts []Artifact) error
}

// ContentLocker provides short-TTL mutual exclusion keyed by content hash,
// used to deduplicate concurrent identical uploads. The TTL bounds worst-case
// blocking if a lock holder crashes.
type ContentLocker interface {
	// Acquire attempts to take the lock for contentHash. When acquired is
	// true, token must be presented to Release.
	Acquire(ctx context.Context, contentHash string, ttl time.Duration) (acquired bool, token string, err error)

	// Release frees the lock if token matches the current holder.
	Release(ctx context.Context, contentHash, token string) (bool, error)
}

// NoopNotifier discards all events. Used when no event bus is wired in;
// collaborators absent at runtime are explicit no-op implementations rather
// than conditional branches in the pipeline.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, event Event) {}

// NoopMetadataStore discards descriptors.
type NoopMetadataStore struct{}

func (NoopMetadataStore) SaveObject(ctx context.Context, obj *StorageObject) error { return nil }

func (NoopMetadataStore) SaveArtifacts(ctx context.Context, parentKey StorageKey, artifacts []Artifact) error {
	return nil
}

// NoopLocker always grants the lock. Used when deduplication is delegated
// entirely to the caller.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, contentHash string, ttl time.Duration) (bool, string, error) {
	return true, "", nil
}

func (NoopLocker) Release(ctx context.Context, contentHash, token string) (bool, error) {
	return true, nil
}
