// Package storage implements the persistence layer: per-provider adapters
// (local filesystem, S3, GCS, IPFS, Vault, in-memory), a URI-scheme factory
// that builds them, and a manager that fronts an ordered candidate list
// with retry, automatic failover, periodic health polling, and transparent
// payload compression/encryption.
//
// Adapters implement interfaces.StorageAdapter and deal only in raw bytes
// under opaque keys. Cross-cutting behavior lives in the Manager: it
// generates keys before the first attempt so failover retries stay
// idempotent, encodes payloads through content.Codec, classifies errors
// via interfaces.IsTransient, and emits FAILOVER_OCCURRED and
// STORAGE_DEGRADED events.
package storage
