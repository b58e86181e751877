// Package interfaces defines the core contracts and types of the media
// ingestion pipeline, separating interface definitions from implementations.
//
// The package provides interfaces for the key components of the system:
//
// # Storage Interfaces
//
// StorageAdapter: Per-provider byte-level persistence (upload, download,
// delete, existence checks, metadata, paged listing, presigned URLs, copy,
// health checks) across file, S3, GCS, IPFS, Vault, and in-memory backends.
//
// # Processing Interfaces
//
// Processor: Per-category content transformation. Each processor declares
// which payloads it supports, validates them against type-specific limits,
// and produces probed metadata plus derived artifacts.
//
// # Collaborator Interfaces
//
// EventNotifier, MetadataStore, and ContentLocker represent external
// collaborators (event bus, metadata persistence, dedup lock service). Each
// has an explicit no-op implementation for when the collaborator is absent
// at runtime.
//
// # Data Model
//
// - FileInput: one ephemeral uploaded payload
// - ProcessingResult: metadata and derived artifacts from one pipeline call
// - StorageKey: deterministic, time-partitioned object identifier
// - StorageObject: descriptor of a persisted object
// - ProviderHealth: polled provider status used for proactive failover
//
// # Error Taxonomy
//
// ValidationError and UnsupportedTypeError are terminal and never retried.
// ProcessingError is retried by the orchestrator, StorageError by the storage
// manager with failover. SecurityError rejects a single archive entry.
// TimeoutError follows the transient retry path. IsTransient classifies
// arbitrary errors for the shared retry utility.
package interfaces
