// Package pipeline orchestrates file processing: it routes payloads to the
// matching processor, enforces per-attempt timeouts, retries transformation
// failures with a fixed delay, runs batches under bounded concurrency with
// per-file isolation, and tracks in-flight jobs in a time-bounded registry.
// The Persister bundles the caller-side persistence flow over the storage
// manager, the metadata store, and the content-dedup lock.
package pipeline
