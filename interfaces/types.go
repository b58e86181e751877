package interfaces

import (
	"time"
)

// ProcessorType identifies the content category a processor handles.
type ProcessorType string

const (
	ImageType    ProcessorType = "image"
	VideoType    ProcessorType = "video"
	AudioType    ProcessorType = "audio"
	DocumentType ProcessorType = "document"
	ArchiveType  ProcessorType = "archive"
)

// ArtifactType identifies a category of derived artifact.
type ArtifactType string

const (
	ArtifactThumbnail     ArtifactType = "thumbnail"
	ArtifactPreview       ArtifactType = "preview"
	ArtifactCompressed    ArtifactType = "compressed"
	ArtifactTranscode     ArtifactType = "transcode"
	ArtifactWaveform      ArtifactType = "waveform"
	ArtifactWaveformImage ArtifactType = "waveform_image"
	ArtifactSpectrogram   ArtifactType = "spectrogram"
	ArtifactNormalized    ArtifactType = "normalized"
	ArtifactSegment       ArtifactType = "segment"
	ArtifactExtractedText ArtifactType = "extracted_text"
	ArtifactArchiveEntry  ArtifactType = "archive_entry"
)

// FileInput describes one uploaded payload entering the pipeline.
// It is ephemeral: it exists only for the duration of a single pipeline call.
type FileInput struct {
	Data         []byte
	FileName     string
	MimeType     string
	DeclaredSize int64
}

// Artifact is a generated byproduct of processing (thumbnail, preview,
// compressed rendition, extracted text). Artifacts never have independent
// identity: ParentID always references the processing job that produced them.
type Artifact struct {
	Type     ArtifactType
	Data     []byte
	Format   string
	Size     int64
	Width    int
	Height   int
	Duration float64
	Pages    int
	Label    string
	ParentID string
}

// ProcessingResult is the outcome of a single processor run. Ownership
// transfers to the caller, which is responsible for persisting the original
// payload and any derived artifacts.
type ProcessingResult struct {
	ProcessID      string
	Type           ProcessorType
	Metadata       map[string]any
	Artifacts      []Artifact
	ProcessingTime time.Duration
}

// BatchResult aggregates the outcome of a batch submission. Per-file failures
// are isolated: one file's error never aborts its siblings.
type BatchResult struct {
	SuccessCount int
	ErrorCount   int
	Results      []*ProcessingResult
	Errors       []BatchError
}

// BatchError records one failed file within a batch.
type BatchError struct {
	FileName string
	Err      error
}

// StorageKey is an opaque, deterministic, time-partitioned object identifier
// of the form prefix/year/month/day/timestamp_random_sanitizedName. Two keys
// generated for the same filename at different instants never collide.
type StorageKey string

// String returns the raw key.
func (k StorageKey) String() string { return string(k) }

// StorageObject describes a persisted object. It remains valid until the
// object is explicitly deleted.
type StorageObject struct {
	Key        StorageKey
	Size       int64
	ETag       string
	Location   string
	Provider   string
	Metadata   map[string]string
	UploadedAt time.Time
}

// HealthState reports whether a provider is serviceable.
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Unhealthy HealthState = "unhealthy"
)

// ProviderHealth is the result of polling one storage provider. It is
// refreshed periodically and read to decide proactive failover.
type ProviderHealth struct {
	Status    HealthState
	LastCheck time.Time
	Err       string
}

// Ok reports whether the provider was healthy at last check.
func (h ProviderHealth) Ok() bool { return h.Status == Healthy }

// Event is a named, fire-and-forget notification with a flat payload.
// Delivery failures are logged and swallowed, never surfaced as pipeline
// failures.
type Event struct {
	Name    string
	Payload map[string]string
}

// Event names emitted by the pipeline and the storage manager.
const (
	EventFileProcessed        = "FILE_PROCESSED"
	EventFileProcessingFailed = "FILE_PROCESSING_FAILED"
	EventFailoverOccurred     = "FAILOVER_OCCURRED"
	EventStorageDegraded      = "STORAGE_DEGRADED"
)
