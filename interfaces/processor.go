package interfaces

import (
	"context"
)

// ProcessOptions carries per-call knobs for validation and transformation.
// Zero values fall back to processor defaults.
type ProcessOptions struct {
	// MaxSize caps the payload size in bytes for the selected processor.
	MaxSize int64

	// Image
	ThumbnailSizes []int // square thumbnail edge lengths
	MaxWidth       int   // 0 means no resolution cap
	MaxHeight      int

	// Video and audio compressed renditions. A tier is skipped unless its
	// bitrate is strictly below the source bitrate.
	Tiers []QualityTier

	// Video and audio
	MaxDuration float64 // seconds; 0 means no duration cap

	// Video
	ThumbnailCount  int
	PreviewDuration float64 // seconds

	// Audio
	TargetFormats   []string // transcode targets; source format is skipped
	GenerateSpectro bool
	Normalize       bool
	SegmentStart    float64 // seconds; used with SegmentDuration > 0
	SegmentDuration float64

	// Document
	MaxPages      int
	MaxTextLength int

	// Archive
	MaxEntries        int
	MaxTotalSize      int64
	MaxEntrySize      int64
	AllowedExtensions []string // empty means any
	ExtractEntries    bool
}

// QualityTier describes one compressed rendition target.
type QualityTier struct {
	Name    string
	Bitrate int // kbit/s
	Width   int // target video width; 0 keeps the source width
}

// ProcessOutput is what a processor hands back to the orchestrator: probed
// metadata plus the derived artifacts.
type ProcessOutput struct {
	Metadata  map[string]any
	Artifacts []Artifact
}

// Processor transforms one category of content. Validation always precedes
// any transformation: Process may assume Validate accepted the payload.
type Processor interface {
	// Type returns the category this processor handles.
	Type() ProcessorType

	// Supports reports whether this processor claims the given payload,
	// based on MIME type, filename extension, or content signature.
	Supports(mimeType, fileName string) bool

	// Validate rejects zero-length payloads, payloads over the per-type max
	// size, and content whose probed properties exceed type-specific caps.
	// Returns a *ValidationError on rejection.
	Validate(ctx context.Context, data []byte, opts ProcessOptions) error

	// Process extracts metadata and produces derived artifacts.
	Process(ctx context.Context, data []byte, fileName string, opts ProcessOptions) (*ProcessOutput, error)
}
