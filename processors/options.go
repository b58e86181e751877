package processors

import (
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// Per-type default limits, applied when the corresponding ProcessOptions
// field is zero.
const (
	defaultImageMaxSize    = 50 << 20
	defaultVideoMaxSize    = 500 << 20
	defaultAudioMaxSize    = 100 << 20
	defaultDocumentMaxSize = 100 << 20
	defaultArchiveMaxSize  = 1 << 30

	defaultMaxWidth  = 10000
	defaultMaxHeight = 10000

	defaultThumbnailCount  = 3
	defaultPreviewDuration = 30.0

	defaultMaxPages      = 2000
	defaultMaxTextLength = 100000

	defaultMaxEntries   = 10000
	defaultMaxTotalSize = 2 << 30
	defaultMaxEntrySize = 500 << 20
)

var defaultThumbnailSizes = []int{128, 256, 512}

// defaultTiers are the standard compressed renditions. Tiers at or above
// the source bitrate are skipped at process time.
var defaultTiers = []interfaces.QualityTier{
	{Name: "low", Bitrate: 500, Width: 640},
	{Name: "medium", Bitrate: 1500, Width: 1280},
	{Name: "high", Bitrate: 4000, Width: 1920},
}

// maxSizeOr returns the configured cap or the per-type default.
func maxSizeOr(opts interfaces.ProcessOptions, fallback int64) int64 {
	if opts.MaxSize > 0 {
		return opts.MaxSize
	}
	return fallback
}
