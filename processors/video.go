package processors

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".flv": true, ".wmv": true, ".m4v": true,
}

const (
	thumbnailWidth = 320
	previewFormat  = "mp4"
)

// VideoProcessor probes video payloads and produces evenly spaced
// thumbnails, a truncated preview clip, and quality-tiered renditions.
type VideoProcessor struct {
	toolkit MediaToolkit
	log     *slog.Logger
}

// NewVideoProcessor creates a video processor backed by toolkit.
func NewVideoProcessor(toolkit MediaToolkit, log *slog.Logger) *VideoProcessor {
	return &VideoProcessor{toolkit: toolkit, log: log}
}

// Type returns the category this processor handles.
func (p *VideoProcessor) Type() interfaces.ProcessorType { return interfaces.VideoType }

// Supports claims video/* MIME types and known container extensions.
func (p *VideoProcessor) Supports(mimeType, fileName string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return videoExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Validate rejects empty or oversized payloads and videos whose probed
// duration exceeds the configured cap.
func (p *VideoProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	if len(data) == 0 {
		return &interfaces.ValidationError{Field: "data", Reason: "zero-length payload"}
	}
	if max := maxSizeOr(opts, defaultVideoMaxSize); int64(len(data)) > max {
		return &interfaces.ValidationError{Field: "size", Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), max)}
	}

	if opts.MaxDuration > 0 {
		info, err := p.toolkit.Probe(ctx, data)
		if err != nil {
			return &interfaces.ValidationError{Field: "data", Reason: fmt.Sprintf("unprobeable video: %v", err)}
		}
		if info.Duration > opts.MaxDuration {
			return &interfaces.ValidationError{
				Field:  "duration",
				Reason: fmt.Sprintf("%.1fs exceeds limit of %.1fs", info.Duration, opts.MaxDuration),
			}
		}
	}
	return nil
}

// Process probes the payload and produces thumbnails, a preview clip, and
// tiered renditions.
func (p *VideoProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	info, err := p.toolkit.Probe(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("probing %q: %w", fileName, err)
	}

	out := &interfaces.ProcessOutput{
		Metadata: map[string]any{
			"format":      info.Format,
			"duration":    info.Duration,
			"bitrate":     info.Bitrate,
			"width":       info.Width,
			"height":      info.Height,
			"video_codec": info.VideoCodec,
			"audio_codec": info.AudioCodec,
		},
	}

	if err := p.addThumbnails(ctx, data, info, opts, out); err != nil {
		return nil, err
	}
	if err := p.addPreview(ctx, data, info, opts, out); err != nil {
		return nil, err
	}
	if err := p.addTiers(ctx, data, info, opts, out); err != nil {
		return nil, err
	}
	return out, nil
}

// addThumbnails captures N frames evenly spaced over the duration, at
// timestamps duration*i/(n+1).
func (p *VideoProcessor) addThumbnails(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	count := opts.ThumbnailCount
	if count <= 0 {
		count = defaultThumbnailCount
	}

	for i := 1; i <= count; i++ {
		at := info.Duration * float64(i) / float64(count+1)
		frame, err := p.toolkit.ExtractFrame(ctx, data, at, thumbnailWidth)
		if err != nil {
			return fmt.Errorf("extracting frame at %.1fs: %w", at, err)
		}
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:     interfaces.ArtifactThumbnail,
			Data:     frame,
			Format:   "jpeg",
			Size:     int64(len(frame)),
			Width:    thumbnailWidth,
			Duration: at,
			Label:    fmt.Sprintf("t%.0fs", at),
		})
	}
	return nil
}

// addPreview cuts a clip of min(previewDuration, 80% of the source) starting
// 10% into the video.
func (p *VideoProcessor) addPreview(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	previewDuration := opts.PreviewDuration
	if previewDuration <= 0 {
		previewDuration = defaultPreviewDuration
	}
	length := math.Min(previewDuration, info.Duration*0.8)
	if length <= 0 {
		return nil
	}
	start := info.Duration * 0.1

	clip, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
		Format:   previewFormat,
		Start:    start,
		Duration: length,
	})
	if err != nil {
		return fmt.Errorf("cutting preview: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:     interfaces.ArtifactPreview,
		Data:     clip,
		Format:   previewFormat,
		Size:     int64(len(clip)),
		Duration: length,
		Label:    "preview",
	})
	return nil
}

// addTiers produces one rendition per tier whose target bitrate is strictly
// below the source bitrate; everything else is skipped, never upscaled.
func (p *VideoProcessor) addTiers(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = defaultTiers
	}

	for _, tier := range tiers {
		if info.Bitrate > 0 && tier.Bitrate >= info.Bitrate {
			p.log.Debug("Skipping tier at or above source bitrate",
				slog.String("tier", tier.Name),
				slog.Int("tier_kbps", tier.Bitrate),
				slog.Int("source_kbps", info.Bitrate))
			continue
		}

		width := tier.Width
		if info.Width > 0 && width > info.Width {
			width = info.Width
		}
		rendition, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
			Format:  previewFormat,
			Bitrate: tier.Bitrate,
			Width:   width,
		})
		if err != nil {
			return fmt.Errorf("transcoding %q tier: %w", tier.Name, err)
		}
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:     interfaces.ArtifactCompressed,
			Data:     rendition,
			Format:   previewFormat,
			Size:     int64(len(rendition)),
			Width:    width,
			Duration: info.Duration,
			Label:    tier.Name,
		})
	}
	return nil
}
