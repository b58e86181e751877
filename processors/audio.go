package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".ogg": true, ".flac": true,
	".aac": true, ".m4a": true, ".wma": true, ".opus": true,
}

const (
	waveformBuckets = 200
	waveformWidth   = 800
	waveformHeight  = 200

	spectrogramWidth  = 800
	spectrogramHeight = 400
)

// AudioProcessor probes audio payloads and produces waveform data and
// imagery, optional spectrograms, tiered renditions, transcodes,
// normalization, and segment extraction.
type AudioProcessor struct {
	toolkit MediaToolkit
	log     *slog.Logger
}

// NewAudioProcessor creates an audio processor backed by toolkit.
func NewAudioProcessor(toolkit MediaToolkit, log *slog.Logger) *AudioProcessor {
	return &AudioProcessor{toolkit: toolkit, log: log}
}

// Type returns the category this processor handles.
func (p *AudioProcessor) Type() interfaces.ProcessorType { return interfaces.AudioType }

// Supports claims audio/* MIME types and known audio extensions.
func (p *AudioProcessor) Supports(mimeType, fileName string) bool {
	if strings.HasPrefix(mimeType, "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Validate rejects empty or oversized payloads and audio whose probed
// duration exceeds the configured cap.
func (p *AudioProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	if len(data) == 0 {
		return &interfaces.ValidationError{Field: "data", Reason: "zero-length payload"}
	}
	if max := maxSizeOr(opts, defaultAudioMaxSize); int64(len(data)) > max {
		return &interfaces.ValidationError{Field: "size", Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), max)}
	}

	if opts.MaxDuration > 0 {
		info, err := p.toolkit.Probe(ctx, data)
		if err != nil {
			return &interfaces.ValidationError{Field: "data", Reason: fmt.Sprintf("unprobeable audio: %v", err)}
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

// Process probes the payload and produces all configured artifacts.
func (p *AudioProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	info, err := p.toolkit.Probe(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("probing %q: %w", fileName, err)
	}

	out := &interfaces.ProcessOutput{
		Metadata: map[string]any{
			"format":      info.Format,
			"duration":    info.Duration,
			"bitrate":     info.Bitrate,
			"codec":       info.AudioCodec,
			"sample_rate": info.SampleRate,
			"channels":    info.Channels,
		},
	}

	if err := p.addWaveform(ctx, data, out); err != nil {
		return nil, err
	}
	if opts.GenerateSpectro {
		if err := p.addSpectrogram(ctx, data, out); err != nil {
			return nil, err
		}
	}
	if err := p.addTiers(ctx, data, info, opts, out); err != nil {
		return nil, err
	}
	if err := p.addTranscodes(ctx, data, info, opts, out); err != nil {
		return nil, err
	}
	if opts.Normalize {
		if err := p.addNormalized(ctx, data, info, out); err != nil {
			return nil, err
		}
	}
	if opts.SegmentDuration > 0 {
		if err := p.addSegment(ctx, data, info, opts, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// addWaveform samples peak amplitudes and attaches both the raw data (JSON)
// and a rendered PNG.
func (p *AudioProcessor) addWaveform(ctx context.Context, data []byte, out *interfaces.ProcessOutput) error {
	peaks, err := p.toolkit.SamplePeaks(ctx, data, waveformBuckets)
	if err != nil {
		return fmt.Errorf("sampling waveform: %w", err)
	}

	encoded, err := json.Marshal(peaks)
	if err != nil {
		return err
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:   interfaces.ArtifactWaveform,
		Data:   encoded,
		Format: "json",
		Size:   int64(len(encoded)),
		Label:  fmt.Sprintf("%d peaks", len(peaks)),
	})

	rendered, err := renderWaveformPNG(peaks, waveformWidth, waveformHeight)
	if err != nil {
		return fmt.Errorf("rendering waveform: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:   interfaces.ArtifactWaveformImage,
		Data:   rendered,
		Format: "png",
		Size:   int64(len(rendered)),
		Width:  waveformWidth,
		Height: waveformHeight,
	})
	return nil
}

func (p *AudioProcessor) addSpectrogram(ctx context.Context, data []byte, out *interfaces.ProcessOutput) error {
	rendered, err := p.toolkit.Spectrogram(ctx, data, spectrogramWidth, spectrogramHeight)
	if err != nil {
		return fmt.Errorf("rendering spectrogram: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:   interfaces.ArtifactSpectrogram,
		Data:   rendered,
		Format: "png",
		Size:   int64(len(rendered)),
		Width:  spectrogramWidth,
		Height: spectrogramHeight,
	})
	return nil
}

// addTiers produces renditions only for tiers strictly below the source
// bitrate.
func (p *AudioProcessor) addTiers(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = defaultTiers
	}

	for _, tier := range tiers {
		if info.Bitrate > 0 && tier.Bitrate >= info.Bitrate {
			p.log.Debug("Skipping audio tier at or above source bitrate",
				slog.String("tier", tier.Name),
				slog.Int("tier_kbps", tier.Bitrate),
				slog.Int("source_kbps", info.Bitrate))
			continue
		}
		rendition, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
			Format:    "mp3",
			Bitrate:   tier.Bitrate,
			AudioOnly: true,
		})
		if err != nil {
			return fmt.Errorf("transcoding %q tier: %w", tier.Name, err)
		}
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:     interfaces.ArtifactCompressed,
			Data:     rendition,
			Format:   "mp3",
			Size:     int64(len(rendition)),
			Duration: info.Duration,
			Label:    tier.Name,
		})
	}
	return nil
}

// addTranscodes converts to each configured target format, skipping the
// source format.
func (p *AudioProcessor) addTranscodes(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	for _, format := range opts.TargetFormats {
		format = strings.ToLower(strings.TrimPrefix(format, "."))
		if format == info.Format || format == info.AudioCodec {
			p.log.Debug("Skipping transcode to source format", slog.String("format", format))
			continue
		}
		converted, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
			Format:    format,
			AudioOnly: true,
		})
		if err != nil {
			return fmt.Errorf("transcoding to %s: %w", format, err)
		}
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:     interfaces.ArtifactTranscode,
			Data:     converted,
			Format:   format,
			Size:     int64(len(converted)),
			Duration: info.Duration,
		})
	}
	return nil
}

func (p *AudioProcessor) addNormalized(ctx context.Context, data []byte, info *ProbeInfo, out *interfaces.ProcessOutput) error {
	normalized, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
		Format:    "mp3",
		AudioOnly: true,
		Normalize: true,
	})
	if err != nil {
		return fmt.Errorf("normalizing: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:     interfaces.ArtifactNormalized,
		Data:     normalized,
		Format:   "mp3",
		Size:     int64(len(normalized)),
		Duration: info.Duration,
	})
	return nil
}

// addSegment cuts [SegmentStart, SegmentStart+SegmentDuration), clamped to
// the source duration.
func (p *AudioProcessor) addSegment(ctx context.Context, data []byte, info *ProbeInfo, opts interfaces.ProcessOptions, out *interfaces.ProcessOutput) error {
	start := opts.SegmentStart
	if start < 0 || start >= info.Duration {
		return &interfaces.ValidationError{
			Field:  "segmentStart",
			Reason: fmt.Sprintf("start %.1fs outside source duration %.1fs", start, info.Duration),
		}
	}
	length := opts.SegmentDuration
	if start+length > info.Duration {
		length = info.Duration - start
	}

	segment, err := p.toolkit.Transcode(ctx, data, TranscodeSpec{
		Format:    "mp3",
		AudioOnly: true,
		Start:     start,
		Duration:  length,
	})
	if err != nil {
		return fmt.Errorf("extracting segment: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:     interfaces.ArtifactSegment,
		Data:     segment,
		Format:   "mp3",
		Size:     int64(len(segment)),
		Duration: length,
		Label:    fmt.Sprintf("%.1fs+%.1fs", start, length),
	})
	return nil
}

// renderWaveformPNG draws symmetric amplitude bars around the vertical
// midline.
func renderWaveformPNG(peaks []float64, width, height int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	background := color.NRGBA{R: 24, G: 24, B: 32, A: 255}
	bar := color.NRGBA{R: 96, G: 176, B: 244, A: 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, background)
		}
	}

	if len(peaks) > 0 {
		mid := height / 2
		barWidth := width / len(peaks)
		if barWidth < 1 {
			barWidth = 1
		}
		for i, peak := range peaks {
			half := int(peak * float64(mid))
			for dx := 0; dx < barWidth-1; dx++ {
				x := i*barWidth + dx
				if x >= width {
					break
				}
				for y := mid - half; y <= mid+half; y++ {
					img.SetNRGBA(x, y, bar)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
