package processors

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
}

// ImageProcessor decodes raster images, extracts dimensions, and produces
// thumbnails plus a web-optimized rendition. Re-encoding strips EXIF and
// any other embedded metadata from the derived artifacts.
type ImageProcessor struct {
	log *slog.Logger
}

// NewImageProcessor creates an image processor.
func NewImageProcessor(log *slog.Logger) *ImageProcessor {
	return &ImageProcessor{log: log}
}

// Type returns the category this processor handles.
func (p *ImageProcessor) Type() interfaces.ProcessorType { return interfaces.ImageType }

// Supports claims image/* MIME types and known raster extensions.
func (p *ImageProcessor) Supports(mimeType, fileName string) bool {
	if strings.HasPrefix(mimeType, "image/") {
		return true
	}
	return imageExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Validate rejects undecodable payloads and images over the size or
// resolution caps.
func (p *ImageProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	if len(data) == 0 {
		return &interfaces.ValidationError{Field: "data", Reason: "zero-length payload"}
	}
	if max := maxSizeOr(opts, defaultImageMaxSize); int64(len(data)) > max {
		return &interfaces.ValidationError{Field: "size", Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), max)}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &interfaces.ValidationError{Field: "data", Reason: fmt.Sprintf("undecodable image: %v", err)}
	}

	maxWidth := opts.MaxWidth
	if maxWidth == 0 {
		maxWidth = defaultMaxWidth
	}
	maxHeight := opts.MaxHeight
	if maxHeight == 0 {
		maxHeight = defaultMaxHeight
	}
	if cfg.Width > maxWidth || cfg.Height > maxHeight {
		return &interfaces.ValidationError{
			Field:  "dimensions",
			Reason: fmt.Sprintf("%dx%d exceeds limit of %dx%d", cfg.Width, cfg.Height, maxWidth, maxHeight),
		}
	}
	return nil
}

// Process extracts dimensions and produces thumbnails plus a web-optimized
// JPEG rendition.
func (p *ImageProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", fileName, err)
	}

	bounds := img.Bounds()
	out := &interfaces.ProcessOutput{
		Metadata: map[string]any{
			"format": format,
			"width":  bounds.Dx(),
			"height": bounds.Dy(),
			"aspect": float64(bounds.Dx()) / float64(bounds.Dy()),
		},
	}

	sizes := opts.ThumbnailSizes
	if len(sizes) == 0 {
		sizes = defaultThumbnailSizes
	}
	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		thumb := imaging.Fit(img, size, size, imaging.Lanczos)
		encoded, err := encodeJPEG(thumb, 85)
		if err != nil {
			return nil, fmt.Errorf("encoding %dpx thumbnail: %w", size, err)
		}
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:   interfaces.ArtifactThumbnail,
			Data:   encoded,
			Format: "jpeg",
			Size:   int64(len(encoded)),
			Width:  thumb.Bounds().Dx(),
			Height: thumb.Bounds().Dy(),
			Label:  fmt.Sprintf("%dpx", size),
		})
	}

	// Web-optimized rendition, skipped when re-encoding does not shrink
	// the payload.
	optimized, err := encodeJPEG(img, 80)
	if err != nil {
		return nil, fmt.Errorf("encoding optimized rendition: %w", err)
	}
	if len(optimized) < len(data) {
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:   interfaces.ArtifactCompressed,
			Data:   optimized,
			Format: "jpeg",
			Size:   int64(len(optimized)),
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Label:  "web",
		})
	} else {
		p.log.Debug("Skipping optimized rendition, no size gain",
			slog.String("file", fileName),
			slog.Int("original", len(data)),
			slog.Int("reencoded", len(optimized)))
	}

	return out, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
