package processors

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// scriptedToolkit is a MediaToolkit that returns canned probe data and
// records every call, so processor logic can be tested without ffmpeg.
type scriptedToolkit struct {
	info     *ProbeInfo
	probeErr error

	mu         sync.Mutex
	frameAts   []float64
	transcodes []TranscodeSpec
	peakCalls  int
}

func (m *scriptedToolkit) Probe(ctx context.Context, data []byte) (*ProbeInfo, error) {
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	info := *m.info
	return &info, nil
}

func (m *scriptedToolkit) ExtractFrame(ctx context.Context, data []byte, at float64, width int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameAts = append(m.frameAts, at)
	return []byte("jpeg-frame"), nil
}

func (m *scriptedToolkit) Transcode(ctx context.Context, data []byte, spec TranscodeSpec) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcodes = append(m.transcodes, spec)
	return []byte("rendition-" + spec.Format), nil
}

func (m *scriptedToolkit) SamplePeaks(ctx context.Context, data []byte, buckets int) ([]float64, error) {
	m.mu.Lock()
	m.peakCalls++
	m.mu.Unlock()

	peaks := make([]float64, buckets)
	for i := range peaks {
		peaks[i] = float64(i) / float64(buckets)
	}
	return peaks, nil
}

func (m *scriptedToolkit) Spectrogram(ctx context.Context, data []byte, width, height int) ([]byte, error) {
	return []byte("spectrogram-png"), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBucketPeaks(t *testing.T) {
	// two samples per bucket: values 0, 16384, 32767, 8192
	pcm := []byte{
		0x00, 0x00, // 0
		0x00, 0x40, // 16384
		0xff, 0x7f, // 32767
		0x00, 0x20, // 8192
	}
	peaks := bucketPeaks(pcm, 2)
	if len(peaks) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(peaks))
	}
	if peaks[0] < 0.49 || peaks[0] > 0.51 {
		t.Errorf("bucket 0 peak = %f, want ~0.5", peaks[0])
	}
	if peaks[1] < 0.99 {
		t.Errorf("bucket 1 peak = %f, want ~1.0", peaks[1])
	}
}
