package processors

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// ProbeInfo is the subset of media properties the processors consume.
type ProbeInfo struct {
	Format     string
	Duration   float64 // seconds
	Bitrate    int     // kbit/s, container level
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	SampleRate int
	Channels   int
}

// TranscodeSpec describes one ffmpeg rendition.
type TranscodeSpec struct {
	// Format is the output container/extension ("mp4", "mp3", "ogg", ...).
	Format string

	// Bitrate in kbit/s; 0 keeps the source rate.
	Bitrate int

	// Width rescales video to this width (height follows aspect); 0 keeps
	// the source resolution.
	Width int

	// AudioOnly drops any video stream.
	AudioOnly bool

	// Start/Duration cut a segment; Duration 0 keeps the full input.
	Start    float64
	Duration float64

	// Normalize applies EBU R128 loudness normalization.
	Normalize bool
}

// MediaToolkit abstracts the external probing/transcoding toolchain so the
// video and audio processors can run against a scripted implementation in
// tests.
type MediaToolkit interface {
	// Probe extracts container and stream properties.
	Probe(ctx context.Context, data []byte) (*ProbeInfo, error)

	// ExtractFrame returns a JPEG frame captured at the given offset,
	// scaled to width (height follows aspect).
	ExtractFrame(ctx context.Context, data []byte, at float64, width int) ([]byte, error)

	// Transcode produces one rendition per spec.
	Transcode(ctx context.Context, data []byte, spec TranscodeSpec) ([]byte, error)

	// SamplePeaks downmixes to mono PCM and returns normalized peak
	// amplitudes in [0,1], one per bucket.
	SamplePeaks(ctx context.Context, data []byte, buckets int) ([]float64, error)

	// Spectrogram renders a frequency-over-time PNG.
	Spectrogram(ctx context.Context, data []byte, width, height int) ([]byte, error)
}

// FFmpegToolkit shells out to ffmpeg/ffprobe.
type FFmpegToolkit struct {
	ffmpegPath string
	log        *slog.Logger
}

// NewFFmpegToolkit creates an exec-backed toolkit. An empty path resolves
// "ffmpeg" from PATH.
func NewFFmpegToolkit(ffmpegPath string, log *slog.Logger) *FFmpegToolkit {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegToolkit{ffmpegPath: ffmpegPath, log: log}
}

// Probe extracts container and stream properties via ffprobe.
func (t *FFmpegToolkit) Probe(ctx context.Context, data []byte) (*ProbeInfo, error) {
	probed, err := ffprobe.ProbeReader(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info := &ProbeInfo{}
	if probed.Format != nil {
		// ffprobe reports demuxer aliases like "mov,mp4,m4a,3gp"
		info.Format = strings.SplitN(probed.Format.FormatName, ",", 2)[0]
		info.Duration = probed.Format.DurationSeconds
		if rate, err := strconv.Atoi(probed.Format.BitRate); err == nil {
			info.Bitrate = rate / 1000
		}
	}
	if vs := probed.FirstVideoStream(); vs != nil {
		info.Width = vs.Width
		info.Height = vs.Height
		info.VideoCodec = vs.CodecName
	}
	if as := probed.FirstAudioStream(); as != nil {
		info.AudioCodec = as.CodecName
		info.Channels = as.Channels
		if rate, err := strconv.Atoi(as.SampleRate); err == nil {
			info.SampleRate = rate
		}
	}
	return info, nil
}

// ExtractFrame captures one frame as JPEG.
func (t *FFmpegToolkit) ExtractFrame(ctx context.Context, data []byte, at float64, width int) ([]byte, error) {
	args := []string{
		"-ss", formatSeconds(at),
		"-i", "pipe:0",
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	}
	return t.run(ctx, data, args)
}

// Transcode produces one rendition per spec. Containers that need seekable
// output (mp4) go through a temp file.
func (t *FFmpegToolkit) Transcode(ctx context.Context, data []byte, spec TranscodeSpec) ([]byte, error) {
	args := []string{}
	if spec.Duration > 0 {
		args = append(args, "-ss", formatSeconds(spec.Start), "-t", formatSeconds(spec.Duration))
	}
	args = append(args, "-i", "pipe:0")
	if spec.AudioOnly {
		args = append(args, "-vn")
		if spec.Bitrate > 0 {
			args = append(args, "-b:a", fmt.Sprintf("%dk", spec.Bitrate))
		}
	} else {
		if spec.Width > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", spec.Width))
		}
		if spec.Bitrate > 0 {
			args = append(args, "-b:v", fmt.Sprintf("%dk", spec.Bitrate))
		}
	}
	if spec.Normalize {
		args = append(args, "-af", "loudnorm=I=-16:TP=-1.5:LRA=11")
	}

	// mp4 writes its moov atom at the end and cannot stream to a pipe
	if spec.Format == "mp4" || spec.Format == "mov" {
		return t.runToFile(ctx, data, args, spec.Format)
	}
	args = append(args, "-f", spec.Format, "pipe:1")
	return t.run(ctx, data, args)
}

// SamplePeaks downmixes to 8 kHz mono s16le and buckets peak amplitudes.
func (t *FFmpegToolkit) SamplePeaks(ctx context.Context, data []byte, buckets int) ([]float64, error) {
	pcm, err := t.run(ctx, data, []string{
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", "8000",
		"-f", "s16le",
		"pipe:1",
	})
	if err != nil {
		return nil, err
	}
	return bucketPeaks(pcm, buckets), nil
}

// Spectrogram renders a frequency-over-time PNG via showspectrumpic.
func (t *FFmpegToolkit) Spectrogram(ctx context.Context, data []byte, width, height int) ([]byte, error) {
	return t.run(ctx, data, []string{
		"-i", "pipe:0",
		"-lavfi", fmt.Sprintf("showspectrumpic=s=%dx%d:legend=0", width, height),
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "png",
		"pipe:1",
	})
}

// run executes ffmpeg with stdin/stdout piping.
func (t *FFmpegToolkit) run(ctx context.Context, input []byte, args []string) ([]byte, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, t.ffmpegPath, full...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// runToFile executes ffmpeg writing to a temp file for non-streamable
// containers.
func (t *FFmpegToolkit) runToFile(ctx context.Context, input []byte, args []string, format string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mediapipe-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "out."+format)
	if _, err := t.run(ctx, input, append(args, out)); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// bucketPeaks reduces s16le mono PCM to per-bucket normalized peaks.
func bucketPeaks(pcm []byte, buckets int) []float64 {
	if buckets < 1 {
		buckets = 1
	}
	samples := len(pcm) / 2
	peaks := make([]float64, buckets)
	if samples == 0 {
		return peaks
	}

	perBucket := samples / buckets
	if perBucket == 0 {
		perBucket = 1
	}
	for i := 0; i < samples; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		bucket := i / perBucket
		if bucket >= buckets {
			bucket = buckets - 1
		}
		amplitude := math.Abs(float64(sample)) / 32768.0
		if amplitude > peaks[bucket] {
			peaks[bucket] = amplitude
		}
	}
	return peaks
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
