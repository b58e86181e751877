package processors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func sampleAudioInfo() *ProbeInfo {
	return &ProbeInfo{
		Format:     "mp3",
		Duration:   180,
		Bitrate:    320,
		AudioCodec: "mp3",
		SampleRate: 44100,
		Channels:   2,
	}
}

func TestAudioProcessorSupports(t *testing.T) {
	p := NewAudioProcessor(&scriptedToolkit{}, discardLogger())

	assert.True(t, p.Supports("audio/mpeg", "song.mp3"))
	assert.True(t, p.Supports("application/octet-stream", "song.flac"))
	assert.False(t, p.Supports("video/mp4", "clip.mp4"))
}

func TestAudioProcessorWaveform(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	out, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{
		Tiers: []interfaces.QualityTier{{Name: "none", Bitrate: 999999}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, toolkit.peakCalls)

	var waveform, waveformImage *interfaces.Artifact
	for i := range out.Artifacts {
		switch out.Artifacts[i].Type {
		case interfaces.ArtifactWaveform:
			waveform = &out.Artifacts[i]
		case interfaces.ArtifactWaveformImage:
			waveformImage = &out.Artifacts[i]
		}
	}

	require.NotNil(t, waveform)
	var peaks []float64
	require.NoError(t, json.Unmarshal(waveform.Data, &peaks))
	assert.Len(t, peaks, waveformBuckets)

	require.NotNil(t, waveformImage)
	assert.Equal(t, "png", waveformImage.Format)
	assert.Equal(t, waveformWidth, waveformImage.Width)
}

func TestAudioProcessorSpectrogramOptIn(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	out, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{})
	require.NoError(t, err)
	for _, artifact := range out.Artifacts {
		assert.NotEqual(t, interfaces.ArtifactSpectrogram, artifact.Type)
	}

	out, err = p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{GenerateSpectro: true})
	require.NoError(t, err)

	found := false
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactSpectrogram {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAudioProcessorTranscodeSkipsSourceFormat(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	out, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{
		TargetFormats: []string{"mp3", "ogg", "flac"},
	})
	require.NoError(t, err)

	var formats []string
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactTranscode {
			formats = append(formats, artifact.Format)
		}
	}
	// the mp3 source is never transcoded to mp3
	assert.Equal(t, []string{"ogg", "flac"}, formats)
}

func TestAudioProcessorTierSkipping(t *testing.T) {
	info := sampleAudioInfo()
	info.Bitrate = 160
	toolkit := &scriptedToolkit{info: info}
	p := NewAudioProcessor(toolkit, discardLogger())

	out, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{
		Tiers: []interfaces.QualityTier{
			{Name: "voice", Bitrate: 64},
			{Name: "standard", Bitrate: 128},
			{Name: "high", Bitrate: 256},
		},
	})
	require.NoError(t, err)

	var got []string
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactCompressed {
			got = append(got, artifact.Label)
		}
	}
	assert.Equal(t, []string{"voice", "standard"}, got)
}

func TestAudioProcessorNormalization(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	_, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{Normalize: true})
	require.NoError(t, err)

	normalized := false
	for _, spec := range toolkit.transcodes {
		if spec.Normalize {
			normalized = true
		}
	}
	assert.True(t, normalized)
}

func TestAudioProcessorSegment(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	out, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{
		SegmentStart:    170,
		SegmentDuration: 30, // clamped to the 180s source
	})
	require.NoError(t, err)

	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactSegment {
			assert.InDelta(t, 10.0, artifact.Duration, 0.001)
			return
		}
	}
	t.Fatal("no segment artifact produced")
}

func TestAudioProcessorSegmentOutOfRange(t *testing.T) {
	toolkit := &scriptedToolkit{info: sampleAudioInfo()}
	p := NewAudioProcessor(toolkit, discardLogger())

	_, err := p.Process(context.Background(), []byte("audio"), "song.mp3", interfaces.ProcessOptions{
		SegmentStart:    500,
		SegmentDuration: 10,
	})
	var ve *interfaces.ValidationError
	require.ErrorAs(t, err, &ve)
}
