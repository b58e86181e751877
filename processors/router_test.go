package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func newTestRouter() *Router {
	log := discardLogger()
	toolkit := &scriptedToolkit{info: &ProbeInfo{Duration: 10}}
	return NewRouter(
		NewImageProcessor(log),
		NewVideoProcessor(toolkit, log),
		NewAudioProcessor(toolkit, log),
		NewDocumentProcessor(log),
		NewArchiveProcessor(log),
	)
}

func TestRouterRoutesByMime(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		mimeType string
		fileName string
		want     interfaces.ProcessorType
	}{
		{"image/jpeg", "photo.jpg", interfaces.ImageType},
		{"image/webp", "sticker.webp", interfaces.ImageType},
		{"video/mp4", "clip.mp4", interfaces.VideoType},
		{"audio/mpeg", "song.mp3", interfaces.AudioType},
		{"application/pdf", "report.pdf", interfaces.DocumentType},
		{"text/plain", "notes.txt", interfaces.DocumentType},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "sheet.xlsx", interfaces.DocumentType},
		{"application/zip", "bundle.zip", interfaces.ArchiveType},
		{"application/x-tar", "bundle.tar", interfaces.ArchiveType},
	}

	for _, tc := range tests {
		t.Run(tc.mimeType, func(t *testing.T) {
			proc, err := router.Route(tc.mimeType, tc.fileName)
			require.NoError(t, err)
			assert.Equal(t, tc.want, proc.Type())
		})
	}
}

func TestRouterFallsBackToExtension(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		fileName string
		want     interfaces.ProcessorType
	}{
		{"photo.png", interfaces.ImageType},
		{"clip.mkv", interfaces.VideoType},
		{"song.flac", interfaces.AudioType},
		{"report.pdf", interfaces.DocumentType},
		{"bundle.zip", interfaces.ArchiveType},
	}

	for _, tc := range tests {
		t.Run(tc.fileName, func(t *testing.T) {
			proc, err := router.Route("application/octet-stream", tc.fileName)
			require.NoError(t, err)
			assert.Equal(t, tc.want, proc.Type())
		})
	}
}

func TestRouterDeterminism(t *testing.T) {
	router := newTestRouter()

	first, err := router.Route("application/octet-stream", "ambiguous.mp4")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		proc, err := router.Route("application/octet-stream", "ambiguous.mp4")
		require.NoError(t, err)
		assert.Equal(t, first.Type(), proc.Type())
	}
}

func TestRouterUnsupportedType(t *testing.T) {
	router := newTestRouter()

	_, err := router.Route("application/x-sqlite3", "data.db")
	var ute *interfaces.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "application/x-sqlite3", ute.MimeType)
	assert.Equal(t, "data.db", ute.FileName)
}

func TestRouterProcessorLookup(t *testing.T) {
	router := newTestRouter()

	require.NotNil(t, router.Processor(interfaces.ArchiveType))
	assert.Equal(t, interfaces.ArchiveType, router.Processor(interfaces.ArchiveType).Type())
	assert.Nil(t, NewRouter().Processor(interfaces.ImageType))
}
