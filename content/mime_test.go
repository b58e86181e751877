package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func TestDetectMime_ExtensionTable(t *testing.T) {
	tests := []struct {
		fileName string
		expected string
	}{
		{"photo.JPG", "image/jpeg"},
		{"clip.mp4", "video/mp4"},
		{"song.mp3", "audio/mpeg"},
		{"report.pdf", "application/pdf"},
		{"bundle.zip", "application/zip"},
		{"notes.txt", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectMime(tt.fileName, nil))
		})
	}
}

func TestDetectMime_SniffsUnknownExtension(t *testing.T) {
	// PNG signature with a misleading extension the table does not know.
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

	got := DetectMime("upload.blob", pngHeader)

	assert.Equal(t, "image/png", got)
}

func TestDetectMime_NoDataNoExtension(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectMime("mystery", nil))
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   interfaces.FileInput
		maxSize int64
		wantErr bool
	}{
		{
			name:    "valid input",
			input:   interfaces.FileInput{Data: []byte("abc"), FileName: "a.txt", DeclaredSize: 3},
			maxSize: 10,
		},
		{
			name:    "zero length rejected",
			input:   interfaces.FileInput{Data: nil, FileName: "a.txt"},
			maxSize: 10,
			wantErr: true,
		},
		{
			name:    "over limit rejected",
			input:   interfaces.FileInput{Data: []byte("abcdefghijk"), FileName: "a.txt"},
			maxSize: 10,
			wantErr: true,
		},
		{
			name:    "declared size mismatch rejected",
			input:   interfaces.FileInput{Data: []byte("abc"), FileName: "a.txt", DeclaredSize: 5},
			maxSize: 10,
			wantErr: true,
		},
		{
			name:    "traversal name rejected",
			input:   interfaces.FileInput{Data: []byte("abc"), FileName: "../../etc/passwd"},
			maxSize: 10,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input, tt.maxSize)
			if tt.wantErr {
				var ve *interfaces.ValidationError
				assert.ErrorAs(t, err, &ve)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
