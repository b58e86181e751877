package content

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey_Format(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 30, 0, 0, time.UTC)

	key := GenerateKey("uploads", "report.pdf", now)

	parts := strings.Split(key.String(), "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "uploads", parts[0])
	assert.Equal(t, "2026", parts[1])
	assert.Equal(t, "03", parts[2])
	assert.Equal(t, "07", parts[3])
	assert.True(t, strings.HasSuffix(parts[4], "_report.pdf"))
}

func TestGenerateKey_NeverCollides(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := GenerateKey("uploads", "photo.jpg", time.Now())
		assert.False(t, seen[key.String()], "duplicate key generated: %s", key)
		seen[key.String()] = true
	}
}

func TestGenerateKey_DistinctAcrossInstants(t *testing.T) {
	first := GenerateKey("uploads", "same-name.png", time.Now())
	second := GenerateKey("uploads", "same-name.png", time.Now().Add(time.Millisecond))

	assert.NotEqual(t, first, second)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain name unchanged",
			input:    "photo.jpg",
			expected: "photo.jpg",
		},
		{
			name:     "spaces replaced",
			input:    "my summer photo.jpg",
			expected: "my_summer_photo.jpg",
		},
		{
			name:     "path components stripped",
			input:    "../../etc/passwd",
			expected: "passwd",
		},
		{
			name:     "windows path components stripped",
			input:    `C:\Users\victim\doc.docx`,
			expected: "doc.docx",
		},
		{
			name:     "shell metacharacters replaced",
			input:    "a$b&c!d.txt",
			expected: "a_b_c_d.txt",
		},
		{
			name:     "empty becomes unnamed",
			input:    "",
			expected: "unnamed",
		},
		{
			name:     "only junk becomes unnamed",
			input:    "...",
			expected: "unnamed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_TruncatesPreservingExtension(t *testing.T) {
	long := strings.Repeat("a", 300) + ".jpeg"

	got := SanitizeFileName(long)

	assert.LessOrEqual(t, len(got), MaxFileNameLength)
	assert.True(t, strings.HasSuffix(got, ".jpeg"))
}
