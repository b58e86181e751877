package processors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestArchiveProcessorSupports(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())

	assert.True(t, p.Supports("application/zip", "bundle.zip"))
	assert.True(t, p.Supports("application/octet-stream", "bundle.tar.gz"))
	assert.True(t, p.Supports("application/x-rar-compressed", "bundle.rar"))
	assert.False(t, p.Supports("image/png", "photo.png"))
}

func TestArchiveProcessorManifest(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"readme.txt":     "hello",
		"docs/guide.txt": "longer content here",
	})

	out, err := p.Process(context.Background(), payload, "bundle.zip", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "zip", out.Metadata["format"])
	assert.Equal(t, 2, out.Metadata["files"])

	require.Len(t, out.Artifacts, 1)
	var manifest []ArchiveEntry
	require.NoError(t, json.Unmarshal(out.Artifacts[0].Data, &manifest))
	require.Len(t, manifest, 2)

	paths := map[string]int64{}
	for _, entry := range manifest {
		paths[entry.Path] = entry.Size
	}
	assert.Equal(t, int64(5), paths["readme.txt"])
	assert.Equal(t, int64(19), paths["docs/guide.txt"])
}

func TestArchiveProcessorExtraction(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
	})

	out, err := p.Process(context.Background(), payload, "bundle.zip", interfaces.ProcessOptions{ExtractEntries: true})
	require.NoError(t, err)

	contents := map[string]string{}
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactArchiveEntry {
			contents[artifact.Label] = string(artifact.Data)
		}
	}
	assert.Equal(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"}, contents)
}

func TestArchiveProcessorEntryCountCapFailsBeforeExtraction(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())

	entries := map[string]string{}
	for i := 0; i < 120; i++ {
		entries[fmt.Sprintf("file-%03d.txt", i)] = "x"
	}
	payload := buildZip(t, entries)

	out, err := p.Process(context.Background(), payload, "bomb.zip", interfaces.ProcessOptions{
		MaxEntries:     100,
		ExtractEntries: true,
	})
	var ve *interfaces.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Nil(t, out) // the whole archive fails, nothing is extracted
}

func TestArchiveProcessorTotalSizeCap(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"big-1.bin": string(make([]byte, 600)),
		"big-2.bin": string(make([]byte, 600)),
	})

	_, err := p.Process(context.Background(), payload, "bundle.zip", interfaces.ProcessOptions{
		MaxTotalSize: 1000,
	})
	var ve *interfaces.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestArchiveProcessorTraversalGuards(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"../evil.txt":        "escaped",
		"/etc/passwd":        "absolute",
		`C:\windows\sys.dll`: "drive letter",
		"safe.txt":           "kept",
	})

	out, err := p.Process(context.Background(), payload, "crafted.zip", interfaces.ProcessOptions{ExtractEntries: true})
	require.NoError(t, err)

	var extracted []string
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactArchiveEntry {
			extracted = append(extracted, artifact.Label)
		}
	}
	// only the safe entry survives; the crafted ones are skipped, not fatal
	assert.Equal(t, []string{"safe.txt"}, extracted)
	assert.Equal(t, 3, out.Metadata["skipped"])
}

func TestArchiveProcessorEntrySizeCap(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"small.txt": "ok",
		"large.bin": string(make([]byte, 2048)),
	})

	out, err := p.Process(context.Background(), payload, "bundle.zip", interfaces.ProcessOptions{
		ExtractEntries: true,
		MaxEntrySize:   1024,
	})
	require.NoError(t, err)

	var extracted []string
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactArchiveEntry {
			extracted = append(extracted, artifact.Label)
		}
	}
	assert.Equal(t, []string{"small.txt"}, extracted)
}

func TestArchiveProcessorExtensionAllowList(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	payload := buildZip(t, map[string]string{
		"image.png":  "png",
		"script.exe": "mz",
		"notes.txt":  "text",
	})

	out, err := p.Process(context.Background(), payload, "bundle.zip", interfaces.ProcessOptions{
		ExtractEntries:    true,
		AllowedExtensions: []string{".png", "txt"},
	})
	require.NoError(t, err)

	extracted := map[string]bool{}
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactArchiveEntry {
			extracted[artifact.Label] = true
		}
	}
	assert.True(t, extracted["image.png"])
	assert.True(t, extracted["notes.txt"])
	assert.False(t, extracted["script.exe"])
}

func TestArchiveProcessorUnimplementedFormats(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())

	tests := []struct {
		name    string
		payload []byte
	}{
		{"rar", append([]byte("Rar!\x1a\x07\x00"), make([]byte, 32)...)},
		{"7z", append([]byte("7z\xbc\xaf\x27\x1c"), make([]byte, 32)...)},
		{"bzip2", append([]byte("BZh9"), make([]byte, 32)...)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Process(context.Background(), tc.payload, "bundle."+tc.name, interfaces.ProcessOptions{})
			require.ErrorIs(t, err, interfaces.ErrNotImplemented)
		})
	}
}

func TestArchiveProcessorCreateRoundTrip(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())
	files := []interfaces.FileInput{
		{FileName: "one.txt", Data: []byte("first")},
		{FileName: "sub/two.txt", Data: []byte("second")},
	}

	for _, format := range []string{"zip", "tar", "tar.gz"} {
		t.Run(format, func(t *testing.T) {
			payload, err := p.Create(context.Background(), files, format)
			require.NoError(t, err)
			require.NotEmpty(t, payload)

			out, err := p.Process(context.Background(), payload, "bundle."+format, interfaces.ProcessOptions{ExtractEntries: true})
			require.NoError(t, err)

			contents := map[string]string{}
			for _, artifact := range out.Artifacts {
				if artifact.Type == interfaces.ArtifactArchiveEntry {
					contents[artifact.Label] = string(artifact.Data)
				}
			}
			assert.Equal(t, map[string]string{"one.txt": "first", "sub/two.txt": "second"}, contents)
		})
	}
}

func TestArchiveProcessorCreateRejectsUnknownFormat(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())

	_, err := p.Create(context.Background(), []interfaces.FileInput{{FileName: "a", Data: []byte("x")}}, "rar")
	var ve *interfaces.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = p.Create(context.Background(), nil, "zip")
	require.ErrorAs(t, err, &ve)
}

func TestDetectArchiveFormat(t *testing.T) {
	p := NewArchiveProcessor(discardLogger())

	zipPayload := buildZip(t, map[string]string{"a": "b"})
	assert.Equal(t, formatZip, detectArchiveFormat(zipPayload))

	tarPayload, err := p.Create(context.Background(), []interfaces.FileInput{{FileName: "a", Data: []byte("b")}}, "tar")
	require.NoError(t, err)
	assert.Equal(t, formatTar, detectArchiveFormat(tarPayload))

	tgzPayload, err := p.Create(context.Background(), []interfaces.FileInput{{FileName: "a", Data: []byte("b")}}, "tar.gz")
	require.NoError(t, err)
	assert.Equal(t, formatTarGz, detectArchiveFormat(tgzPayload))

	assert.Equal(t, formatUnknown, detectArchiveFormat([]byte("plain text")))
}
