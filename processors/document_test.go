package processors

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func TestDocumentProcessorSupports(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())

	assert.True(t, p.Supports("application/pdf", "report.pdf"))
	assert.True(t, p.Supports("text/plain", "notes.txt"))
	assert.True(t, p.Supports("application/octet-stream", "sheet.xlsx"))
	assert.True(t, p.Supports("text/x-log", "server.log"))
	assert.False(t, p.Supports("image/png", "photo.png"))
	assert.False(t, p.Supports("application/zip", "bundle.zip"))
}

func TestDocumentProcessorPlainText(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())
	payload := []byte("first line here\nsecond line\nthird")

	out, err := p.Process(context.Background(), payload, "notes.txt", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "text", out.Metadata["subtype"])
	assert.Equal(t, 3, out.Metadata["lines"])
	assert.Equal(t, 6, out.Metadata["words"])
	assert.Equal(t, len(payload), out.Metadata["chars"])

	var text *interfaces.Artifact
	for i := range out.Artifacts {
		if out.Artifacts[i].Type == interfaces.ArtifactExtractedText {
			text = &out.Artifacts[i]
		}
	}
	require.NotNil(t, text)
	assert.Equal(t, payload, text.Data)
}

func TestDocumentProcessorTruncation(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())
	payload := []byte(strings.Repeat("words and more words ", 100))

	out, err := p.Process(context.Background(), payload, "long.txt", interfaces.ProcessOptions{MaxTextLength: 50})
	require.NoError(t, err)

	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactExtractedText {
			text := string(artifact.Data)
			assert.True(t, strings.HasSuffix(text, truncationMarker))
			assert.Len(t, text, 50+len(truncationMarker))
			return
		}
	}
	t.Fatal("no extracted text artifact")
}

func TestDocumentProcessorSpreadsheet(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "widget"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", 12))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	p := NewDocumentProcessor(discardLogger())
	out, err := p.Process(context.Background(), buf.Bytes(), "inventory.xlsx", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "spreadsheet", out.Metadata["subtype"])
	assert.Equal(t, 1, out.Metadata["sheets"])
	assert.Equal(t, 2, out.Metadata["rows"])

	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactExtractedText {
			text := string(artifact.Data)
			assert.Contains(t, text, "name\tqty")
			assert.Contains(t, text, "widget\t12")
			return
		}
	}
	t.Fatal("no extracted text artifact")
}

func TestDocumentProcessorPresentationPlaceholder(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())

	out, err := p.Process(context.Background(), []byte("fake-pptx"), "deck.pptx", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "presentation", out.Metadata["subtype"])
	// placeholder metadata only, no text extraction
	for _, artifact := range out.Artifacts {
		assert.NotEqual(t, interfaces.ArtifactExtractedText, artifact.Type)
	}
}

func TestDocumentProcessorPlaceholderThumbnail(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())

	out, err := p.Process(context.Background(), []byte("text"), "notes.md", interfaces.ProcessOptions{})
	require.NoError(t, err)

	var thumb *interfaces.Artifact
	for i := range out.Artifacts {
		if out.Artifacts[i].Type == interfaces.ArtifactThumbnail {
			thumb = &out.Artifacts[i]
		}
	}
	require.NotNil(t, thumb)
	assert.Equal(t, "text", thumb.Label)

	decoded, err := png.Decode(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, placeholderWidth, decoded.Bounds().Dx())
	assert.Equal(t, placeholderHeight, decoded.Bounds().Dy())
}

func TestDocumentProcessorValidate(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())
	ctx := context.Background()
	var ve *interfaces.ValidationError

	err := p.Validate(ctx, nil, interfaces.ProcessOptions{})
	require.ErrorAs(t, err, &ve)

	err = p.Validate(ctx, []byte("too big"), interfaces.ProcessOptions{MaxSize: 3})
	require.ErrorAs(t, err, &ve)

	err = p.Validate(ctx, []byte("%PDF-1.7 garbage"), interfaces.ProcessOptions{})
	require.ErrorAs(t, err, &ve)

	require.NoError(t, p.Validate(ctx, []byte("plain text"), interfaces.ProcessOptions{}))
}

func TestDocumentProcessorWordWithoutExtension(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>quarterly figures</w:t></w:r><w:r><w:t>look healthy</w:t></w:r></w:p></w:body></w:document>`,
	})

	p := NewDocumentProcessor(discardLogger())
	out, err := p.Process(context.Background(), payload, "report", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "word", out.Metadata["subtype"])
	for _, artifact := range out.Artifacts {
		if artifact.Type == interfaces.ArtifactExtractedText {
			text := string(artifact.Data)
			assert.Contains(t, text, "quarterly figures")
			assert.Contains(t, text, "look healthy")
			return
		}
	}
	t.Fatal("no extracted text artifact")
}

func TestDocumentProcessorUnknownBinaryWithoutExtension(t *testing.T) {
	// A zip container with no office payload must not be read as text.
	payload := buildZip(t, map[string]string{
		"blob/data.bin": "\x00\x01\x02\xff",
	})

	p := NewDocumentProcessor(discardLogger())
	out, err := p.Process(context.Background(), payload, "upload-42", interfaces.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "unknown", out.Metadata["subtype"])
	assert.NotEmpty(t, out.Metadata["note"])
	for _, artifact := range out.Artifacts {
		assert.NotEqual(t, interfaces.ArtifactExtractedText, artifact.Type)
	}
}

func TestDocumentSubtypeFromContent(t *testing.T) {
	p := NewDocumentProcessor(discardLogger())

	sheet := buildZip(t, map[string]string{"xl/workbook.xml": "<workbook/>"})
	deck := buildZip(t, map[string]string{"ppt/presentation.xml": "<presentation/>"})

	assert.Equal(t, subtypeSpreadsheet, p.subtypeFor("export", sheet))
	assert.Equal(t, subtypePresentation, p.subtypeFor("slides", deck))
	assert.Equal(t, subtypePDF, p.subtypeFor("scan", []byte("%PDF-1.7 stream")))
	assert.Equal(t, subtypePlainText, p.subtypeFor("README", []byte("install with make")))
	assert.Equal(t, subtypeUnknown, p.subtypeFor("upload", []byte{0x00, 0xd8, 0xff, 0x01, 0x9c}))
	// extension still wins when present
	assert.Equal(t, subtypePlainText, p.subtypeFor("notes.txt", []byte("%PDF-1.7")))
}

func TestTruncateTextRuneBoundary(t *testing.T) {
	// 2-byte runes; an odd byte limit lands mid-rune
	text := strings.Repeat("é", 40)
	out := truncateText(text, 33)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, truncationMarker))
	assert.Equal(t, strings.Repeat("é", 16), strings.TrimSuffix(out, truncationMarker))

	// ascii stays byte-exact
	assert.Equal(t, "abc"+truncationMarker, truncateText("abcdef", 3))
	assert.Equal(t, "short", truncateText("short", 10))
}
