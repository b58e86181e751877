package processors

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// documentSubtype selects the extraction strategy.
type documentSubtype string

const (
	subtypePDF          documentSubtype = "pdf"
	subtypeWord         documentSubtype = "word"
	subtypeSpreadsheet  documentSubtype = "spreadsheet"
	subtypePresentation documentSubtype = "presentation"
	subtypePlainText    documentSubtype = "text"
	subtypeUnknown      documentSubtype = "unknown"
)

// truncationMarker is appended to extracted text cut at the length limit,
// so truncation is explicit rather than silent.
const truncationMarker = "... [truncated]"

var documentSubtypes = map[string]documentSubtype{
	".pdf":  subtypePDF,
	".doc":  subtypeWord,
	".docx": subtypeWord,
	".xls":  subtypeSpreadsheet,
	".xlsx": subtypeSpreadsheet,
	".ppt":  subtypePresentation,
	".pptx": subtypePresentation,
	".txt":  subtypePlainText,
	".md":   subtypePlainText,
	".csv":  subtypePlainText,
	".log":  subtypePlainText,
}

var documentMimeSubtypes = map[string]documentSubtype{
	"application/pdf":    subtypePDF,
	"application/msword": subtypeWord,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   subtypeWord,
	"application/vnd.ms-excel": subtypeSpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         subtypeSpreadsheet,
	"application/vnd.ms-powerpoint":                                             subtypePresentation,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": subtypePresentation,
	"text/plain":    subtypePlainText,
	"text/markdown": subtypePlainText,
	"text/csv":      subtypePlainText,
}

// docxTextRun matches text runs inside WordprocessingML.
var docxTextRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// DocumentProcessor extracts text and page counts from documents, dispatching
// by sub-type. Every sub-type produces a labeled placeholder thumbnail.
type DocumentProcessor struct {
	log *slog.Logger
}

// NewDocumentProcessor creates a document processor.
func NewDocumentProcessor(log *slog.Logger) *DocumentProcessor {
	return &DocumentProcessor{log: log}
}

// Type returns the category this processor handles.
func (p *DocumentProcessor) Type() interfaces.ProcessorType { return interfaces.DocumentType }

// Supports claims known document MIME types and extensions.
func (p *DocumentProcessor) Supports(mimeType, fileName string) bool {
	if _, ok := documentMimeSubtypes[mimeType]; ok {
		return true
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	_, ok := documentSubtypes[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Validate rejects empty and oversized payloads, and PDFs over the page cap.
func (p *DocumentProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	if len(data) == 0 {
		return &interfaces.ValidationError{Field: "data", Reason: "zero-length payload"}
	}
	if max := maxSizeOr(opts, defaultDocumentMaxSize); int64(len(data)) > max {
		return &interfaces.ValidationError{Field: "size", Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), max)}
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		maxPages := opts.MaxPages
		if maxPages == 0 {
			maxPages = defaultMaxPages
		}
		reader, err := openPDF(data)
		if err != nil {
			return &interfaces.ValidationError{Field: "data", Reason: fmt.Sprintf("unreadable PDF: %v", err)}
		}
		if pages := reader.NumPage(); pages > maxPages {
			return &interfaces.ValidationError{
				Field:  "pages",
				Reason: fmt.Sprintf("%d pages exceeds limit of %d", pages, maxPages),
			}
		}
	}
	return nil
}

// openPDF wraps the pdf reader, which panics on malformed input.
func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Process dispatches by sub-type, extracts text and counts, and attaches a
// labeled placeholder thumbnail.
func (p *DocumentProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	subtype := p.subtypeFor(fileName, data)

	maxText := opts.MaxTextLength
	if maxText == 0 {
		maxText = defaultMaxTextLength
	}

	var (
		text  string
		pages int
		meta  = map[string]any{"subtype": string(subtype)}
		err   error
	)
	switch subtype {
	case subtypePDF:
		text, pages, err = extractPDF(data)
		meta["pages"] = pages
	case subtypeWord:
		text, err = extractWord(data)
	case subtypeSpreadsheet:
		text, meta, err = extractSpreadsheet(data, meta)
	case subtypePresentation:
		// Presentations carry placeholder metadata only; slide decoding is
		// out of scope.
		meta["note"] = "presentation content extraction not supported"
	case subtypeUnknown:
		// Binary content of no recognized document format. Never emitted as
		// extracted text.
		meta["note"] = "unrecognized document content"
	default:
		text = string(data)
		meta["lines"] = strings.Count(text, "\n") + 1
		meta["words"] = len(strings.Fields(text))
		meta["chars"] = len(text)
	}
	if err != nil {
		return nil, fmt.Errorf("extracting %s content from %q: %w", subtype, fileName, err)
	}

	out := &interfaces.ProcessOutput{Metadata: meta}

	if text != "" {
		truncated := truncateText(text, maxText)
		out.Artifacts = append(out.Artifacts, interfaces.Artifact{
			Type:   interfaces.ArtifactExtractedText,
			Data:   []byte(truncated),
			Format: "txt",
			Size:   int64(len(truncated)),
			Pages:  pages,
		})
	}

	thumb, err := renderPlaceholderThumbnail(strings.ToUpper(string(subtype)))
	if err != nil {
		return nil, fmt.Errorf("rendering placeholder thumbnail: %w", err)
	}
	out.Artifacts = append(out.Artifacts, interfaces.Artifact{
		Type:   interfaces.ArtifactThumbnail,
		Data:   thumb,
		Format: "png",
		Size:   int64(len(thumb)),
		Width:  placeholderWidth,
		Height: placeholderHeight,
		Label:  string(subtype),
	})
	return out, nil
}

// subtypeFor selects the extraction strategy. The extension decides when it
// is known; otherwise the content does: Office payloads are zip containers
// distinguished by their top-level entry names, everything else is
// classified by signature. Dispatch never trusts a declared MIME type
// alone, so a mislabeled binary cannot reach the plain-text branch.
func (p *DocumentProcessor) subtypeFor(fileName string, data []byte) documentSubtype {
	if subtype, ok := documentSubtypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return subtype
	}

	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		switch {
		case zipHasEntryPrefix(data, "word/"):
			return subtypeWord
		case zipHasEntryPrefix(data, "xl/"):
			return subtypeSpreadsheet
		case zipHasEntryPrefix(data, "ppt/"):
			return subtypePresentation
		}
		return subtypeUnknown
	}

	sniffed := content.SniffMime(data)
	if subtype, ok := documentMimeSubtypes[sniffed]; ok {
		return subtype
	}
	if strings.HasPrefix(sniffed, "text/") {
		return subtypePlainText
	}
	return subtypeUnknown
}

// zipHasEntryPrefix reports whether the zip payload contains an entry under
// the given path prefix.
func zipHasEntryPrefix(data []byte, prefix string) bool {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, entry := range reader.File {
		if strings.HasPrefix(entry.Name, prefix) {
			return true
		}
	}
	return false
}

// extractPDF returns the concatenated plain text and page count.
func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := openPDF(data)
	if err != nil {
		return "", 0, err
	}
	pages = reader.NumPage()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", pages, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", pages, err
	}
	return buf.String(), pages, nil
}

// extractWord pulls text runs out of the document XML.
func extractWord(data []byte) (string, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var sb strings.Builder
	matches := docxTextRun.FindAllStringSubmatch(reader.Editable().GetContent(), -1)
	for _, match := range matches {
		sb.WriteString(match[1])
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String()), nil
}

// extractSpreadsheet flattens every sheet's rows into tab-separated text.
func extractSpreadsheet(data []byte, meta map[string]any) (string, map[string]any, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", meta, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	meta["sheets"] = len(sheets)

	var sb strings.Builder
	totalRows := 0
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", meta, err
		}
		totalRows += len(rows)
		sb.WriteString("# " + sheet + "\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	meta["rows"] = totalRows
	return sb.String(), meta, nil
}

// truncateText cuts s at limit with an explicit marker. The cut backs up
// to a rune boundary so the result stays valid UTF-8.
func truncateText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

const (
	placeholderWidth  = 256
	placeholderHeight = 256
)

// renderPlaceholderThumbnail draws the sub-type label centered on a flat
// background.
func renderPlaceholderThumbnail(label string) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	background := color.NRGBA{R: 240, G: 240, B: 244, A: 255}
	for y := 0; y < placeholderHeight; y++ {
		for x := 0; x < placeholderWidth; x++ {
			img.SetNRGBA(x, y, background)
		}
	}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: 40, G: 40, B: 48, A: 255}),
		Face: face,
		Dot: fixed.P(
			(placeholderWidth-textWidth)/2,
			placeholderHeight/2,
		),
	}
	drawer.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
