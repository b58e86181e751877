package processors

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// archiveFormat identifies a container format, detected by signature first
// and extension second.
type archiveFormat string

const (
	formatZip     archiveFormat = "zip"
	formatTar     archiveFormat = "tar"
	formatTarGz   archiveFormat = "tar.gz"
	formatTarBz2  archiveFormat = "tar.bz2"
	formatRar     archiveFormat = "rar"
	format7z      archiveFormat = "7z"
	formatUnknown archiveFormat = ""
)

// ArchiveEntry is one manifest record, built before any extraction.
type ArchiveEntry struct {
	Path           string `json:"path"`
	Size           int64  `json:"size"`
	CompressedSize int64  `json:"compressedSize,omitempty"`
	IsDir          bool   `json:"isDir"`
}

// driveLetterPattern matches Windows-style absolute paths like C:\ or d:/.
var driveLetterPattern = regexp.MustCompile(`^[a-zA-Z]:[\\/]`)

var archiveExtensions = map[string]bool{
	".zip": true, ".tar": true, ".gz": true, ".tgz": true,
	".bz2": true, ".rar": true, ".7z": true,
}

var archiveMimeTypes = map[string]bool{
	"application/zip":              true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-bzip2":          true,
	"application/x-rar-compressed": true,
	"application/vnd.rar":          true,
	"application/x-7z-compressed":  true,
}

// ArchiveProcessor enumerates archive entries into a manifest before any
// extraction, enforces archive-wide and per-entry safety caps, and can
// create zip/tar/tar.gz archives from in-memory files.
type ArchiveProcessor struct {
	log *slog.Logger
}

// NewArchiveProcessor creates an archive processor.
func NewArchiveProcessor(log *slog.Logger) *ArchiveProcessor {
	return &ArchiveProcessor{log: log}
}

// Type returns the category this processor handles.
func (p *ArchiveProcessor) Type() interfaces.ProcessorType { return interfaces.ArchiveType }

// Supports claims known archive MIME types and extensions.
func (p *ArchiveProcessor) Supports(mimeType, fileName string) bool {
	if archiveMimeTypes[mimeType] {
		return true
	}
	return archiveExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Validate rejects empty and oversized payloads and payloads whose format
// cannot be detected.
func (p *ArchiveProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	if len(data) == 0 {
		return &interfaces.ValidationError{Field: "data", Reason: "zero-length payload"}
	}
	if max := maxSizeOr(opts, defaultArchiveMaxSize); int64(len(data)) > max {
		return &interfaces.ValidationError{Field: "size", Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(data), max)}
	}
	if detectArchiveFormat(data) == formatUnknown {
		return &interfaces.ValidationError{Field: "data", Reason: "unrecognized archive signature"}
	}
	return nil
}

// Process builds the manifest, enforces the archive-wide caps before any
// extraction, then optionally extracts entries, skipping (not failing on)
// entries that violate per-entry guards.
func (p *ArchiveProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	format := detectArchiveFormat(data)
	switch format {
	case formatTarBz2, formatRar, format7z:
		return nil, fmt.Errorf("%q archives: %w", format, interfaces.ErrNotImplemented)
	}

	manifest, err := p.buildManifest(data, format)
	if err != nil {
		return nil, fmt.Errorf("reading %q manifest: %w", fileName, err)
	}

	if err := p.checkArchiveCaps(manifest, opts); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}

	fileCount := 0
	var totalSize int64
	for _, entry := range manifest {
		if !entry.IsDir {
			fileCount++
			totalSize += entry.Size
		}
	}

	out := &interfaces.ProcessOutput{
		Metadata: map[string]any{
			"format":            string(format),
			"entries":           len(manifest),
			"files":             fileCount,
			"uncompressed_size": totalSize,
		},
		Artifacts: []interfaces.Artifact{{
			Type:   interfaces.ArtifactExtractedText,
			Data:   encoded,
			Format: "json",
			Size:   int64(len(encoded)),
			Label:  "manifest",
		}},
	}

	if opts.ExtractEntries {
		extracted, skipped, err := p.extract(ctx, data, format, opts)
		if err != nil {
			return nil, err
		}
		out.Artifacts = append(out.Artifacts, extracted...)
		out.Metadata["extracted"] = len(extracted)
		out.Metadata["skipped"] = skipped
	}
	return out, nil
}

// checkArchiveCaps fails the whole archive when the entry count or projected
// cumulative uncompressed size exceeds the configured caps. These are
// archive-wide limits, checked before any extraction work.
func (p *ArchiveProcessor) checkArchiveCaps(manifest []ArchiveEntry, opts interfaces.ProcessOptions) error {
	maxEntries := opts.MaxEntries
	if maxEntries == 0 {
		maxEntries = defaultMaxEntries
	}
	maxTotal := opts.MaxTotalSize
	if maxTotal == 0 {
		maxTotal = defaultMaxTotalSize
	}

	if len(manifest) > maxEntries {
		return &interfaces.ValidationError{
			Field:  "entries",
			Reason: fmt.Sprintf("%d entries exceeds limit of %d", len(manifest), maxEntries),
		}
	}

	var projected int64
	for _, entry := range manifest {
		projected += entry.Size
	}
	if projected > maxTotal {
		return &interfaces.ValidationError{
			Field:  "totalSize",
			Reason: fmt.Sprintf("projected uncompressed size %d exceeds limit of %d", projected, maxTotal),
		}
	}
	return nil
}

// checkEntry applies the per-entry guards. A non-nil error rejects the entry
// only, never the archive.
func checkEntry(entry ArchiveEntry, opts interfaces.ProcessOptions) error {
	name := entry.Path

	if strings.Contains(name, "..") {
		return &interfaces.SecurityError{Entry: name, Reason: "path traversal sequence"}
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return &interfaces.SecurityError{Entry: name, Reason: "absolute path"}
	}
	if driveLetterPattern.MatchString(name) {
		return &interfaces.SecurityError{Entry: name, Reason: "drive-letter path"}
	}
	// the cleaned path must stay under the extraction root
	if cleaned := path.Clean("/" + strings.ReplaceAll(name, `\`, "/")); !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "/..") {
		return &interfaces.SecurityError{Entry: name, Reason: "path escapes extraction root"}
	}

	maxEntry := opts.MaxEntrySize
	if maxEntry == 0 {
		maxEntry = defaultMaxEntrySize
	}
	if entry.Size > maxEntry {
		return &interfaces.SecurityError{Entry: name, Reason: fmt.Sprintf("entry of %d bytes exceeds limit of %d", entry.Size, maxEntry)}
	}

	if len(opts.AllowedExtensions) > 0 && !entry.IsDir {
		ext := strings.ToLower(filepath.Ext(name))
		allowed := false
		for _, candidate := range opts.AllowedExtensions {
			if ext == strings.ToLower(candidate) || ext == "."+strings.ToLower(strings.TrimPrefix(candidate, ".")) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &interfaces.SecurityError{Entry: name, Reason: fmt.Sprintf("extension %q not on allow-list", ext)}
		}
	}
	return nil
}

// buildManifest enumerates entries without extracting payloads.
func (p *ArchiveProcessor) buildManifest(data []byte, format archiveFormat) ([]ArchiveEntry, error) {
	switch format {
	case formatZip:
		return zipManifest(data)
	case formatTar, formatTarGz:
		return tarManifest(data, format == formatTarGz)
	default:
		return nil, fmt.Errorf("%q archives: %w", format, interfaces.ErrNotImplemented)
	}
}

func zipManifest(data []byte) ([]ArchiveEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	entries := make([]ArchiveEntry, 0, len(reader.File))
	for _, f := range reader.File {
		entries = append(entries, ArchiveEntry{
			Path:           f.Name,
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
			IsDir:          f.FileInfo().IsDir(),
		})
	}
	return entries, nil
}

func tarManifest(data []byte, gzipped bool) ([]ArchiveEntry, error) {
	reader, err := tarReader(data, gzipped)
	if err != nil {
		return nil, err
	}

	var entries []ArchiveEntry
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, ArchiveEntry{
			Path:  header.Name,
			Size:  header.Size,
			IsDir: header.Typeflag == tar.TypeDir,
		})
	}
	return entries, nil
}

// extract decodes eligible entries into artifacts. Entries failing a
// per-entry guard are logged and skipped; directories carry no payload.
func (p *ArchiveProcessor) extract(ctx context.Context, data []byte, format archiveFormat, opts interfaces.ProcessOptions) ([]interfaces.Artifact, int, error) {
	switch format {
	case formatZip:
		return p.extractZip(ctx, data, opts)
	default:
		return p.extractTar(ctx, data, format == formatTarGz, opts)
	}
}

func (p *ArchiveProcessor) extractZip(ctx context.Context, data []byte, opts interfaces.ProcessOptions) ([]interfaces.Artifact, int, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}

	var artifacts []interfaces.Artifact
	skipped := 0
	for _, f := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		entry := ArchiveEntry{
			Path:  f.Name,
			Size:  int64(f.UncompressedSize64),
			IsDir: f.FileInfo().IsDir(),
		}
		if entry.IsDir {
			continue
		}
		if err := checkEntry(entry, opts); err != nil {
			p.log.Warn("Skipping archive entry", slog.String("entry", f.Name), "err", err)
			skipped++
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, skipped, err
		}
		// LimitReader guards against entries lying about their size
		content, err := io.ReadAll(io.LimitReader(rc, entry.Size+1))
		rc.Close()
		if err != nil {
			return nil, skipped, err
		}
		if int64(len(content)) > entry.Size {
			p.log.Warn("Skipping archive entry larger than declared", slog.String("entry", f.Name))
			skipped++
			continue
		}

		artifacts = append(artifacts, entryArtifact(f.Name, content))
	}
	return artifacts, skipped, nil
}

func (p *ArchiveProcessor) extractTar(ctx context.Context, data []byte, gzipped bool, opts interfaces.ProcessOptions) ([]interfaces.Artifact, int, error) {
	reader, err := tarReader(data, gzipped)
	if err != nil {
		return nil, 0, err
	}

	var artifacts []interfaces.Artifact
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		if header.Typeflag != tar.TypeReg {
			skipped++
			continue
		}

		entry := ArchiveEntry{Path: header.Name, Size: header.Size}
		if err := checkEntry(entry, opts); err != nil {
			p.log.Warn("Skipping archive entry", slog.String("entry", header.Name), "err", err)
			skipped++
			continue
		}

		content, err := io.ReadAll(io.LimitReader(reader, header.Size))
		if err != nil {
			return nil, skipped, err
		}
		artifacts = append(artifacts, entryArtifact(header.Name, content))
	}
	return artifacts, skipped, nil
}

func entryArtifact(name string, content []byte) interfaces.Artifact {
	return interfaces.Artifact{
		Type:   interfaces.ArtifactArchiveEntry,
		Data:   content,
		Format: strings.TrimPrefix(filepath.Ext(name), "."),
		Size:   int64(len(content)),
		Label:  name,
	}
}

// Create builds an archive of the given format from in-memory files.
// Supported formats: zip, tar, tar.gz.
func (p *ArchiveProcessor) Create(ctx context.Context, files []interfaces.FileInput, format string) ([]byte, error) {
	if len(files) == 0 {
		return nil, &interfaces.ValidationError{Field: "files", Reason: "no files to archive"}
	}

	switch strings.ToLower(format) {
	case "zip":
		return createZip(files)
	case "tar":
		return createTar(files, false)
	case "tar.gz", "tgz":
		return createTar(files, true)
	default:
		return nil, &interfaces.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported archive format %q", format)}
	}
}

func createZip(files []interfaces.FileInput) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, file := range files {
		entry, err := w.Create(file.FileName)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(file.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func createTar(files []interfaces.FileInput, gzipped bool) ([]byte, error) {
	var buf bytes.Buffer
	var dst io.Writer = &buf

	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(&buf)
		dst = gz
	}

	w := tar.NewWriter(dst)
	for _, file := range files {
		if err := w.WriteHeader(&tar.Header{
			Name:     file.FileName,
			Size:     int64(len(file.Data)),
			Mode:     0o644,
			Typeflag: tar.TypeReg,
		}); err != nil {
			return nil, err
		}
		if _, err := w.Write(file.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func tarReader(data []byte, gzipped bool) (*tar.Reader, error) {
	var src io.Reader = bytes.NewReader(data)
	if gzipped {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		src = gz
	}
	return tar.NewReader(src), nil
}

// detectArchiveFormat sniffs the container by signature. A gzip stream is
// assumed to wrap a tar; a bzip2 stream is reported as tar.bz2.
func detectArchiveFormat(data []byte) archiveFormat {
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04")),
		len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x05\x06")): // empty zip
		return formatZip
	case len(data) >= 8 && bytes.HasPrefix(data, []byte("Rar!\x1a\x07")):
		return formatRar
	case len(data) >= 6 && bytes.HasPrefix(data, []byte("7z\xbc\xaf\x27\x1c")):
		return format7z
	case len(data) >= 2 && bytes.HasPrefix(data, []byte("\x1f\x8b")):
		return formatTarGz
	case len(data) >= 3 && bytes.HasPrefix(data, []byte("BZh")):
		return formatTarBz2
	case len(data) > 262 && bytes.Equal(data[257:262], []byte("ustar")):
		return formatTar
	}
	return formatUnknown
}
