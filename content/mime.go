package content

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extensionTypes maps filename extensions to MIME types for the formats the
// pipeline handles. Extension lookup runs first; binary signature sniffing
// is the fallback, and overrides the generic application/octet-stream.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",

	".zip": "application/zip",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".tgz": "application/gzip",
	".bz2": "application/x-bzip2",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
}

// DetectMime resolves the MIME type for a payload by combining extension
// lookup with magic-byte sniffing. The declared extension wins when it is
// known; otherwise the content signature decides.
func DetectMime(fileName string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}

	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}

	return "application/octet-stream"
}

// SniffMime ignores the filename entirely and classifies by signature.
func SniffMime(data []byte) string {
	return mimetype.Detect(data).String()
}
