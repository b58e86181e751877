package processors

import (
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// mimeTable maps exact MIME types to a processor category. Consulted before
// any Supports predicate so routing stays deterministic even when predicates
// overlap.
var mimeTable = map[string]interfaces.ProcessorType{
	"application/pdf":    interfaces.DocumentType,
	"application/msword": interfaces.DocumentType,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   interfaces.DocumentType,
	"application/vnd.ms-excel": interfaces.DocumentType,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         interfaces.DocumentType,
	"application/vnd.ms-powerpoint":                                             interfaces.DocumentType,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": interfaces.DocumentType,
	"application/zip":              interfaces.ArchiveType,
	"application/x-tar":            interfaces.ArchiveType,
	"application/gzip":             interfaces.ArchiveType,
	"application/x-gzip":           interfaces.ArchiveType,
	"application/x-bzip2":          interfaces.ArchiveType,
	"application/x-rar-compressed": interfaces.ArchiveType,
	"application/vnd.rar":          interfaces.ArchiveType,
	"application/x-7z-compressed":  interfaces.ArchiveType,
}

// mimeClassPrefixes route whole top-level MIME classes.
var mimeClassPrefixes = map[string]interfaces.ProcessorType{
	"image/": interfaces.ImageType,
	"video/": interfaces.VideoType,
	"audio/": interfaces.AudioType,
	"text/":  interfaces.DocumentType,
}

// Router maps a (mimeType, fileName) pair to exactly one processor: first
// through the explicit MIME table, then by asking each registered processor
// in registration order. The same input always resolves to the same
// processor.
type Router struct {
	ordered []interfaces.Processor
	byType  map[interfaces.ProcessorType]interfaces.Processor
}

// NewRouter creates a router over the given processors. Registration order
// is the predicate consultation order.
func NewRouter(procs ...interfaces.Processor) *Router {
	r := &Router{byType: make(map[interfaces.ProcessorType]interfaces.Processor, len(procs))}
	for _, proc := range procs {
		r.ordered = append(r.ordered, proc)
		r.byType[proc.Type()] = proc
	}
	return r
}

// Route resolves the processor for a payload. Returns an
// *UnsupportedTypeError when no processor claims support.
func (r *Router) Route(mimeType, fileName string) (interfaces.Processor, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if category, ok := mimeTable[mimeType]; ok {
		if proc, ok := r.byType[category]; ok {
			return proc, nil
		}
	}
	for prefix, category := range mimeClassPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			if proc, ok := r.byType[category]; ok {
				return proc, nil
			}
		}
	}

	for _, proc := range r.ordered {
		if proc.Supports(mimeType, fileName) {
			return proc, nil
		}
	}
	return nil, &interfaces.UnsupportedTypeError{MimeType: mimeType, FileName: fileName}
}

// Processor returns the registered processor for a category, or nil.
func (r *Router) Processor(category interfaces.ProcessorType) interfaces.Processor {
	return r.byType[category]
}
