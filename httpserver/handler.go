package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/pipeline"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/storage"
)

const (
	// maxUploadSize bounds one multipart request body (1GB).
	maxUploadSize = 1 << 30

	// memoryBufferSize is how much of a multipart body is held in memory
	// before spilling to disk (32MB).
	memoryBufferSize = 32 << 20
)

// Handler processes HTTP requests for the media pipeline. It integrates
// the orchestrator, the persister, and the storage manager.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	persister    *pipeline.Persister
	manager      *storage.Manager
	log          *slog.Logger
}

// NewHandler creates an HTTP request handler over the pipeline components.
func NewHandler(orchestrator *pipeline.Orchestrator, persister *pipeline.Persister, manager *storage.Manager, log *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		persister:    persister,
		manager:      manager,
		log:          log,
	}
}

type processResponse struct {
	ProcessID      string                       `json:"process_id"`
	Type           interfaces.ProcessorType     `json:"type"`
	Metadata       map[string]any               `json:"metadata,omitempty"`
	Artifacts      []artifactDescriptor         `json:"artifacts"`
	ProcessingTime string                       `json:"processing_time"`
	StorageKey     string                       `json:"storage_key,omitempty"`
	Provider       string                       `json:"provider,omitempty"`
}

type artifactDescriptor struct {
	Type   interfaces.ArtifactType `json:"type"`
	Format string                  `json:"format,omitempty"`
	Label  string                  `json:"label,omitempty"`
	Size   int                     `json:"size"`
}

type batchResponse struct {
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	Results      []processResponse `json:"results"`
	Errors       []batchErrorEntry `json:"errors,omitempty"`
}

type batchErrorEntry struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// HandleProcess accepts one multipart file upload, runs it through the
// pipeline, persists the original and its artifacts, and returns the
// processing descriptor.
//
// URL format: POST /api/files/process, multipart field "file".
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readUploads(w, r, 1)
	if !ok {
		return
	}

	result, err := h.orchestrator.ProcessFile(r.Context(), files[0], interfaces.ProcessOptions{})
	if err != nil {
		h.writeProcessingError(w, files[0].FileName, err)
		return
	}

	stored, err := h.persister.Persist(r.Context(), files[0], result)
	if err != nil {
		h.log.Error("Persisting processed file failed", slog.String("file", files[0].FileName), "err", err)
		http.Error(w, "Failed to store processed file", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, toProcessResponse(result, stored))
}

// HandleBatch accepts multiple multipart file uploads and processes them
// with bounded concurrency. Per-file failures are reported per entry; the
// request itself succeeds whenever the batch ran.
//
// URL format: POST /api/files/batch, repeated multipart field "file".
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readUploads(w, r, 0)
	if !ok {
		return
	}

	batch := h.orchestrator.ProcessBatch(r.Context(), files, interfaces.ProcessOptions{})

	resp := batchResponse{
		SuccessCount: batch.SuccessCount,
		ErrorCount:   batch.ErrorCount,
		Results:      make([]processResponse, 0, len(batch.Results)),
	}
	for _, result := range batch.Results {
		resp.Results = append(resp.Results, toProcessResponse(result, nil))
	}
	for _, batchErr := range batch.Errors {
		resp.Errors = append(resp.Errors, batchErrorEntry{FileName: batchErr.FileName, Error: batchErr.Err.Error()})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleArchive builds an archive from the uploaded files and streams it
// back.
//
// URL format: POST /api/archives?format=zip, repeated multipart field
// "file". Supported formats: zip, tar, tar.gz.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "zip"
	}

	files, ok := h.readUploads(w, r, 0)
	if !ok {
		return
	}

	archive, err := h.orchestrator.CreateArchive(r.Context(), files, format)
	if err != nil {
		var ve *interfaces.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("Archive creation failed", slog.String("format", format), "err", err)
		http.Error(w, "Failed to create archive", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=archive-%d.%s", time.Now().Unix(), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive.Data)
}

// HandleProcessStatus returns the tracker entry for one process.
//
// URL format: GET /api/processes/{process_id}
func (h *Handler) HandleProcessStatus(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "process_id")
	entry, ok := h.orchestrator.Tracker().Get(processID)
	if !ok {
		http.Error(w, "Unknown process", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"process_id": entry.ProcessID,
		"file_name":  entry.FileName,
		"mime_type":  entry.MimeType,
		"size":       entry.Size,
		"status":     entry.Status,
		"started_at": entry.StartTime,
		"duration":   entry.Duration.String(),
		"error":      entry.Err,
	})
}

// HandleProcessCancel cancels a tracked process cooperatively.
//
// URL format: POST /api/processes/{process_id}/cancel
func (h *Handler) HandleProcessCancel(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "process_id")
	if !h.orchestrator.CancelProcess(processID) {
		http.Error(w, "Unknown or already finished process", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleDownload streams a stored object back to the client.
//
// URL format: GET /api/objects/{key...} where key is the full storage key.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := interfaces.StorageKey(chi.URLParam(r, "*"))
	if key == "" {
		http.Error(w, "Missing object key", http.StatusBadRequest)
		return
	}

	obj, err := h.manager.GetMetadata(r.Context(), key)
	if err != nil {
		h.writeStorageError(w, key, err)
		return
	}
	data, err := h.manager.Download(r.Context(), key)
	if err != nil {
		h.writeStorageError(w, key, err)
		return
	}

	contentType := obj.Metadata["content_type"]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleStorageHealth reports per-provider health and the active provider.
//
// URL format: GET /api/storage/health
func (h *Handler) HandleStorageHealth(w http.ResponseWriter, r *http.Request) {
	health := h.manager.Health()
	providers := make(map[string]any, len(health))
	for name, state := range health {
		providers[name] = map[string]any{
			"status":     state.Status,
			"last_check": state.LastCheck,
			"error":      state.Err,
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"active":    h.manager.Active(),
		"providers": providers,
	})
}

// readUploads parses the multipart body into file inputs. limit 0 accepts
// any number of files; otherwise at most limit files are read.
func (h *Handler) readUploads(w http.ResponseWriter, r *http.Request, limit int) ([]interfaces.FileInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(memoryBufferSize); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return nil, false
	}
	if limit > 0 && len(headers) > limit {
		http.Error(w, fmt.Sprintf("At most %d file(s) per request", limit), http.StatusBadRequest)
		return nil, false
	}

	files := make([]interfaces.FileInput, 0, len(headers))
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			http.Error(w, "Unreadable file part", http.StatusBadRequest)
			return nil, false
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			http.Error(w, "Unreadable file part", http.StatusBadRequest)
			return nil, false
		}
		files = append(files, interfaces.FileInput{
			Data:     data,
			FileName: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
		})
	}
	return files, true
}

// writeProcessingError maps pipeline error kinds to HTTP statuses.
func (h *Handler) writeProcessingError(w http.ResponseWriter, fileName string, err error) {
	var (
		ve  *interfaces.ValidationError
		ute *interfaces.UnsupportedTypeError
		se  *interfaces.SecurityError
	)
	switch {
	case errors.As(err, &ve):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &ute):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.As(err, &se):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error("File processing failed", slog.String("file", fileName), "err", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	}
}

func (h *Handler) writeStorageError(w http.ResponseWriter, key interfaces.StorageKey, err error) {
	if errors.Is(err, interfaces.ErrObjectNotFound) {
		http.Error(w, "Object not found", http.StatusNotFound)
		return
	}
	h.log.Error("Object retrieval failed", slog.String("key", key.String()), "err", err)
	http.Error(w, "Storage unavailable", http.StatusBadGateway)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func toProcessResponse(result *interfaces.ProcessingResult, stored *interfaces.StorageObject) processResponse {
	resp := processResponse{
		ProcessID:      result.ProcessID,
		Type:           result.Type,
		Metadata:       result.Metadata,
		Artifacts:      make([]artifactDescriptor, 0, len(result.Artifacts)),
		ProcessingTime: result.ProcessingTime.String(),
	}
	for _, artifact := range result.Artifacts {
		resp.Artifacts = append(resp.Artifacts, artifactDescriptor{
			Type:   artifact.Type,
			Format: artifact.Format,
			Label:  artifact.Label,
			Size:   len(artifact.Data),
		})
	}
	if stored != nil {
		resp.StorageKey = stored.Key.String()
		resp.Provider = stored.Provider
	}
	return resp
}
