package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/pipeline"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/processors"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.Manager) {
	t.Helper()
	log := testLogger()

	manager := storage.NewManager(storage.ManagerConfig{},
		[]interfaces.StorageAdapter{storage.NewMemoryAdapter("primary")},
		nil, storage.NewMetrics(nil), nil, log)
	require.NoError(t, manager.Initialize(context.Background()))
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	router := processors.NewRouter(
		processors.NewDocumentProcessor(log),
		processors.NewArchiveProcessor(log),
	)
	orchestrator := pipeline.NewOrchestrator(pipeline.Config{RetryDelay: time.Millisecond}, router, nil, log)
	persister := pipeline.NewPersister(manager, nil, nil, 0, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
		Log:                      log,
	}, NewHandler(orchestrator, persister, manager, log), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.getRouter())
	t.Cleanup(ts.Close)
	return ts, manager
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandleProcess(t *testing.T) {
	ts, manager := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"notes.txt": []byte("first line\nsecond line\n"),
	})
	resp, err := http.Post(ts.URL+"/api/files/process", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result processResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.ProcessID)
	assert.Equal(t, interfaces.DocumentType, result.Type)
	assert.NotEmpty(t, result.StorageKey)

	// the original landed in storage under the returned key
	data, err := manager.Download(context.Background(), interfaces.StorageKey(result.StorageKey))
	require.NoError(t, err)
	assert.Equal(t, []byte("first line\nsecond line\n"), data)
}

func TestHandleProcessRejectsEmptyUpload(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]byte{"empty.txt": {}})
	resp, err := http.Post(ts.URL+"/api/files/process", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleProcessMissingFileField(t *testing.T) {
	ts, _ := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "not a file"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(ts.URL+"/api/files/process", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBatch(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("beta"),
		"c.txt": []byte("gamma"),
	})
	resp, err := http.Post(ts.URL+"/api/files/batch", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result batchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Len(t, result.Results, 3)
}

func TestHandleArchive(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("beta"),
	})
	resp, err := http.Post(ts.URL+"/api/archives?format=zip", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	archive, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// zip local file header signature
	assert.True(t, bytes.HasPrefix(archive, []byte("PK\x03\x04")))
}

func TestHandleProcessStatusUnknown(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/processes/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleDownloadUnknownObject(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/objects/uploads/2026/01/01/missing.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleDownloadRoundTrip(t *testing.T) {
	ts, manager := newTestServer(t)

	obj, err := manager.Upload(context.Background(), "report.txt", []byte("stored content"), interfaces.UploadOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/objects/" + obj.Key.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored content"), data)
}

func TestHandleStorageHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/storage/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Active    string                    `json:"active"`
		Providers map[string]map[string]any `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "memory", health.Active)
	assert.Contains(t, health.Providers, "memory")
}

func TestReadinessAndDrain(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/drain")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/undrain")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
