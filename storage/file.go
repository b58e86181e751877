package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// metaSuffix marks the sidecar file carrying object descriptors.
const metaSuffix = ".meta.json"

// FileAdapter implements a storage adapter backed by the local file system.
// Object descriptors are kept in JSON sidecar files next to the payloads.
type FileAdapter struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
	connected   bool
}

// NewFileAdapter creates a file system adapter rooted at baseDir. The
// directory is created on Connect.
func NewFileAdapter(baseDir string, log *slog.Logger) *FileAdapter {
	return &FileAdapter{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}
}

// Connect ensures the base directory exists and is writable.
func (a *FileAdapter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAdapterUnavailable, err)
	}
	a.connected = true
	a.log.Debug("File adapter connected", slog.String("base_dir", a.baseDir))
	return nil
}

// Disconnect releases nothing for the file adapter.
func (a *FileAdapter) Disconnect(ctx context.Context) error {
	a.connected = false
	return nil
}

// Upload writes data and its descriptor sidecar under key.
func (a *FileAdapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "upload", Key: key, Err: err, Transient: true}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "upload", Key: key, Err: err, Transient: true}
	}

	obj := &interfaces.StorageObject{
		Key:        key,
		Size:       int64(len(data)),
		ETag:       content.Hash(data),
		Location:   path,
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: time.Now().UTC(),
	}

	if err := a.writeSidecar(path, obj); err != nil {
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "upload", Key: key, Err: err, Transient: true}
	}

	a.log.Debug("Stored object on file system",
		slog.String("key", key.String()),
		slog.Int("size", len(data)))

	return obj, nil
}

// Download reads the bytes stored under key.
func (a *FileAdapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrObjectNotFound
		}
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "download", Key: key, Err: err, Transient: true}
	}
	return data, nil
}

// Delete removes the object and its sidecar. Returns false when the key did
// not exist.
func (a *FileAdapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, &interfaces.StorageError{Provider: a.Name(), Op: "delete", Key: key, Err: err, Transient: true}
	}
	_ = os.Remove(path + metaSuffix)
	return true, nil
}

// Exists reports whether the key is present.
func (a *FileAdapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &interfaces.StorageError{Provider: a.Name(), Op: "exists", Key: key, Err: err, Transient: true}
	}
	return true, nil
}

// GetMetadata returns the descriptor without reading the payload.
func (a *FileAdapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			// No sidecar; fall back to a stat-based descriptor.
			info, statErr := os.Stat(path)
			if os.IsNotExist(statErr) {
				return nil, interfaces.ErrObjectNotFound
			}
			if statErr != nil {
				return nil, &interfaces.StorageError{Provider: a.Name(), Op: "metadata", Key: key, Err: statErr, Transient: true}
			}
			return &interfaces.StorageObject{
				Key:        key,
				Size:       info.Size(),
				Location:   path,
				Provider:   a.Provider(),
				UploadedAt: info.ModTime().UTC(),
			}, nil
		}
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "metadata", Key: key, Err: err, Transient: true}
	}

	var obj interfaces.StorageObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("corrupt sidecar for %q: %w", key, err)
	}
	return &obj, nil
}

// List walks the base directory and returns keys under prefix, sorted, with
// token-based pagination.
func (a *FileAdapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	max := opts.MaxResults
	if max <= 0 {
		max = 1000
	}

	var keys []string
	err := filepath.WalkDir(a.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return err
		}
		rel, relErr := filepath.Rel(a.baseDir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, &interfaces.StorageError{Provider: a.Name(), Op: "list", Err: err, Transient: true}
	}
	sort.Strings(keys)

	page := &interfaces.ObjectPage{}
	for _, key := range keys {
		if opts.PageToken != "" && key <= opts.PageToken {
			continue
		}
		if len(page.Objects) == max {
			page.NextPageToken = page.Objects[len(page.Objects)-1].Key.String()
			break
		}
		obj, err := a.GetMetadata(ctx, interfaces.StorageKey(key))
		if err != nil {
			continue
		}
		page.Objects = append(page.Objects, *obj)
	}

	return page, nil
}

// PresignedURL returns a file:// URL. Local objects need no signing; the TTL
// is ignored.
func (a *FileAdapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	path, err := a.objectPath(key)
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}

// Copy duplicates src to dst within the base directory.
func (a *FileAdapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	data, err := a.Download(ctx, src)
	if err != nil {
		return nil, err
	}
	meta, err := a.GetMetadata(ctx, src)
	if err != nil {
		return nil, err
	}
	return a.Upload(ctx, dst, data, interfaces.UploadOptions{Metadata: meta.Metadata})
}

// HealthCheck verifies the base directory is reachable and writable.
func (a *FileAdapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	now := time.Now().UTC()

	probe := filepath.Join(a.baseDir, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: err.Error()}
	}
	_ = os.Remove(probe)

	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: now}
}

// Name returns a unique identifier for this adapter.
func (a *FileAdapter) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(a.baseDir))
}

// Provider returns the provider kind.
func (a *FileAdapter) Provider() string { return "file" }

// LocationURI returns the URI this adapter was created from.
func (a *FileAdapter) LocationURI() string { return a.locationURI }

func (a *FileAdapter) objectPath(key interfaces.StorageKey) (string, error) {
	if strings.Contains(key.String(), "..") {
		return "", &interfaces.ValidationError{Field: "key", Reason: "path traversal sequence"}
	}
	return filepath.Join(a.baseDir, filepath.FromSlash(key.String())), nil
}

func (a *FileAdapter) writeSidecar(path string, obj *interfaces.StorageObject) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return os.WriteFile(path+metaSuffix, raw, 0o644)
}
