package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// MemoryAdapter is an in-process adapter used in tests and as the explicit
// stand-in when no durable provider is configured.
type MemoryAdapter struct {
	name string

	mu      sync.RWMutex
	objects map[interfaces.StorageKey][]byte
	meta    map[interfaces.StorageKey]*interfaces.StorageObject
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter(name string) *MemoryAdapter {
	if name == "" {
		name = "memory"
	}
	return &MemoryAdapter{
		name:    name,
		objects: make(map[interfaces.StorageKey][]byte),
		meta:    make(map[interfaces.StorageKey]*interfaces.StorageObject),
	}
}

func (a *MemoryAdapter) Connect(ctx context.Context) error    { return nil }
func (a *MemoryAdapter) Disconnect(ctx context.Context) error { return nil }

func (a *MemoryAdapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	obj := &interfaces.StorageObject{
		Key:        key,
		Size:       int64(len(data)),
		ETag:       content.Hash(data),
		Location:   fmt.Sprintf("memory://%s/%s", a.name, key),
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: time.Now().UTC(),
	}

	a.objects[key] = stored
	a.meta[key] = obj
	return obj, nil
}

func (a *MemoryAdapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.objects[key]
	if !ok {
		return nil, interfaces.ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (a *MemoryAdapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.objects[key]; !ok {
		return false, nil
	}
	delete(a.objects, key)
	delete(a.meta, key)
	return true, nil
}

func (a *MemoryAdapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.objects[key]
	return ok, nil
}

func (a *MemoryAdapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obj, ok := a.meta[key]
	if !ok {
		return nil, interfaces.ErrObjectNotFound
	}
	cp := *obj
	return &cp, nil
}

func (a *MemoryAdapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	max := opts.MaxResults
	if max <= 0 {
		max = 1000
	}

	var keys []string
	for key := range a.objects {
		if strings.HasPrefix(key.String(), prefix) {
			keys = append(keys, key.String())
		}
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
		page.Objects = append(page.Objects, *a.meta[interfaces.StorageKey(key)])
	}
	return page, nil
}

func (a *MemoryAdapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported by %s", a.Provider())
}

func (a *MemoryAdapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	data, err := a.Download(ctx, src)
	if err != nil {
		return nil, err
	}
	meta, _ := a.GetMetadata(ctx, src)
	opts := interfaces.UploadOptions{}
	if meta != nil {
		opts.Metadata = meta.Metadata
	}
	return a.Upload(ctx, dst, data, opts)
}

func (a *MemoryAdapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: time.Now().UTC()}
}

func (a *MemoryAdapter) Name() string        { return a.name }
func (a *MemoryAdapter) Provider() string    { return "memory" }
func (a *MemoryAdapter) LocationURI() string { return "memory://" + a.name }
