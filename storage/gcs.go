package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// GCSConfig carries the settings for a Google Cloud Storage adapter.
// Credentials come from Application Default Credentials.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCSAdapter implements a storage adapter using Google Cloud Storage.
type GCSAdapter struct {
	cfg         GCSConfig
	client      *gcs.Client
	log         *slog.Logger
	locationURI string
}

// NewGCSAdapter creates a GCS adapter. The client dials on Connect.
func NewGCSAdapter(cfg GCSConfig, log *slog.Logger) *GCSAdapter {
	return &GCSAdapter{
		cfg:         cfg,
		log:         log,
		locationURI: fmt.Sprintf("gcs://%s/%s", cfg.Bucket, cfg.Prefix),
	}
}

// Connect dials the GCS API and verifies the bucket is reachable.
func (a *GCSAdapter) Connect(ctx context.Context) error {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GCS client: %w", err)
	}
	a.client = client

	if _, err := client.Bucket(a.cfg.Bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("%w: bucket %s: %v", interfaces.ErrAdapterUnavailable, a.cfg.Bucket, err)
	}

	a.log.Debug("GCS adapter connected", slog.String("bucket", a.cfg.Bucket))
	return nil
}

// Disconnect closes the client.
func (a *GCSAdapter) Disconnect(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// Upload streams data into the object writer and returns the descriptor
// reported by GCS after the writer closes.
func (a *GCSAdapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	start := time.Now()
	objectKey := a.objectKey(key)

	w := a.client.Bucket(a.cfg.Bucket).Object(objectKey).NewWriter(ctx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, a.wrapErr("upload", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, a.wrapErr("upload", key, err)
	}

	attrs := w.Attrs()

	a.log.Debug("Stored object in GCS",
		slog.String("bucket", a.cfg.Bucket),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageObject{
		Key:        key,
		Size:       attrs.Size,
		ETag:       attrs.Etag,
		Location:   fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, objectKey),
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: attrs.Created.UTC(),
	}, nil
}

// Download retrieves the object bytes.
func (a *GCSAdapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	r, err := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(key)).NewReader(ctx)
	if err != nil {
		return nil, a.wrapErr("download", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, a.wrapErr("download", key, err)
	}
	return data, nil
}

// Delete removes the object. Returns false when the key did not exist.
func (a *GCSAdapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	err := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(key)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, a.wrapErr("delete", key, err)
	}
	return true, nil
}

// Exists reports whether the key is present.
func (a *GCSAdapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	_, err := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(key)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, a.wrapErr("exists", key, err)
	}
	return true, nil
}

// GetMetadata returns the descriptor from object attributes.
func (a *GCSAdapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	attrs, err := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(key)).Attrs(ctx)
	if err != nil {
		return nil, a.wrapErr("metadata", key, err)
	}

	return &interfaces.StorageObject{
		Key:        key,
		Size:       attrs.Size,
		ETag:       attrs.Etag,
		Location:   fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, attrs.Name),
		Provider:   a.Provider(),
		Metadata:   attrs.Metadata,
		UploadedAt: attrs.Created.UTC(),
	}, nil
}

// List returns one page of objects under prefix using the iterator pager.
func (a *GCSAdapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	max := opts.MaxResults
	if max <= 0 {
		max = 1000
	}

	it := a.client.Bucket(a.cfg.Bucket).Objects(ctx, &gcs.Query{
		Prefix: a.objectKey(interfaces.StorageKey(prefix)),
	})

	var attrs []*gcs.ObjectAttrs
	pager := iterator.NewPager(it, max, opts.PageToken)
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, a.wrapErr("list", interfaces.StorageKey(prefix), err)
	}

	page := &interfaces.ObjectPage{NextPageToken: next}
	for _, attr := range attrs {
		page.Objects = append(page.Objects, interfaces.StorageObject{
			Key:        interfaces.StorageKey(strings.TrimPrefix(attr.Name, a.cfg.Prefix+"/")),
			Size:       attr.Size,
			ETag:       attr.Etag,
			Location:   fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, attr.Name),
			Provider:   a.Provider(),
			Metadata:   attr.Metadata,
			UploadedAt: attr.Created.UTC(),
		})
	}
	return page, nil
}

// PresignedURL returns a V4 signed URL. Signing uses the credentials the
// client was dialed with.
func (a *GCSAdapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	method := "GET"
	if op == interfaces.PresignUpload {
		method = "PUT"
	}

	return a.client.Bucket(a.cfg.Bucket).SignedURL(a.objectKey(key), &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  method,
		Expires: time.Now().Add(ttl),
	})
}

// Copy duplicates src to dst server-side.
func (a *GCSAdapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	srcObj := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(src))
	dstObj := a.client.Bucket(a.cfg.Bucket).Object(a.objectKey(dst))

	attrs, err := dstObj.CopierFrom(srcObj).Run(ctx)
	if err != nil {
		return nil, a.wrapErr("copy", src, err)
	}

	return &interfaces.StorageObject{
		Key:        dst,
		Size:       attrs.Size,
		ETag:       attrs.Etag,
		Location:   fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, attrs.Name),
		Provider:   a.Provider(),
		Metadata:   attrs.Metadata,
		UploadedAt: attrs.Created.UTC(),
	}, nil
}

// HealthCheck fetches bucket attributes.
func (a *GCSAdapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	now := time.Now().UTC()
	if a.client == nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: "not connected"}
	}

	if _, err := a.client.Bucket(a.cfg.Bucket).Attrs(ctx); err != nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: err.Error()}
	}
	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: now}
}

// Name returns a unique identifier for this adapter.
func (a *GCSAdapter) Name() string {
	return fmt.Sprintf("gcs-%s", a.cfg.Bucket)
}

// Provider returns the provider kind.
func (a *GCSAdapter) Provider() string { return "gcs" }

// LocationURI returns the URI this adapter was created from.
func (a *GCSAdapter) LocationURI() string { return a.locationURI }

func (a *GCSAdapter) objectKey(key interfaces.StorageKey) string {
	if a.cfg.Prefix == "" {
		return key.String()
	}
	return path.Join(a.cfg.Prefix, key.String())
}

func (a *GCSAdapter) wrapErr(op string, key interfaces.StorageKey, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return interfaces.ErrObjectNotFound
	}
	return &interfaces.StorageError{
		Provider:  a.Name(),
		Op:        op,
		Key:       key,
		Err:       err,
		Transient: interfaces.IsTransient(err),
	}
}
