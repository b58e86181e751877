package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// S3Config carries the settings for an S3 or S3-compatible adapter.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Adapter implements a storage adapter using Amazon S3 or compatible
// services (MinIO, Wasabi, DigitalOcean Spaces).
type S3Adapter struct {
	cfg         S3Config
	client      *s3.S3
	log         *slog.Logger
	locationURI string
}

// NewS3Adapter creates an S3 adapter. The client connects lazily on Connect.
func NewS3Adapter(cfg S3Config, log *slog.Logger) *S3Adapter {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", cfg.Bucket, cfg.Prefix, cfg.Region)
	if cfg.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", cfg.Endpoint)
	}

	return &S3Adapter{
		cfg:         cfg,
		log:         log,
		locationURI: uri,
	}
}

// Connect builds the AWS session and verifies the bucket is reachable.
func (a *S3Adapter) Connect(ctx context.Context) error {
	awsCfg := aws.Config{
		Region: aws.String(a.cfg.Region),
	}
	if a.cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(a.cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if a.cfg.AccessKey != "" && a.cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(a.cfg.AccessKey, a.cfg.SecretKey, "")
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	a.client = s3.New(sess)

	if _, err := a.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.cfg.Bucket),
	}); err != nil {
		return fmt.Errorf("%w: bucket %s: %v", interfaces.ErrAdapterUnavailable, a.cfg.Bucket, err)
	}

	a.log.Debug("S3 adapter connected", slog.String("bucket", a.cfg.Bucket))
	return nil
}

// Disconnect releases nothing; aws-sdk-go sessions hold no persistent
// connections worth closing.
func (a *S3Adapter) Disconnect(ctx context.Context) error {
	a.client = nil
	return nil
}

// Upload persists data under key with content type and object metadata.
func (a *S3Adapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	start := time.Now()
	objectKey := a.objectKey(key)

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			input.Metadata[k] = aws.String(v)
		}
	}

	result, err := a.client.PutObjectWithContext(ctx, input)
	if err != nil {
		return nil, a.wrapErr("upload", key, err)
	}

	etag := content.Hash(data)
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, `"`)
	}

	a.log.Debug("Stored object in S3",
		slog.String("bucket", a.cfg.Bucket),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageObject{
		Key:        key,
		Size:       int64(len(data)),
		ETag:       etag,
		Location:   fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, objectKey),
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Download retrieves the object bytes. Returns ErrObjectNotFound for
// missing keys.
func (a *S3Adapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	result, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(key)),
	})
	if err != nil {
		return nil, a.wrapErr("download", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, a.wrapErr("download", key, err)
	}
	return data, nil
}

// Delete removes the object. Returns false when the key did not exist.
func (a *S3Adapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	exists, err := a.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if _, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(key)),
	}); err != nil {
		return false, a.wrapErr("delete", key, err)
	}
	return true, nil
}

// Exists reports whether the key is present.
func (a *S3Adapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	_, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, a.wrapErr("exists", key, err)
	}
	return true, nil
}

// GetMetadata returns the descriptor via a HEAD request.
func (a *S3Adapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	head, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(key)),
	})
	if err != nil {
		return nil, a.wrapErr("metadata", key, err)
	}

	obj := &interfaces.StorageObject{
		Key:      key,
		Location: fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, a.objectKey(key)),
		Provider: a.Provider(),
	}
	if head.ContentLength != nil {
		obj.Size = *head.ContentLength
	}
	if head.ETag != nil {
		obj.ETag = strings.Trim(*head.ETag, `"`)
	}
	if head.LastModified != nil {
		obj.UploadedAt = head.LastModified.UTC()
	}
	if len(head.Metadata) > 0 {
		obj.Metadata = make(map[string]string, len(head.Metadata))
		for k, v := range head.Metadata {
			if v != nil {
				obj.Metadata[k] = *v
			}
		}
	}
	return obj, nil
}

// List returns one page of objects under prefix.
func (a *S3Adapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Bucket),
		Prefix: aws.String(a.objectKey(interfaces.StorageKey(prefix))),
	}
	if opts.MaxResults > 0 {
		input.MaxKeys = aws.Int64(int64(opts.MaxResults))
	}
	if opts.PageToken != "" {
		input.ContinuationToken = aws.String(opts.PageToken)
	}

	result, err := a.client.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, a.wrapErr("list", interfaces.StorageKey(prefix), err)
	}

	page := &interfaces.ObjectPage{}
	for _, item := range result.Contents {
		obj := interfaces.StorageObject{
			Provider: a.Provider(),
		}
		if item.Key != nil {
			obj.Key = interfaces.StorageKey(strings.TrimPrefix(*item.Key, a.cfg.Prefix+"/"))
			obj.Location = fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, *item.Key)
		}
		if item.Size != nil {
			obj.Size = *item.Size
		}
		if item.ETag != nil {
			obj.ETag = strings.Trim(*item.ETag, `"`)
		}
		if item.LastModified != nil {
			obj.UploadedAt = item.LastModified.UTC()
		}
		page.Objects = append(page.Objects, obj)
	}
	if result.NextContinuationToken != nil {
		page.NextPageToken = *result.NextContinuationToken
	}
	return page, nil
}

// PresignedURL signs a GET or PUT request for direct client access.
func (a *S3Adapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	objectKey := a.objectKey(key)

	switch op {
	case interfaces.PresignDownload:
		req, _ := a.client.GetObjectRequest(&s3.GetObjectInput{
			Bucket: aws.String(a.cfg.Bucket),
			Key:    aws.String(objectKey),
		})
		return req.Presign(ttl)
	case interfaces.PresignUpload:
		req, _ := a.client.PutObjectRequest(&s3.PutObjectInput{
			Bucket: aws.String(a.cfg.Bucket),
			Key:    aws.String(objectKey),
		})
		return req.Presign(ttl)
	default:
		return "", fmt.Errorf("unsupported presign operation: %s", op)
	}
}

// Copy duplicates src to dst server-side.
func (a *S3Adapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	if _, err := a.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.cfg.Bucket),
		Key:        aws.String(a.objectKey(dst)),
		CopySource: aws.String(path.Join(a.cfg.Bucket, a.objectKey(src))),
	}); err != nil {
		return nil, a.wrapErr("copy", src, err)
	}
	return a.GetMetadata(ctx, dst)
}

// HealthCheck heads the bucket.
func (a *S3Adapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	now := time.Now().UTC()
	if a.client == nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: "not connected"}
	}

	if _, err := a.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.cfg.Bucket),
	}); err != nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: err.Error()}
	}
	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: now}
}

// Name returns a unique identifier for this adapter.
func (a *S3Adapter) Name() string {
	return fmt.Sprintf("s3-%s", a.cfg.Bucket)
}

// Provider returns the provider kind.
func (a *S3Adapter) Provider() string { return "s3" }

// LocationURI returns the URI this adapter was created from.
func (a *S3Adapter) LocationURI() string { return a.locationURI }

func (a *S3Adapter) objectKey(key interfaces.StorageKey) string {
	if a.cfg.Prefix == "" {
		return key.String()
	}
	return path.Join(a.cfg.Prefix, key.String())
}

func (a *S3Adapter) wrapErr(op string, key interfaces.StorageKey, err error) error {
	if isS3NotFound(err) {
		return interfaces.ErrObjectNotFound
	}
	return &interfaces.StorageError{
		Provider:  a.Name(),
		Op:        op,
		Key:       key,
		Err:       err,
		Transient: isS3Transient(err),
	}
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound", "NoSuchBucket":
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "status code: 404")
}

func isS3Transient(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError", "RequestError":
			return true
		}
	}
	return interfaces.IsTransient(err)
}
