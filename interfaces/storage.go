package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// PresignOperation selects the HTTP verb a presigned URL authorizes.
type PresignOperation string

const (
	PresignDownload PresignOperation = "download"
	PresignUpload   PresignOperation = "upload"
)

// UploadOptions carries per-object settings applied at upload time.
type UploadOptions struct {
	// ContentType overrides detected MIME type when non-empty.
	ContentType string

	// Metadata is attached to the stored object verbatim.
	Metadata map[string]string
}

// ListOptions controls paged listings.
type ListOptions struct {
	// MaxResults bounds one page; 0 means the adapter default.
	MaxResults int

	// PageToken resumes a previous listing.
	PageToken string
}

// ObjectPage is one page of a prefix listing.
type ObjectPage struct {
	Objects       []StorageObject
	NextPageToken string
}

// StorageAdapter is the per-provider contract for byte-level persistence.
// Implementations compose the shared content helpers for key generation,
// validation, hashing, and transparent compression/encryption, which are
// applied by the manager rather than individual adapters.
type StorageAdapter interface {
	// Connect establishes provider connectivity. Idempotent.
	Connect(ctx context.Context) error

	// Disconnect releases provider resources.
	Disconnect(ctx context.Context) error

	// Upload persists data under key and returns the stored object descriptor.
	Upload(ctx context.Context, key StorageKey, data []byte, opts UploadOptions) (*StorageObject, error)

	// Download retrieves the bytes stored under key.
	// Returns ErrObjectNotFound if the key does not exist.
	Download(ctx context.Context, key StorageKey) ([]byte, error)

	// Delete removes the object. Returns false when the key did not exist.
	Delete(ctx context.Context, key StorageKey) (bool, error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key StorageKey) (bool, error)

	// GetMetadata returns the object descriptor without fetching bytes.
	GetMetadata(ctx context.Context, key StorageKey) (*StorageObject, error)

	// List returns a page of objects under prefix.
	List(ctx context.Context, prefix string, opts ListOptions) (*ObjectPage, error)

	// PresignedURL returns a time-limited URL for direct access, or an
	// error when the provider has no presigning capability.
	PresignedURL(ctx context.Context, key StorageKey, op PresignOperation, ttl time.Duration) (string, error)

	// Copy duplicates src to dst within the provider.
	Copy(ctx context.Context, src, dst StorageKey) (*StorageObject, error)

	// HealthCheck probes the provider and reports its current health.
	HealthCheck(ctx context.Context) ProviderHealth

	// Name returns a unique identifier for logging and metrics.
	Name() string

	// Provider returns the provider kind ("file", "s3", "gcs", ...).
	Provider() string

	// LocationURI returns the URI this adapter was created from.
	LocationURI() string
}

// AdapterLocation is a parsed storage backend URI.
type AdapterLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	Auth   string
}

// ParseAdapterLocation validates and parses a storage location URI of the
// form [scheme]://[auth@]host[:port][/path][?params].
func ParseAdapterLocation(uri string) (AdapterLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return AdapterLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "gcs", "ipfs", "vault", "memory":
	default:
		return AdapterLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return AdapterLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI.
func (loc AdapterLocation) String() string { return loc.Raw }

// Param returns a query parameter value.
func (loc AdapterLocation) Param(name string) string { return loc.Query.Get(name) }

// ParamBool returns a boolean query parameter value.
func (loc AdapterLocation) ParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}
