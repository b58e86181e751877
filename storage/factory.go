package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// AdapterFactory creates storage adapters from URI strings and assembles the
// ordered candidate list the manager fails over across.
type AdapterFactory struct {
	log *slog.Logger
}

// NewAdapterFactory creates a factory instance.
func NewAdapterFactory(log *slog.Logger) *AdapterFactory {
	return &AdapterFactory{log: log}
}

// AdapterFor creates a storage adapter from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:///var/lib/media/ - local filesystem storage
//   - s3://bucket/prefix/?region=eu-west-1&endpoint=minio.local - S3-compatible object storage
//   - gcs://bucket/prefix - Google Cloud Storage
//   - ipfs://host:5001/?gateway=https://ipfs.example.com - IPFS node (MFS-backed)
//   - vault://https://vault.example.com:8200/secret/media - Vault KV v2
//   - memory://name - in-process storage for tests
func (f *AdapterFactory) AdapterFor(uri string) (interfaces.StorageAdapter, error) {
	loc, err := interfaces.ParseAdapterLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "file":
		return f.createFileAdapter(loc)
	case "s3":
		return f.createS3Adapter(loc)
	case "gcs":
		return f.createGCSAdapter(loc)
	case "ipfs":
		return f.createIPFSAdapter(loc)
	case "vault":
		return f.createVaultAdapter(loc)
	case "memory":
		return NewMemoryAdapter(loc.Host), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// AdaptersFor creates every adapter in uris, preserving order. URIs that
// fail to parse are skipped with a warning; an error is returned only when
// no adapter at all could be created.
func (f *AdapterFactory) AdaptersFor(uris []string) ([]interfaces.StorageAdapter, error) {
	adapters := make([]interfaces.StorageAdapter, 0, len(uris))

	for _, uri := range uris {
		adapter, err := f.AdapterFor(uri)
		if err != nil {
			f.log.Warn("Failed to create storage adapter",
				slog.String("location", uri),
				"err", err)
			continue
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no valid storage adapters created from %d locations", len(uris))
	}
	return adapters, nil
}

// createFileAdapter handles file:///absolute/path and file://./relative.
func (f *AdapterFactory) createFileAdapter(loc interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}
	return NewFileAdapter(path, f.log), nil
}

// createS3Adapter handles s3://[KEY:SECRET@]bucket/prefix/?region=..&endpoint=..
func (f *AdapterFactory) createS3Adapter(loc interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in S3 URI", interfaces.ErrInvalidLocationURI)
	}

	cfg := S3Config{
		Bucket:   loc.Host,
		Prefix:   strings.Trim(loc.Path, "/"),
		Region:   loc.Param("region"),
		Endpoint: loc.Param("endpoint"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if loc.Auth != "" {
		parts := strings.SplitN(loc.Auth, ":", 2)
		cfg.AccessKey = parts[0]
		if len(parts) == 2 {
			cfg.SecretKey = parts[1]
		}
	}
	return NewS3Adapter(cfg, f.log), nil
}

// createGCSAdapter handles gcs://bucket/prefix.
func (f *AdapterFactory) createGCSAdapter(loc interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in GCS URI", interfaces.ErrInvalidLocationURI)
	}
	return NewGCSAdapter(GCSConfig{
		Bucket: loc.Host,
		Prefix: strings.Trim(loc.Path, "/"),
	}, f.log), nil
}

// createIPFSAdapter handles ipfs://host:port/root?gateway=..
func (f *AdapterFactory) createIPFSAdapter(loc interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	host := loc.Host
	port := ""
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		port = host[idx+1:]
		host = host[:idx]
	}
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in IPFS URI", interfaces.ErrInvalidLocationURI)
	}
	return NewIPFSAdapter(IPFSConfig{
		Host:    host,
		Port:    port,
		Gateway: loc.Param("gateway"),
		Root:    loc.Path,
	}, f.log), nil
}

// createVaultAdapter handles vault://host:port/mount/datapath?token=..&tls=true
func (f *AdapterFactory) createVaultAdapter(loc interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	segments := strings.Split(strings.Trim(loc.Path, "/"), "/")
	if loc.Host == "" || len(segments) < 2 || segments[0] == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if loc.ParamBool("insecure") {
		scheme = "http"
	}

	return NewVaultAdapter(VaultConfig{
		Address:   fmt.Sprintf("%s://%s", scheme, loc.Host),
		Token:     loc.Param("token"),
		MountPath: segments[0],
		DataPath:  strings.Join(segments[1:], "/"),
	}, f.log), nil
}
