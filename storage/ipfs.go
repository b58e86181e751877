package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// IPFSConfig carries the settings for an IPFS adapter.
type IPFSConfig struct {
	Host string
	Port string

	// Gateway, when set, is used to build public URLs for stored content
	// (e.g. https://ipfs.example.com). Presigning is unavailable without it.
	Gateway string

	// Root is the MFS directory keys are stored under.
	Root string
}

// IPFSAdapter implements a storage adapter on an IPFS node. Objects live in
// the node's Mutable File System so they stay addressable by storage key
// rather than by CID; the CID doubles as the etag.
type IPFSAdapter struct {
	cfg         IPFSConfig
	shell       *shell.Shell
	log         *slog.Logger
	locationURI string
}

// NewIPFSAdapter creates an IPFS adapter for the node at host:port.
func NewIPFSAdapter(cfg IPFSConfig, log *slog.Logger) *IPFSAdapter {
	if cfg.Port == "" {
		cfg.Port = "5001" // default IPFS API port
	}
	if cfg.Root == "" {
		cfg.Root = "/uploads"
	}
	cfg.Root = "/" + strings.Trim(cfg.Root, "/")

	return &IPFSAdapter{
		cfg:         cfg,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s:%s%s", cfg.Host, cfg.Port, cfg.Root),
	}
}

// Connect creates the API shell and verifies the node is up.
func (a *IPFSAdapter) Connect(ctx context.Context) error {
	a.shell = shell.NewShell(fmt.Sprintf("%s:%s", a.cfg.Host, a.cfg.Port))
	if !a.shell.IsUp() {
		return fmt.Errorf("%w: IPFS node %s:%s not reachable", interfaces.ErrAdapterUnavailable, a.cfg.Host, a.cfg.Port)
	}
	a.log.Debug("IPFS adapter connected",
		slog.String("host", a.cfg.Host),
		slog.String("port", a.cfg.Port))
	return nil
}

// Disconnect drops the shell.
func (a *IPFSAdapter) Disconnect(ctx context.Context) error {
	a.shell = nil
	return nil
}

// Upload writes data into MFS under the key path.
func (a *IPFSAdapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	mfsPath := a.mfsPath(key)

	err := a.shell.FilesWrite(ctx, mfsPath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return nil, a.wrapErr("upload", key, err)
	}

	stat, err := a.shell.FilesStat(ctx, mfsPath)
	if err != nil {
		return nil, a.wrapErr("upload", key, err)
	}

	a.log.Debug("Stored object in IPFS",
		slog.String("key", key.String()),
		slog.String("cid", stat.Hash),
		slog.Int("size", len(data)))

	return &interfaces.StorageObject{
		Key:        key,
		Size:       int64(len(data)),
		ETag:       stat.Hash,
		Location:   "/ipfs/" + stat.Hash,
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Download reads the MFS file for key.
func (a *IPFSAdapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	r, err := a.shell.FilesRead(ctx, a.mfsPath(key))
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

// Delete removes the MFS entry. The content itself stays pinned on the node
// until garbage collection.
func (a *IPFSAdapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	if exists, err := a.Exists(ctx, key); err != nil || !exists {
		return false, err
	}
	if err := a.shell.FilesRm(ctx, a.mfsPath(key), true); err != nil {
		return false, a.wrapErr("delete", key, err)
	}
	return true, nil
}

// Exists stats the MFS path.
func (a *IPFSAdapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	_, err := a.shell.FilesStat(ctx, a.mfsPath(key))
	if err != nil {
		if isIPFSNotFound(err) {
			return false, nil
		}
		return false, a.wrapErr("exists", key, err)
	}
	return true, nil
}

// GetMetadata builds a descriptor from the MFS stat.
func (a *IPFSAdapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	stat, err := a.shell.FilesStat(ctx, a.mfsPath(key))
	if err != nil {
		return nil, a.wrapErr("metadata", key, err)
	}

	return &interfaces.StorageObject{
		Key:      key,
		Size:     int64(stat.Size),
		ETag:     stat.Hash,
		Location: "/ipfs/" + stat.Hash,
		Provider: a.Provider(),
	}, nil
}

// List walks the MFS tree under prefix. IPFS has no server-side paged
// listing, so pages are cut client-side from the sorted key set.
func (a *IPFSAdapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	max := opts.MaxResults
	if max <= 0 {
		max = 1000
	}

	var keys []string
	if err := a.walk(ctx, a.cfg.Root, "", prefix, &keys); err != nil {
		return nil, a.wrapErr("list", interfaces.StorageKey(prefix), err)
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

// PresignedURL builds a gateway URL for download when a gateway is
// configured. IPFS content is immutable, so the TTL is advisory.
func (a *IPFSAdapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	if op != interfaces.PresignDownload {
		return "", fmt.Errorf("only download URLs supported by %s", a.Provider())
	}
	if a.cfg.Gateway == "" {
		return "", fmt.Errorf("no gateway configured for %s", a.Name())
	}

	stat, err := a.shell.FilesStat(ctx, a.mfsPath(key))
	if err != nil {
		return "", a.wrapErr("presign", key, err)
	}
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimSuffix(a.cfg.Gateway, "/"), stat.Hash), nil
}

// Copy duplicates the MFS entry without re-adding the blocks.
func (a *IPFSAdapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	if err := a.shell.FilesCp(ctx, a.mfsPath(src), a.mfsPath(dst)); err != nil {
		return nil, a.wrapErr("copy", src, err)
	}
	return a.GetMetadata(ctx, dst)
}

// HealthCheck pings the node API.
func (a *IPFSAdapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	now := time.Now().UTC()
	if a.shell == nil || !a.shell.IsUp() {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: "IPFS node not reachable"}
	}
	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: now}
}

// Name returns a unique identifier for this adapter.
func (a *IPFSAdapter) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", a.cfg.Host, a.cfg.Port)
}

// Provider returns the provider kind.
func (a *IPFSAdapter) Provider() string { return "ipfs" }

// LocationURI returns the URI this adapter was created from.
func (a *IPFSAdapter) LocationURI() string { return a.locationURI }

func (a *IPFSAdapter) mfsPath(key interfaces.StorageKey) string {
	return path.Join(a.cfg.Root, key.String())
}

func (a *IPFSAdapter) walk(ctx context.Context, dir, rel, prefix string, keys *[]string) error {
	entries, err := a.shell.FilesLs(ctx, dir, shell.FilesLs.Stat(true))
	if err != nil {
		if isIPFSNotFound(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		childRel := path.Join(rel, entry.Name)
		if entry.Type == shell.TDirectory {
			if err := a.walk(ctx, path.Join(dir, entry.Name), childRel, prefix, keys); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(childRel, prefix) {
			*keys = append(*keys, childRel)
		}
	}
	return nil
}

func (a *IPFSAdapter) wrapErr(op string, key interfaces.StorageKey, err error) error {
	if isIPFSNotFound(err) {
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

func isIPFSNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no link named")
}
