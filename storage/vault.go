package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// VaultConfig carries the settings for a HashiCorp Vault adapter.
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
	DataPath  string
}

// VaultAdapter implements a storage adapter on Vault's KV v2 engine. It is
// intended for small, sensitive payloads (encrypted originals, key material),
// not bulk media; callers should route large renditions elsewhere.
type VaultAdapter struct {
	cfg         VaultConfig
	client      *api.Client
	log         *slog.Logger
	locationURI string
}

// NewVaultAdapter creates a Vault adapter against mountPath/dataPath.
func NewVaultAdapter(cfg VaultConfig, log *slog.Logger) *VaultAdapter {
	cfg.MountPath = strings.Trim(cfg.MountPath, "/")
	cfg.DataPath = strings.Trim(cfg.DataPath, "/")

	return &VaultAdapter{
		cfg:         cfg,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", cfg.Address, cfg.MountPath, cfg.DataPath),
	}
}

// Connect creates the API client and verifies Vault is initialized and
// unsealed.
func (a *VaultAdapter) Connect(ctx context.Context) error {
	config := api.DefaultConfig()
	config.Address = a.cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create Vault client: %w", err)
	}
	if a.cfg.Token != "" {
		client.SetToken(a.cfg.Token)
	}
	a.client = client

	health, err := client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAdapterUnavailable, err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("%w: vault initialized=%v sealed=%v",
			interfaces.ErrAdapterUnavailable, health.Initialized, health.Sealed)
	}

	a.log.Debug("Vault adapter connected", slog.String("address", a.cfg.Address))
	return nil
}

// Disconnect drops the client.
func (a *VaultAdapter) Disconnect(ctx context.Context) error {
	a.client = nil
	return nil
}

// Upload writes the payload base64-encoded into a KV v2 secret alongside its
// descriptor fields.
func (a *VaultAdapter) Upload(ctx context.Context, key interfaces.StorageKey, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	now := time.Now().UTC()
	etag := content.Hash(data)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content":     base64.StdEncoding.EncodeToString(data),
			"etag":        etag,
			"size":        fmt.Sprintf("%d", len(data)),
			"uploaded_at": now.Format(time.RFC3339),
		},
	}
	for k, v := range opts.Metadata {
		secretData["data"].(map[string]interface{})["meta_"+k] = v
	}

	if _, err := a.client.Logical().WriteWithContext(ctx, a.secretPath(key), secretData); err != nil {
		return nil, a.wrapErr("upload", key, err)
	}

	a.log.Debug("Stored object in Vault",
		slog.String("key", key.String()),
		slog.Int("size", len(data)))

	return &interfaces.StorageObject{
		Key:        key,
		Size:       int64(len(data)),
		ETag:       etag,
		Location:   a.secretPath(key),
		Provider:   a.Provider(),
		Metadata:   opts.Metadata,
		UploadedAt: now,
	}, nil
}

// Download reads and decodes the KV v2 secret.
func (a *VaultAdapter) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	secret, err := a.read(ctx, key)
	if err != nil {
		return nil, err
	}

	encoded, ok := secret["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key missing in Vault secret for %q", key)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("corrupt content encoding for %q: %w", key, err)
	}
	return data, nil
}

// Delete removes all versions of the secret.
func (a *VaultAdapter) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	exists, err := a.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}

	if _, err := a.client.Logical().DeleteWithContext(ctx, a.metadataPath(key)); err != nil {
		return false, a.wrapErr("delete", key, err)
	}
	return true, nil
}

// Exists reads the secret and reports presence.
func (a *VaultAdapter) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	_, err := a.read(ctx, key)
	if err == interfaces.ErrObjectNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMetadata rebuilds the descriptor from the secret's descriptor fields.
func (a *VaultAdapter) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	secret, err := a.read(ctx, key)
	if err != nil {
		return nil, err
	}

	obj := &interfaces.StorageObject{
		Key:      key,
		Location: a.secretPath(key),
		Provider: a.Provider(),
	}
	if etag, ok := secret["etag"].(string); ok {
		obj.ETag = etag
	}
	if size, ok := secret["size"].(string); ok {
		fmt.Sscanf(size, "%d", &obj.Size)
	}
	if ts, ok := secret["uploaded_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			obj.UploadedAt = parsed
		}
	}
	for k, v := range secret {
		if name, found := strings.CutPrefix(k, "meta_"); found {
			if obj.Metadata == nil {
				obj.Metadata = make(map[string]string)
			}
			if s, ok := v.(string); ok {
				obj.Metadata[name] = s
			}
		}
	}
	return obj, nil
}

// List enumerates keys under prefix via the KV v2 metadata listing. Vault
// lists one level at a time, so the tree is walked recursively and paged
// client-side.
func (a *VaultAdapter) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	max := opts.MaxResults
	if max <= 0 {
		max = 1000
	}

	var keys []string
	if err := a.walk(ctx, "", &keys); err != nil {
		return nil, a.wrapErr("list", interfaces.StorageKey(prefix), err)
	}
	sort.Strings(keys)

	page := &interfaces.ObjectPage{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
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

// PresignedURL is not supported: Vault access is always authenticated.
func (a *VaultAdapter) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported by %s", a.Provider())
}

// Copy reads src and writes it under dst.
func (a *VaultAdapter) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
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

// HealthCheck verifies Vault is initialized and unsealed.
func (a *VaultAdapter) HealthCheck(ctx context.Context) interfaces.ProviderHealth {
	now := time.Now().UTC()
	if a.client == nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: "not connected"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := a.client.Sys().HealthWithContext(checkCtx)
	if err != nil {
		return interfaces.ProviderHealth{Status: interfaces.Unhealthy, LastCheck: now, Err: err.Error()}
	}
	if !health.Initialized || health.Sealed {
		return interfaces.ProviderHealth{
			Status:    interfaces.Unhealthy,
			LastCheck: now,
			Err:       fmt.Sprintf("initialized=%v sealed=%v", health.Initialized, health.Sealed),
		}
	}
	return interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: now}
}

// Name returns a unique identifier for this adapter.
func (a *VaultAdapter) Name() string {
	return fmt.Sprintf("vault-%s-%s", a.cfg.MountPath, a.cfg.DataPath)
}

// Provider returns the provider kind.
func (a *VaultAdapter) Provider() string { return "vault" }

// LocationURI returns the URI this adapter was created from.
func (a *VaultAdapter) LocationURI() string { return a.locationURI }

// read fetches the inner KV v2 data map for key.
func (a *VaultAdapter) read(ctx context.Context, key interfaces.StorageKey) (map[string]interface{}, error) {
	secret, err := a.client.Logical().ReadWithContext(ctx, a.secretPath(key))
	if err != nil {
		return nil, a.wrapErr("download", key, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrObjectNotFound
	}

	inner, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected KV v2 response shape for %q", key)
	}
	return inner, nil
}

func (a *VaultAdapter) walk(ctx context.Context, rel string, keys *[]string) error {
	listPath := fmt.Sprintf("%s/metadata/%s", a.cfg.MountPath, strings.Trim(a.cfg.DataPath+"/"+rel, "/"))

	secret, err := a.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return err
	}
	if secret == nil || secret.Data == nil {
		return nil
	}

	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil
	}
	for _, entry := range raw {
		name, ok := entry.(string)
		if !ok {
			continue
		}
		child := strings.Trim(rel+"/"+strings.TrimSuffix(name, "/"), "/")
		if strings.HasSuffix(name, "/") {
			if err := a.walk(ctx, child, keys); err != nil {
				return err
			}
			continue
		}
		*keys = append(*keys, child)
	}
	return nil
}

func (a *VaultAdapter) secretPath(key interfaces.StorageKey) string {
	return fmt.Sprintf("%s/data/%s/%s", a.cfg.MountPath, a.cfg.DataPath, key)
}

func (a *VaultAdapter) metadataPath(key interfaces.StorageKey) string {
	return fmt.Sprintf("%s/metadata/%s/%s", a.cfg.MountPath, a.cfg.DataPath, key)
}

func (a *VaultAdapter) wrapErr(op string, key interfaces.StorageKey, err error) error {
	return &interfaces.StorageError{
		Provider:  a.Name(),
		Op:        op,
		Key:       key,
		Err:       err,
		Transient: true, // Vault API failures are connectivity-class
	}
}
