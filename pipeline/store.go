package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/storage"
)

// Persister packages the caller-side persistence flow: deduplicate by
// content hash, upload the original plus its artifacts through the storage
// manager, and hand descriptors to the metadata store.
type Persister struct {
	manager *storage.Manager
	meta    interfaces.MetadataStore
	locker  interfaces.ContentLocker
	lockTTL time.Duration
	log     *slog.Logger
}

// NewPersister creates a persister. Nil collaborators become explicit
// no-ops.
func NewPersister(manager *storage.Manager, meta interfaces.MetadataStore, locker interfaces.ContentLocker, lockTTL time.Duration, log *slog.Logger) *Persister {
	if meta == nil {
		meta = interfaces.NoopMetadataStore{}
	}
	if locker == nil {
		locker = interfaces.NoopLocker{}
	}
	if lockTTL == 0 {
		lockTTL = 30 * time.Second
	}
	return &Persister{manager: manager, meta: meta, locker: locker, lockTTL: lockTTL, log: log}
}

// Persist stores the original payload and every derived artifact, then
// records their descriptors. The content lock bounds concurrent identical
// uploads; when the lock is contended the upload is assumed to be in
// flight elsewhere and skipped.
func (p *Persister) Persist(ctx context.Context, in interfaces.FileInput, result *interfaces.ProcessingResult) (*interfaces.StorageObject, error) {
	hash := content.Hash(in.Data)

	acquired, token, err := p.locker.Acquire(ctx, hash, p.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring content lock for %s: %w", hash[:12], err)
	}
	if !acquired {
		p.log.Info("Duplicate upload in flight, skipping persistence",
			slog.String("hash", hash[:12]),
			slog.String("file", in.FileName))
		return nil, nil
	}
	defer func() {
		if _, err := p.locker.Release(ctx, hash, token); err != nil {
			p.log.Warn("Failed to release content lock", slog.String("hash", hash[:12]), "err", err)
		}
	}()

	original, err := p.manager.Upload(ctx, in.FileName, in.Data, interfaces.UploadOptions{
		ContentType: in.MimeType,
		Metadata: map[string]string{
			"process_id": result.ProcessID,
			"type":       string(result.Type),
		},
	})
	if err != nil {
		return nil, err
	}

	for i, artifact := range result.Artifacts {
		name := artifactFileName(in.FileName, artifact, i)
		if _, err := p.manager.Upload(ctx, name, artifact.Data, interfaces.UploadOptions{
			Metadata: map[string]string{
				"parent_key": original.Key.String(),
				"process_id": result.ProcessID,
				"artifact":   string(artifact.Type),
			},
		}); err != nil {
			return nil, fmt.Errorf("storing %s artifact: %w", artifact.Type, err)
		}
	}

	if err := p.meta.SaveObject(ctx, original); err != nil {
		return nil, fmt.Errorf("saving object descriptor: %w", err)
	}
	if err := p.meta.SaveArtifacts(ctx, original.Key, result.Artifacts); err != nil {
		return nil, fmt.Errorf("saving artifact descriptors: %w", err)
	}
	return original, nil
}

// artifactFileName derives a distinct name per artifact from the original
// filename, the artifact type, and its position.
func artifactFileName(original string, artifact interfaces.Artifact, index int) string {
	name := fmt.Sprintf("%s_%s_%d", original, artifact.Type, index)
	if artifact.Format != "" {
		name += "." + artifact.Format
	}
	return name
}
