package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/retry"
)

// adapterState tracks connection lifecycle per candidate adapter.
type adapterState string

const (
	stateDisconnected adapterState = "disconnected"
	stateConnecting   adapterState = "connecting"
	stateConnected    adapterState = "connected"
	stateFailed       adapterState = "failed"
)

// ManagerConfig controls retry, failover, and payload handling policy.
type ManagerConfig struct {
	// KeyPrefix is prepended to generated storage keys.
	KeyPrefix string

	// MaxFileSize bounds upload payloads. 0 disables the check.
	MaxFileSize int64

	// RetryAttempts is the total tries per operation, including the first.
	RetryAttempts int

	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration

	// HealthInterval is how often every candidate is polled. 0 disables
	// the background health loop.
	HealthInterval time.Duration
}

// managedAdapter pairs an adapter with its connection state and last
// observed health.
type managedAdapter struct {
	adapter interfaces.StorageAdapter
	state   adapterState
	health  interfaces.ProviderHealth
}

// Manager fronts an ordered list of storage adapters with retry,
// failover, health polling, and transparent payload encoding. All
// public operations run against the currently active adapter.
type Manager struct {
	cfg      ManagerConfig
	codec    *content.Codec
	metrics  *Metrics
	notifier interfaces.EventNotifier
	log      *slog.Logger

	mu       sync.RWMutex
	adapters []*managedAdapter
	active   int
	degraded bool

	healthStop chan struct{}
	healthDone chan struct{}
}

// NewManager creates a manager over adapters, in failover preference
// order. codec may be nil for pass-through storage; notifier may be nil.
func NewManager(cfg ManagerConfig, adapters []interfaces.StorageAdapter, codec *content.Codec, metrics *Metrics, notifier interfaces.EventNotifier, log *slog.Logger) *Manager {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if notifier == nil {
		notifier = interfaces.NoopNotifier{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	managed := make([]*managedAdapter, len(adapters))
	for i, adapter := range adapters {
		managed[i] = &managedAdapter{adapter: adapter, state: stateDisconnected}
	}

	return &Manager{
		cfg:      cfg,
		codec:    codec,
		metrics:  metrics,
		notifier: notifier,
		log:      log,
		adapters: managed,
		active:   -1,
	}
}

// Initialize connects the candidates in order and selects the first one
// that comes up as active. Remaining candidates stay registered for
// failover even when their initial connect fails. Errors hard when no
// candidate connects. Starts the background health loop when configured.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.adapters) == 0 {
		return fmt.Errorf("storage manager: no adapters configured")
	}

	for i, managed := range m.adapters {
		managed.state = stateConnecting
		if err := managed.adapter.Connect(ctx); err != nil {
			managed.state = stateFailed
			m.log.Warn("Storage adapter failed to connect",
				slog.String("adapter", managed.adapter.Name()),
				"err", err)
			continue
		}
		managed.state = stateConnected
		managed.health = interfaces.ProviderHealth{Status: interfaces.Healthy, LastCheck: time.Now()}
		if m.active < 0 {
			m.active = i
			m.log.Info("Storage adapter active",
				slog.String("adapter", managed.adapter.Name()),
				slog.String("provider", managed.adapter.Provider()))
		}
	}

	if m.active < 0 {
		return fmt.Errorf("storage manager: %w: all %d adapters failed to connect",
			interfaces.ErrAdapterUnavailable, len(m.adapters))
	}

	if m.cfg.HealthInterval > 0 && m.healthStop == nil {
		m.healthStop = make(chan struct{})
		m.healthDone = make(chan struct{})
		go m.healthLoop()
	}
	return nil
}

// Close stops the health loop and disconnects every adapter.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.healthStop != nil {
		close(m.healthStop)
		done := m.healthDone
		m.healthStop = nil
		m.healthDone = nil
		m.mu.Unlock()
		<-done
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	var firstErr error
	for _, managed := range m.adapters {
		if managed.state != stateConnected {
			continue
		}
		if err := managed.adapter.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		managed.state = stateDisconnected
	}
	return firstErr
}

// Active returns the name of the currently active adapter, or "" when
// none is connected.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active < 0 {
		return ""
	}
	return m.adapters[m.active].adapter.Name()
}

// Health reports the last observed health of every candidate.
func (m *Manager) Health() map[string]interfaces.ProviderHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]interfaces.ProviderHealth, len(m.adapters))
	for _, managed := range m.adapters {
		out[managed.adapter.Name()] = managed.health
	}
	return out
}

// Upload validates and stores data under a freshly generated key. The key
// is generated once, before any retry, so a failover retry lands the same
// object under the same key.
func (m *Manager) Upload(ctx context.Context, fileName string, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	key := content.GenerateKey(m.cfg.KeyPrefix, fileName, time.Now())
	return m.UploadWithKey(ctx, key, fileName, data, opts)
}

// UploadWithKey stores data under a caller-chosen key.
func (m *Manager) UploadWithKey(ctx context.Context, key interfaces.StorageKey, fileName string, data []byte, opts interfaces.UploadOptions) (*interfaces.StorageObject, error) {
	if err := content.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	if err := content.ValidateSize(int64(len(data)), m.cfg.MaxFileSize); err != nil {
		return nil, err
	}

	contentHash := content.Hash(data)
	if opts.Metadata == nil {
		opts.Metadata = map[string]string{}
	}
	opts.Metadata["sha256"] = contentHash
	if opts.ContentType == "" {
		opts.ContentType = content.DetectMime(fileName, data)
	}
	opts.Metadata["content_type"] = opts.ContentType

	payload := data
	if m.codec != nil {
		encoded, err := m.codec.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("encoding payload for %s: %w", key, err)
		}
		payload = encoded
	}

	var obj *interfaces.StorageObject
	err := m.executeWithRetry(ctx, "upload", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		stored, err := adapter.Upload(ctx, key, payload, opts)
		if err != nil {
			return err
		}
		obj = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Callers reason about the original payload, not the encoded frame.
	obj.Size = int64(len(data))
	obj.ETag = contentHash
	m.metrics.AddBytes(obj.Provider, "in", len(data))
	return obj, nil
}

// Download retrieves and decodes the object stored under key.
func (m *Manager) Download(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	var payload []byte
	var provider string
	err := m.executeWithRetry(ctx, "download", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		data, err := adapter.Download(ctx, key)
		if err != nil {
			return err
		}
		payload = data
		provider = adapter.Provider()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.codec != nil {
		decoded, err := m.codec.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding payload for %s: %w", key, err)
		}
		payload = decoded
	}
	m.metrics.AddBytes(provider, "out", len(payload))
	return payload, nil
}

// Delete removes the object under key. Returns false when it did not exist.
func (m *Manager) Delete(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	var existed bool
	err := m.executeWithRetry(ctx, "delete", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		ok, err := adapter.Delete(ctx, key)
		if err != nil {
			return err
		}
		existed = ok
		return nil
	})
	return existed, err
}

// Exists reports whether key is present on the active provider.
func (m *Manager) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	var present bool
	err := m.executeWithRetry(ctx, "exists", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		ok, err := adapter.Exists(ctx, key)
		if err != nil {
			return err
		}
		present = ok
		return nil
	})
	return present, err
}

// GetMetadata returns the stored object descriptor without its bytes.
func (m *Manager) GetMetadata(ctx context.Context, key interfaces.StorageKey) (*interfaces.StorageObject, error) {
	var obj *interfaces.StorageObject
	err := m.executeWithRetry(ctx, "metadata", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		meta, err := adapter.GetMetadata(ctx, key)
		if err != nil {
			return err
		}
		obj = meta
		return nil
	})
	return obj, err
}

// List returns a page of objects under prefix from the active provider.
func (m *Manager) List(ctx context.Context, prefix string, opts interfaces.ListOptions) (*interfaces.ObjectPage, error) {
	var page *interfaces.ObjectPage
	err := m.executeWithRetry(ctx, "list", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		p, err := adapter.List(ctx, prefix, opts)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

// PresignedURL returns a time-limited direct-access URL from the active
// provider. Not retried across providers: a URL is only valid on the
// provider that issued it.
func (m *Manager) PresignedURL(ctx context.Context, key interfaces.StorageKey, op interfaces.PresignOperation, ttl time.Duration) (string, error) {
	adapter := m.activeAdapter()
	if adapter == nil {
		return "", interfaces.ErrAdapterUnavailable
	}
	start := time.Now()
	url, err := adapter.PresignedURL(ctx, key, op, ttl)
	m.metrics.ObserveOperation(adapter.Provider(), "presign", time.Since(start), err)
	return url, err
}

// Copy duplicates src to dst on the active provider.
func (m *Manager) Copy(ctx context.Context, src, dst interfaces.StorageKey) (*interfaces.StorageObject, error) {
	var obj *interfaces.StorageObject
	err := m.executeWithRetry(ctx, "copy", func(ctx context.Context, adapter interfaces.StorageAdapter) error {
		copied, err := adapter.Copy(ctx, src, dst)
		if err != nil {
			return err
		}
		obj = copied
		return nil
	})
	return obj, err
}

// executeWithRetry runs op against the active adapter under the configured
// retry policy. When every attempt fails with a transient error, it fails
// over to the next healthy candidate and tries once more; if that attempt
// also fails the active pointer is reverted so one bad request cannot
// strand the manager on a worse provider.
func (m *Manager) executeWithRetry(ctx context.Context, operation string, op func(ctx context.Context, adapter interfaces.StorageAdapter) error) error {
	adapter := m.activeAdapter()
	if adapter == nil {
		return interfaces.ErrAdapterUnavailable
	}

	start := time.Now()
	err := retry.Do(ctx, retry.Config{
		Attempts:    m.cfg.RetryAttempts,
		Delay:       m.cfg.RetryDelay,
		Exponential: true,
		Classify:    interfaces.IsTransient,
		OnRetry: func(attempt int, err error) {
			m.log.Warn("Retrying storage operation",
				slog.String("operation", operation),
				slog.String("adapter", adapter.Name()),
				slog.Int("attempt", attempt),
				"err", err)
		},
	}, func(ctx context.Context) error {
		return op(ctx, adapter)
	})

	if err != nil && interfaces.IsTransient(err) && ctx.Err() == nil {
		if next, ok := m.performFailover(ctx, adapter, err); ok {
			if failoverErr := op(ctx, next); failoverErr == nil {
				m.metrics.ObserveOperation(next.Provider(), operation, time.Since(start), nil)
				return nil
			}
			m.revertActive(adapter)
		}
	}

	m.metrics.ObserveOperation(adapter.Provider(), operation, time.Since(start), err)
	return err
}

// activeAdapter returns the current active adapter, or nil.
func (m *Manager) activeAdapter() interfaces.StorageAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active < 0 || m.adapters[m.active].state != stateConnected {
		return nil
	}
	return m.adapters[m.active].adapter
}

// performFailover promotes the next serviceable candidate after from.
// Disconnected candidates get one connect attempt. Emits a
// FAILOVER_OCCURRED event and counts the switch when one is found.
func (m *Manager) performFailover(ctx context.Context, from interfaces.StorageAdapter, cause error) (interfaces.StorageAdapter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for offset := 1; offset < len(m.adapters); offset++ {
		idx := (m.active + offset) % len(m.adapters)
		candidate := m.adapters[idx]
		if candidate.adapter.Name() == from.Name() {
			continue
		}
		if candidate.health.Status == interfaces.Unhealthy {
			continue
		}
		if candidate.state != stateConnected {
			candidate.state = stateConnecting
			if err := candidate.adapter.Connect(ctx); err != nil {
				candidate.state = stateFailed
				continue
			}
			candidate.state = stateConnected
		}

		m.active = idx
		m.log.Warn("Storage failover",
			slog.String("from", from.Name()),
			slog.String("to", candidate.adapter.Name()),
			"cause", cause)
		m.metrics.RecordFailover(from.Name(), candidate.adapter.Name())
		m.notifier.Notify(ctx, interfaces.Event{
			Name: interfaces.EventFailoverOccurred,
			Payload: map[string]string{
				"from":   from.Name(),
				"to":     candidate.adapter.Name(),
				"reason": cause.Error(),
			},
		})
		return candidate.adapter, true
	}

	m.log.Error("Storage failover found no serviceable candidate",
		slog.String("from", from.Name()),
		"cause", cause)
	return nil, false
}

// revertActive restores the active pointer to prev after a failed
// failover attempt.
func (m *Manager) revertActive(prev interfaces.StorageAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, managed := range m.adapters {
		if managed.adapter.Name() == prev.Name() {
			m.active = i
			return
		}
	}
}

// healthLoop polls every candidate on the configured interval, updates
// health gauges, fails over proactively when the active provider goes
// unhealthy, and emits STORAGE_DEGRADED when no candidate is healthy.
func (m *Manager) healthLoop() {
	defer close(m.healthDone)
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.healthStop:
			return
		case <-ticker.C:
			m.checkHealth(context.Background())
		}
	}
}

// checkHealth runs one polling pass over all candidates.
func (m *Manager) checkHealth(ctx context.Context) {
	m.mu.Lock()
	adapters := make([]*managedAdapter, len(m.adapters))
	copy(adapters, m.adapters)
	activeIdx := m.active
	m.mu.Unlock()

	anyHealthy := false
	activeUnhealthy := false
	for i, managed := range adapters {
		health := managed.adapter.HealthCheck(ctx)

		m.mu.Lock()
		managed.health = health
		m.mu.Unlock()

		m.metrics.SetHealth(managed.adapter.Name(), health.Ok())
		if health.Ok() {
			anyHealthy = true
		} else if i == activeIdx {
			activeUnhealthy = true
		}
	}

	if activeUnhealthy && activeIdx >= 0 {
		active := adapters[activeIdx].adapter
		m.log.Warn("Active storage adapter unhealthy, failing over",
			slog.String("adapter", active.Name()))
		m.performFailover(ctx, active, fmt.Errorf("health check failed: %s", adapters[activeIdx].health.Err))
	}

	m.mu.Lock()
	wasDegraded := m.degraded
	m.degraded = !anyHealthy
	m.mu.Unlock()

	if !anyHealthy && !wasDegraded {
		m.log.Error("All storage providers unhealthy")
		m.notifier.Notify(ctx, interfaces.Event{
			Name:    interfaces.EventStorageDegraded,
			Payload: map[string]string{"providers": fmt.Sprintf("%d", len(adapters))},
		})
	}
}
