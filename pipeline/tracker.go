package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Process statuses. Retrying jobs carry "retry_N" with the upcoming
// attempt number.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// RetryStatus formats the status for the given attempt.
func RetryStatus(attempt int) string {
	return fmt.Sprintf("retry_%d", attempt)
}

// ProcessEntry is one tracked job. Observability state only, never a
// source of truth.
type ProcessEntry struct {
	ProcessID string
	FileName  string
	MimeType  string
	Size      int64
	StartTime time.Time
	Status    string
	Duration  time.Duration
	Err       string
}

// Tracker is an in-memory, time-bounded registry of in-flight and recently
// finished jobs. Terminal entries are pruned after the retention window.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[string]*ProcessEntry
	retention time.Duration
}

// NewTracker creates a tracker. retention 0 defaults to one minute.
func NewTracker(retention time.Duration) *Tracker {
	if retention == 0 {
		retention = time.Minute
	}
	return &Tracker{
		entries:   make(map[string]*ProcessEntry),
		retention: retention,
	}
}

// Register creates a tracker entry in the processing state.
func (t *Tracker) Register(id, fileName, mimeType string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &ProcessEntry{
		ProcessID: id,
		FileName:  fileName,
		MimeType:  mimeType,
		Size:      size,
		StartTime: time.Now(),
		Status:    StatusProcessing,
	}
}

// SetStatus updates a non-terminal entry's status.
func (t *Tracker) SetStatus(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok || isTerminal(entry.Status) {
		return
	}
	entry.Status = status
}

// Complete marks the entry completed and schedules its pruning.
func (t *Tracker) Complete(id string, elapsed time.Duration) {
	t.finish(id, StatusCompleted, elapsed, "")
}

// Fail marks the entry failed and schedules its pruning.
func (t *Tracker) Fail(id string, elapsed time.Duration, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(id, StatusFailed, elapsed, msg)
}

// Cancel flips the entry to cancelled. Cooperative only: in-flight work is
// not interrupted, it observes the status between attempts. Returns false
// for unknown or already-terminal entries.
func (t *Tracker) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok || isTerminal(entry.Status) {
		return false
	}
	entry.Status = StatusCancelled
	entry.Duration = time.Since(entry.StartTime)
	t.scheduleForget(id)
	return true
}

// IsCancelled reports whether the entry was cancelled.
func (t *Tracker) IsCancelled(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	return ok && entry.Status == StatusCancelled
}

// Get returns a copy of the entry.
func (t *Tracker) Get(id string) (ProcessEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	if !ok {
		return ProcessEntry{}, false
	}
	return *entry, true
}

// List returns copies of all current entries.
func (t *Tracker) List() []ProcessEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ProcessEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}
	return out
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (t *Tracker) finish(id, status string, elapsed time.Duration, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok || entry.Status == StatusCancelled {
		// a cancelled entry keeps its status; the pruning timer is already
		// armed
		return
	}
	entry.Status = status
	entry.Duration = elapsed
	entry.Err = errMsg
	t.scheduleForget(id)
}

// scheduleForget prunes the entry after the retention window. Callers hold
// the lock.
func (t *Tracker) scheduleForget(id string) {
	time.AfterFunc(t.retention, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.entries, id)
	})
}
