package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/processors"
)

// stubProcessor is a scripted processor with a concurrency gauge.
type stubProcessor struct {
	ptype interfaces.ProcessorType
	delay time.Duration

	mu       sync.Mutex
	failures map[string]int // remaining Process failures per file; -1 fails forever
	calls    map[string]int

	validateErr error
	onProcess   func(fileName string)

	current atomic.Int32
	peak    atomic.Int32
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		ptype:    interfaces.ImageType,
		failures: map[string]int{},
		calls:    map[string]int{},
	}
}

func (s *stubProcessor) Type() interfaces.ProcessorType { return s.ptype }

func (s *stubProcessor) Supports(mimeType, fileName string) bool { return true }

func (s *stubProcessor) Validate(ctx context.Context, data []byte, opts interfaces.ProcessOptions) error {
	return s.validateErr
}

func (s *stubProcessor) Process(ctx context.Context, data []byte, fileName string, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	now := s.current.Inc()
	for {
		peak := s.peak.Load()
		if now <= peak || s.peak.CompareAndSwap(peak, now) {
			break
		}
	}
	defer s.current.Dec()

	if s.onProcess != nil {
		s.onProcess(fileName)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls[fileName]++
	remaining := s.failures[fileName]
	if remaining > 0 {
		s.failures[fileName]--
	}
	s.mu.Unlock()

	if remaining != 0 {
		return nil, errors.New("scripted transformation failure")
	}
	return &interfaces.ProcessOutput{
		Metadata:  map[string]any{"stub": true},
		Artifacts: []interfaces.Artifact{{Type: interfaces.ArtifactThumbnail, Data: []byte("thumb")}},
	}, nil
}

func (s *stubProcessor) callCount(fileName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[fileName]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event interfaces.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) named(name string) []interfaces.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []interfaces.Event
	for _, ev := range n.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInput(name string) interfaces.FileInput {
	return interfaces.FileInput{Data: []byte("payload"), FileName: name, MimeType: "application/x-test"}
}

func newTestOrchestrator(cfg Config, stub *stubProcessor, notifier interfaces.EventNotifier) *Orchestrator {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return NewOrchestrator(cfg, processors.NewRouter(stub), notifier, testLogger())
}

func TestProcessFileSuccess(t *testing.T) {
	stub := newStubProcessor()
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(Config{}, stub, notifier)

	result, err := o.ProcessFile(context.Background(), testInput("photo.jpg"), interfaces.ProcessOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProcessID)
	assert.Equal(t, interfaces.ImageType, result.Type)
	assert.Greater(t, result.ProcessingTime, time.Duration(0))

	// artifacts reference their producing job, never independent identity
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, result.ProcessID, result.Artifacts[0].ParentID)

	entry, ok := o.Tracker().Get(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, entry.Status)

	events := notifier.named(interfaces.EventFileProcessed)
	require.Len(t, events, 1)
	assert.Equal(t, result.ProcessID, events[0].Payload["processId"])
}

func TestProcessFileRetriesTransformationFailures(t *testing.T) {
	stub := newStubProcessor()
	stub.failures["flaky.jpg"] = 2
	o := newTestOrchestrator(Config{RetryAttempts: 3}, stub, nil)

	result, err := o.ProcessFile(context.Background(), testInput("flaky.jpg"), interfaces.ProcessOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 3, stub.callCount("flaky.jpg"))
}

func TestProcessFileSurfacesTerminalFailure(t *testing.T) {
	stub := newStubProcessor()
	stub.failures["broken.jpg"] = -1
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(Config{RetryAttempts: 2}, stub, notifier)

	_, err := o.ProcessFile(context.Background(), testInput("broken.jpg"), interfaces.ProcessOptions{})
	require.Error(t, err)

	var pe *interfaces.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, stub.callCount("broken.jpg"))

	events := notifier.named(interfaces.EventFileProcessingFailed)
	require.Len(t, events, 1)
	assert.Equal(t, "broken.jpg", events[0].Payload["fileName"])
	assert.NotEmpty(t, events[0].Payload["elapsed"])
}

func TestProcessFileValidationNotRetried(t *testing.T) {
	stub := newStubProcessor()
	stub.validateErr = &interfaces.ValidationError{Field: "data", Reason: "scripted rejection"}
	o := newTestOrchestrator(Config{RetryAttempts: 3}, stub, nil)

	_, err := o.ProcessFile(context.Background(), testInput("bad.jpg"), interfaces.ProcessOptions{})
	var ve *interfaces.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, stub.callCount("bad.jpg"))
}

func TestProcessFileUnsupportedType(t *testing.T) {
	// a router with no processors claims nothing
	o := NewOrchestrator(Config{RetryDelay: time.Millisecond}, processors.NewRouter(), nil, testLogger())

	_, err := o.ProcessFile(context.Background(), testInput("mystery.bin"), interfaces.ProcessOptions{})
	var ute *interfaces.UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
}

func TestProcessBatchConcurrencyBound(t *testing.T) {
	stub := newStubProcessor()
	stub.delay = 20 * time.Millisecond
	stub.failures["fail-1.jpg"] = -1
	stub.failures["fail-2.jpg"] = -1
	o := newTestOrchestrator(Config{MaxConcurrent: 2, Parallel: true, RetryAttempts: 1}, stub, nil)

	files := []interfaces.FileInput{
		testInput("ok-1.jpg"),
		testInput("fail-1.jpg"),
		testInput("ok-2.jpg"),
		testInput("fail-2.jpg"),
		testInput("ok-3.jpg"),
	}
	result := o.ProcessBatch(context.Background(), files, interfaces.ProcessOptions{})

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Len(t, result.Results, 3)
	assert.Len(t, result.Errors, 2)
	assert.LessOrEqual(t, stub.peak.Load(), int32(2))

	failed := map[string]bool{}
	for _, batchErr := range result.Errors {
		failed[batchErr.FileName] = true
		assert.Error(t, batchErr.Err)
	}
	assert.Equal(t, map[string]bool{"fail-1.jpg": true, "fail-2.jpg": true}, failed)
}

func TestProcessBatchSequential(t *testing.T) {
	stub := newStubProcessor()
	stub.delay = 5 * time.Millisecond
	o := newTestOrchestrator(Config{Parallel: false}, stub, nil)

	files := []interfaces.FileInput{testInput("a.jpg"), testInput("b.jpg"), testInput("c.jpg")}
	result := o.ProcessBatch(context.Background(), files, interfaces.ProcessOptions{})

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, int32(1), stub.peak.Load())
}

func TestCancelProcessIsCooperative(t *testing.T) {
	stub := newStubProcessor()
	stub.failures["slow.jpg"] = -1

	var o *Orchestrator
	cancelled := false
	stub.onProcess = func(fileName string) {
		if cancelled {
			return
		}
		cancelled = true
		for _, entry := range o.Tracker().List() {
			o.CancelProcess(entry.ProcessID)
		}
	}
	o = newTestOrchestrator(Config{RetryAttempts: 5}, stub, nil)

	_, err := o.ProcessFile(context.Background(), testInput("slow.jpg"), interfaces.ProcessOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	// the first attempt ran, the cancellation stopped every subsequent one
	assert.Equal(t, 1, stub.callCount("slow.jpg"))
}

func TestCancelProcessUnknownID(t *testing.T) {
	o := newTestOrchestrator(Config{}, newStubProcessor(), nil)
	assert.False(t, o.CancelProcess("no-such-process"))
}

func TestCreateArchive(t *testing.T) {
	archive := processors.NewArchiveProcessor(testLogger())
	o := NewOrchestrator(Config{RetryDelay: time.Millisecond}, processors.NewRouter(archive), nil, testLogger())

	result, err := o.CreateArchive(context.Background(), []interfaces.FileInput{
		{FileName: "a.txt", Data: []byte("alpha")},
		{FileName: "b.txt", Data: []byte("beta")},
	}, "zip")
	require.NoError(t, err)
	assert.Equal(t, "zip", result.Format)
	assert.Equal(t, int64(len(result.Data)), result.Size)
	assert.NotEmpty(t, result.Data)
}

func TestCreateArchiveWithoutArchiveProcessor(t *testing.T) {
	o := NewOrchestrator(Config{RetryDelay: time.Millisecond}, processors.NewRouter(), nil, testLogger())

	_, err := o.CreateArchive(context.Background(), []interfaces.FileInput{{FileName: "a", Data: []byte("x")}}, "zip")
	require.Error(t, err)
}
