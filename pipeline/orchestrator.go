package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/processors"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/retry"
)

// Config controls orchestration policy.
type Config struct {
	// MaxConcurrent bounds batch parallelism. Default 4.
	MaxConcurrent int

	// Parallel disables batch concurrency entirely when false; files then
	// run strictly in submission order.
	Parallel bool

	// Timeout bounds one processing attempt. Default 5 minutes.
	Timeout time.Duration

	// RetryAttempts is the total tries per file, including the first.
	// Default 3.
	RetryAttempts int

	// RetryDelay is the fixed wait between attempts. Default 1s.
	RetryDelay time.Duration

	// Retention is how long terminal tracker entries are kept. Default 60s.
	Retention time.Duration
}

// archiveCreator is the creation side of the archive processor.
type archiveCreator interface {
	Create(ctx context.Context, files []interfaces.FileInput, format string) ([]byte, error)
}

// ArchiveResult is the outcome of CreateArchive.
type ArchiveResult struct {
	Data   []byte
	Size   int64
	Format string
}

// Orchestrator dispatches files and batches to processors, enforcing
// timeouts, retries, and bounded concurrency, and tracking in-flight jobs.
type Orchestrator struct {
	cfg      Config
	router   *processors.Router
	tracker  *Tracker
	notifier interfaces.EventNotifier
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator over router. notifier may be nil.
func NewOrchestrator(cfg Config, router *processors.Router, notifier interfaces.EventNotifier, log *slog.Logger) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = 60 * time.Second
	}
	if notifier == nil {
		notifier = interfaces.NoopNotifier{}
	}
	return &Orchestrator{
		cfg:      cfg,
		router:   router,
		tracker:  NewTracker(cfg.Retention),
		notifier: notifier,
		log:      log,
	}
}

// Tracker exposes the in-flight job registry.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// ProcessFile validates and transforms one payload. Transformation
// failures and timeouts are retried with a fixed delay; validation and
// unsupported-type failures are terminal immediately.
func (o *Orchestrator) ProcessFile(ctx context.Context, in interfaces.FileInput, opts interfaces.ProcessOptions) (*interfaces.ProcessingResult, error) {
	processID := uuid.NewString()
	start := time.Now()

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = content.DetectMime(in.FileName, in.Data)
	}
	o.tracker.Register(processID, in.FileName, mimeType, int64(len(in.Data)))

	result, err := o.runProcess(ctx, processID, mimeType, in, opts)
	elapsed := time.Since(start)

	if err != nil {
		o.tracker.Fail(processID, elapsed, err)
		o.notify(ctx, interfaces.EventFileProcessingFailed, map[string]string{
			"processId": processID,
			"fileName":  in.FileName,
			"mimeType":  mimeType,
			"elapsed":   elapsed.String(),
			"error":     err.Error(),
		})
		o.log.Error("File processing failed",
			slog.String("process_id", processID),
			slog.String("file", in.FileName),
			slog.Duration("elapsed", elapsed),
			"err", err)
		return nil, err
	}

	result.ProcessID = processID
	result.ProcessingTime = elapsed
	for i := range result.Artifacts {
		result.Artifacts[i].ParentID = processID
	}

	o.tracker.Complete(processID, elapsed)
	o.notify(ctx, interfaces.EventFileProcessed, map[string]string{
		"processId": processID,
		"fileName":  in.FileName,
		"mimeType":  mimeType,
		"type":      string(result.Type),
		"artifacts": fmt.Sprintf("%d", len(result.Artifacts)),
		"elapsed":   elapsed.String(),
	})
	o.log.Info("File processed",
		slog.String("process_id", processID),
		slog.String("file", in.FileName),
		slog.String("type", string(result.Type)),
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

// runProcess routes the payload and executes validate+process under the
// retry policy.
func (o *Orchestrator) runProcess(ctx context.Context, processID, mimeType string, in interfaces.FileInput, opts interfaces.ProcessOptions) (*interfaces.ProcessingResult, error) {
	if err := content.ValidateInput(in, opts.MaxSize); err != nil {
		return nil, err
	}

	processor, err := o.router.Route(mimeType, in.FileName)
	if err != nil {
		return nil, err
	}

	var output *interfaces.ProcessOutput
	err = retry.Do(ctx, retry.Config{
		Attempts: o.cfg.RetryAttempts,
		Delay:    o.cfg.RetryDelay,
		Classify: retryableProcessing,
		OnRetry: func(attempt int, err error) {
			o.tracker.SetStatus(processID, RetryStatus(attempt))
			o.log.Warn("Retrying file processing",
				slog.String("process_id", processID),
				slog.Int("attempt", attempt),
				"err", err)
		},
	}, func(ctx context.Context) error {
		if o.tracker.IsCancelled(processID) {
			return &interfaces.ProcessingError{ProcessID: processID, Stage: "dispatch", Err: errors.New("process cancelled")}
		}
		out, attemptErr := o.attempt(ctx, processID, processor, in, opts)
		if attemptErr != nil {
			return attemptErr
		}
		output = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &interfaces.ProcessingResult{
		Type:      processor.Type(),
		Metadata:  output.Metadata,
		Artifacts: output.Artifacts,
	}, nil
}

// attempt runs one validate+process pass under the per-attempt timeout.
func (o *Orchestrator) attempt(ctx context.Context, processID string, processor interfaces.Processor, in interfaces.FileInput, opts interfaces.ProcessOptions) (*interfaces.ProcessOutput, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()

	if err := processor.Validate(attemptCtx, in.Data, opts); err != nil {
		return nil, err
	}

	output, err := processor.Process(attemptCtx, in.Data, in.FileName, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &interfaces.TimeoutError{Op: "process", Elapsed: time.Since(start)}
		}
		var terminal *interfaces.ValidationError
		if errors.As(err, &terminal) {
			return nil, err
		}
		return nil, &interfaces.ProcessingError{ProcessID: processID, Stage: "process", Err: err}
	}
	return output, nil
}

// retryableProcessing retries transformation failures and timeouts, never
// validation or unsupported-type errors.
func retryableProcessing(err error) bool {
	var pe *interfaces.ProcessingError
	if errors.As(err, &pe) {
		// cancellation surfaces as a ProcessingError but must not retry
		return !isCancellation(pe)
	}
	return interfaces.IsTransient(err)
}

func isCancellation(pe *interfaces.ProcessingError) bool {
	return pe.Err != nil && pe.Err.Error() == "process cancelled"
}

// ProcessBatch runs files with bounded concurrency. Per-file failures are
// isolated; every file reports a terminal outcome.
func (o *Orchestrator) ProcessBatch(ctx context.Context, files []interfaces.FileInput, opts interfaces.ProcessOptions) *interfaces.BatchResult {
	result := &interfaces.BatchResult{}
	var mu sync.Mutex

	record := func(file interfaces.FileInput, res *interfaces.ProcessingResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, interfaces.BatchError{FileName: file.FileName, Err: err})
			return
		}
		result.SuccessCount++
		result.Results = append(result.Results, res)
	}

	if !o.cfg.Parallel {
		for _, file := range files {
			res, err := o.ProcessFile(ctx, file, opts)
			record(file, res, err)
		}
		return result
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.MaxConcurrent)
	for _, file := range files {
		file := file
		group.Go(func() error {
			res, err := o.ProcessFile(groupCtx, file, opts)
			record(file, res, err)
			// per-file errors are recorded, never propagated: one file's
			// failure must not abort siblings
			return nil
		})
	}
	_ = group.Wait()
	return result
}

// CancelProcess cooperatively cancels a tracked job. It flips the tracker
// status only; in-flight work observes it between attempts.
func (o *Orchestrator) CancelProcess(processID string) bool {
	return o.tracker.Cancel(processID)
}

// CreateArchive builds an archive of the given format from in-memory files
// by delegating to the archive processor.
func (o *Orchestrator) CreateArchive(ctx context.Context, files []interfaces.FileInput, format string) (*ArchiveResult, error) {
	processor := o.router.Processor(interfaces.ArchiveType)
	creator, ok := processor.(archiveCreator)
	if !ok {
		return nil, fmt.Errorf("no archive processor registered")
	}

	data, err := creator.Create(ctx, files, format)
	if err != nil {
		return nil, err
	}
	return &ArchiveResult{Data: data, Size: int64(len(data)), Format: format}, nil
}

func (o *Orchestrator) notify(ctx context.Context, name string, payload map[string]string) {
	defer func() {
		// notifier failures are logged and swallowed, never surfaced
		if r := recover(); r != nil {
			o.log.Warn("Event notifier panicked", slog.String("event", name), "err", r)
		}
	}()
	o.notifier.Notify(ctx, interfaces.Event{Name: name, Payload: payload})
}
