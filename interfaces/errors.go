package interfaces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrObjectNotFound is returned when a requested key does not exist in
	// the storage provider.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAdapterUnavailable is returned when a storage adapter is not
	// accessible, due to network issues, authentication failures, or outages.
	ErrAdapterUnavailable = errors.New("storage adapter unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or uses an unsupported scheme.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrNotImplemented is returned for formats the pipeline recognizes but
	// deliberately does not decode (tar.bz2, rar, 7z).
	ErrNotImplemented = errors.New("format recognized but not implemented")
)

// ValidationError reports a payload that failed pre-processing validation.
// Validation failures are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// UnsupportedTypeError reports that no processor claimed support for a
// (mime type, filename) pair. Never retried.
type UnsupportedTypeError struct {
	MimeType string
	FileName string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported content type %q for file %q", e.MimeType, e.FileName)
}

// ProcessingError reports a transformation failure. The orchestrator retries
// these up to its configured attempt count before surfacing them.
type ProcessingError struct {
	ProcessID string
	Stage     string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed at %s (process %s): %v", e.Stage, e.ProcessID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// StorageError reports a provider failure. Retried with backoff inside the
// storage manager, then failover; surfaced only once all adapters are
// exhausted.
type StorageError struct {
	Provider  string
	Op        string
	Key       StorageKey
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s on %s failed for %q: %v", e.Op, e.Provider, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SecurityError reports an archive entry that violated a safety control
// (path traversal, per-entry size cap, extension allow-list). It rejects the
// offending entry only, unless the violated limit is archive-wide.
type SecurityError struct {
	Entry  string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation in %q: %s", e.Entry, e.Reason)
}

// TimeoutError reports an operation that exceeded its deadline. Treated
// identically to a transient error; it follows the same retry path.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.Op, e.Elapsed)
}

// transientFragments are substrings that mark an error from a provider SDK
// as a network-class failure worth retrying.
var transientFragments = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"unexpected EOF",
	"service unavailable",
	"too many requests",
	"internal server error",
	"econnrefused",
	"etimedout",
}

// IsTransient classifies an error as transient. Transient errors follow the
// retry path and, on a final attempt, trigger storage failover. Validation,
// unsupported-type and security errors are always terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ve *ValidationError
	var ue *UnsupportedTypeError
	var se *SecurityError
	if errors.As(err, &ve) || errors.As(err, &ue) || errors.As(err, &se) {
		return false
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ste *StorageError
	if errors.As(err, &ste) {
		return ste.Transient
	}
	if errors.Is(err, ErrAdapterUnavailable) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
