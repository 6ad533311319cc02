package model

import "errors"

// Sentinel errors surfaced synchronously by the manager and preview service.
var (
	ErrNotFound           = errors.New("job not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrQueueFull          = errors.New("admission queue is full")
	ErrPreviewTimeout     = errors.New("preview lookup timed out")
	ErrPreviewUnavailable = errors.New("preview unavailable")
)

// ErrorKind classifies why a job ended up Failed
type ErrorKind string

const (
	// ErrKindDependencyMissing means the external fetch or probe tool could
	// not be located or started on the host.
	ErrKindDependencyMissing ErrorKind = "DependencyMissing"

	// ErrKindNetwork means the external tool reported a transient
	// connectivity failure. Jobs are not retried automatically.
	ErrKindNetwork ErrorKind = "NetworkError"

	// ErrKindUnavailable means the requested media is inaccessible
	// (removed, private, region- or age-restricted).
	ErrKindUnavailable ErrorKind = "UnavailableResource"

	// ErrKindProcessFailure is the default for an unclassified nonzero exit;
	// the raw diagnostic text is preserved for inspection.
	ErrKindProcessFailure ErrorKind = "ProcessFailure"
)

// ErrorInfo carries the classified failure of a Failed job
type ErrorInfo struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}
