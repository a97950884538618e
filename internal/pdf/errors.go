package pdf

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindUnlock means no candidate password opened the document and it is
	// not readable as a plain PDF either.
	KindUnlock
	// KindExtraction means the document unlocked but its pages could not be
	// read as text.
	KindExtraction
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindUnlock:
		return "UNLOCK_FAILED"
	case KindExtraction:
		return "EXTRACTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors matched through errors.Is against a *PipelineError
var (
	ErrUnlockFailed     = errors.New("unable to unlock PDF")
	ErrExtractionFailed = errors.New("unable to extract text from PDF")

	ErrDocumentTooLarge = errors.New("document exceeds maximum file size")
)

// PipelineError reports which stage of the pipeline failed
type PipelineError struct {
	Kind     ErrorKind `json:"kind"`
	Op       string    `json:"operation"`
	Attempts int       `json:"attempts,omitempty"`
	Err      error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *PipelineError) Is(target error) bool {
	switch e.Kind {
	case KindUnlock:
		return target == ErrUnlockFailed
	case KindExtraction:
		return target == ErrExtractionFailed
	default:
		return false
	}
}

// KindOf returns the failure kind carried by err, or KindUnknown
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func unlockError(op string, attempts int, err error) *PipelineError {
	return &PipelineError{Kind: KindUnlock, Op: op, Attempts: attempts, Err: err}
}

func extractionError(op string, err error) *PipelineError {
	return &PipelineError{Kind: KindExtraction, Op: op, Err: err}
}
