package livesync

import (
	"errors"
)

// ErrorKind classifies a synchronizer error. Transient errors (network,
// timeouts, 5xx) are retried on the next tick; fatal errors (malformed
// response, 4xx) are surfaced to the view once but do not stop polling.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindFatal
)

// String returns the error kind name
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// classifiedError wraps an error with its kind
type classifiedError struct {
	kind ErrorKind
	err  error
}

func (e *classifiedError) Error() string {
	return e.kind.String() + ": " + e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Transient marks an error as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindTransient, err: err}
}

// Fatal marks an error as non-retryable
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindFatal, err: err}
}

// KindOf returns the classification of an error. Unclassified errors are
// treated as transient, the safe default for a background refresher.
func KindOf(err error) ErrorKind {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return KindTransient
}
