package fetcher

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: transport faults, timeouts,
// remote-side unavailability.
type TransientError struct {
	cause error
}

// Transient wraps err as a retryable fetch failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{cause: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %v", e.cause)
}

func (e *TransientError) Unwrap() error { return e.cause }

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FormatError marks an unrecoverable payload problem: unrecognized page
// structure, missing table, or a series that is empty after cleaning.
// Retrying the same request cannot help.
type FormatError struct {
	msg string
}

// Format constructs a non-retryable data-format failure.
func Format(format string, args ...any) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	return "data format error: " + e.msg
}

// IsFormat reports whether err is a data-format failure.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
