package assessment

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes assessor failures into a closed taxonomy so the
// coordinator can decide retryability without inspecting provider-specific errors.
type ErrorCategory string

const (
	// ErrorTimeout indicates the assessor took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorOutage indicates the assessor's upstream is unavailable.
	ErrorOutage ErrorCategory = "outage"

	// ErrorRateLimited indicates too many requests against the upstream.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorBadData indicates the assessor returned invalid or malformed data.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorInternal indicates an unexpected internal failure.
	ErrorInternal ErrorCategory = "internal"
)

// AssessorError wraps an assessor failure with normalized categorization.
type AssessorError struct {
	Category   ErrorCategory
	Kind       Kind
	Message    string
	Underlying error
	Retryable  bool
}

func (e *AssessorError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("assessor %s [%s]: %s: %v", e.Kind, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("assessor %s [%s]: %s", e.Kind, e.Category, e.Message)
}

func (e *AssessorError) Unwrap() error {
	return e.Underlying
}

// NewAssessorError creates a normalized assessor error. Timeouts, outages and
// rate limits are worth retrying; bad data and internal failures are not.
func NewAssessorError(category ErrorCategory, kind Kind, message string, underlying error) *AssessorError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &AssessorError{
		Category:   category,
		Kind:       kind,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying. Errors outside the
// taxonomy are retryable by default: a transient network hiccup surfaces as a
// plain error, and giving it another attempt is the safer call.
func IsRetryable(err error) bool {
	var ae *AssessorError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return true
}

// CategoryOf extracts the error category, defaulting to internal.
func CategoryOf(err error) ErrorCategory {
	var ae *AssessorError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ErrorInternal
}

// Sentinel errors for common cases.
var (
	ErrUnsupportedKind  = errors.New("unsupported assessment kind")
	ErrNoRequests       = errors.New("no assessment requests given")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoAssessor       = errors.New("no assessor registered for kind")
	ErrAlreadyRegistered = errors.New("assessor already registered for kind")
)
