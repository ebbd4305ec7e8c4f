package assessment

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of analysis an assessor performs.
type Kind string

const (
	KindPerformance Kind = "performance"
	KindTechnology  Kind = "technology"
	KindInsight     Kind = "insight"
)

// allKinds is the closed set of supported kinds.
var allKinds = map[Kind]struct{}{
	KindPerformance: {},
	KindTechnology:  {},
	KindInsight:     {},
}

// ParseKind validates and returns a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if _, ok := allKinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return k, nil
}

// IsValid reports whether the kind is one of the supported kinds.
func (k Kind) IsValid() bool {
	_, ok := allKinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Priority orders requests when capacity is contended.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Status is the terminal state of a single assessment.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Config carries the recognized per-request options. Unknown options from the
// boundary layer are rejected there; this struct is the closed set.
type Config struct {
	Industry    string
	TTLOverride time.Duration
	Tags        []string
}

// Request describes one unit of assessment work. Immutable once constructed;
// build with NewRequest so invariants hold.
type Request struct {
	Kind     Kind
	Target   string
	Priority Priority
	Timeout  time.Duration
	Retries  int
	Config   Config
}

// NewRequest validates and constructs a Request.
func NewRequest(kind Kind, target string, timeout time.Duration, retries int) (Request, error) {
	if !kind.IsValid() {
		return Request{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if target == "" {
		return Request{}, fmt.Errorf("target is required")
	}
	if timeout <= 0 {
		return Request{}, fmt.Errorf("timeout must be positive, got %s", timeout)
	}
	if retries < 0 {
		return Request{}, fmt.Errorf("retries must be non-negative, got %d", retries)
	}
	return Request{
		Kind:     kind,
		Target:   target,
		Priority: PriorityNormal,
		Timeout:  timeout,
		Retries:  retries,
	}, nil
}

// Outcome is the terminal result of one assessment. Exactly one of Scores or
// ErrorMessage is populated for a terminal outcome.
type Outcome struct {
	Kind         Kind               `json:"kind"`
	Status       Status             `json:"status"`
	Target       string             `json:"target"`
	Domain       string             `json:"domain"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	CostUSD      float64            `json:"cost_usd"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// FailedOutcome synthesizes a terminal failed outcome for a request.
func FailedOutcome(req Request, startedAt time.Time, msg string) Outcome {
	return Outcome{
		Kind:         req.Kind,
		Status:       StatusFailed,
		Target:       req.Target,
		Domain:       DomainOf(req.Target),
		ErrorMessage: msg,
		StartedAt:    startedAt,
		CompletedAt:  time.Now(),
	}
}

// DomainOf extracts the host from a target URL, tolerating bare hosts.
func DomainOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(target, "/"))
	}
	return strings.ToLower(u.Host)
}

// AggregateResult is the coordinator's view of one session: every requested
// kind accounted for either in Outcomes (completed) or Errors (failed).
type AggregateResult struct {
	SessionID      uuid.UUID         `json:"session_id"`
	SubjectID      string            `json:"subject_id"`
	Target         string            `json:"target"`
	TotalRequested int               `json:"total_requested"`
	CompletedCount int               `json:"completed_count"`
	FailedCount    int               `json:"failed_count"`
	Outcomes       map[Kind]Outcome  `json:"outcomes"`
	Errors         map[Kind]string   `json:"errors"`
	TotalCostUSD   float64           `json:"total_cost_usd"`
	ExecutionTime  time.Duration     `json:"execution_time"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// Consistent reports whether the aggregate honours its counting invariants.
func (r AggregateResult) Consistent() bool {
	return r.CompletedCount+r.FailedCount == r.TotalRequested &&
		len(r.Outcomes) == r.CompletedCount
}

// SessionConfig describes one session inside a batch.
type SessionConfig struct {
	SubjectID string
	Target    string
	Requests  []Request
}

// SessionState is the lifecycle of a coordinator session.
type SessionState string

const (
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionCancelled SessionState = "cancelled"
)

// ProgressSnapshot is a point-in-time view of a running session.
type ProgressSnapshot struct {
	SessionID uuid.UUID    `json:"session_id"`
	State     SessionState `json:"state"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Running   int          `json:"running"`
}
