package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"siteaudit/internal/assessment"
)

// verdict classifies one attempt so the retry loop stays an explicit state
// machine instead of error-string matching at the call site.
type verdict int

const (
	attemptOK verdict = iota
	attemptRetryable
	attemptFatal
)

// attemptResult is the outcome of a single assessor attempt.
type attemptResult struct {
	verdict verdict
	outcome assessment.Outcome
	errMsg  string
}

// runRequest drives one request to a terminal outcome: up to Retries+1
// attempts, each under its own timeout, with exponential backoff in between.
// It never returns an error; failures are synthesized into a failed outcome.
func (c *Coordinator) runRequest(ctx context.Context, subjectID string, sessionID uuid.UUID, req assessment.Request, assessor assessment.Assessor) assessment.Outcome {
	started := time.Now()
	last := attemptResult{verdict: attemptFatal, errMsg: "no attempts made"}

	for attempt := 0; attempt <= req.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return assessment.FailedOutcome(req, started, fmt.Sprintf("session cancelled: %v", err))
		}

		last = c.attempt(ctx, subjectID, sessionID, req, assessor)
		switch last.verdict {
		case attemptOK:
			return last.outcome
		case attemptFatal:
			return assessment.FailedOutcome(req, started, last.errMsg)
		}

		if attempt == req.Retries {
			break
		}
		if c.metrics != nil {
			c.metrics.ObserveRetry(req.Kind.String())
		}
		c.logger.Debug("retrying assessment",
			"kind", req.Kind.String(),
			"attempt", attempt+1,
			"error", last.errMsg,
		)
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return assessment.FailedOutcome(req, started, fmt.Sprintf("session cancelled: %v", err))
		}
	}

	return assessment.FailedOutcome(req, started, last.errMsg)
}

// attempt invokes the assessor once under a per-attempt timeout and
// classifies the result.
func (c *Coordinator) attempt(ctx context.Context, subjectID string, sessionID uuid.UUID, req assessment.Request, assessor assessment.Assessor) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.InFlight.Inc()
		defer c.metrics.InFlight.Dec()
	}

	outcome, err := assessor.Assess(attemptCtx, subjectID, req.Target, sessionID, req.Config.Industry)
	if err == nil {
		return attemptResult{verdict: attemptOK, outcome: outcome}
	}

	// The attempt deadline firing is a timeout for this attempt only; the
	// parent context ending means the whole session is going away.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return attemptResult{verdict: attemptFatal, errMsg: fmt.Sprintf("session cancelled: %v", ctx.Err())}
		}
		return attemptResult{
			verdict: attemptRetryable,
			errMsg:  fmt.Sprintf("assessment timed out after %s", req.Timeout),
		}
	}
	if ctx.Err() != nil {
		return attemptResult{verdict: attemptFatal, errMsg: fmt.Sprintf("session cancelled: %v", ctx.Err())}
	}

	if assessment.IsRetryable(err) {
		return attemptResult{verdict: attemptRetryable, errMsg: err.Error()}
	}
	return attemptResult{verdict: attemptFatal, errMsg: err.Error()}
}

// backoff returns the delay before the next attempt: 2^attempt units.
func (c *Coordinator) backoff(attempt int) time.Duration {
	return c.backoffUnit * (1 << attempt)
}

// sleepContext waits for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
