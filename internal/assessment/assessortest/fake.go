// Package assessortest provides scripted in-memory assessors for tests and
// local development wiring.
package assessortest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteaudit/internal/assessment"
)

// Step scripts one attempt: either an error or a successful outcome template.
type Step struct {
	Err     error
	Scores  map[string]float64
	CostUSD float64
	Delay   time.Duration
}

// Fake is a scripted assessor. Attempts consume Script steps in order; once
// the script is exhausted the last step repeats. A nil or empty script
// succeeds immediately with empty scores.
type Fake struct {
	AssessKind assessment.Kind
	Script     []Step

	mu    sync.Mutex
	calls int
}

// NewFake builds a fake assessor for the given kind.
func NewFake(kind assessment.Kind, script ...Step) *Fake {
	return &Fake{AssessKind: kind, Script: script}
}

func (f *Fake) Kind() assessment.Kind { return f.AssessKind }

// Calls reports how many attempts were made against this fake.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Assess(ctx context.Context, subjectID, target string, sessionID uuid.UUID, industry string) (assessment.Outcome, error) {
	f.mu.Lock()
	step := Step{}
	if len(f.Script) > 0 {
		i := f.calls
		if i >= len(f.Script) {
			i = len(f.Script) - 1
		}
		step = f.Script[i]
	}
	f.calls++
	f.mu.Unlock()

	started := time.Now()
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return assessment.Outcome{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return assessment.Outcome{}, err
	}
	if step.Err != nil {
		return assessment.Outcome{}, step.Err
	}

	scores := step.Scores
	if scores == nil {
		scores = map[string]float64{}
	}
	return assessment.Outcome{
		Kind:        f.AssessKind,
		Status:      assessment.StatusCompleted,
		Target:      target,
		Domain:      assessment.DomainOf(target),
		Scores:      scores,
		CostUSD:     step.CostUSD,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}, nil
}

// Hanging returns a fake whose attempts block until the context is cancelled.
func Hanging(kind assessment.Kind) *Fake {
	return NewFake(kind, Step{Delay: time.Hour})
}
