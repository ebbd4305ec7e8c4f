package coordinator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"siteaudit/internal/assessment"
)

// session tracks one in-flight Execute call. The cancel func tears down the
// session's context, which every attempt and backoff sleep observes.
type session struct {
	id        uuid.UUID
	cancel    context.CancelFunc
	collector *collector
	state     assessment.SessionState
}

// sessions is the mutex-guarded registry of live and recently finished runs.
type sessions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[uuid.UUID]*session)}
}

func (s *sessions) add(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.id] = sess
}

func (s *sessions) finish(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok && sess.state == assessment.SessionRunning {
		sess.state = assessment.SessionCompleted
	}
}

func (s *sessions) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// Cancel aborts a running session. In-flight attempts see the context end;
// queued retries and dispatches stop before starting. Returns false when the
// session is unknown or already terminal.
func (c *Coordinator) Cancel(sessionID uuid.UUID) bool {
	c.sessions.mu.Lock()
	defer c.sessions.mu.Unlock()

	sess, ok := c.sessions.byID[sessionID]
	if !ok || sess.state != assessment.SessionRunning {
		return false
	}
	sess.state = assessment.SessionCancelled
	sess.cancel()
	return true
}

// ActiveSessions lists the IDs of sessions currently tracked, so callers can
// observe or cancel runs they did not start themselves.
func (c *Coordinator) ActiveSessions() []uuid.UUID {
	c.sessions.mu.Lock()
	defer c.sessions.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.sessions.byID))
	for id := range c.sessions.byID {
		ids = append(ids, id)
	}
	return ids
}

// Status reports a point-in-time snapshot of a session's progress.
func (c *Coordinator) Status(sessionID uuid.UUID) (assessment.ProgressSnapshot, error) {
	c.sessions.mu.Lock()
	sess, ok := c.sessions.byID[sessionID]
	c.sessions.mu.Unlock()
	if !ok {
		return assessment.ProgressSnapshot{}, assessment.ErrSessionNotFound
	}

	completed, failed, total := sess.collector.counts()
	return assessment.ProgressSnapshot{
		SessionID: sessionID,
		State:     sess.state,
		Total:     total,
		Completed: completed,
		Failed:    failed,
		Running:   total - completed - failed,
	}, nil
}

// collector accumulates terminal outcomes as they arrive. Every write happens
// under its mutex, so a mid-flight reader always sees a coherent subset.
type collector struct {
	mu       sync.Mutex
	total    int
	outcomes map[assessment.Kind]assessment.Outcome
	failures map[assessment.Kind]string
	costUSD  float64
}

func newCollector(total int) *collector {
	return &collector{
		total:    total,
		outcomes: make(map[assessment.Kind]assessment.Outcome),
		failures: make(map[assessment.Kind]string),
	}
}

// record files one terminal outcome. Completed outcomes land in outcomes;
// failed kinds land only in failures.
func (col *collector) record(outcome assessment.Outcome) {
	col.mu.Lock()
	defer col.mu.Unlock()
	if outcome.Status == assessment.StatusCompleted {
		col.outcomes[outcome.Kind] = outcome
		col.costUSD += outcome.CostUSD
		return
	}
	col.failures[outcome.Kind] = outcome.ErrorMessage
}

func (col *collector) counts() (completed, failed, total int) {
	col.mu.Lock()
	defer col.mu.Unlock()
	return len(col.outcomes), len(col.failures), col.total
}

// snapshot copies the collected state into maps owned by the caller.
func (col *collector) snapshot() (outcomes map[assessment.Kind]assessment.Outcome, failures map[assessment.Kind]string, costUSD float64) {
	col.mu.Lock()
	defer col.mu.Unlock()

	outcomes = make(map[assessment.Kind]assessment.Outcome, len(col.outcomes))
	for k, v := range col.outcomes {
		outcomes[k] = v
	}
	failures = make(map[assessment.Kind]string, len(col.failures))
	for k, v := range col.failures {
		failures[k] = v
	}
	return outcomes, failures, col.costUSD
}
