// Package coordinator dispatches assessment requests against registered
// assessors with bounded concurrency, per-attempt timeouts and retry with
// exponential backoff. Individual assessor failures never fail a session;
// they are contained in the aggregate.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"siteaudit/internal/assessment"
	"siteaudit/internal/platform/metrics"
)

// Config captures the coordinator's construction knobs.
type Config struct {
	// MaxConcurrent bounds simultaneous assessor calls across all sessions.
	MaxConcurrent int

	// MaxConcurrentSessions bounds ExecuteBatch fan-out when the caller does
	// not pass an explicit limit.
	MaxConcurrentSessions int

	// Profiles overrides the default per-kind execution policy.
	Profiles map[assessment.Kind]Profile
}

// Coordinator runs assessment sessions. Safe for concurrent use.
type Coordinator struct {
	registry              *assessment.Registry
	sem                   *semaphore.Weighted
	maxConcurrentSessions int
	profiles              map[assessment.Kind]Profile
	sessions              *sessions

	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	sleep       func(context.Context, time.Duration) error
	backoffUnit time.Duration
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBackoffUnit overrides the backoff base unit (default one second), so
// tests exercise the retry schedule without real sleeps.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Coordinator) { c.backoffUnit = d }
}

// WithSleep overrides the backoff sleeper, for tests that assert on delays.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// New constructs a coordinator over the given assessor registry.
func New(registry *assessment.Registry, cfg Config, opts ...Option) (*Coordinator, error) {
	if registry == nil {
		return nil, fmt.Errorf("assessor registry is required")
	}
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", cfg.MaxConcurrent)
	}
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = 1
	}

	profiles := make(map[assessment.Kind]Profile, len(defaultProfiles))
	for k, p := range defaultProfiles {
		profiles[k] = p
	}
	for k, p := range cfg.Profiles {
		profiles[k] = p
	}

	c := &Coordinator{
		registry:              registry,
		sem:                   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxConcurrentSessions: cfg.MaxConcurrentSessions,
		profiles:              profiles,
		sessions:              newSessions(),
		logger:                slog.Default(),
		tracer:                otel.Tracer("siteaudit/coordinator"),
		sleep:                 sleepContext,
		backoffUnit:           time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Execute runs all requests concurrently and returns once every request is
// terminal. The error return covers caller misuse only; assessor failures
// surface inside the aggregate.
func (c *Coordinator) Execute(ctx context.Context, subjectID, target string, requests []assessment.Request) (assessment.AggregateResult, error) {
	if len(requests) == 0 {
		return assessment.AggregateResult{}, assessment.ErrNoRequests
	}
	seen := make(map[assessment.Kind]struct{}, len(requests))
	for _, req := range requests {
		if _, dup := seen[req.Kind]; dup {
			return assessment.AggregateResult{}, fmt.Errorf("duplicate request kind %q in session", req.Kind)
		}
		seen[req.Kind] = struct{}{}
	}

	sessionID := uuid.New()
	startedAt := time.Now()

	ctx, span := c.tracer.Start(ctx, "coordinator.Execute",
		trace.WithAttributes(
			attribute.String("session.id", sessionID.String()),
			attribute.String("subject.id", subjectID),
			attribute.Int("requests.total", len(requests)),
		))
	defer span.End()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	col := newCollector(len(requests))
	sess := &session{id: sessionID, cancel: cancel, collector: col, state: assessment.SessionRunning}
	c.sessions.add(sess)
	defer c.sessions.remove(sessionID)

	// Higher priority requests are dispatched first, so they contend for
	// semaphore permits ahead of the rest.
	ordered := make([]assessment.Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	done := make(chan struct{}, len(ordered))
	dispatched := 0
	for _, req := range ordered {
		req := c.resolve(req)

		// Unsupported kind is a programming error for that one request:
		// fail immediately, consume no retries, leave siblings alone.
		if !req.Kind.IsValid() {
			c.recordTerminal(col, assessment.FailedOutcome(req, time.Now(), assessment.ErrUnsupportedKind.Error()))
			continue
		}
		assessor, ok := c.registry.Get(req.Kind)
		if !ok {
			c.recordTerminal(col, assessment.FailedOutcome(req, time.Now(), fmt.Sprintf("%v: %s", assessment.ErrNoAssessor, req.Kind)))
			continue
		}

		dispatched++
		go c.dispatch(sessCtx, subjectID, sessionID, req, assessor, col, done)
	}

	for i := 0; i < dispatched; i++ {
		<-done
	}
	c.sessions.finish(sessionID)

	outcomes, failures, costUSD := col.snapshot()
	result := assessment.AggregateResult{
		SessionID:      sessionID,
		SubjectID:      subjectID,
		Target:         target,
		TotalRequested: len(requests),
		CompletedCount: len(outcomes),
		FailedCount:    len(failures),
		Outcomes:       outcomes,
		Errors:         failures,
		TotalCostUSD:   costUSD,
		ExecutionTime:  time.Since(startedAt),
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
	}

	if c.metrics != nil {
		c.metrics.ObserveSession(result.ExecutionTime)
	}
	c.logger.Info("session finished",
		"session_id", sessionID.String(),
		"subject_id", subjectID,
		"completed", result.CompletedCount,
		"failed", result.FailedCount,
		"duration", result.ExecutionTime,
	)
	return result, nil
}

// dispatch runs one request under a semaphore permit. The permit is released
// by defer so neither failure, timeout nor panic can leak it.
func (c *Coordinator) dispatch(ctx context.Context, subjectID string, sessionID uuid.UUID, req assessment.Request, assessor assessment.Assessor, col *collector, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("assessor panic", "kind", req.Kind.String(), "panic", fmt.Sprint(r))
			c.recordTerminal(col, assessment.FailedOutcome(req, time.Now(), fmt.Sprintf("assessor panic: %v", r)))
		}
	}()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.recordTerminal(col, assessment.FailedOutcome(req, time.Now(), fmt.Sprintf("session cancelled: %v", err)))
		return
	}
	defer c.sem.Release(1)

	attemptCtx, span := c.tracer.Start(ctx, "coordinator.request",
		trace.WithAttributes(attribute.String("assessment.kind", req.Kind.String())))
	defer span.End()

	c.recordTerminal(col, c.runRequest(attemptCtx, subjectID, sessionID, req, assessor))
}

// recordTerminal files an outcome into the collector and observes metrics.
// Partial results are saved the moment they become terminal.
func (c *Coordinator) recordTerminal(col *collector, outcome assessment.Outcome) {
	col.record(outcome)
	if c.metrics != nil {
		c.metrics.ObserveOutcome(outcome.Kind.String(), string(outcome.Status))
	}
}

// ExecuteBatch runs several sessions with bounded fan-out. One session's
// failure, misuse or panic never aborts its siblings; the returned slice is
// index-aligned with configs.
func (c *Coordinator) ExecuteBatch(ctx context.Context, configs []assessment.SessionConfig, maxConcurrentSessions int) []assessment.AggregateResult {
	limit := maxConcurrentSessions
	if limit <= 0 {
		limit = c.maxConcurrentSessions
	}

	results := make([]assessment.AggregateResult, len(configs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("session panic", "subject_id", cfg.SubjectID, "panic", fmt.Sprint(r))
					results[i] = failedAggregate(cfg, fmt.Sprintf("session panic: %v", r))
				}
			}()

			res, err := c.Execute(ctx, cfg.SubjectID, cfg.Target, cfg.Requests)
			if err != nil {
				c.logger.Warn("session rejected", "subject_id", cfg.SubjectID, "error", err)
				results[i] = failedAggregate(cfg, err.Error())
				return nil
			}
			results[i] = res
			return nil
		})
	}
	// Workers always return nil; errors are contained per session.
	_ = g.Wait()
	return results
}

// failedAggregate synthesizes a consistent aggregate for a session that never
// ran: every requested kind failed with the same message.
func failedAggregate(cfg assessment.SessionConfig, msg string) assessment.AggregateResult {
	now := time.Now()
	failures := make(map[assessment.Kind]string, len(cfg.Requests))
	for _, req := range cfg.Requests {
		failures[req.Kind] = msg
	}
	// Counting by distinct kind keeps completed+failed==total even when the
	// rejected config held duplicate kinds.
	return assessment.AggregateResult{
		SessionID:      uuid.New(),
		SubjectID:      cfg.SubjectID,
		Target:         cfg.Target,
		TotalRequested: len(failures),
		FailedCount:    len(failures),
		Outcomes:       map[assessment.Kind]assessment.Outcome{},
		Errors:         failures,
		StartedAt:      now,
		CompletedAt:    now,
	}
}
