// Package scheduler defers work until a due time. Entries live in a min-heap
// keyed by due time and the run loop sleeps on a timer armed for the earliest
// entry, re-armed whenever the head changes. No polling.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is deferred work. It runs on its own goroutine once due.
type Job func(ctx context.Context)

type entry struct {
	id    int64
	runAt time.Time
	job   Job
	index int
}

// entryHeap orders by due time, ties by insertion order.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].runAt.Equal(h[j].runAt) {
		return h[i].id < h[j].id
	}
	return h[i].runAt.Before(h[j].runAt)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler runs jobs at their due time. Safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	heap    entryHeap
	byID    map[int64]*entry
	nextID  int64
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.Once
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional scheduler collaborators.
type Option func(*Scheduler)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New constructs a scheduler and starts its run loop.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		byID:   make(map[int64]*entry),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Schedule queues a job for runAt and returns its id. A runAt in the past
// runs on the next loop iteration.
func (s *Scheduler) Schedule(job Job, runAt time.Time) int64 {
	s.mu.Lock()
	s.nextID++
	e := &entry{id: s.nextID, runAt: runAt, job: job}
	heap.Push(&s.heap, e)
	s.byID[e.id] = e
	id := e.id
	s.mu.Unlock()

	s.signal()
	return id
}

// ScheduleAfter queues a job to run after the delay.
func (s *Scheduler) ScheduleAfter(job Job, delay time.Duration) int64 {
	return s.Schedule(job, s.now().Add(delay))
}

// Cancel removes a queued job. Returns false when the job is unknown or has
// already been handed off to run.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		heap.Remove(&s.heap, e.index)
		delete(s.byID, id)
	}
	s.mu.Unlock()

	if ok {
		s.signal()
	}
	return ok
}

// Pending reports how many jobs are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

// Close stops the run loop. Queued jobs are dropped; running jobs finish on
// their own goroutines. Idempotent.
func (s *Scheduler) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run dispatches due jobs, sleeping until the earliest due time and waking
// early when the head of the heap changes.
func (s *Scheduler) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		s.dispatchDue(ctx)

		s.mu.Lock()
		var next time.Time
		if len(s.heap) > 0 {
			next = s.heap[0].runAt
		}
		s.mu.Unlock()

		if next.IsZero() {
			select {
			case <-s.wake:
			case <-s.stop:
				return
			}
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// dispatchDue pops every due entry and launches its job.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].runAt.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(*entry)
		delete(s.byID, e.id)
		s.mu.Unlock()

		go func(e *entry) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("scheduled job panic", "job_id", e.id, "panic", r)
				}
			}()
			e.job(ctx)
		}(e)
	}
}
