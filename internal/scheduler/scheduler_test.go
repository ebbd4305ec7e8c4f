package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

func TestRunsJobsInDueOrder(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) Job {
		return func(context.Context) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	now := time.Now()
	s.Schedule(record("third"), now.Add(60*time.Millisecond))
	s.Schedule(record("first"), now.Add(10*time.Millisecond))
	s.Schedule(record("second"), now.Add(30*time.Millisecond))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPastDueRunsImmediately(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{})
	s.Schedule(func(context.Context) { close(ran) }, time.Now().Add(-time.Minute))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("past-due job never ran")
	}
}

func TestScheduleAfter(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan time.Time, 1)
	start := time.Now()
	s.ScheduleAfter(func(context.Context) { ran <- time.Now() }, 20*time.Millisecond)

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), 15*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestCancelPreventsRun(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 1)
	id := s.Schedule(func(context.Context) { ran <- struct{}{} }, time.Now().Add(50*time.Millisecond))

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id), "double cancel reports unknown")
	assert.Equal(t, 0, s.Pending())

	select {
	case <-ran:
		t.Fatal("cancelled job ran")
	case <-time.After(120 * time.Millisecond):
	}
}

func TestCancelHeadReArmsTimer(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan string, 2)
	head := s.Schedule(func(context.Context) { ran <- "head" }, time.Now().Add(500*time.Millisecond))
	s.Schedule(func(context.Context) { ran <- "tail" }, time.Now().Add(30*time.Millisecond))

	require.True(t, s.Cancel(head))

	select {
	case name := <-ran:
		assert.Equal(t, "tail", name)
	case <-time.After(time.Second):
		t.Fatal("remaining job never ran")
	}
}

func TestJobPanicDoesNotKillLoop(t *testing.T) {
	s := newTestScheduler(t)

	s.Schedule(func(context.Context) { panic("boom") }, time.Now())

	ran := make(chan struct{})
	s.Schedule(func(context.Context) { close(ran) }, time.Now().Add(20*time.Millisecond))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduler stopped after a job panic")
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := New()
	s.Close()
	s.Close()
}
