package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteaudit/internal/assessment"
	"siteaudit/internal/assessment/assessortest"
	"siteaudit/internal/cache"
	"siteaudit/internal/coordinator"
)

func newTestService(t *testing.T, fakes ...*assessortest.Fake) (*Service, *cache.Cache) {
	t.Helper()

	registry := assessment.NewRegistry()
	for _, f := range fakes {
		require.NoError(t, registry.Register(f))
	}
	coord, err := coordinator.New(registry, coordinator.Config{MaxConcurrent: 5, MaxConcurrentSessions: 2},
		coordinator.WithBackoffUnit(time.Millisecond))
	require.NoError(t, err)

	c, err := cache.New(cache.Config{MaxEntries: 100, MaxSizeBytes: 1 << 20, DefaultTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	svc, err := New(c, coord)
	require.NoError(t, err)
	return svc, c
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestAssessCacheFirst(t *testing.T) {
	perf := assessortest.NewFake(assessment.KindPerformance,
		assessortest.Step{Scores: map[string]float64{"performance": 0.95}, CostUSD: 0.02})
	svc, _ := newTestService(t, perf)

	in := AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.KindPerformance},
	}

	first, fromCache, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, first.CompletedCount)
	assert.Equal(t, 1, perf.Calls())

	second, fromCache, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, perf.Calls(), "cache hit must not invoke the assessor")
}

func TestAssessForceRefresh(t *testing.T) {
	perf := assessortest.NewFake(assessment.KindPerformance,
		assessortest.Step{Scores: map[string]float64{"performance": 0.95}})
	svc, _ := newTestService(t, perf)

	in := AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.KindPerformance},
	}

	_, _, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)

	in.ForceRefresh = true
	_, fromCache, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, perf.Calls())
}

func TestAssessFailedOutcomesAreCachedToo(t *testing.T) {
	// An aggregate with failures is still a terminal, memoizable result.
	broken := assessortest.NewFake(assessment.KindTechnology,
		assessortest.Step{Err: assessment.NewAssessorError(assessment.ErrorBadData, assessment.KindTechnology, "bad markup", nil)})
	svc, _ := newTestService(t, broken)

	in := AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.KindTechnology},
	}

	first, fromCache, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, first.FailedCount)

	_, fromCache, err = svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, fromCache)
}

func TestAssessMisuse(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Assess(context.Background(), AssessInput{SubjectID: "biz1", Target: "https://example.com"})
	assert.ErrorIs(t, err, assessment.ErrNoRequests)

	_, _, err = svc.Assess(context.Background(), AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.Kind("seo")},
	})
	assert.ErrorIs(t, err, assessment.ErrUnsupportedKind)
}

func TestInvalidateDomain(t *testing.T) {
	perf := assessortest.NewFake(assessment.KindPerformance,
		assessortest.Step{Scores: map[string]float64{"performance": 0.95}})
	svc, _ := newTestService(t, perf)

	in := AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.KindPerformance},
	}
	_, _, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.InvalidateDomain(context.Background(), "example.com"))

	_, fromCache, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, fromCache, "invalidated entry forces a fresh run")
}

func TestCacheStatsAndClear(t *testing.T) {
	perf := assessortest.NewFake(assessment.KindPerformance,
		assessortest.Step{Scores: map[string]float64{"performance": 0.95}})
	svc, _ := newTestService(t, perf)

	in := AssessInput{
		SubjectID: "biz1",
		Target:    "https://example.com",
		Kinds:     []assessment.Kind{assessment.KindPerformance},
	}
	_, _, err := svc.Assess(context.Background(), in)
	require.NoError(t, err)
	_, _, err = svc.Assess(context.Background(), in)
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.EntryCount)

	assert.Equal(t, 1, svc.ClearCache(context.Background()))
	assert.Equal(t, 0, svc.CacheStats().EntryCount)
}
