// Package engine ties the result cache and the coordinator together: lookups
// go to the cache first, misses fan out through the coordinator and the
// aggregate is memoized on the way back.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"siteaudit/internal/assessment"
	"siteaudit/internal/cache"
	"siteaudit/internal/coordinator"
	"siteaudit/internal/platform/metrics"
)

// AssessInput describes one engine-level assessment call.
type AssessInput struct {
	SubjectID string
	Target    string
	Kinds     []assessment.Kind
	Industry  string
	Extra     map[string]string

	// ForceRefresh bypasses the cache lookup but still stores the result.
	ForceRefresh bool

	// TTLOverride and Tags are passed through to the cache on store.
	TTLOverride time.Duration
	Tags        []string
}

// Service is the engine facade consumed by the boundary layer.
type Service struct {
	cache       *cache.Cache
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the engine service.
func New(c *cache.Cache, coord *coordinator.Coordinator, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	s := &Service{cache: c, coordinator: coord, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Assess returns the aggregate for the input, from cache when fresh,
// otherwise by running the assessors. The bool reports a cache hit.
func (s *Service) Assess(ctx context.Context, in AssessInput) (assessment.AggregateResult, bool, error) {
	if len(in.Kinds) == 0 {
		return assessment.AggregateResult{}, false, assessment.ErrNoRequests
	}

	if !in.ForceRefresh {
		if result, ok := s.cache.Get(ctx, in.SubjectID, in.Target, in.Kinds, in.Industry, in.Extra); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return result, true, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	requests := make([]assessment.Request, 0, len(in.Kinds))
	for _, kind := range in.Kinds {
		req, err := s.coordinator.RequestForKind(kind, in.Target)
		if err != nil {
			return assessment.AggregateResult{}, false, err
		}
		req.Config.Industry = in.Industry
		req.Config.Tags = in.Tags
		requests = append(requests, req)
	}

	result, err := s.coordinator.Execute(ctx, in.SubjectID, in.Target, requests)
	if err != nil {
		return assessment.AggregateResult{}, false, err
	}

	s.cache.Put(ctx, in.SubjectID, in.Target, in.Kinds, in.Industry, result, cache.PutOptions{
		TTLOverride: in.TTLOverride,
		Tags:        in.Tags,
		Extra:       in.Extra,
	})
	return result, false, nil
}

// InvalidateDomain drops every cached aggregate referencing the domain.
func (s *Service) InvalidateDomain(ctx context.Context, domain string) int {
	return s.cache.InvalidateByDomain(ctx, domain)
}

// CacheStats exposes cache accounting to the boundary layer.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache removes every cached aggregate and returns the count.
func (s *Service) ClearCache(ctx context.Context) int {
	return s.cache.Clear(ctx)
}
