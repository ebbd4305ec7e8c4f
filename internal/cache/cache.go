// Package cache memoizes aggregate assessment results behind a fingerprinted,
// policy-driven in-memory store. All mutation happens under one mutex; the
// background sweep is a housekeeping optimization only, Get checks expiry
// lazily so correctness never depends on it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"siteaudit/internal/assessment"
)

// Entry is one cached aggregate with its bookkeeping.
type Entry struct {
	Key         string
	Value       assessment.AggregateResult
	CreatedAt   time.Time
	AccessedAt  time.Time
	AccessCount int64
	TTL         time.Duration
	Tags        map[string]struct{}
	SizeBytes   int64
}

// expired reports whether the entry is past its TTL. TTL <= 0 never expires.
func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL))
}

// Config captures the cache's construction knobs.
type Config struct {
	MaxEntries      int
	MaxSizeBytes    int64
	DefaultTTL      time.Duration
	Strategy        Strategy
	CleanupInterval time.Duration
}

// PutOptions carries the optional Put parameters.
type PutOptions struct {
	TTLOverride time.Duration
	Tags        []string
	Extra       map[string]string
}

// InvalidateFilter selects entries to remove. SubjectID+Target+Kinds together
// name an exact fingerprint; Tags matches any entry sharing at least one tag.
type InvalidateFilter struct {
	SubjectID string
	Target    string
	Kinds     []assessment.Kind
	Industry  string
	Tags      []string
	Extra     map[string]string
}

// Cache is a fingerprinted result store with TTL, strategy-driven eviction
// and hit-rate accounting. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	stats   Stats

	maxEntries   int
	maxSizeBytes int64
	defaultTTL   time.Duration
	strategy     Strategy
	kindTTLs     map[assessment.Kind]time.Duration

	logger *slog.Logger
	now    func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// Option configures optional cache collaborators.
type Option func(*Cache)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New constructs a cache and starts its background sweep.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("max size bytes must be positive, got %d", cfg.MaxSizeBytes)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyLRU
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	c := &Cache{
		entries:      make(map[string]*Entry),
		maxEntries:   cfg.MaxEntries,
		maxSizeBytes: cfg.MaxSizeBytes,
		defaultTTL:   cfg.DefaultTTL,
		strategy:     strategy,
		kindTTLs:     make(map[assessment.Kind]time.Duration),
		now:          time.Now,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.sweep(interval)
	return c, nil
}

// Get looks up the aggregate for a logical request. A found-but-expired entry
// is removed, counted as an expired removal, and reported as a miss.
func (c *Cache) Get(_ context.Context, subjectID, target string, kinds []assessment.Kind, industry string, extra map[string]string) (assessment.AggregateResult, bool) {
	key := Fingerprint(subjectID, target, kinds, industry, extra)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return assessment.AggregateResult{}, false
	}

	now := c.now()
	if entry.expired(now) {
		c.removeLocked(key)
		c.stats.ExpiredRemovals++
		c.stats.Misses++
		return assessment.AggregateResult{}, false
	}

	entry.AccessedAt = now
	entry.AccessCount++
	c.stats.Hits++
	return entry.Value, true
}

// Put stores an aggregate under its fingerprint and returns the key. Writing
// the same fingerprint twice updates the entry in place. Eviction runs before
// insertion when the cache is at capacity.
func (c *Cache) Put(_ context.Context, subjectID, target string, kinds []assessment.Kind, industry string, result assessment.AggregateResult, opts PutOptions) string {
	key := Fingerprint(subjectID, target, kinds, industry, opts.Extra)
	size := estimateSize(result)
	ttl := c.resolveTTL(kinds, opts.TTLOverride)

	tags := make(map[string]struct{}, len(opts.Tags))
	for _, t := range opts.Tags {
		tags[t] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries[key]; ok {
		c.stats.TotalSizeBytes += size - existing.SizeBytes
		existing.Value = result
		existing.CreatedAt = now
		existing.TTL = ttl
		existing.Tags = tags
		existing.SizeBytes = size
		return key
	}

	if len(c.entries) >= c.maxEntries || c.stats.TotalSizeBytes+size > c.maxSizeBytes {
		c.evictLocked(now)
	}

	c.entries[key] = &Entry{
		Key:         key,
		Value:       result,
		CreatedAt:   now,
		AccessedAt:  now,
		AccessCount: 1,
		TTL:         ttl,
		Tags:        tags,
		SizeBytes:   size,
	}
	c.stats.TotalSizeBytes += size
	c.stats.EntryCount = len(c.entries)
	return key
}

// resolveTTL applies override > min(per-kind TTLs) > default.
func (c *Cache) resolveTTL(kinds []assessment.Kind, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var min time.Duration
	for _, k := range kinds {
		ttl, ok := c.kindTTLs[k]
		if !ok {
			continue
		}
		if min == 0 || ttl < min {
			min = ttl
		}
	}
	if min > 0 {
		return min
	}
	return c.defaultTTL
}

// ConfigureTTL sets the TTL applied to future entries containing the kind.
func (c *Cache) ConfigureTTL(kind assessment.Kind, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kindTTLs[kind] = ttl
}

// Invalidate removes entries matching the filter and returns the count.
// A filter matching nothing is a no-op returning 0.
func (c *Cache) Invalidate(_ context.Context, filter InvalidateFilter) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if filter.SubjectID != "" && filter.Target != "" && len(filter.Kinds) > 0 {
		key := Fingerprint(filter.SubjectID, filter.Target, filter.Kinds, filter.Industry, filter.Extra)
		if _, ok := c.entries[key]; ok {
			c.removeLocked(key)
			return 1
		}
		return 0
	}

	if len(filter.Tags) == 0 {
		return 0
	}
	removed := 0
	for key, entry := range c.entries {
		if entryHasAnyTag(entry, filter.Tags) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

func entryHasAnyTag(entry *Entry, tags []string) bool {
	for _, t := range tags {
		if _, ok := entry.Tags[t]; ok {
			return true
		}
	}
	return false
}

// InvalidateByDomain removes every entry whose cached result references the
// domain, either as the session target or in an outcome.
func (c *Cache) InvalidateByDomain(_ context.Context, domain string) int {
	domain = assessment.DomainOf(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.referencesDomain(entry, domain) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) referencesDomain(entry *Entry, domain string) bool {
	if assessment.DomainOf(entry.Value.Target) == domain {
		return true
	}
	for _, outcome := range entry.Value.Outcomes {
		if outcome.Domain == domain {
			return true
		}
	}
	return false
}

// Clear removes every entry and returns the count. Counters are preserved.
func (c *Cache) Clear(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.stats.TotalSizeBytes = 0
	c.stats.EntryCount = 0
	return removed
}

// Stats returns a consistent snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the background sweep. Idempotent.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

// evictLocked removes max(1, maxEntries/4) entries chosen by the strategy.
func (c *Cache) evictLocked(now time.Time) {
	n := c.maxEntries / 4
	if n < 1 {
		n = 1
	}
	keys := victims(c.entries, c.strategy, n, now)
	for _, key := range keys {
		c.removeLocked(key)
		c.stats.Evictions++
	}
	if c.logger != nil {
		c.logger.Debug("cache eviction", "removed", len(keys), "strategy", string(c.strategy))
	}
}

func (c *Cache) removeLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	c.stats.TotalSizeBytes -= entry.SizeBytes
	delete(c.entries, key)
	c.stats.EntryCount = len(c.entries)
}

// sweep periodically removes expired entries.
func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			c.removeLocked(key)
			c.stats.ExpiredRemovals++
		}
	}
}

// estimateSize serializes the value to approximate its footprint. Size is
// advisory: a serialization failure degrades to a string-length estimate and
// never fails the Put.
func estimateSize(result assessment.AggregateResult) int64 {
	raw, err := json.Marshal(result)
	if err != nil {
		return int64(len(fmt.Sprintf("%+v", result)))
	}
	return int64(len(raw))
}
