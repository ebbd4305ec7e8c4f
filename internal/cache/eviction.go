package cache

import (
	"fmt"
	"sort"
	"time"
)

// Strategy selects which entries to remove under capacity pressure.
type Strategy string

const (
	// StrategyLRU evicts the entries accessed longest ago.
	StrategyLRU Strategy = "lru"

	// StrategyLFU evicts the entries accessed least often, ties broken by
	// oldest access.
	StrategyLFU Strategy = "lfu"

	// StrategyFIFO evicts the oldest inserted entries regardless of access.
	StrategyFIFO Strategy = "fifo"

	// StrategyTTL evicts already-expired entries first, then the oldest
	// inserted.
	StrategyTTL Strategy = "ttl"
)

// ParseStrategy validates and returns a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLRU, StrategyLFU, StrategyFIFO, StrategyTTL:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown eviction strategy: %q", s)
	}
}

// victims returns the keys of up to n entries chosen by the strategy.
// Called with the cache lock held.
func victims(entries map[string]*Entry, strategy Strategy, n int, now time.Time) []string {
	if n <= 0 || len(entries) == 0 {
		return nil
	}

	candidates := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, e)
	}

	switch strategy {
	case StrategyLFU:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].AccessCount != candidates[j].AccessCount {
				return candidates[i].AccessCount < candidates[j].AccessCount
			}
			return candidates[i].AccessedAt.Before(candidates[j].AccessedAt)
		})
	case StrategyFIFO:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
	case StrategyTTL:
		sort.Slice(candidates, func(i, j int) bool {
			ei, ej := candidates[i].expired(now), candidates[j].expired(now)
			if ei != ej {
				return ei
			}
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
	default: // StrategyLRU
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].AccessedAt.Before(candidates[j].AccessedAt)
		})
	}

	if n > len(candidates) {
		n = len(candidates)
	}
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = candidates[i].Key
	}
	return keys
}
