package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(key string, created, accessed time.Time, count int64, ttl time.Duration) *Entry {
	return &Entry{Key: key, CreatedAt: created, AccessedAt: accessed, AccessCount: count, TTL: ttl}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"lru", "lfu", "fifo", "ttl"} {
		got, err := ParseStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, Strategy(s), got)
	}
	_, err := ParseStrategy("arc")
	assert.Error(t, err)
}

func TestVictimsLRU(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"old":    entryAt("old", base, base.Add(1*time.Minute), 10, 0),
		"middle": entryAt("middle", base, base.Add(2*time.Minute), 1, 0),
		"fresh":  entryAt("fresh", base, base.Add(3*time.Minute), 1, 0),
	}
	assert.Equal(t, []string{"old", "middle"}, victims(entries, StrategyLRU, 2, base))
}

func TestVictimsLFUTiesByAccessTime(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"hot":        entryAt("hot", base, base.Add(time.Minute), 50, 0),
		"cold-old":   entryAt("cold-old", base, base.Add(1*time.Second), 2, 0),
		"cold-fresh": entryAt("cold-fresh", base, base.Add(2*time.Second), 2, 0),
	}
	assert.Equal(t, []string{"cold-old"}, victims(entries, StrategyLFU, 1, base))
}

func TestVictimsFIFO(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"first":  entryAt("first", base.Add(1*time.Second), base.Add(time.Hour), 99, 0),
		"second": entryAt("second", base.Add(2*time.Second), base, 1, 0),
	}
	assert.Equal(t, []string{"first"}, victims(entries, StrategyFIFO, 1, base))
}

func TestVictimsTTLPrefersExpired(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		// Oldest created but no TTL, never expires.
		"eternal": entryAt("eternal", base.Add(-time.Hour), base, 1, 0),
		// Newer but already past its TTL.
		"expired": entryAt("expired", base.Add(-2*time.Minute), base, 1, time.Minute),
		"live":    entryAt("live", base.Add(-time.Minute), base, 1, time.Hour),
	}
	assert.Equal(t, []string{"expired", "eternal"}, victims(entries, StrategyTTL, 2, base))
}

func TestVictimsBounds(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"only": entryAt("only", base, base, 1, 0),
	}
	assert.Len(t, victims(entries, StrategyLRU, 5, base), 1)
	assert.Nil(t, victims(entries, StrategyLRU, 0, base))
	assert.Nil(t, victims(map[string]*Entry{}, StrategyLRU, 3, base))
}
