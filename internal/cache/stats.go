package cache

// Stats is a snapshot of cache accounting. Counters only grow; the two gauges
// track live state. Fields are guarded by the cache mutex and snapshotted
// under it, so a Stats value is always internally consistent.
type Stats struct {
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	Evictions       int64 `json:"evictions"`
	ExpiredRemovals int64 `json:"expired_removals"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
	EntryCount      int   `json:"entry_count"`
}

// HitRate is hits/(hits+misses), 0 when no lookups were made.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
