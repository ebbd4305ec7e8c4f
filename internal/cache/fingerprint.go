package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"siteaudit/internal/assessment"
)

// fingerprintLen is the hex length the digest is truncated to.
const fingerprintLen = 32

// Fingerprint derives the deterministic cache key for a logical request.
// Identical logical requests collapse to one key regardless of kind order,
// target casing, or a trailing slash.
func Fingerprint(subjectID, target string, kinds []assessment.Kind, industry string, extra map[string]string) string {
	sorted := make([]string, 0, len(kinds))
	for _, k := range kinds {
		sorted = append(sorted, string(k))
	}
	sort.Strings(sorted)

	canonical := struct {
		SubjectID string            `json:"subject_id"`
		Target    string            `json:"target"`
		Kinds     []string          `json:"kinds"`
		Industry  string            `json:"industry"`
		Extra     map[string]string `json:"extra,omitempty"`
	}{
		SubjectID: subjectID,
		Target:    NormalizeTarget(target),
		Kinds:     sorted,
		Industry:  strings.ToLower(industry),
		Extra:     canonicalExtra(extra),
	}

	// encoding/json writes map keys in sorted order, so the serialization is
	// deterministic. Marshal of this struct cannot fail.
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// NormalizeTarget lower-cases the target and strips a trailing slash.
func NormalizeTarget(target string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(target)), "/")
}

func canonicalExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	folded := make(map[string]string, len(extra))
	for k, v := range extra {
		folded[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return folded
}
