// Package resolve fuzzy-matches a spoken property address against homeowner
// records on file.
package resolve

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/warranty-intake/internal/model"
)

// DefaultThreshold is the minimum similarity ratio accepted as a match. It is
// deliberately permissive: transcription noise is expected, and low-confidence
// matches are caught by human review downstream rather than dropped here.
const DefaultThreshold = 0.4

// Match is a resolved homeowner with the similarity score that selected it.
type Match struct {
	Homeowner  model.Homeowner
	Similarity float64
}

// Resolver scores candidate homeowners against a raw address string.
type Resolver struct {
	threshold float64
}

// New creates a Resolver with the given acceptance threshold. A zero or
// negative threshold falls back to DefaultThreshold.
func New(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold}
}

// Similarity returns a normalized inverse edit-distance score in [0,1] over
// the normalized forms of a and b. Identical strings score 1, fully disjoint
// strings score 0.
func Similarity(a, b string) float64 {
	na := NormalizeAddress(a)
	nb := NormalizeAddress(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	dist := levenshtein.Distance(na, nb, nil)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// Resolve scores every candidate and returns the best match at or above the
// threshold, or nil when nothing qualifies. Ties are broken deterministically:
// most recently active homeowner first, then lexicographic id.
func (r *Resolver) Resolve(rawAddress string, candidates []model.Homeowner) *Match {
	if strings.TrimSpace(rawAddress) == "" || len(candidates) == 0 {
		return nil
	}

	var best *Match
	for _, h := range candidates {
		sim := Similarity(rawAddress, h.Address)
		if sim < r.threshold {
			continue
		}
		if best == nil || sim > best.Similarity || (sim == best.Similarity && moreRecent(h, best.Homeowner)) {
			best = &Match{Homeowner: h, Similarity: sim}
		}
	}
	return best
}

// moreRecent orders equally-scoring candidates: later activity wins, and
// equal activity falls back to the smaller id so the result never depends on
// input ordering.
func moreRecent(a, b model.Homeowner) bool {
	if !a.LastActivityAt.Equal(b.LastActivityAt) {
		return a.LastActivityAt.After(b.LastActivityAt)
	}
	return a.ID < b.ID
}
