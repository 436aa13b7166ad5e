// Package fuzzy suggests known identifiers that are lexically close to a
// symbol that could not be found.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

const (
	// DefaultThreshold is the minimum Jaro-Winkler similarity for a
	// suggestion. Hits are ranked and capped at the limit.
	DefaultThreshold = 0.45
	// DefaultLimit is the maximum number of suggestions returned.
	DefaultLimit = 5

	// minContainLen is the shortest query for which containment alone counts
	// as a match.
	minContainLen = 3
)

// Matcher ranks candidate identifiers against a query.
type Matcher struct {
	Threshold float64
	Limit     int
}

// New returns a Matcher. Out-of-range arguments fall back to the defaults.
func New(threshold float64, limit int) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Matcher{Threshold: threshold, Limit: limit}
}

type scored struct {
	name  string
	score float64
}

// Suggest returns up to m.Limit candidates close to query, best first.
// Case is ignored when comparing. A candidate matches when its Jaro-Winkler
// similarity reaches the threshold, or when one of the two names contains
// the other. The query itself is never suggested.
func (m *Matcher) Suggest(query string, candidates []string) []string {
	q := strings.ToLower(query)
	if q == "" {
		return nil
	}

	var hits []scored
	seen := make(map[string]struct{}, len(candidates))
	for _, name := range candidates {
		if name == query || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		score, ok := m.score(q, strings.ToLower(name))
		if ok {
			hits = append(hits, scored{name: name, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > m.Limit {
		hits = hits[:m.Limit]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func (m *Matcher) score(q, name string) (float64, bool) {
	sim, err := edlib.StringsSimilarity(q, name, edlib.JaroWinkler)
	if err != nil {
		return 0, false
	}
	score := float64(sim)
	if score >= m.Threshold {
		return score, true
	}
	if len(q) >= minContainLen && len(name) >= minContainLen &&
		(strings.Contains(name, q) || strings.Contains(q, name)) {
		return score, true
	}
	return 0, false
}
