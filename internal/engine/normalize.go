package engine

import (
	"math"
	"strings"
)

// NormalizeScores maps backend-native scores onto a 1..100 similarity
// scale relative to the current result page. lowerIsBetter selects the
// orientation: SQLite bm25 ranks ascending (more negative is better),
// RediSearch ranks descending. When all scores are equal every hit gets
// 100; otherwise the worst hit is clamped to a minimum of 1.
func NormalizeScores(scores []float64, lowerIsBetter bool) []int {
	if len(scores) == 0 {
		return nil
	}

	best, worst := scores[0], scores[0]
	for _, s := range scores[1:] {
		if lowerIsBetter {
			best = math.Min(best, s)
			worst = math.Max(worst, s)
		} else {
			best = math.Max(best, s)
			worst = math.Min(worst, s)
		}
	}

	out := make([]int, len(scores))
	spread := best - worst
	if spread == 0 {
		for i := range out {
			out[i] = 100
		}
		return out
	}

	for i, s := range scores {
		sim := int(math.Round(100 * (s - worst) / spread))
		if sim < 1 {
			sim = 1
		}
		out[i] = sim
	}
	return out
}

// MatchedPhrases reports which expansion phrases literally occur in the
// title, case-insensitively. When none do (stemmed or prefix matches),
// it falls back to the original keyword so provenance is never empty.
func MatchedPhrases(title string, phrases []string, keyword string) []string {
	lower := strings.ToLower(title)
	var matched []string
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return []string{keyword}
	}
	return matched
}

// ExactMatch reports whether any multi-word phrase occurs verbatim in
// the title. Single words are too weak a signal to call exact.
func ExactMatch(title string, phrases []string) bool {
	lower := strings.ToLower(title)
	for _, p := range phrases {
		if strings.ContainsRune(p, ' ') && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
