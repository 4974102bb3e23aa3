package engine

import (
	"sort"
	"strings"
)

// reservedChars are query-syntax characters stripped from user phrases
// before they reach any backend's query language.
const reservedChars = "@#$%^&*+=|\\:;\"'<>,.?/"

// SanitizePhrase strips query-syntax characters from a phrase and
// collapses the remaining whitespace. Returns "" when nothing survives.
func SanitizePhrase(phrase string) string {
	var b strings.Builder
	b.Grow(len(phrase))
	for _, r := range phrase {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteByte(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CompileTerms sanitizes and deduplicates expansion phrases, orders them
// most-specific first (by word count, descending), and quotes any phrase
// containing non-word characters so backends treat it as an exact
// sequence rather than query syntax (FTS5 reads a bare hyphen as
// syntax). The caller joins the terms with its backend's OR operator.
func CompileTerms(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	terms := make([]string, 0, len(phrases))
	for _, p := range phrases {
		clean := SanitizePhrase(p)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		terms = append(terms, clean)
	}

	// Multi-word phrases first so exact sequences dominate ranking.
	sort.SliceStable(terms, func(i, j int) bool {
		return len(strings.Fields(terms[i])) > len(strings.Fields(terms[j]))
	})

	for i, t := range terms {
		if strings.ContainsFunc(t, isQuerySyntax) {
			terms[i] = `"` + t + `"`
		}
	}
	return terms
}

func isQuerySyntax(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return false
	}
	return true
}
