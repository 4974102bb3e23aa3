package redisearch

import (
	"strings"

	"github.com/procsift/procsift/internal/engine"
)

// buildQuery assembles the FT.SEARCH query string: filter predicates
// first, then the phrase alternation. Returns "" when every phrase is
// sanitized away.
func buildQuery(req *engine.Request) string {
	terms := engine.CompileTerms(req.Phrases)
	if len(terms) == 0 {
		return ""
	}
	textPart := "(" + strings.Join(terms, "|") + ")"

	filterStr := buildFilter(req.Filters)
	if filterStr == "" {
		return textPart
	}
	return filterStr + " " + textPart
}

// buildFilter renders the request filters as RediSearch predicates:
// TAG alternations per categorical field and a numeric day range for
// dates. MinSimilarity is applied after normalization, not here.
func buildFilter(f *engine.Filters) string {
	if f.Empty() {
		return ""
	}

	var parts []string
	tags := []struct {
		field  string
		values []string
	}{
		{"service_category", f.ServiceCategories},
		{"org", f.Organizations},
		{"value_range", f.ValueRanges},
		{"region", f.Regions},
		{"status", f.Statuses},
		{"department_type", f.DepartmentTypes},
		{"complexity", f.ComplexityLevels},
	}
	for _, t := range tags {
		if len(t.values) == 0 {
			continue
		}
		escaped := make([]string, len(t.values))
		for i, v := range t.values {
			escaped[i] = escapeTag(v)
		}
		parts = append(parts, "@"+t.field+":{"+strings.Join(escaped, "|")+"}")
	}

	if f.DateFrom != "" || f.DateTo != "" {
		from, to := "-inf", "+inf"
		if d := dateToDay(f.DateFrom); d != "" {
			from = d
		}
		if d := dateToDay(f.DateTo); d != "" {
			to = d
		}
		parts = append(parts, "@aoc_day:["+from+" "+to+"]")
	}

	return strings.Join(parts, " ")
}

// escapeTag backslash-escapes every character RediSearch treats as
// syntax inside a TAG value.
func escapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v) * 2)
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dateToDay converts "2026-03-14" to the numeric day "20260314" used
// by the aoc_day range field. Anything non-conforming yields "".
func dateToDay(date string) string {
	digits := strings.ReplaceAll(date, "-", "")
	if len(digits) != 8 {
		return ""
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return digits
}

// dayToDate is the inverse of dateToDay, for aggregate min/max replies.
func dayToDate(day string) string {
	// Aggregates may render the numeric as "20260314" or "20260314.0".
	if i := strings.IndexByte(day, '.'); i >= 0 {
		day = day[:i]
	}
	if len(day) != 8 {
		return ""
	}
	return day[:4] + "-" + day[4:6] + "-" + day[6:8]
}
