package redisearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/procsift/procsift/internal/engine"
)

// Search executes the compiled query via FT.SEARCH WITHSCORES.
// RediSearch scores rank descending: higher means a better match.
func (e *Engine) Search(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	start := time.Now()

	queryStr := buildQuery(req)
	if queryStr == "" {
		return engine.EmptyResponse(engine.TypeRediSearch, req.Keyword, req.Phrases), nil
	}

	args := []string{
		e.index, queryStr,
		"WITHSCORES",
		"LIMIT", strconv.Itoa(req.Offset), strconv.Itoa(req.Limit),
		"DIALECT", "2",
	}
	cmd := e.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := e.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &engine.Error{Engine: engine.TypeRediSearch, Op: "search", Err: err}
	}

	total, hits, scores, err := parseSearchReply(raw)
	if err != nil {
		return nil, &engine.Error{Engine: engine.TypeRediSearch, Op: "search", Err: err}
	}

	plain := make([]string, 0, len(req.Phrases))
	for _, p := range req.Phrases {
		if clean := engine.SanitizePhrase(p); clean != "" {
			plain = append(plain, clean)
		}
	}
	sims := engine.NormalizeScores(scores, false)
	for i := range hits {
		hits[i].SimilarityPercent = sims[i]
		hits[i].MatchedPhrases = engine.MatchedPhrases(hits[i].Title, plain, req.Keyword)
		hits[i].ExactMatch = engine.ExactMatch(hits[i].Title, plain)
	}
	if req.Filters != nil && req.Filters.MinSimilarity > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.SimilarityPercent >= req.Filters.MinSimilarity {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	if hits == nil {
		hits = []engine.Hit{}
	}

	elapsed := time.Since(start)
	e.queryCount.Add(1)
	e.queryNanos.Add(elapsed.Nanoseconds())

	return &engine.Response{
		Query:           req.Keyword,
		ExpandedPhrases: req.Phrases,
		TotalMatches:    total,
		Hits:            hits,
		ExecutionTime:   elapsed,
		EngineUsed:      engine.TypeRediSearch,
		Status:          engine.StatusOK,
	}, nil
}

// parseSearchReply walks the RESP2 WITHSCORES layout:
// [total, key1, score1, fields1, key2, score2, fields2, ...].
func parseSearchReply(raw []rueidis.RedisMessage) (int, []engine.Hit, []float64, error) {
	if len(raw) == 0 {
		return 0, nil, nil, nil
	}

	total64, err := raw[0].AsInt64()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("parse total: %w", err)
	}

	var hits []engine.Hit
	var scores []float64
	for i := 1; i+2 < len(raw); i += 3 {
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fieldArr, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldArr)

		hits = append(hits, engine.Hit{
			ID:              fields["tender_id"],
			Title:           fields["title"],
			Organization:    fields["org"],
			Status:          fields["status"],
			Date:            fields["aoc_date"],
			URL:             fields["url"],
			ServiceCategory: fields["service_category"],
			ValueRange:      fields["value_range"],
			Region:          fields["region"],
			DepartmentType:  fields["department_type"],
			Complexity:      fields["complexity"],
			Keywords:        splitKeywords(fields["keywords"]),
			RawScore:        score,
		})
		scores = append(scores, score)
	}
	return int(total64), hits, scores, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// facetFields maps public facet names to index fields.
var facetFields = map[string]string{
	"service_category": "service_category",
	"org":              "org",
	"value_range":      "value_range",
	"region":           "region",
	"status":           "status",
	"department_type":  "department_type",
	"complexity":       "complexity",
}

// FilterOptions aggregates the distinct values per TAG field over the
// whole index, plus the indexed date bounds.
func (e *Engine) FilterOptions(ctx context.Context) (*engine.FilterOptions, error) {
	opts := &engine.FilterOptions{}
	fields := []struct {
		field string
		dest  *[]engine.FacetValue
		limit int
	}{
		{"service_category", &opts.ServiceCategories, 0},
		{"org", &opts.Organizations, 50},
		{"value_range", &opts.ValueRanges, 0},
		{"region", &opts.Regions, 0},
		{"status", &opts.Statuses, 0},
		{"department_type", &opts.DepartmentTypes, 0},
		{"complexity", &opts.ComplexityLevels, 0},
	}
	for _, f := range fields {
		values, err := e.groupCount(ctx, "*", f.field, f.limit)
		if err != nil {
			return nil, err
		}
		*f.dest = values
	}

	dates, err := e.dateBounds(ctx)
	if err != nil {
		return nil, err
	}
	opts.Dates = dates
	return opts, nil
}

// Facets runs grouped counts for the requested fields under the current
// query, implementing engine.Aggregator.
func (e *Engine) Facets(ctx context.Context, req *engine.Request, fields []string) (map[string][]engine.FacetValue, error) {
	queryStr := buildQuery(req)
	if queryStr == "" {
		return map[string][]engine.FacetValue{}, nil
	}

	out := make(map[string][]engine.FacetValue, len(fields))
	for _, name := range fields {
		field, ok := facetFields[name]
		if !ok {
			return nil, &engine.Error{
				Engine: engine.TypeRediSearch,
				Op:     "facets",
				Err:    fmt.Errorf("unknown facet field %q", name),
			}
		}
		values, err := e.groupCount(ctx, queryStr, field, 0)
		if err != nil {
			return nil, err
		}
		out[name] = values
	}
	return out, nil
}

// groupCount runs FT.AGGREGATE ... GROUPBY @field REDUCE COUNT.
func (e *Engine) groupCount(ctx context.Context, query, field string, limit int) ([]engine.FacetValue, error) {
	max := 1000
	if limit > 0 {
		max = limit
	}
	args := []string{
		e.index, query,
		"GROUPBY", "1", "@" + field,
		"REDUCE", "COUNT", "0", "AS", "n",
		"SORTBY", "2", "@n", "DESC",
		"LIMIT", "0", strconv.Itoa(max),
		"DIALECT", "2",
	}
	cmd := e.client.B().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := e.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &engine.Error{Engine: engine.TypeRediSearch, Op: "facet " + field, Err: err}
	}

	var values []engine.FacetValue
	for _, row := range aggregateRows(raw) {
		value := row[field]
		if value == "" {
			continue
		}
		count, _ := strconv.Atoi(row["n"])
		values = append(values, engine.FacetValue{Value: value, Count: count})
	}
	return values, nil
}

// dateBounds aggregates min/max over the numeric day field.
func (e *Engine) dateBounds(ctx context.Context) (engine.DateRange, error) {
	args := []string{
		e.index, "*",
		"GROUPBY", "0",
		"REDUCE", "MIN", "1", "@aoc_day", "AS", "min_day",
		"REDUCE", "MAX", "1", "@aoc_day", "AS", "max_day",
		"DIALECT", "2",
	}
	cmd := e.client.B().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := e.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return engine.DateRange{}, &engine.Error{Engine: engine.TypeRediSearch, Op: "date bounds", Err: err}
	}

	rows := aggregateRows(raw)
	if len(rows) == 0 {
		return engine.DateRange{}, nil
	}
	return engine.DateRange{
		Min: dayToDate(rows[0]["min_day"]),
		Max: dayToDate(rows[0]["max_day"]),
	}, nil
}

// aggregateRows walks the FT.AGGREGATE reply [total, row1, row2, ...]
// where each row is a flat name/value pair array.
func aggregateRows(raw []rueidis.RedisMessage) []map[string]string {
	if len(raw) < 2 {
		return nil
	}
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		pairs, err := msg.ToArray()
		if err != nil {
			continue
		}
		rows = append(rows, parseFieldPairs(pairs))
	}
	return rows
}
