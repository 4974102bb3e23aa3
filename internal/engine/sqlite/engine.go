// Package sqlite implements the baseline search engine on an embedded
// SQLite FTS5 index. It is always constructible without a network and
// serves as the fallback target for every other backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/procsift/procsift/internal/engine"
)

// Config holds the SQLite engine settings.
type Config struct {
	Path        string
	CacheSizeKB int
	MmapSizeMB  int
	// TitleWeight is the bm25 weight of the title column relative to
	// the keywords column.
	TitleWeight int
}

// Engine is the FTS5-backed search engine. Safe for concurrent use;
// database/sql pools connections underneath.
type Engine struct {
	db          *sql.DB
	path        string
	titleWeight int
	log         *zap.Logger

	queryCount atomic.Int64
	queryNanos atomic.Int64
}

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS tenders USING fts5(
	title,
	keywords,
	tender_id UNINDEXED,
	org UNINDEXED,
	status UNINDEXED,
	aoc_date UNINDEXED,
	url UNINDEXED,
	service_category UNINDEXED,
	value_range UNINDEXED,
	region UNINDEXED,
	department_type UNINDEXED,
	complexity UNINDEXED,
	tokenize='porter unicode61',
	prefix='2 3'
);`

// New opens (creating if needed) the FTS5 database at cfg.Path.
func New(cfg Config, log *zap.Logger) (*Engine, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		fmt.Sprintf("PRAGMA mmap_size = %d", int64(cfg.MmapSizeMB)*1024*1024),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tenders index: %w", err)
	}

	titleWeight := cfg.TitleWeight
	if titleWeight <= 0 {
		titleWeight = 10
	}

	log.Info("sqlite engine ready",
		zap.String("path", cfg.Path),
		zap.Int("title_weight", titleWeight))

	return &Engine{
		db:          db,
		path:        cfg.Path,
		titleWeight: titleWeight,
		log:         log,
	}, nil
}

func (e *Engine) Type() engine.Type { return engine.TypeSQLite }

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.CapabilitiesFor(engine.TypeSQLite)
}

func (e *Engine) Close() error { return e.db.Close() }

// Search runs the compiled phrase query against the FTS5 index.
// bm25 ranks ascending: more negative means a better match.
func (e *Engine) Search(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	start := time.Now()

	terms := engine.CompileTerms(req.Phrases)
	if len(terms) == 0 {
		return engine.EmptyResponse(engine.TypeSQLite, req.Keyword, req.Phrases), nil
	}
	matchQuery := strings.Join(terms, " OR ")

	where, args := filterClauses(req.Filters)
	where = append([]string{"tenders MATCH ?"}, where...)
	args = append([]any{matchQuery}, args...)
	whereSQL := strings.Join(where, " AND ")

	var total int
	countSQL := "SELECT COUNT(*) FROM tenders WHERE " + whereSQL
	if err := e.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "count", Err: err}
	}

	querySQL := fmt.Sprintf(`
		SELECT tender_id, title, org, status, aoc_date, url,
		       service_category, value_range, region, department_type,
		       complexity, keywords,
		       bm25(tenders, %d.0, 1.0) AS score
		FROM tenders
		WHERE %s
		ORDER BY score ASC
		LIMIT ? OFFSET ?`, e.titleWeight, whereSQL)

	rows, err := e.db.QueryContext(ctx, querySQL, append(args, req.Limit, req.Offset)...)
	if err != nil {
		return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "search", Err: err}
	}
	defer rows.Close()

	var hits []engine.Hit
	var scores []float64
	for rows.Next() {
		var h engine.Hit
		var keywords string
		if err := rows.Scan(&h.ID, &h.Title, &h.Organization, &h.Status, &h.Date, &h.URL,
			&h.ServiceCategory, &h.ValueRange, &h.Region, &h.DepartmentType,
			&h.Complexity, &keywords, &h.RawScore); err != nil {
			return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "scan", Err: err}
		}
		h.Keywords = splitKeywords(keywords)
		hits = append(hits, h)
		scores = append(scores, h.RawScore)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "search", Err: err}
	}

	plain := unquoted(terms)
	sims := engine.NormalizeScores(scores, true)
	for i := range hits {
		hits[i].SimilarityPercent = sims[i]
		hits[i].MatchedPhrases = engine.MatchedPhrases(hits[i].Title, plain, req.Keyword)
		hits[i].ExactMatch = engine.ExactMatch(hits[i].Title, plain)
	}
	if req.Filters != nil && req.Filters.MinSimilarity > 0 {
		hits = filterBySimilarity(hits, req.Filters.MinSimilarity)
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
		EngineUsed:      engine.TypeSQLite,
		Status:          engine.StatusOK,
	}, nil
}

// HealthCheck verifies the database answers, the index is queryable,
// and the file passes a quick integrity check.
func (e *Engine) HealthCheck(ctx context.Context) (engine.HealthStatus, error) {
	var one int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return red("database unreachable", err), nil
	}

	var n int
	probe := `SELECT COUNT(*) FROM tenders WHERE tenders MATCH '"health probe"'`
	if err := e.db.QueryRowContext(ctx, probe).Scan(&n); err != nil {
		return red("full-text index unusable", err), nil
	}

	var verdict string
	if err := e.db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&verdict); err != nil {
		return red("integrity check failed", err), nil
	}
	if verdict != "ok" {
		return red("integrity check failed", fmt.Errorf("quick_check: %s", verdict)), nil
	}

	return engine.HealthStatus{
		Healthy: true,
		Status:  "green",
		Details: map[string]any{"path": e.path},
	}, nil
}

func red(msg string, err error) engine.HealthStatus {
	return engine.HealthStatus{
		Healthy: false,
		Status:  "red",
		Message: fmt.Sprintf("%s: %v", msg, err),
	}
}

// Statistics reports record count, database file size, and the average
// query latency observed since startup.
func (e *Engine) Statistics(ctx context.Context) (engine.Statistics, error) {
	var count int
	if err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenders").Scan(&count); err != nil {
		return engine.Statistics{}, &engine.Error{Engine: engine.TypeSQLite, Op: "statistics", Err: err}
	}

	var size int64
	if fi, err := os.Stat(e.path); err == nil {
		size = fi.Size()
	}

	stats := engine.Statistics{
		RecordCount:    count,
		IndexSizeBytes: size,
		LastUpdated:    time.Now(),
	}
	if n := e.queryCount.Load(); n > 0 {
		stats.AvgQueryLatency = time.Duration(e.queryNanos.Load() / n)
	}
	return stats, nil
}

// facetColumns whitelists the columns exposed for faceting and filtering.
var facetColumns = map[string]string{
	"service_category": "service_category",
	"org":              "org",
	"value_range":      "value_range",
	"region":           "region",
	"status":           "status",
	"department_type":  "department_type",
	"complexity":       "complexity",
}

// FilterOptions enumerates the distinct values per facet column.
// Organizations are capped to the 50 most frequent.
func (e *Engine) FilterOptions(ctx context.Context) (*engine.FilterOptions, error) {
	opts := &engine.FilterOptions{}
	fields := []struct {
		column string
		dest   *[]engine.FacetValue
		limit  int
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
		values, err := e.facetValues(ctx, f.column, "", nil, f.limit)
		if err != nil {
			return nil, err
		}
		*f.dest = values
	}

	var minDate, maxDate sql.NullString
	dateSQL := "SELECT MIN(aoc_date), MAX(aoc_date) FROM tenders WHERE aoc_date != ''"
	if err := e.db.QueryRowContext(ctx, dateSQL).Scan(&minDate, &maxDate); err != nil {
		return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "filter_options", Err: err}
	}
	opts.Dates = engine.DateRange{Min: minDate.String, Max: maxDate.String}

	return opts, nil
}

// Facets runs grouped counts for the requested fields under the current
// query, implementing engine.Aggregator.
func (e *Engine) Facets(ctx context.Context, req *engine.Request, fields []string) (map[string][]engine.FacetValue, error) {
	terms := engine.CompileTerms(req.Phrases)
	if len(terms) == 0 {
		return map[string][]engine.FacetValue{}, nil
	}
	matchQuery := strings.Join(terms, " OR ")

	out := make(map[string][]engine.FacetValue, len(fields))
	for _, field := range fields {
		column, ok := facetColumns[field]
		if !ok {
			return nil, &engine.Error{
				Engine: engine.TypeSQLite,
				Op:     "facets",
				Err:    fmt.Errorf("unknown facet field %q", field),
			}
		}
		values, err := e.facetValues(ctx, column, "tenders MATCH ?", []any{matchQuery}, 0)
		if err != nil {
			return nil, err
		}
		out[field] = values
	}
	return out, nil
}

func (e *Engine) facetValues(ctx context.Context, column, extraWhere string, args []any, limit int) ([]engine.FacetValue, error) {
	where := fmt.Sprintf("%s != ''", column)
	if extraWhere != "" {
		where = extraWhere + " AND " + where
	}
	q := fmt.Sprintf(
		"SELECT %s, COUNT(*) AS n FROM tenders WHERE %s GROUP BY %s ORDER BY n DESC, %s ASC",
		column, where, column, column)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "facet " + column, Err: err}
	}
	defer rows.Close()

	var values []engine.FacetValue
	for rows.Next() {
		var v engine.FacetValue
		if err := rows.Scan(&v.Value, &v.Count); err != nil {
			return nil, &engine.Error{Engine: engine.TypeSQLite, Op: "facet " + column, Err: err}
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Upsert replaces records by tender_id. FTS5 tables have no unique
// constraints, so this is a delete-then-insert in one transaction.
func (e *Engine) Upsert(ctx context.Context, records []engine.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, "DELETE FROM tenders WHERE tender_id = ?")
	if err != nil {
		return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO tenders (tender_id, title, org, status, aoc_date, url,
			service_category, value_range, region, department_type, complexity, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
	}
	defer ins.Close()

	for _, r := range records {
		if _, err := del.ExecContext(ctx, r.ID); err != nil {
			return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
		}
		if _, err := ins.ExecContext(ctx, r.ID, r.Title, r.Organization, r.Status,
			r.Date, r.URL, r.ServiceCategory, r.ValueRange, r.Region,
			r.DepartmentType, r.Complexity, strings.Join(r.Keywords, ", ")); err != nil {
			return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &engine.Error{Engine: engine.TypeSQLite, Op: "upsert", Err: err}
	}
	return nil
}

// filterClauses builds WHERE fragments and bind args for the optional
// request filters. MinSimilarity is applied after normalization, not here.
func filterClauses(f *engine.Filters) ([]string, []any) {
	if f.Empty() {
		return nil, nil
	}

	var where []string
	var args []any

	if f.DateFrom != "" {
		where = append(where, "aoc_date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		where = append(where, "aoc_date <= ?")
		args = append(args, f.DateTo)
	}

	inLists := []struct {
		column string
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
	for _, in := range inLists {
		if len(in.values) == 0 {
			continue
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(in.values)), ", ")
		where = append(where, fmt.Sprintf("%s IN (%s)", in.column, placeholders))
		for _, v := range in.values {
			args = append(args, v)
		}
	}
	return where, args
}

func filterBySimilarity(hits []engine.Hit, min int) []engine.Hit {
	kept := hits[:0]
	for _, h := range hits {
		if h.SimilarityPercent >= min {
			kept = append(kept, h)
		}
	}
	return kept
}

// unquoted strips the exact-phrase quoting CompileTerms added, for
// title-substring provenance checks.
func unquoted(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.Trim(t, `"`)
	}
	return out
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
