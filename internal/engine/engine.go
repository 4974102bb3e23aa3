// Package engine defines the contract every search backend implements,
// plus the query compilation and score normalization shared between them.
package engine

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies a search backend implementation.
type Type string

const (
	// TypeSQLite is the baseline FTS5 engine, always available.
	TypeSQLite Type = "sqlite"
	// TypeRediSearch is the optional RediSearch engine.
	TypeRediSearch Type = "redisearch"
)

// ResponseStatus distinguishes a valid (possibly empty) result from a
// result degraded by a backend failure.
type ResponseStatus string

const (
	// StatusOK means the backend served the query normally.
	StatusOK ResponseStatus = "ok"
	// StatusDegraded means the backend failed mid-query and the response
	// carries zero matches plus the failure reason.
	StatusDegraded ResponseStatus = "degraded"
)

// Engine is the abstract search backend contract. Implementations own
// their storage/connection handles and their internal concurrency safety.
type Engine interface {
	// Type returns the backend identifier.
	Type() Type
	// Capabilities returns the static capability descriptor for this backend.
	Capabilities() Capabilities
	// HealthCheck probes the backend. A returned error means the probe
	// itself failed; an unhealthy backend is reported in the status.
	HealthCheck(ctx context.Context) (HealthStatus, error)
	// Statistics returns a point-in-time usage snapshot.
	Statistics(ctx context.Context) (Statistics, error)
	// Search executes a query built from pre-expanded phrases. The
	// engine owns term sanitization and score normalization.
	Search(ctx context.Context, req *Request) (*Response, error)
	// FilterOptions enumerates facet values available for filtering.
	FilterOptions(ctx context.Context) (*FilterOptions, error)
	// Close releases the backend's resources.
	Close() error
}

// Aggregator is implemented by backends that support faceted aggregations
// over the current query. Optional.
type Aggregator interface {
	Facets(ctx context.Context, req *Request, fields []string) (map[string][]FacetValue, error)
}

// Request carries one search execution through a backend.
type Request struct {
	// Keyword is the original user token, used for match-provenance fallback.
	Keyword string
	// Phrases are the pre-expanded query phrases in specificity order.
	Phrases []string
	// Filters are optional pre-validated predicates; nil means unfiltered.
	Filters *Filters
	Limit   int
	Offset  int
}

// Filters holds the named filter predicates passed through to a backend.
// Empty slices and zero values mean "no constraint".
type Filters struct {
	DateFrom          string
	DateTo            string
	ServiceCategories []string
	Organizations     []string
	ValueRanges       []string
	Regions           []string
	Statuses          []string
	DepartmentTypes   []string
	ComplexityLevels  []string
	MinSimilarity     int
}

// Empty reports whether no predicate is set.
func (f *Filters) Empty() bool {
	if f == nil {
		return true
	}
	return f.DateFrom == "" && f.DateTo == "" &&
		len(f.ServiceCategories) == 0 && len(f.Organizations) == 0 &&
		len(f.ValueRanges) == 0 && len(f.Regions) == 0 &&
		len(f.Statuses) == 0 && len(f.DepartmentTypes) == 0 &&
		len(f.ComplexityLevels) == 0 && f.MinSimilarity == 0
}

// Hit is a single matched record with normalized scoring and provenance.
type Hit struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Organization string `json:"org"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	URL          string `json:"url"`

	ServiceCategory string   `json:"service_category,omitempty"`
	ValueRange      string   `json:"value_range,omitempty"`
	Region          string   `json:"region,omitempty"`
	DepartmentType  string   `json:"department_type,omitempty"`
	Complexity      string   `json:"complexity,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`

	// RawScore is in backend-native units; orientation varies per backend.
	RawScore float64 `json:"raw_score"`
	// SimilarityPercent is normalized per-page: best hit = 100, worst >= 1.
	SimilarityPercent int `json:"similarity_percent"`
	// MatchedPhrases are the expansion phrases literally present in the title.
	MatchedPhrases []string `json:"matched_phrases"`
	// ExactMatch is true when a multi-word phrase appears verbatim in the title.
	ExactMatch bool `json:"exact_match"`
}

// Response is the engine-agnostic result of one search execution.
type Response struct {
	Query           string         `json:"query"`
	ExpandedPhrases []string       `json:"expanded_phrases"`
	TotalMatches    int            `json:"total_matches"`
	Hits            []Hit          `json:"hits"`
	ExecutionTime   time.Duration  `json:"-"`
	EngineUsed      Type           `json:"engine_used"`
	Status          ResponseStatus `json:"status"`
	// Error carries the backend failure reason when Status is degraded.
	Error string `json:"error,omitempty"`

	// Expansion metadata stamped by the manager, backend-independent.
	Domain     string  `json:"domain,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// MarshalJSON renders ExecutionTime as integer milliseconds under the
// execution_time_ms key.
func (r *Response) MarshalJSON() ([]byte, error) {
	type alias Response
	return json.Marshal(struct {
		*alias
		ExecutionTimeMs int64 `json:"execution_time_ms"`
	}{(*alias)(r), r.ExecutionTime.Milliseconds()})
}

// EmptyResponse builds a well-formed zero-match response. The phrase
// slice is always non-nil so clients see an array, not null.
func EmptyResponse(engineType Type, keyword string, phrases []string) *Response {
	if phrases == nil {
		phrases = []string{}
	}
	return &Response{
		Query:           keyword,
		ExpandedPhrases: phrases,
		Hits:            []Hit{},
		EngineUsed:      engineType,
		Status:          StatusOK,
	}
}

// DegradedResponse builds a zero-match response flagged with a backend failure.
func DegradedResponse(engineType Type, keyword string, phrases []string, err error) *Response {
	resp := EmptyResponse(engineType, keyword, phrases)
	resp.Status = StatusDegraded
	resp.Error = err.Error()
	return resp
}

// HealthStatus is a point-in-time backend health snapshot.
type HealthStatus struct {
	Healthy bool           `json:"healthy"`
	Status  string         `json:"status"` // green, yellow, red
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Statistics is a point-in-time backend usage snapshot.
type Statistics struct {
	RecordCount     int           `json:"record_count"`
	IndexSizeBytes  int64         `json:"index_size_bytes"`
	AvgQueryLatency time.Duration `json:"-"`
	LastUpdated     time.Time     `json:"last_updated"`
}

// MarshalJSON renders AvgQueryLatency as integer milliseconds under the
// avg_query_latency_ms key.
func (s Statistics) MarshalJSON() ([]byte, error) {
	type alias Statistics
	return json.Marshal(struct {
		alias
		AvgQueryLatencyMs int64 `json:"avg_query_latency_ms"`
	}{alias(s), s.AvgQueryLatency.Milliseconds()})
}

// FacetValue is one enumerated filter option with its record count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DateRange bounds the dates present in the index.
type DateRange struct {
	Min string `json:"min_date"`
	Max string `json:"max_date"`
}

// FilterOptions enumerates the facet values a UI can filter on.
type FilterOptions struct {
	ServiceCategories []FacetValue `json:"service_categories"`
	Organizations     []FacetValue `json:"organizations"`
	ValueRanges       []FacetValue `json:"value_ranges"`
	Regions           []FacetValue `json:"regions"`
	Statuses          []FacetValue `json:"status_types"`
	DepartmentTypes   []FacetValue `json:"department_types"`
	ComplexityLevels  []FacetValue `json:"complexity_levels"`
	Dates             DateRange    `json:"date_range"`
}

// Record is one indexable procurement row, produced by the ingestion
// collaborator and consumed by a backend's write path.
type Record struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Organization    string   `json:"org"`
	Status          string   `json:"status"`
	Date            string   `json:"date"`
	URL             string   `json:"url"`
	ServiceCategory string   `json:"service_category"`
	ValueRange      string   `json:"value_range"`
	Region          string   `json:"region"`
	DepartmentType  string   `json:"department_type"`
	Complexity      string   `json:"complexity"`
	Keywords        []string `json:"keywords"`
}
