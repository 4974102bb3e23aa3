// Package chi exposes the search service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/procsift/procsift/internal/engine"
	"github.com/procsift/procsift/internal/expand"
	"github.com/procsift/procsift/internal/metrics"
	"github.com/procsift/procsift/internal/search"
)

// Searcher is the manager contract the handlers depend on.
type Searcher interface {
	Search(ctx context.Context, keyword string, filters *engine.Filters, limit, offset int) (*engine.Response, error)
	FilterOptions(ctx context.Context) (*engine.FilterOptions, error)
	Facets(ctx context.Context, keyword string, fields []string) (map[string][]engine.FacetValue, error)
	Expand(keyword string) expand.Result
	EngineInfo(ctx context.Context) (search.Info, error)
	Reload(ctx context.Context) (search.ReloadResult, error)
	EngineType() engine.Type
}

// Dictionary is the expander contract the handlers depend on.
type Dictionary interface {
	Statistics() expand.Statistics
	Keywords() []string
	DomainKeywords(domain string) []string
	SearchKeywords(query string, limit int) []expand.KeywordMatch
	ValidateQuality() expand.QualityReport
	Reload() (expand.ReloadReport, error)
}

// Server holds the HTTP handlers.
type Server struct {
	searcher Searcher
	dict     Dictionary
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(searcher Searcher, dict Dictionary, logger *zap.Logger) *Server {
	return &Server{searcher: searcher, dict: dict, logger: logger}
}

// Register mounts all routes on the router. Middleware is the caller's
// concern; only /health and /metrics bypass auth.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/facets", s.handleFacets)
		r.Get("/filters", s.handleFilters)
		r.Get("/expand", s.handleExpand)
		r.Get("/engine", s.handleEngine)
		r.Post("/engine/reload", s.handleEngineReload)
		r.Get("/synonyms/stats", s.handleSynonymStats)
		r.Get("/synonyms/keywords", s.handleSynonymKeywords)
		r.Get("/synonyms/quality", s.handleSynonymQuality)
		r.Post("/synonyms/reload", s.handleSynonymReload)
	})
}

// handleSearch handles GET /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("q"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	filters, err := filtersFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), keyword, filters, limit, offset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFacets handles GET /api/v1/facets.
func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("q"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	fields := splitCSV(q.Get("fields"))
	if len(fields) == 0 {
		fields = []string{"service_category", "region", "status"}
	}

	facets, err := s.searcher.Facets(r.Context(), keyword, fields)
	if err != nil {
		status := http.StatusBadRequest
		if isUnavailable(err) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": keyword, "facets": facets})
}

// handleFilters handles GET /api/v1/filters.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.searcher.FilterOptions(r.Context())
	if err != nil {
		s.logger.Error("filter options failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load filter options")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// handleExpand handles GET /api/v1/expand.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	writeJSON(w, http.StatusOK, s.searcher.Expand(keyword))
}

// handleEngine handles GET /api/v1/engine.
func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	info, err := s.searcher.EngineInfo(r.Context())
	if err != nil {
		s.logger.Error("engine info failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to inspect engine")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleEngineReload handles POST /api/v1/engine/reload.
func (s *Server) handleEngineReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.searcher.Reload(r.Context())
	if err != nil {
		s.logger.Error("engine reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "engine reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSynonymStats handles GET /api/v1/synonyms/stats.
func (s *Server) handleSynonymStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dict.Statistics())
}

// handleSynonymKeywords handles GET /api/v1/synonyms/keywords.
// Optional params: domain narrows to one domain, q substring-searches
// keywords and expansions.
func (s *Server) handleSynonymKeywords(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	if q := strings.TrimSpace(params.Get("q")); q != "" {
		limit, err := intParam(params.Get("limit"), 50)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		matches := s.dict.SearchKeywords(q, limit)
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "matches": matches})
		return
	}

	if domain := strings.TrimSpace(params.Get("domain")); domain != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"domain":   domain,
			"keywords": s.dict.DomainKeywords(domain),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keywords": s.dict.Keywords()})
}

// handleSynonymQuality handles GET /api/v1/synonyms/quality.
func (s *Server) handleSynonymQuality(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dict.ValidateQuality())
}

// handleSynonymReload handles POST /api/v1/synonyms/reload.
func (s *Server) handleSynonymReload(w http.ResponseWriter, _ *http.Request) {
	report, err := s.dict.Reload()
	if err != nil {
		metrics.DictionaryReloadsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusUnprocessableEntity, "dictionary reload failed: "+err.Error())
		return
	}
	metrics.DictionaryReloadsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info, err := s.searcher.EngineInfo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	status := http.StatusOK
	verdict := "healthy"
	if !info.Health.Healthy {
		status = http.StatusServiceUnavailable
		verdict = "unhealthy"
	}
	writeJSON(w, status, map[string]any{
		"status": verdict,
		"engine": info.Active,
		"detail": info.Health,
	})
}

// filtersFromQuery parses the optional filter params. Multi-valued
// params repeat (?region=North&region=South) or use commas.
func filtersFromQuery(r *http.Request) (*engine.Filters, error) {
	q := r.URL.Query()
	f := &engine.Filters{
		DateFrom:          q.Get("date_from"),
		DateTo:            q.Get("date_to"),
		ServiceCategories: multiParam(q["category"]),
		Organizations:     multiParam(q["org"]),
		ValueRanges:       multiParam(q["value_range"]),
		Regions:           multiParam(q["region"]),
		Statuses:          multiParam(q["status"]),
		DepartmentTypes:   multiParam(q["department_type"]),
		ComplexityLevels:  multiParam(q["complexity"]),
	}

	if raw := q.Get("min_similarity"); raw != "" {
		min, err := strconv.Atoi(raw)
		if err != nil || min < 0 || min > 100 {
			return nil, fmt.Errorf("min_similarity must be an integer between 0 and 100")
		}
		f.MinSimilarity = min
	}

	if f.Empty() {
		return nil, nil
	}
	return f, nil
}

func multiParam(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, splitCSV(v)...)
	}
	return out
}

func splitCSV(s string) []string {
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

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func isUnavailable(err error) bool {
	return errors.Is(err, engine.ErrUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
