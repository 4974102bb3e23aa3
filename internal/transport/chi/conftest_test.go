package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/procsift/procsift/internal/engine"
	"github.com/procsift/procsift/internal/expand"
	"github.com/procsift/procsift/internal/search"
)

// stubSearcher implements Searcher with overridable function fields.
type stubSearcher struct {
	searchFn  func(context.Context, string, *engine.Filters, int, int) (*engine.Response, error)
	filtersFn func(context.Context) (*engine.FilterOptions, error)
	facetsFn  func(context.Context, string, []string) (map[string][]engine.FacetValue, error)
	expandFn  func(string) expand.Result
	infoFn    func(context.Context) (search.Info, error)
	reloadFn  func(context.Context) (search.ReloadResult, error)
}

func (s *stubSearcher) Search(ctx context.Context, keyword string, filters *engine.Filters, limit, offset int) (*engine.Response, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, keyword, filters, limit, offset)
	}
	return engine.EmptyResponse(engine.TypeSQLite, keyword, nil), nil
}

func (s *stubSearcher) FilterOptions(ctx context.Context) (*engine.FilterOptions, error) {
	if s.filtersFn != nil {
		return s.filtersFn(ctx)
	}
	return &engine.FilterOptions{}, nil
}

func (s *stubSearcher) Facets(ctx context.Context, keyword string, fields []string) (map[string][]engine.FacetValue, error) {
	if s.facetsFn != nil {
		return s.facetsFn(ctx, keyword, fields)
	}
	return map[string][]engine.FacetValue{}, nil
}

func (s *stubSearcher) Expand(keyword string) expand.Result {
	if s.expandFn != nil {
		return s.expandFn(keyword)
	}
	return expand.Result{Keyword: keyword, Phrases: []string{keyword}, Domain: "general", Confidence: 0.3, Source: "literal"}
}

func (s *stubSearcher) EngineInfo(ctx context.Context) (search.Info, error) {
	if s.infoFn != nil {
		return s.infoFn(ctx)
	}
	return search.Info{
		Requested: engine.TypeSQLite,
		Active:    engine.TypeSQLite,
		Health:    engine.HealthStatus{Healthy: true, Status: "green"},
	}, nil
}

func (s *stubSearcher) Reload(ctx context.Context) (search.ReloadResult, error) {
	if s.reloadFn != nil {
		return s.reloadFn(ctx)
	}
	return search.ReloadResult{Previous: engine.TypeSQLite, Active: engine.TypeSQLite}, nil
}

func (s *stubSearcher) EngineType() engine.Type { return engine.TypeSQLite }

// stubDictionary implements Dictionary with overridable function fields.
type stubDictionary struct {
	statsFn    func() expand.Statistics
	keywordsFn func() []string
	domainFn   func(string) []string
	searchFn   func(string, int) []expand.KeywordMatch
	qualityFn  func() expand.QualityReport
	reloadFn   func() (expand.ReloadReport, error)
}

func (d *stubDictionary) Statistics() expand.Statistics {
	if d.statsFn != nil {
		return d.statsFn()
	}
	return expand.Statistics{}
}

func (d *stubDictionary) Keywords() []string {
	if d.keywordsFn != nil {
		return d.keywordsFn()
	}
	return nil
}

func (d *stubDictionary) DomainKeywords(domain string) []string {
	if d.domainFn != nil {
		return d.domainFn(domain)
	}
	return nil
}

func (d *stubDictionary) SearchKeywords(query string, limit int) []expand.KeywordMatch {
	if d.searchFn != nil {
		return d.searchFn(query, limit)
	}
	return nil
}

func (d *stubDictionary) ValidateQuality() expand.QualityReport {
	if d.qualityFn != nil {
		return d.qualityFn()
	}
	return expand.QualityReport{Score: 100}
}

func (d *stubDictionary) Reload() (expand.ReloadReport, error) {
	if d.reloadFn != nil {
		return d.reloadFn()
	}
	return expand.ReloadReport{}, nil
}

func newTestRouter(t *testing.T, searcher Searcher, dict Dictionary) http.Handler {
	t.Helper()
	if searcher == nil {
		searcher = &stubSearcher{}
	}
	if dict == nil {
		dict = &stubDictionary{}
	}
	r := chi.NewRouter()
	NewServer(searcher, dict, zap.NewNop()).Register(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
