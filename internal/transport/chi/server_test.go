package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/procsift/procsift/internal/engine"
	"github.com/procsift/procsift/internal/expand"
	"github.com/procsift/procsift/internal/search"
)

func TestSearch_MissingQuery(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/search")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSearch_HappyPath(t *testing.T) {
	searcher := &stubSearcher{
		searchFn: func(_ context.Context, keyword string, _ *engine.Filters, limit, offset int) (*engine.Response, error) {
			return &engine.Response{
				Query:           keyword,
				ExpandedPhrases: []string{"local area network"},
				TotalMatches:    1,
				Hits: []engine.Hit{{
					ID: "T-001", Title: "LAN cabling", SimilarityPercent: 100,
				}},
				EngineUsed: engine.TypeSQLite,
				Status:     engine.StatusOK,
				Domain:     "networking",
				Confidence: 0.95,
			}, nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/search?q=lan")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp engine.Response
	decodeBody(t, rec, &resp)
	if resp.Query != "lan" || resp.TotalMatches != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Domain != "networking" || resp.Status != engine.StatusOK {
		t.Errorf("unexpected metadata: %+v", resp)
	}
}

func TestSearch_ParsesFilters(t *testing.T) {
	var captured *engine.Filters
	searcher := &stubSearcher{
		searchFn: func(_ context.Context, keyword string, f *engine.Filters, _, _ int) (*engine.Response, error) {
			captured = f
			return engine.EmptyResponse(engine.TypeSQLite, keyword, nil), nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet,
		"/api/v1/search?q=lan&region=North&region=South&status=Published+AOC&date_from=2026-01-01&min_similarity=40")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured == nil {
		t.Fatal("expected filters to be passed")
	}
	if !reflect.DeepEqual(captured.Regions, []string{"North", "South"}) {
		t.Errorf("unexpected regions: %v", captured.Regions)
	}
	if !reflect.DeepEqual(captured.Statuses, []string{"Published AOC"}) {
		t.Errorf("unexpected statuses: %v", captured.Statuses)
	}
	if captured.DateFrom != "2026-01-01" {
		t.Errorf("unexpected date_from: %q", captured.DateFrom)
	}
	if captured.MinSimilarity != 40 {
		t.Errorf("unexpected min_similarity: %d", captured.MinSimilarity)
	}
}

func TestSearch_CommaSeparatedFilterValues(t *testing.T) {
	var captured *engine.Filters
	searcher := &stubSearcher{
		searchFn: func(_ context.Context, keyword string, f *engine.Filters, _, _ int) (*engine.Response, error) {
			captured = f
			return engine.EmptyResponse(engine.TypeSQLite, keyword, nil), nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	doRequest(t, h, http.MethodGet, "/api/v1/search?q=lan&region=North,South")

	if captured == nil || !reflect.DeepEqual(captured.Regions, []string{"North", "South"}) {
		t.Errorf("unexpected filters: %+v", captured)
	}
}

func TestSearch_NoFiltersPassesNil(t *testing.T) {
	var called bool
	searcher := &stubSearcher{
		searchFn: func(_ context.Context, keyword string, f *engine.Filters, _, _ int) (*engine.Response, error) {
			called = true
			if f != nil {
				t.Errorf("expected nil filters, got %+v", f)
			}
			return engine.EmptyResponse(engine.TypeSQLite, keyword, nil), nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	doRequest(t, h, http.MethodGet, "/api/v1/search?q=lan")
	if !called {
		t.Fatal("search not invoked")
	}
}

func TestSearch_InvalidParams(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	for _, target := range []string{
		"/api/v1/search?q=lan&limit=abc",
		"/api/v1/search?q=lan&offset=abc",
		"/api/v1/search?q=lan&min_similarity=200",
		"/api/v1/search?q=lan&min_similarity=-1",
	} {
		rec := doRequest(t, h, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestFacets_NotSupported(t *testing.T) {
	searcher := &stubSearcher{
		facetsFn: func(context.Context, string, []string) (map[string][]engine.FacetValue, error) {
			return nil, fmt.Errorf("%w: sqlite does not support facets", engine.ErrUnavailable)
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/facets?q=lan")

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
}

func TestFacets_HappyPath(t *testing.T) {
	searcher := &stubSearcher{
		facetsFn: func(_ context.Context, _ string, fields []string) (map[string][]engine.FacetValue, error) {
			if !reflect.DeepEqual(fields, []string{"region"}) {
				t.Errorf("unexpected fields: %v", fields)
			}
			return map[string][]engine.FacetValue{"region": {{Value: "North", Count: 2}}}, nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/facets?q=lan&fields=region")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExpand(t *testing.T) {
	searcher := &stubSearcher{
		expandFn: func(keyword string) expand.Result {
			return expand.Result{
				Keyword:    keyword,
				Phrases:    []string{"local area network", "vlan"},
				Domain:     "networking",
				Confidence: 0.95,
				Source:     "dictionary",
			}
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/expand?q=lan")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res expand.Result
	decodeBody(t, rec, &res)
	if res.Domain != "networking" || len(res.Phrases) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEngineReload(t *testing.T) {
	searcher := &stubSearcher{
		reloadFn: func(context.Context) (search.ReloadResult, error) {
			return search.ReloadResult{
				Previous: engine.TypeSQLite,
				Active:   engine.TypeRediSearch,
				Changed:  true,
			}, nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/engine/reload")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result search.ReloadResult
	decodeBody(t, rec, &result)
	if !result.Changed || result.Active != engine.TypeRediSearch {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestEngineReload_Failure(t *testing.T) {
	searcher := &stubSearcher{
		reloadFn: func(context.Context) (search.ReloadResult, error) {
			return search.ReloadResult{}, errors.New("baseline engine: disk full")
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/engine/reload")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestSynonymReload_Failure(t *testing.T) {
	dict := &stubDictionary{
		reloadFn: func() (expand.ReloadReport, error) {
			return expand.ReloadReport{}, errors.New("parse dictionary: yaml error")
		},
	}
	h := newTestRouter(t, nil, dict)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/synonyms/reload")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestSynonymKeywords_Modes(t *testing.T) {
	dict := &stubDictionary{
		keywordsFn: func() []string { return []string{"api", "lan"} },
		domainFn: func(domain string) []string {
			if domain == "networking" {
				return []string{"lan"}
			}
			return nil
		},
		searchFn: func(q string, _ int) []expand.KeywordMatch {
			return []expand.KeywordMatch{{Keyword: "lan", Domain: "networking", MatchedOn: "expansion"}}
		},
	}
	h := newTestRouter(t, nil, dict)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/synonyms/keywords")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/synonyms/keywords?domain=networking")
	var byDomain struct {
		Keywords []string `json:"keywords"`
	}
	decodeBody(t, rec, &byDomain)
	if !reflect.DeepEqual(byDomain.Keywords, []string{"lan"}) {
		t.Errorf("unexpected domain keywords: %v", byDomain.Keywords)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/synonyms/keywords?q=network")
	var bySearch struct {
		Matches []expand.KeywordMatch `json:"matches"`
	}
	decodeBody(t, rec, &bySearch)
	if len(bySearch.Matches) != 1 || bySearch.Matches[0].Keyword != "lan" {
		t.Errorf("unexpected matches: %v", bySearch.Matches)
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	searcher := &stubSearcher{
		infoFn: func(context.Context) (search.Info, error) {
			return search.Info{
				Active: engine.TypeSQLite,
				Health: engine.HealthStatus{Healthy: false, Status: "red", Message: "index corrupt"},
			}, nil
		},
	}
	h := newTestRouter(t, searcher, nil)

	rec := doRequest(t, h, http.MethodGet, "/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
