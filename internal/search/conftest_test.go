package search

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/procsift/procsift/internal/config"
	"github.com/procsift/procsift/internal/engine"
	"github.com/procsift/procsift/internal/expand"
)

// mockEngine implements engine.Engine with overridable function fields.
type mockEngine struct {
	typ        engine.Type
	searchFn   func(context.Context, *engine.Request) (*engine.Response, error)
	healthFn   func(context.Context) (engine.HealthStatus, error)
	statsFn    func(context.Context) (engine.Statistics, error)
	filtersFn  func(context.Context) (*engine.FilterOptions, error)
	closeCount atomic.Int32
}

func (m *mockEngine) Type() engine.Type { return m.typ }

func (m *mockEngine) Capabilities() engine.Capabilities {
	return engine.CapabilitiesFor(m.typ)
}

func (m *mockEngine) HealthCheck(ctx context.Context) (engine.HealthStatus, error) {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return engine.HealthStatus{Healthy: true, Status: "green"}, nil
}

func (m *mockEngine) Statistics(ctx context.Context) (engine.Statistics, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return engine.Statistics{}, nil
}

func (m *mockEngine) Search(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return engine.EmptyResponse(m.typ, req.Keyword, req.Phrases), nil
}

func (m *mockEngine) FilterOptions(ctx context.Context) (*engine.FilterOptions, error) {
	if m.filtersFn != nil {
		return m.filtersFn(ctx)
	}
	return &engine.FilterOptions{}, nil
}

func (m *mockEngine) Close() error {
	m.closeCount.Add(1)
	return nil
}

// mockAggregator adds facet support on top of mockEngine.
type mockAggregator struct {
	mockEngine
	facetsFn func(context.Context, *engine.Request, []string) (map[string][]engine.FacetValue, error)
}

func (m *mockAggregator) Facets(ctx context.Context, req *engine.Request, fields []string) (map[string][]engine.FacetValue, error) {
	return m.facetsFn(ctx, req, fields)
}

func staticFactory(eng engine.Engine) Factory {
	return func(context.Context) (engine.Engine, error) {
		return eng, nil
	}
}

func failingFactory(err error) Factory {
	return func(context.Context) (engine.Engine, error) {
		return nil, err
	}
}

func testConfig(requested string) config.Config {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	cfg.HTTP.Port = 8080
	cfg.Search.Engine = requested
	cfg.Search.RediSearch.HealthTimeoutSec = 1
	return cfg
}

// testExpander points at a missing file so the builtin dictionary
// (which resolves "lan") is used.
func testExpander(t *testing.T) *expand.Expander {
	t.Helper()
	return expand.New(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
}

func newTestManager(t *testing.T, requested string, factories map[engine.Type]Factory) *Manager {
	t.Helper()
	m, err := newManager(testConfig(requested), testExpander(t), zap.NewNop(), factories)
	if err != nil {
		t.Fatalf("construct manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}
