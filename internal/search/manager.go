// Package search wires keyword expansion to a selected search backend
// and owns the fallback cascade between backends.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/procsift/procsift/internal/config"
	"github.com/procsift/procsift/internal/engine"
	"github.com/procsift/procsift/internal/engine/redisearch"
	"github.com/procsift/procsift/internal/engine/sqlite"
	"github.com/procsift/procsift/internal/expand"
	"github.com/procsift/procsift/internal/metrics"
)

// Factory constructs a backend. The context carries the selection
// deadline; factories must respect it for remote connections.
type Factory func(ctx context.Context) (engine.Engine, error)

// slot wraps the active engine for atomic.Pointer.
type slot struct {
	eng engine.Engine
}

// Manager resolves keywords through the expander and serves them from
// the active backend. The active backend is swapped atomically by
// Reload; Search never blocks on a swap.
type Manager struct {
	log       *zap.Logger
	expander  *expand.Expander
	factories map[engine.Type]Factory
	requested engine.Type

	healthTimeout time.Duration
	maxExpansions int
	defaultLimit  int
	maxLimit      int

	mu     sync.Mutex // serializes selection and reload
	active atomic.Pointer[slot]
}

// New builds a Manager with the real backend factories and runs the
// initial selection. A baseline construction failure is returned as an
// error; the caller treats it as fatal.
func New(cfg config.Config, expander *expand.Expander, log *zap.Logger) (*Manager, error) {
	factories := map[engine.Type]Factory{
		engine.TypeSQLite: func(context.Context) (engine.Engine, error) {
			return sqlite.New(sqlite.Config{
				Path:        cfg.Search.SQLite.Path,
				CacheSizeKB: cfg.Search.SQLite.CacheSizeKB,
				MmapSizeMB:  cfg.Search.SQLite.MmapSizeMB,
				TitleWeight: cfg.Search.SQLite.TitleWeight,
			}, log.Named("sqlite"))
		},
		engine.TypeRediSearch: func(ctx context.Context) (engine.Engine, error) {
			if !cfg.Search.RediSearch.Enabled {
				return nil, fmt.Errorf("redisearch: %w", engine.ErrDisabled)
			}
			return redisearch.New(ctx, redisearch.Config{
				Addrs:     cfg.Search.RediSearch.Addrs,
				Username:  cfg.Search.RediSearch.Username,
				Password:  cfg.Search.RediSearch.Password,
				Index:     cfg.Search.RediSearch.Index,
				KeyPrefix: cfg.Search.RediSearch.KeyPrefix,
			}, log.Named("redisearch"))
		},
	}
	return newManager(cfg, expander, log, factories)
}

func newManager(
	cfg config.Config, expander *expand.Expander, log *zap.Logger, factories map[engine.Type]Factory,
) (*Manager, error) {
	m := &Manager{
		log:           log,
		expander:      expander,
		factories:     factories,
		requested:     engine.Type(cfg.Search.Engine),
		healthTimeout: time.Duration(cfg.Search.RediSearch.HealthTimeoutSec) * time.Second,
		maxExpansions: cfg.Synonyms.MaxExpansions,
		defaultLimit:  cfg.Search.DefaultResults,
		maxLimit:      cfg.Search.MaxResults,
	}
	if m.healthTimeout <= 0 {
		m.healthTimeout = 5 * time.Second
	}

	eng, err := m.buildActive(context.Background())
	if err != nil {
		return nil, err
	}
	m.active.Store(&slot{eng: eng})

	log.Info("search engine selected",
		zap.String("requested", string(m.requested)),
		zap.String("active", string(eng.Type())))
	return m, nil
}

// buildActive runs the selection cascade: try the requested backend,
// fall back to the baseline on any failure. Only a baseline failure is
// an error.
func (m *Manager) buildActive(ctx context.Context) (engine.Engine, error) {
	if m.requested != engine.TypeSQLite {
		eng, err := m.construct(ctx, m.requested)
		if err == nil {
			return eng, nil
		}
		m.log.Warn("requested engine unavailable, falling back to baseline",
			zap.String("requested", string(m.requested)),
			zap.Error(err))
		metrics.EngineFallbacksTotal.WithLabelValues(string(m.requested)).Inc()
	}

	eng, err := m.construct(ctx, engine.TypeSQLite)
	if err != nil {
		return nil, fmt.Errorf("baseline engine: %w", err)
	}
	return eng, nil
}

// construct builds one backend and verifies it is healthy, under the
// selection timeout. An unhealthy backend is closed and rejected.
func (m *Manager) construct(ctx context.Context, t engine.Type) (engine.Engine, error) {
	factory, ok := m.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown engine type %q", engine.ErrUnavailable, t)
	}

	ctx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	eng, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	status, err := eng.HealthCheck(ctx)
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("health probe: %w", err)
	}
	if !status.Healthy {
		eng.Close()
		return nil, fmt.Errorf("%w: %s", engine.ErrUnhealthy, status.Message)
	}
	return eng, nil
}

// Search expands the keyword and executes it on the active backend.
// A backend query failure becomes a degraded zero-match response, not
// an error; only invalid input errors reach the caller.
func (m *Manager) Search(
	ctx context.Context, keyword string, filters *engine.Filters, limit, offset int,
) (*engine.Response, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}
	if limit <= 0 {
		limit = m.defaultLimit
	}
	if limit > m.maxLimit {
		limit = m.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	exp := m.expander.Expand(keyword, m.maxExpansions)
	if exp.Source == "literal" {
		metrics.ExpansionMissesTotal.Inc()
	}

	eng := m.active.Load().eng
	start := time.Now()
	resp, err := eng.Search(ctx, &engine.Request{
		Keyword: exp.Keyword,
		Phrases: exp.Phrases,
		Filters: filters,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		m.log.Error("engine query failed, serving degraded response",
			zap.String("engine", string(eng.Type())),
			zap.String("keyword", keyword),
			zap.Error(err))
		resp = engine.DegradedResponse(eng.Type(), exp.Keyword, exp.Phrases, err)
		// The engine never timed the failed call.
		resp.ExecutionTime = time.Since(start)
	}

	resp.Domain = exp.Domain
	resp.Confidence = exp.Confidence

	metrics.SearchesTotal.WithLabelValues(string(resp.EngineUsed), string(resp.Status)).Inc()
	metrics.SearchDuration.WithLabelValues(string(resp.EngineUsed)).Observe(resp.ExecutionTime.Seconds())
	return resp, nil
}

// Expand exposes dictionary expansion without running a search.
func (m *Manager) Expand(keyword string) expand.Result {
	return m.expander.Expand(keyword, m.maxExpansions)
}

// FilterOptions delegates to the active backend.
func (m *Manager) FilterOptions(ctx context.Context) (*engine.FilterOptions, error) {
	return m.active.Load().eng.FilterOptions(ctx)
}

// Facets runs faceted aggregation when the active backend supports it.
func (m *Manager) Facets(ctx context.Context, keyword string, fields []string) (map[string][]engine.FacetValue, error) {
	eng := m.active.Load().eng
	agg, ok := eng.(engine.Aggregator)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support facets", engine.ErrUnavailable, eng.Type())
	}

	exp := m.expander.Expand(strings.TrimSpace(keyword), m.maxExpansions)
	return agg.Facets(ctx, &engine.Request{Keyword: exp.Keyword, Phrases: exp.Phrases}, fields)
}

// EngineType reports the active backend type.
func (m *Manager) EngineType() engine.Type {
	return m.active.Load().eng.Type()
}

// Info is the engine introspection report.
type Info struct {
	Requested      engine.Type         `json:"requested"`
	Active         engine.Type         `json:"active"`
	Capabilities   engine.Capabilities `json:"capabilities"`
	Health         engine.HealthStatus `json:"health"`
	Statistics     engine.Statistics   `json:"statistics"`
	Recommendation Recommendation      `json:"recommendation"`
}

// EngineInfo gathers health, statistics, and a scaling recommendation
// for the active backend.
func (m *Manager) EngineInfo(ctx context.Context) (Info, error) {
	eng := m.active.Load().eng

	health, err := eng.HealthCheck(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("health check: %w", err)
	}
	stats, err := eng.Statistics(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("statistics: %w", err)
	}

	return Info{
		Requested:      m.requested,
		Active:         eng.Type(),
		Capabilities:   eng.Capabilities(),
		Health:         health,
		Statistics:     stats,
		Recommendation: Recommend(eng.Type(), stats),
	}, nil
}

// ReloadResult reports an engine reload outcome.
type ReloadResult struct {
	Previous engine.Type `json:"previous"`
	Active   engine.Type `json:"active"`
	Changed  bool        `json:"changed"`
}

// Reload re-runs the selection cascade and swaps the active backend.
// On failure the current backend keeps serving.
func (m *Manager) Reload(ctx context.Context) (ReloadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.active.Load().eng
	result := ReloadResult{Previous: old.Type()}

	eng, err := m.buildActive(ctx)
	if err != nil {
		return result, err
	}

	m.active.Store(&slot{eng: eng})
	result.Active = eng.Type()
	result.Changed = result.Active != result.Previous

	if err := old.Close(); err != nil {
		m.log.Warn("closing replaced engine", zap.Error(err))
	}
	m.log.Info("engine reloaded",
		zap.String("previous", string(result.Previous)),
		zap.String("active", string(result.Active)))
	return result, nil
}

// Close shuts down the active backend.
func (m *Manager) Close() error {
	return m.active.Load().eng.Close()
}
