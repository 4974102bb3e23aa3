// Package redisearch implements the alternate search engine on a
// RediSearch-capable Redis/Valkey server via rueidis.
package redisearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/procsift/procsift/internal/engine"
)

// Config holds connection and index parameters.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	Index     string
	KeyPrefix string
}

// Engine is the RediSearch-backed search engine.
type Engine struct {
	client rueidis.Client
	index  string
	prefix string
	log    *zap.Logger

	queryCount atomic.Int64
	queryNanos atomic.Int64
}

// New connects to the server and ensures the index exists.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Engine, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redisearch: %w: no addrs", engine.ErrMisconfigured)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	e := &Engine{
		client: client,
		index:  cfg.Index,
		prefix: cfg.KeyPrefix,
		log:    log,
	}
	if err := e.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}

	log.Info("redisearch engine ready",
		zap.Strings("addrs", cfg.Addrs),
		zap.String("index", cfg.Index))
	return e, nil
}

func (e *Engine) Type() engine.Type { return engine.TypeRediSearch }

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.CapabilitiesFor(engine.TypeRediSearch)
}

func (e *Engine) Close() error {
	e.client.Close()
	return nil
}

// ensureIndex creates the tender index when FT.INFO says it is absent.
func (e *Engine) ensureIndex(ctx context.Context) error {
	probe := e.client.B().Arbitrary("FT.INFO").Args(e.index).Build()
	err := e.client.Do(ctx, probe).Error()
	if err == nil {
		return nil
	}
	if !isRedisErr(err, "unknown index name") {
		return &engine.Error{Engine: engine.TypeRediSearch, Op: "index info", Err: err}
	}

	args := []string{
		e.index, "ON", "HASH", "PREFIX", "1", e.prefix, "SCHEMA",
		"title", "TEXT", "WEIGHT", "10",
		"keywords", "TEXT",
		"org", "TAG",
		"status", "TAG",
		"service_category", "TAG",
		"value_range", "TAG",
		"region", "TAG",
		"department_type", "TAG",
		"complexity", "TAG",
		"aoc_day", "NUMERIC", "SORTABLE",
	}
	create := e.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := e.client.Do(ctx, create).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &engine.Error{Engine: engine.TypeRediSearch, Op: "create index", Err: err}
	}
	e.log.Info("created search index", zap.String("index", e.index))
	return nil
}

// HealthCheck pings the server and verifies the index answers FT.INFO.
func (e *Engine) HealthCheck(ctx context.Context) (engine.HealthStatus, error) {
	ping := e.client.B().Ping().Build()
	if err := e.client.Do(ctx, ping).Error(); err != nil {
		return engine.HealthStatus{
			Healthy: false,
			Status:  "red",
			Message: fmt.Sprintf("server unreachable: %v", err),
		}, nil
	}

	info, err := e.indexInfo(ctx)
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return engine.HealthStatus{
				Healthy: false,
				Status:  "red",
				Message: fmt.Sprintf("index %s missing", e.index),
			}, nil
		}
		return engine.HealthStatus{
			Healthy: false,
			Status:  "yellow",
			Message: fmt.Sprintf("index info failed: %v", err),
		}, nil
	}

	return engine.HealthStatus{
		Healthy: true,
		Status:  "green",
		Details: map[string]any{
			"index":    e.index,
			"num_docs": info["num_docs"],
		},
	}, nil
}

// Statistics reads document and size figures from FT.INFO.
func (e *Engine) Statistics(ctx context.Context) (engine.Statistics, error) {
	info, err := e.indexInfo(ctx)
	if err != nil {
		return engine.Statistics{}, &engine.Error{Engine: engine.TypeRediSearch, Op: "statistics", Err: err}
	}

	stats := engine.Statistics{LastUpdated: time.Now()}
	if n, err := strconv.Atoi(info["num_docs"]); err == nil {
		stats.RecordCount = n
	}
	if mb, err := strconv.ParseFloat(info["inverted_sz_mb"], 64); err == nil {
		stats.IndexSizeBytes = int64(mb * 1024 * 1024)
	}
	if n := e.queryCount.Load(); n > 0 {
		stats.AvgQueryLatency = time.Duration(e.queryNanos.Load() / n)
	}
	return stats, nil
}

// indexInfo flattens the FT.INFO key/value reply into a string map.
func (e *Engine) indexInfo(ctx context.Context) (map[string]string, error) {
	cmd := e.client.B().Arbitrary("FT.INFO").Args(e.index).Build()
	raw, err := e.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, err
	}

	info := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		info[key] = msgString(raw[i+1])
	}
	return info, nil
}

// Upsert writes records as hashes under the index prefix, pipelined in
// one DoMulti round-trip.
func (e *Engine) Upsert(ctx context.Context, records []engine.Record) error {
	if len(records) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(records))
	for i, r := range records {
		cmd := e.client.B().Hset().Key(e.prefix + r.ID).FieldValue().
			FieldValue("tender_id", r.ID).
			FieldValue("title", r.Title).
			FieldValue("org", r.Organization).
			FieldValue("status", r.Status).
			FieldValue("aoc_date", r.Date).
			FieldValue("aoc_day", dateToDay(r.Date)).
			FieldValue("url", r.URL).
			FieldValue("service_category", r.ServiceCategory).
			FieldValue("value_range", r.ValueRange).
			FieldValue("region", r.Region).
			FieldValue("department_type", r.DepartmentType).
			FieldValue("complexity", r.Complexity).
			FieldValue("keywords", strings.Join(r.Keywords, ", "))
		cmds[i] = cmd.Build()
	}

	results := e.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &engine.Error{
				Engine: engine.TypeRediSearch,
				Op:     "upsert",
				Err:    fmt.Errorf("key %s: %w", e.prefix+records[i].ID, err),
			}
		}
	}
	return nil
}

// msgString renders a RESP reply element as a string regardless of its
// wire type; FT.INFO mixes strings, integers, and doubles.
func msgString(m rueidis.RedisMessage) string {
	if s, err := m.ToString(); err == nil {
		return s
	}
	if n, err := m.AsInt64(); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if f, err := m.AsFloat64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
