package config

import "testing"

func TestValidate_InvalidEngine(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 8080},
		Search: SearchConfig{Engine: "opensearch", MaxResults: 100, DefaultResults: 25},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}

	expected := `search.engine must be "sqlite" or "redisearch", got "opensearch"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidEngines(t *testing.T) {
	for _, engine := range []string{"sqlite", "redisearch"} {
		t.Run("engine="+engine, func(t *testing.T) {
			cfg := Config{
				HTTP:   HTTPConfig{Port: 8080},
				Search: SearchConfig{Engine: engine, MaxResults: 100, DefaultResults: 25},
			}

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid engine %q: %v", engine, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 0},
		Search: SearchConfig{Engine: "sqlite", MaxResults: 100, DefaultResults: 25},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_RediSearchEnabledWithoutAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Search: SearchConfig{
			Engine:         "redisearch",
			MaxResults:     100,
			DefaultResults: 25,
			RediSearch:     RediSearchConfig{Enabled: true},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled redisearch without addrs")
	}
}

func TestValidate_MaxBelowDefault(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 8080},
		Search: SearchConfig{Engine: "sqlite", MaxResults: 10, DefaultResults: 25},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_results < default_results")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Search.Engine != "sqlite" {
		t.Errorf("expected Engine='sqlite', got %q", cfg.Search.Engine)
	}
	if cfg.Search.MaxResults != 100 {
		t.Errorf("expected MaxResults=100, got %d", cfg.Search.MaxResults)
	}
	if cfg.Search.DefaultResults != 25 {
		t.Errorf("expected DefaultResults=25, got %d", cfg.Search.DefaultResults)
	}
	if cfg.Search.SQLite.Path != "data/tenders.db" {
		t.Errorf("expected SQLite.Path='data/tenders.db', got %q", cfg.Search.SQLite.Path)
	}
	if cfg.Search.SQLite.TitleWeight != 10 {
		t.Errorf("expected TitleWeight=10, got %d", cfg.Search.SQLite.TitleWeight)
	}
	if cfg.Search.RediSearch.Index != "tenders:idx" {
		t.Errorf("expected RediSearch.Index='tenders:idx', got %q", cfg.Search.RediSearch.Index)
	}
	if cfg.Search.RediSearch.HealthTimeoutSec != 5 {
		t.Errorf("expected HealthTimeoutSec=5, got %d", cfg.Search.RediSearch.HealthTimeoutSec)
	}
	if cfg.Synonyms.File != "config/synonyms.yaml" {
		t.Errorf("expected Synonyms.File='config/synonyms.yaml', got %q", cfg.Synonyms.File)
	}
	if cfg.Synonyms.MaxExpansions != 6 {
		t.Errorf("expected MaxExpansions=6, got %d", cfg.Synonyms.MaxExpansions)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Search: SearchConfig{
			Engine:         "redisearch",
			MaxResults:     200,
			DefaultResults: 50,
			SQLite:         SQLiteConfig{Path: "custom/tenders.db", TitleWeight: 4},
			RediSearch:     RediSearchConfig{Index: "custom:idx", KeyPrefix: "custom:"},
		},
		Synonyms: SynonymsConfig{File: "custom/synonyms.yaml", MaxExpansions: 3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.Engine != "redisearch" {
		t.Errorf("expected Engine='redisearch', got %q", cfg.Search.Engine)
	}
	if cfg.Search.SQLite.Path != "custom/tenders.db" {
		t.Errorf("expected SQLite.Path='custom/tenders.db', got %q", cfg.Search.SQLite.Path)
	}
	if cfg.Search.SQLite.TitleWeight != 4 {
		t.Errorf("expected TitleWeight=4, got %d", cfg.Search.SQLite.TitleWeight)
	}
	if cfg.Synonyms.MaxExpansions != 3 {
		t.Errorf("expected MaxExpansions=3, got %d", cfg.Synonyms.MaxExpansions)
	}
}
