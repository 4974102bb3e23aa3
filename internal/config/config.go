package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the procsift API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Search   SearchConfig   `yaml:"search"`
	Synonyms SynonymsConfig `yaml:"synonyms"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchConfig selects and configures the search backends.
type SearchConfig struct {
	// Engine is the requested backend: "sqlite" or "redisearch".
	// sqlite is the baseline and always available.
	Engine         string           `yaml:"engine"`
	MaxResults     int              `yaml:"max_results"`
	DefaultResults int              `yaml:"default_results"`
	SQLite         SQLiteConfig     `yaml:"sqlite"`
	RediSearch     RediSearchConfig `yaml:"redisearch"`
}

// SQLiteConfig holds settings for the baseline FTS5 engine.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	CacheSizeKB int    `yaml:"cache_size_kb"`
	MmapSizeMB  int    `yaml:"mmap_size_mb"`
	TitleWeight int    `yaml:"title_weight"` // bm25 column weight for title
}

// RediSearchConfig holds settings for the optional RediSearch engine.
type RediSearchConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	Index            string   `yaml:"index"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HealthTimeoutSec int      `yaml:"health_timeout_sec"`
}

// SynonymsConfig holds settings for the keyword expansion dictionary.
type SynonymsConfig struct {
	File          string `yaml:"file"`
	Watch         bool   `yaml:"watch"`
	MaxExpansions int    `yaml:"max_expansions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Search.Engine == "" {
		c.Search.Engine = "sqlite"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 100
	}
	if c.Search.DefaultResults <= 0 {
		c.Search.DefaultResults = 25
	}
	if c.Search.SQLite.Path == "" {
		c.Search.SQLite.Path = "data/tenders.db"
	}
	if c.Search.SQLite.CacheSizeKB <= 0 {
		c.Search.SQLite.CacheSizeKB = 64000
	}
	if c.Search.SQLite.MmapSizeMB <= 0 {
		c.Search.SQLite.MmapSizeMB = 256
	}
	if c.Search.SQLite.TitleWeight <= 0 {
		c.Search.SQLite.TitleWeight = 10
	}
	if c.Search.RediSearch.Index == "" {
		c.Search.RediSearch.Index = "tenders:idx"
	}
	if c.Search.RediSearch.KeyPrefix == "" {
		c.Search.RediSearch.KeyPrefix = "tenders:"
	}
	if c.Search.RediSearch.HealthTimeoutSec <= 0 {
		c.Search.RediSearch.HealthTimeoutSec = 5
	}
	if c.Synonyms.File == "" {
		c.Synonyms.File = "config/synonyms.yaml"
	}
	if c.Synonyms.MaxExpansions <= 0 {
		c.Synonyms.MaxExpansions = 6
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Search.Engine {
	case "sqlite", "redisearch":
		// ok
	default:
		return fmt.Errorf("search.engine must be \"sqlite\" or \"redisearch\", got %q", c.Search.Engine)
	}
	if c.Search.MaxResults < c.Search.DefaultResults {
		return fmt.Errorf(
			"search.max_results (%d) must be >= search.default_results (%d)",
			c.Search.MaxResults, c.Search.DefaultResults,
		)
	}
	if c.Search.Engine == "redisearch" && c.Search.RediSearch.Enabled && len(c.Search.RediSearch.Addrs) == 0 {
		return fmt.Errorf("search.redisearch.addrs is required when redisearch is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
