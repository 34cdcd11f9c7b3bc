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

// Config holds the PHC assistant configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	LLM        LLMConfig        `yaml:"llm"`
	DataSource DataSourceConfig `yaml:"data_source"`
	History    HistoryConfig    `yaml:"history"`
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

// CacheConfig holds in-memory cache and deduplication settings.
type CacheConfig struct {
	DefaultTTLSec       int            `yaml:"default_ttl_sec"`
	MaxSize             int            `yaml:"max_size"`
	EvictionPolicy      string         `yaml:"eviction_policy"` // evict (default) | reject
	DedupTTLSec         int            `yaml:"dedup_ttl_sec"`
	SimilarityThreshold float64        `yaml:"similarity_threshold"`
	TriageResultTTLSec  int            `yaml:"triage_result_ttl_sec"`
	ChatResultTTLSec    int            `yaml:"chat_result_ttl_sec"`
	InventoryTTLSec     int            `yaml:"inventory_ttl_sec"`
	DashboardTTLSec     int            `yaml:"dashboard_ttl_sec"`
	Snapshot            SnapshotConfig `yaml:"snapshot"`
}

// SnapshotConfig holds cache snapshot settings.
type SnapshotConfig struct {
	Backend        string `yaml:"backend"` // none (default) | file | redis
	Name           string `yaml:"name"`
	Dir            string `yaml:"dir"`
	SaveOnShutdown bool   `yaml:"save_on_shutdown"`
	LoadOnStart    bool   `yaml:"load_on_start"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// LLMConfig holds chat-completion provider settings.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // groq (default) | openai | none
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// Enabled reports whether a provider with credentials is configured.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "none" && c.APIKey != ""
}

// DataSourceConfig holds facility data source settings.
type DataSourceConfig struct {
	Priority  []string        `yaml:"priority"` // tried in order: warehouse, csv
	CSV       CSVConfig       `yaml:"csv"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// CSVConfig points at a directory of exported CSV datasets.
type CSVConfig struct {
	Dir string `yaml:"dir"`
}

// WarehouseConfig holds Redshift/Postgres settings.
type WarehouseConfig struct {
	DSN      string `yaml:"dsn"`
	Schema   string `yaml:"schema"`
	MaxConns int32  `yaml:"max_conns"`
}

// HistoryConfig holds chat history storage settings.
type HistoryConfig struct {
	SQLitePath   string `yaml:"sqlite_path"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references.
func Parse(data []byte) (Config, error) {
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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Cache.DefaultTTLSec <= 0 {
		c.Cache.DefaultTTLSec = 3600
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = 1000
	}
	if c.Cache.EvictionPolicy == "" {
		c.Cache.EvictionPolicy = "evict"
	}
	if c.Cache.DedupTTLSec <= 0 {
		c.Cache.DedupTTLSec = 86400
	}
	if c.Cache.SimilarityThreshold <= 0 {
		c.Cache.SimilarityThreshold = 0.9
	}
	if c.Cache.TriageResultTTLSec <= 0 {
		c.Cache.TriageResultTTLSec = 3600
	}
	if c.Cache.ChatResultTTLSec <= 0 {
		c.Cache.ChatResultTTLSec = 1800
	}
	if c.Cache.InventoryTTLSec <= 0 {
		c.Cache.InventoryTTLSec = 300
	}
	if c.Cache.DashboardTTLSec <= 0 {
		c.Cache.DashboardTTLSec = 300
	}
	if c.Cache.Snapshot.Backend == "" {
		c.Cache.Snapshot.Backend = "none"
	}
	if c.Cache.Snapshot.Name == "" {
		c.Cache.Snapshot.Name = "cache_snapshot.json"
	}

	c.Redis.Addrs = nonEmpty(c.Redis.Addrs)
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "phc:"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "groq"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "groq" {
		c.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama-3.3-70b-versatile"
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 30
	}

	if len(c.DataSource.Priority) == 0 {
		c.DataSource.Priority = []string{"warehouse", "csv"}
	}
	if c.DataSource.Warehouse.Schema == "" {
		c.DataSource.Warehouse.Schema = "public"
	}
	if c.DataSource.Warehouse.MaxConns <= 0 {
		c.DataSource.Warehouse.MaxConns = 4
	}

	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "phc_history.db"
	}
	if c.History.HistoryLimit <= 0 {
		c.History.HistoryLimit = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Cache.EvictionPolicy {
	case "evict", "reject":
	default:
		return fmt.Errorf("cache.eviction_policy must be \"evict\" or \"reject\", got %q", c.Cache.EvictionPolicy)
	}
	if c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in (0, 1], got %v", c.Cache.SimilarityThreshold)
	}

	switch c.Cache.Snapshot.Backend {
	case "none":
	case "file":
		if c.Cache.Snapshot.Dir == "" {
			return fmt.Errorf("cache.snapshot.dir is required for the file backend")
		}
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for the redis snapshot backend")
		}
	default:
		return fmt.Errorf("cache.snapshot.backend must be \"none\", \"file\" or \"redis\", got %q", c.Cache.Snapshot.Backend)
	}

	switch c.LLM.Provider {
	case "groq", "openai", "none":
	default:
		return fmt.Errorf("llm.provider must be \"groq\", \"openai\" or \"none\", got %q", c.LLM.Provider)
	}

	configured := 0
	for _, name := range c.DataSource.Priority {
		switch name {
		case "warehouse":
			if c.DataSource.Warehouse.DSN != "" {
				configured++
			}
		case "csv":
			if c.DataSource.CSV.Dir != "" {
				configured++
			}
		default:
			return fmt.Errorf("data_source.priority: unknown source %q", name)
		}
	}
	if configured == 0 {
		return fmt.Errorf("data_source: no source in priority %v is configured", c.DataSource.Priority)
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

// nonEmpty drops blank entries left by unset ${VAR:-} references.
func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
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
