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

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverBadger = "badger"
)

// Config holds the medrag configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Collections CollectionsConfig `yaml:"collections"`
	Index       IndexConfig       `yaml:"index"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Auth        AuthConfig        `yaml:"auth"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, badger (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// Path is the badger data directory.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// CollectionsConfig names the vector collections.
type CollectionsConfig struct {
	Primary    string `yaml:"primary"`
	Literature string `yaml:"literature"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	CacheTTLHours       int    `yaml:"cache_ttl_hours"` // 0 = no expiry
	CacheEnabled        *bool  `yaml:"cache"`
}

// RetrievalConfig tunes the orchestrator.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	Oversample  int `yaml:"oversample"`
	// VectorWeight blends normalized source scores into relevance; 0 keeps keyword-only ranking.
	VectorWeight float64 `yaml:"vector_weight"`
	TimeoutSec   int     `yaml:"timeout_sec"`
}

// IngestionConfig configures the literature source and enrichment.
type IngestionConfig struct {
	Enabled            *bool    `yaml:"enabled"`
	BaseURL            string   `yaml:"base_url"`
	APIKey             string   `yaml:"api_key"`
	Email              string   `yaml:"email"`
	Tool               string   `yaml:"tool"`
	MaxResults         int      `yaml:"max_results"`
	TimeoutSec         int      `yaml:"timeout_sec"`
	Attempts           int      `yaml:"attempts"`
	RetryDelayMs       int      `yaml:"retry_delay_ms"`
	FallbackTopic      string   `yaml:"fallback_topic"`
	FallbackMaxResults int      `yaml:"fallback_max_results"`
	Workers            int      `yaml:"workers"`
	Targets            []string `yaml:"targets"`
}

// IsEnabled reports whether enrichment may call the literature source.
func (c IngestionConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// IsCacheEnabled reports whether embeddings are cached.
func (c EmbeddingConfig) IsCacheEnabled() bool { return c.CacheEnabled == nil || *c.CacheEnabled }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
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
		c.HTTP.WriteTimeoutSec = 120 // retrieve may run two enrichments
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Collections.Primary == "" {
		c.Collections.Primary = "medical_documents"
	}
	if c.Collections.Literature == "" {
		c.Collections.Literature = "pubmed_collection"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.MaxTopK <= 0 {
		c.Retrieval.MaxTopK = 100
	}
	if c.Retrieval.Oversample <= 0 {
		c.Retrieval.Oversample = 2
	}
	if c.Retrieval.TimeoutSec < 0 {
		c.Retrieval.TimeoutSec = 0
	} else if c.Retrieval.TimeoutSec == 0 {
		c.Retrieval.TimeoutSec = 30
	}
	c.applyIngestionDefaults()
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "medrag:"
	}
}

func (c *Config) applyIngestionDefaults() {
	in := &c.Ingestion
	if in.BaseURL == "" {
		in.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if in.Tool == "" {
		in.Tool = "medrag"
	}
	if in.MaxResults <= 0 {
		in.MaxResults = 10
	}
	if in.TimeoutSec <= 0 {
		in.TimeoutSec = 60
	}
	if in.Attempts <= 0 {
		in.Attempts = 3
	}
	if in.RetryDelayMs <= 0 {
		in.RetryDelayMs = 2000
	}
	if in.FallbackTopic == "" {
		in.FallbackTopic = "cancer treatment"
	}
	if in.FallbackMaxResults <= 0 {
		in.FallbackMaxResults = 10
	}
	if in.Workers <= 0 {
		in.Workers = max(1, runtime.NumCPU()/2)
	}
	if len(in.Targets) == 0 {
		in.Targets = []string{c.Collections.Literature, c.Collections.Primary}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverBadger:
		if c.Database.Path == "" && !c.Database.InMemory {
			return fmt.Errorf("database.path or database.in_memory is required for driver %q", DriverBadger)
		}
	default:
		return fmt.Errorf("database.driver must be redis, valkey or badger, got %q", c.Database.Driver)
	}
	if c.Collections.Primary == c.Collections.Literature {
		return fmt.Errorf("collections.primary and collections.literature must differ")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	if c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("retrieval.default_top_k (%d) exceeds max_top_k (%d)",
			c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK)
	}
	if c.Retrieval.VectorWeight < 0 {
		return fmt.Errorf("retrieval.vector_weight must not be negative, got %g", c.Retrieval.VectorWeight)
	}
	known := map[string]bool{c.Collections.Primary: true, c.Collections.Literature: true}
	for _, t := range c.Ingestion.Targets {
		if !known[t] {
			return fmt.Errorf("ingestion.targets: unknown collection %q", t)
		}
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
