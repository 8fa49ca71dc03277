package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/simdex/internal/domain/engine"
	"github.com/kailas-cloud/simdex/internal/resilience"
)

// Config holds the simdex API configuration.
type Config struct {
	HTTP       HTTPConfig        `yaml:"http"`
	Database   DatabaseConfig    `yaml:"database"`
	Store      StoreConfig       `yaml:"store"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Dense      DenseConfig       `yaml:"dense"`
	Resilience resilience.Config `yaml:"resilience"`
	Events     EventsConfig      `yaml:"events"`
	Engine     engine.Config     `yaml:"engine"`
	Auth       AuthConfig        `yaml:"auth"`
	Logging    LoggingConfig     `yaml:"logging"`
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

// DatabaseConfig holds Redis-compatible connection settings. The database
// always backs the dense index and the embedding cache.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StoreConfig selects where documents live.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // redis, postgres (default: redis)
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
	CacheTTL   time.Duration             `yaml:"cache_ttl"`
	// RateLimitRPS caps provider calls per second; zero disables throttling.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig selects the model used for résumé embeddings.
type VectorizerConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
}

// DenseConfig holds vector index settings.
type DenseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Algorithm       string        `yaml:"algorithm"` // HNSW, FLAT
	HNSWM           int           `yaml:"hnsw_m"`
	HNSWEFConstruct int           `yaml:"hnsw_ef_construction"`
	Timeout         time.Duration `yaml:"timeout"`
}

// EventsConfig holds document change notification settings.
type EventsConfig struct {
	NATSURL            string        `yaml:"nats_url"` // empty disables events
	Subject            string        `yaml:"subject"`
	RebuildMinInterval time.Duration `yaml:"rebuild_min_interval"`
}

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
	return Parse(data)
}

// Parse decodes YAML with ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	cfg := Config{Engine: engine.DefaultConfig()}
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "redis"
	}
	if c.Embedding.CacheTTL <= 0 {
		c.Embedding.CacheTTL = 7 * 24 * time.Hour
	}
	if c.Embedding.RateLimitRPS > 0 && c.Embedding.RateBurst <= 0 {
		c.Embedding.RateBurst = 1
	}
	if c.Dense.Algorithm == "" {
		c.Dense.Algorithm = "HNSW"
	}
	if c.Dense.HNSWM <= 0 {
		c.Dense.HNSWM = 16
	}
	if c.Dense.HNSWEFConstruct <= 0 {
		c.Dense.HNSWEFConstruct = 200
	}
	if c.Dense.Timeout <= 0 {
		c.Dense.Timeout = 3 * time.Second
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "simdex.documents.changed"
	}
	if c.Events.RebuildMinInterval <= 0 {
		c.Events.RebuildMinInterval = 5 * time.Second
	}
	c.Engine.ApplyDefaults()
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	switch c.Store.Driver {
	case "redis":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be \"redis\" or \"postgres\", got %q", c.Store.Driver)
	}
	if c.Dense.Enabled {
		v := c.Embedding.Vectorizer
		if v.Dimensions <= 0 {
			return errors.New("embedding.vectorizer.dimensions must be positive when dense is enabled")
		}
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizer.provider %q is not configured", v.Provider)
		}
		switch strings.ToUpper(c.Dense.Algorithm) {
		case "HNSW", "FLAT":
		default:
			return fmt.Errorf("dense.algorithm must be HNSW or FLAT, got %q", c.Dense.Algorithm)
		}
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
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
