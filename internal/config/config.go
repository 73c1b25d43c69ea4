package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Backend drivers.
const (
	DriverRedis   = "redis"
	DriverElastic = "elastic"
	DriverBleve   = "bleve"
)

// Config holds the searchdex configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
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
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// BackendConfig selects and configures the search backend.
type BackendConfig struct {
	Driver           string            `yaml:"driver"` // redis, elastic, bleve (default: redis)
	IDField          string            `yaml:"id_field"`
	AutoGenerateID   bool              `yaml:"auto_generate_id"`
	AutoCommit       bool              `yaml:"auto_commit"`
	Streaming        bool              `yaml:"streaming"`
	MaxResults       int               `yaml:"max_results"`
	ReadinessTimeout int               `yaml:"readiness_timeout_sec"`
	Schema           map[string]string `yaml:"schema"` // field -> text | tag | numeric, plus ",sortable" or ",weight=N" (redis only)
	Redis            RedisConfig       `yaml:"redis"`
	Elastic          ElasticConfig     `yaml:"elastic"`
	Bleve            BleveConfig       `yaml:"bleve"`
	Breaker          BreakerConfig     `yaml:"breaker"`
}

// RedisConfig holds Redis / Valkey search settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	Index     string   `yaml:"index"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// ElasticConfig holds Elasticsearch settings.
type ElasticConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// BleveConfig holds embedded index settings.
type BleveConfig struct {
	Path string `yaml:"path"` // empty: in-memory
}

// BreakerConfig holds backend circuit breaker settings.
type BreakerConfig struct {
	Enabled             bool   `yaml:"enabled"`
	MaxRequests         uint32 `yaml:"max_requests"`
	IntervalSec         int    `yaml:"interval_sec"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
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
	if c.HTTP.MaxBatchSize <= 0 {
		c.HTTP.MaxBatchSize = 500
	}

	b := &c.Backend
	if b.Driver == "" {
		b.Driver = DriverRedis
	}
	if b.IDField == "" {
		b.IDField = "id"
	}
	if b.MaxResults <= 0 {
		b.MaxResults = 100
	}
	if b.ReadinessTimeout <= 0 {
		b.ReadinessTimeout = 10
	}
	if b.Redis.Index == "" {
		b.Redis.Index = "searchdex"
	}
	if b.Redis.KeyPrefix == "" {
		b.Redis.KeyPrefix = "searchdex:"
	}
	if b.Elastic.Index == "" {
		b.Elastic.Index = "searchdex"
	}
	if b.Breaker.MaxRequests == 0 {
		b.Breaker.MaxRequests = 1
	}
	if b.Breaker.IntervalSec <= 0 {
		b.Breaker.IntervalSec = 60
	}
	if b.Breaker.TimeoutSec <= 0 {
		b.Breaker.TimeoutSec = 30
	}
	if b.Breaker.ConsecutiveFailures == 0 {
		b.Breaker.ConsecutiveFailures = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.Backend.Validate()
}

// Validate checks the backend section on its own, for embedded use without an HTTP server.
func (b *BackendConfig) Validate() error {
	switch b.Driver {
	case DriverRedis:
		if len(b.Redis.Addrs) == 0 {
			return fmt.Errorf("backend.redis.addrs is required")
		}
		if !db.IsValidIdentifier(b.Redis.Index) {
			return fmt.Errorf("backend.redis.index %q is not a valid index name", b.Redis.Index)
		}
	case DriverElastic:
		if len(b.Elastic.Addresses) == 0 {
			return fmt.Errorf("backend.elastic.addresses is required")
		}
	case DriverBleve:
		// in-memory when no path is set
	default:
		return fmt.Errorf("backend.driver must be %q, %q or %q, got %q",
			DriverRedis, DriverElastic, DriverBleve, b.Driver)
	}

	for name, typ := range b.Schema {
		if _, err := db.ParseFieldSpec(name, typ); err != nil {
			return fmt.Errorf("backend.schema.%s: %w", name, err)
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
