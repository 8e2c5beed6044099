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

// Config holds the retrieval service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Datastore DatastoreConfig `yaml:"datastore"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
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

// Datastore kinds accepted in configuration. The three relational kinds
// share one adapter; the label picks connection defaults and shows in logs.
const (
	KindMemory   = "memory"
	KindPostgres = "postgres"
	KindCloudSQL = "cloudsql-postgres"
	KindAlloyDB  = "alloydb"
	KindRedis    = "redis"
	KindNeo4j    = "neo4j"
)

// DatastoreConfig selects the backend and its connection parameters.
// Which fields apply depends on kind: host/port/database/user/password for
// the relational kinds, addrs for redis, uri/user/password for neo4j.
// Project, region, cluster, and instance identify managed deployments.
type DatastoreConfig struct {
	Kind     string   `yaml:"kind"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Database string   `yaml:"database"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Addrs    []string `yaml:"addrs"`
	URI      string   `yaml:"uri"`
	Project  string   `yaml:"project"`
	Region   string   `yaml:"region"`
	Cluster  string   `yaml:"cluster"`
	Instance string   `yaml:"instance"`

	ReadinessTimeout int `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the OpenAI-compatible embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// EventsConfig holds the optional ticket event publishing settings.
// Empty brokers disables publishing.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
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
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Datastore.Kind == "" {
		c.Datastore.Kind = KindMemory
	}
	if c.Datastore.ReadinessTimeout <= 0 {
		c.Datastore.ReadinessTimeout = 10
	}
	if c.Datastore.Port <= 0 {
		switch c.Datastore.Kind {
		case KindPostgres, KindCloudSQL, KindAlloyDB:
			c.Datastore.Port = 5432
		}
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "ticket-events"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	ds := c.Datastore
	switch ds.Kind {
	case KindMemory:
		// no connection parameters required
	case KindPostgres, KindCloudSQL, KindAlloyDB:
		if ds.Host == "" {
			return fmt.Errorf("datastore.host is required for kind %q", ds.Kind)
		}
		if ds.Database == "" {
			return fmt.Errorf("datastore.database is required for kind %q", ds.Kind)
		}
		if ds.User == "" {
			return fmt.Errorf("datastore.user is required for kind %q", ds.Kind)
		}
		if ds.Kind != KindPostgres && ds.Project == "" {
			return fmt.Errorf("datastore.project is required for kind %q", ds.Kind)
		}
	case KindRedis:
		if len(ds.Addrs) == 0 {
			return fmt.Errorf("datastore.addrs is required for kind %q", ds.Kind)
		}
	case KindNeo4j:
		if ds.URI == "" {
			return fmt.Errorf("datastore.uri is required for kind %q", ds.Kind)
		}
	default:
		return fmt.Errorf("unknown datastore.kind %q", ds.Kind)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
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
