// Package config loads the YAML configuration shared by every binary and
// layers CS_* environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the number of requests each client may make per
	// RateWindow. Zero disables rate limiting.
	RateLimit   int           `yaml:"rateLimit"`
	RateWindow  time.Duration `yaml:"rateWindow"`
	CORSOrigins []string      `yaml:"corsOrigins"`
}

// StoreConfig selects the record store backing the index.
type StoreConfig struct {
	// Driver is one of "file", "postgres" or "sqlite".
	Driver     string        `yaml:"driver"`
	DataDir    string        `yaml:"dataDir"`
	SQLitePath string        `yaml:"sqlitePath"`
	WatchFiles bool          `yaml:"watchFiles"`
	Debounce   time.Duration `yaml:"debounce"`
	Retry      RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries and circuit breaking around store loads.
type RetryConfig struct {
	MaxAttempts      int           `yaml:"maxAttempts"`
	InitialDelay     time.Duration `yaml:"initialDelay"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
	// AnalyticsBatchSize > 0 publishes analytics events in batches.
	AnalyticsBatchSize     int           `yaml:"analyticsBatchSize"`
	AnalyticsFlushInterval time.Duration `yaml:"analyticsFlushInterval"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RecordChanges   string `yaml:"recordChanges"`
	SearchAnalytics string `yaml:"searchAnalytics"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig controls the index snapshot location and tokenisation.
type IndexConfig struct {
	Path           string   `yaml:"path"`
	StopWords      []string `yaml:"stopWords"`
	Stemming       bool     `yaml:"stemming"`
	RebuildOnStart bool     `yaml:"rebuildOnStart"`
}

// SearchConfig controls query execution limits, history and the query
// vocabulary tables.
type SearchConfig struct {
	MaxResults   int                 `yaml:"maxResults"`
	DefaultLimit int                 `yaml:"defaultLimit"`
	HistorySize  int                 `yaml:"historySize"`
	ExportDir    string              `yaml:"exportDir"`
	ExportLimit  int                 `yaml:"exportLimit"`
	StopWords    []string            `yaml:"stopWords"`
	Synonyms     map[string][]string `yaml:"synonyms"`
	SynonymsFile string              `yaml:"synonymsFile"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads path over the built-in defaults, applies environment overrides
// and validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if cfg.Search.SynonymsFile != "" {
		synonyms, err := LoadSynonyms(cfg.Search.SynonymsFile)
		if err != nil {
			return nil, err
		}
		cfg.Search.Synonyms = synonyms
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSynonyms reads a YAML mapping of word -> synonyms.
func LoadSynonyms(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonyms file %s: %w", path, err)
	}
	synonyms := make(map[string][]string)
	if err := yaml.Unmarshal(data, &synonyms); err != nil {
		return nil, fmt.Errorf("parsing synonyms file %s: %w", path, err)
	}
	return synonyms, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path must be set")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: defaultLimit=%d maxResults=%d",
			c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateWindow:      time.Minute,
		},
		Store: StoreConfig{
			Driver:     "file",
			DataDir:    "data",
			SQLitePath: "data/records.db",
			WatchFiles: true,
			Debounce:   500 * time.Millisecond,
			Retry: RetryConfig{
				MaxAttempts:      3,
				InitialDelay:     100 * time.Millisecond,
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "compliance",
			User:            "compliance",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "compliance-search",
			Topics: KafkaTopics{
				RecordChanges:   "record-changes",
				SearchAnalytics: "search-analytics",
			},
			AnalyticsFlushInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			Path:           "indices/search_index.json",
			RebuildOnStart: true,
		},
		Search: SearchConfig{
			MaxResults:   500,
			DefaultLimit: 50,
			HistorySize:  1000,
			ExportDir:    "Exports",
			ExportLimit:  10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envOverrides maps CS_* environment variables onto config fields. Setting
// a Kafka broker list or Redis address also enables that integration.
var envOverrides = map[string]func(c *Config, v string) error{
	"CS_SERVER_PORT":       setInt(func(c *Config) *int { return &c.Server.Port }),
	"CS_SERVER_RATE_LIMIT": setInt(func(c *Config) *int { return &c.Server.RateLimit }),
	"CS_STORE_DRIVER":      setString(func(c *Config) *string { return &c.Store.Driver }),
	"CS_STORE_DATA_DIR":    setString(func(c *Config) *string { return &c.Store.DataDir }),
	"CS_STORE_SQLITE_PATH": setString(func(c *Config) *string { return &c.Store.SQLitePath }),
	"CS_STORE_WATCH_FILES": setBool(func(c *Config) *bool { return &c.Store.WatchFiles }),
	"CS_POSTGRES_HOST":     setString(func(c *Config) *string { return &c.Postgres.Host }),
	"CS_POSTGRES_PORT":     setInt(func(c *Config) *int { return &c.Postgres.Port }),
	"CS_POSTGRES_DATABASE": setString(func(c *Config) *string { return &c.Postgres.Database }),
	"CS_POSTGRES_USER":     setString(func(c *Config) *string { return &c.Postgres.User }),
	"CS_POSTGRES_PASSWORD": setString(func(c *Config) *string { return &c.Postgres.Password }),
	"CS_KAFKA_BROKERS": func(c *Config, v string) error {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
		return nil
	},
	"CS_REDIS_ADDR": func(c *Config, v string) error {
		c.Redis.Addr = v
		c.Redis.Enabled = true
		return nil
	},
	"CS_REDIS_PASSWORD":    setString(func(c *Config) *string { return &c.Redis.Password }),
	"CS_INDEX_PATH":        setString(func(c *Config) *string { return &c.Index.Path }),
	"CS_INDEX_STEMMING":    setBool(func(c *Config) *bool { return &c.Index.Stemming }),
	"CS_SEARCH_EXPORT_DIR": setString(func(c *Config) *string { return &c.Search.ExportDir }),
	"CS_LOGGING_LEVEL":     setString(func(c *Config) *string { return &c.Logging.Level }),
	"CS_LOGGING_FORMAT":    setString(func(c *Config) *string { return &c.Logging.Format }),
	"CS_METRICS_PORT":      setInt(func(c *Config) *int { return &c.Metrics.Port }),
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for name, set := range envOverrides {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
		}
	}
	return errors.Join(errs...)
}
