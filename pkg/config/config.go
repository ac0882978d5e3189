// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Index, Indexer, Reindex, Search,
// etc.). A Config is built once per process and passed to each component.
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

// Index storage backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Search cache backends.
const (
	CacheRedis = "redis"
	CacheLocal = "local"
	CacheNone  = "none"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Reindex  ReindexConfig  `yaml:"reindex"`
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
	Migrate         bool          `yaml:"migrate"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. ConsumerGroup is shared
// by every worker instance for queue channels; InstanceID makes the group
// unique per instance for broadcast channels.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	InstanceID    string      `yaml:"instanceId"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps event kinds to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngested string `yaml:"documentIngested"`
	DocumentIndexed  string `yaml:"documentIndexed"`
	ReindexRequest   string `yaml:"reindexRequest"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig selects where postings live.
type IndexConfig struct {
	Backend          string `yaml:"backend"`
	ShardTablePrefix string `yaml:"shardTablePrefix"`
	KeyPrefix        string `yaml:"keyPrefix"`
}

// IndexerConfig controls retries of postings writes.
type IndexerConfig struct {
	WriteRetry RetryConfig `yaml:"writeRetry"`
}

// RetryConfig mirrors resilience.RetryConfig in YAML form.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// ReindexConfig controls the clear-lock and batch rebuild protocol.
type ReindexConfig struct {
	BatchSize         int           `yaml:"batchSize"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	LockTTL           time.Duration `yaml:"lockTTL"`
	MaxLockRecoveries int           `yaml:"maxLockRecoveries"`
}

// SearchConfig controls query execution and caching.
type SearchConfig struct {
	CacheBackend     string        `yaml:"cacheBackend"`
	LocalCacheSize   int           `yaml:"localCacheSize"`
	QueryTimeout     time.Duration `yaml:"queryTimeout"`
	MaxTermsPerQuery int           `yaml:"maxTermsPerQuery"`

	// InvalidationGroup is the consumer group the search service reads
	// document.indexed with, kept apart from the indexers' group.
	InvalidationGroup string `yaml:"invalidationGroup"`
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "instance-" + strconv.Itoa(os.Getpid())
	}
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-indexers",
			InstanceID:    hostname,
			Topics: KafkaTopics{
				DocumentIngested: "document.ingested",
				DocumentIndexed:  "document.indexed",
				ReindexRequest:   "reindex.request",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			Backend:          BackendPostgres,
			ShardTablePrefix: "postings_",
			KeyPrefix:        "postings",
		},
		Indexer: IndexerConfig{
			WriteRetry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     2 * time.Second,
			},
		},
		Reindex: ReindexConfig{
			BatchSize:         5,
			PollInterval:      500 * time.Millisecond,
			LockTTL:           5 * time.Minute,
			MaxLockRecoveries: 3,
		},
		Search: SearchConfig{
			CacheBackend:      CacheRedis,
			LocalCacheSize:    1024,
			QueryTimeout:      5 * time.Second,
			MaxTermsPerQuery:  32,
			InvalidationGroup: "docsearch-searchers",
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

// Validate reports configuration values the coordinators cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Index.Backend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("index.backend %q must be one of postgres, redis, memory", c.Index.Backend))
	}
	switch c.Search.CacheBackend {
	case CacheRedis, CacheLocal, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("search.cacheBackend %q must be one of redis, local, none", c.Search.CacheBackend))
	}
	if c.Reindex.BatchSize < 1 {
		errs = append(errs, errors.New("reindex.batchSize must be positive"))
	}
	if c.Reindex.PollInterval <= 0 {
		errs = append(errs, errors.New("reindex.pollInterval must be positive"))
	}
	if c.Reindex.LockTTL <= c.Reindex.PollInterval {
		errs = append(errs, errors.New("reindex.lockTTL must exceed reindex.pollInterval"))
	}
	if c.Kafka.InstanceID == "" {
		errs = append(errs, errors.New("kafka.instanceId is required"))
	}
	if c.Index.ShardTablePrefix == "" || strings.ContainsAny(c.Index.ShardTablePrefix, " ;\"'") {
		errs = append(errs, fmt.Errorf("index.shardTablePrefix %q is not a valid identifier prefix", c.Index.ShardTablePrefix))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_KAFKA_INSTANCE_ID"); v != "" {
		cfg.Kafka.InstanceID = v
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("SP_SEARCH_CACHE_BACKEND"); v != "" {
		cfg.Search.CacheBackend = v
	}
	if v := os.Getenv("SP_REINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reindex.BatchSize = n
		}
	}
	if v := os.Getenv("SP_REINDEX_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reindex.LockTTL = d
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
