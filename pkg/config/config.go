// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Detector, Recovery,
// Syndicator, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Detector   DetectorConfig   `yaml:"detector"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Syndicator SyndicatorConfig `yaml:"syndicator"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the detector service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds connection parameters for the authoritative article
// corpus.
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
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CrawledArticles string `yaml:"crawledArticles"`
	Distribution    string `yaml:"distribution"`
}

// RedisConfig holds connection parameters for the snapshot store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// DetectorConfig controls the MinHash/LSH parameters and the supported
// language shards. NumPerm must equal Bands*Rows; the pairing below is the
// deployed constant set, and changing Seed invalidates every stored
// signature.
type DetectorConfig struct {
	Languages []string      `yaml:"languages"`
	NumPerm   int           `yaml:"numPerm"`
	Bands     int           `yaml:"bands"`
	Rows      int           `yaml:"rows"`
	TTL       time.Duration `yaml:"ttl"`
	Seed      uint64        `yaml:"seed"`
}

// RecoveryConfig controls the cold-start rebuild from the corpus.
type RecoveryConfig struct {
	Window    time.Duration `yaml:"window"`
	PageSize  int           `yaml:"pageSize"`
	Workers   int           `yaml:"workers"`
	BatchSize int           `yaml:"batchSize"`
}

// SyndicatorConfig holds the stream-consumer settings.
type SyndicatorConfig struct {
	DetectorURL     string        `yaml:"detectorUrl"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxQueueDepth   int64         `yaml:"maxQueueDepth"`
	MonitorInterval time.Duration `yaml:"monitorInterval"`
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

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with sensible defaults
// for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Detector.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the banding arithmetic. The LSH index derives its bucket
// layout from Bands and Rows, so a mismatched NumPerm would silently shift
// every bucket key.
func (d DetectorConfig) Validate() error {
	if d.NumPerm <= 0 || d.Bands <= 0 || d.Rows <= 0 {
		return fmt.Errorf("detector: numPerm, bands, and rows must be positive")
	}
	if d.NumPerm != d.Bands*d.Rows {
		return fmt.Errorf("detector: numPerm (%d) must equal bands*rows (%d*%d)", d.NumPerm, d.Bands, d.Rows)
	}
	if d.TTL <= 0 {
		return fmt.Errorf("detector: ttl must be positive")
	}
	if len(d.Languages) == 0 {
		return fmt.Errorf("detector: at least one language is required")
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9039,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "articles",
			User:            "syndication",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "syndication-group",
			Topics: KafkaTopics{
				CrawledArticles: "crawled-articles",
				Distribution:    "distribution",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       4,
			PoolSize: 10,
		},
		Detector: DetectorConfig{
			Languages: []string{"english"},
			NumPerm:   128,
			Bands:     8,
			Rows:      16,
			TTL:       24 * time.Hour,
			Seed:      1,
		},
		Recovery: RecoveryConfig{
			Window:    4 * time.Hour,
			PageSize:  500,
			Workers:   0,
			BatchSize: 1000,
		},
		Syndicator: SyndicatorConfig{
			DetectorURL:     "http://localhost:9039",
			RequestTimeout:  10 * time.Second,
			MaxQueueDepth:   100000,
			MonitorInterval: time.Minute,
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

// applyEnvOverrides reads SD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SD_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("SD_DETECTOR_LANGUAGES"); v != "" {
		cfg.Detector.Languages = strings.Split(v, ",")
	}
	if v := os.Getenv("SD_DETECTOR_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Detector.TTL = ttl
		}
	}
	if v := os.Getenv("SD_RECOVERY_WINDOW"); v != "" {
		if window, err := time.ParseDuration(v); err == nil {
			cfg.Recovery.Window = window
		}
	}
	if v := os.Getenv("SD_SYNDICATOR_DETECTOR_URL"); v != "" {
		cfg.Syndicator.DetectorURL = v
	}
	if v := os.Getenv("SD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
