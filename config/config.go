package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for phrasematch.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Index    IndexConfig    `yaml:"index"`
	Query    QueryConfig    `yaml:"query"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CorpusConfig describes how phrase files are discovered and parsed.
type CorpusConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	Format       string   `yaml:"format"` // "auto", "csv", "tsv", "text"
	Header       bool     `yaml:"header"`
	CodeColumn   int      `yaml:"code_column"`
	PhraseColumn int      `yaml:"phrase_column"`
	KindColumn   int      `yaml:"kind_column"` // -1 = none
	StripChars   string   `yaml:"strip_chars"`
}

// IndexConfig holds index build configuration.
type IndexConfig struct {
	MinPhraseRunes int `yaml:"min_phrase_runes"` // shorter phrases are skipped (0 = keep all)
}

// QueryConfig holds search defaults.
type QueryConfig struct {
	MaxResults    int    `yaml:"max_results"`
	MaxCandidates int    `yaml:"max_candidates"` // 0 = unlimited
	TermScoring   string `yaml:"term_scoring"`   // "tokens" or "whole"
}

// CacheConfig holds query cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxLimit        int           `yaml:"max_limit"`
	MaxBatch        int           `yaml:"max_batch"`
}

// PostgresConfig describes a table of phrases to load.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	CodeColumn   string `yaml:"code_column"`
	PhraseColumn string `yaml:"phrase_column"`
	KindColumn   string `yaml:"kind_column"` // empty = none
	OrderBy      string `yaml:"order_by"`
}

// KafkaConfig holds record stream configuration.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RedisConfig holds snapshot distribution configuration.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SnapshotKey string        `yaml:"snapshot_key"`
	TTL         time.Duration `yaml:"ttl"` // 0 = no expiry
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Includes:     []string{"**/*.csv", "**/*.tsv", "**/*.txt"},
			Excludes:     []string{"**/.git/**", "**/.phrasematch/**", "**/node_modules/**"},
			Format:       "auto",
			Header:       false,
			CodeColumn:   0,
			PhraseColumn: 1,
			KindColumn:   2,
			StripChars:   "",
		},
		Index: IndexConfig{
			MinPhraseRunes: 0,
		},
		Query: QueryConfig{
			MaxResults:    25,
			MaxCandidates: 0,
			TermScoring:   "tokens",
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    1000,
			TTL:     5 * time.Minute,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxLimit:        500,
			MaxBatch:        100,
		},
		Postgres: PostgresConfig{
			Table:        "phrases",
			CodeColumn:   "code",
			PhraseColumn: "phrase",
			KindColumn:   "kind",
			OrderBy:      "id",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "phrasematch.records",
			GroupID: "phrasematch",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			SnapshotKey: "phrasematch:snapshot",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies PM_* environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for phrasematch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "phrasematch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// No file: defaults plus environment.
	return Load(filepath.Join(dir, "phrasematch.yaml"))
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch c.Corpus.Format {
	case "auto", "csv", "tsv", "text":
	default:
		return fmt.Errorf("corpus.format: unknown format %q", c.Corpus.Format)
	}
	if c.Corpus.CodeColumn < 0 || c.Corpus.PhraseColumn < 0 {
		return fmt.Errorf("corpus: code and phrase columns must be >= 0")
	}
	if c.Corpus.CodeColumn == c.Corpus.PhraseColumn {
		return fmt.Errorf("corpus: code and phrase columns must differ")
	}
	if c.Query.MaxResults <= 0 {
		return fmt.Errorf("query.max_results must be positive, got %d", c.Query.MaxResults)
	}
	if c.Query.MaxCandidates < 0 {
		return fmt.Errorf("query.max_candidates must be >= 0, got %d", c.Query.MaxCandidates)
	}
	switch strings.ToLower(c.Query.TermScoring) {
	case "", "tokens", "whole":
	default:
		return fmt.Errorf("query.term_scoring: unknown mode %q", c.Query.TermScoring)
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive when the cache is enabled")
	}
	if c.Server.MaxLimit <= 0 {
		return fmt.Errorf("server.max_limit must be positive, got %d", c.Server.MaxLimit)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDirName is the per-project directory holding the record store.
const DataDirName = ".phrasematch"

// StoreDBPath returns the path to the record database.
func StoreDBPath(dir string) string {
	return filepath.Join(dir, DataDirName, "records.db")
}

// EnsureDataDir ensures the .phrasematch directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDirName), 0755)
}

// applyEnvOverrides reads PM_* environment variables and overrides the
// corresponding fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PM_QUERY_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.MaxResults = n
		}
	}
	if v := os.Getenv("PM_QUERY_TERM_SCORING"); v != "" {
		cfg.Query.TermScoring = v
	}
	if v := os.Getenv("PM_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PM_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("PM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PM_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("PM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
