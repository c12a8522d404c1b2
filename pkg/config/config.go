package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configuration for the optional graph sink
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// KB configuration (search and record lookups)
	KB KBConfig `mapstructure:"kb" yaml:"kb"`

	// NLP configuration (recognizer and tagger services)
	NLP NLPConfig `mapstructure:"nlp" yaml:"nlp"`

	// Linking configuration
	Linking LinkingConfig `mapstructure:"linking" yaml:"linking"`

	// Cooc configuration
	Cooc CoocConfig `mapstructure:"cooc" yaml:"cooc"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert" yaml:"alert"`

	// Retry configuration for external calls
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json, logfmt
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	Mode          string `mapstructure:"mode" yaml:"mode"` // gin mode: debug, release, test
	MaxUploadMB   int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	KnowledgeBase string `mapstructure:"knowledge_base" yaml:"knowledge_base"` // annotation -> QID table
	Claims        string `mapstructure:"claims" yaml:"claims"`                 // QID -> property -> values table
}

// DatabaseConfig holds the neo4j sink configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// KBConfig holds knowledge-base service configuration
type KBConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`           // wbsearchentities API
	EntityData   string        `mapstructure:"entity_data" yaml:"entity_data"`     // Special:EntityData base URL
	Languages    []string      `mapstructure:"languages" yaml:"languages"`         // search fallback order
	SearchLimit  int           `mapstructure:"search_limit" yaml:"search_limit"`   // results per search
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CachePath    string        `mapstructure:"cache_path" yaml:"cache_path"`       // badger directory, empty = memory only
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Offline      bool          `mapstructure:"offline" yaml:"offline"`             // serve lookups from local files only
	Dump         string        `mapstructure:"dump" yaml:"dump"`                   // minidump used when offline
}

// NLPConfig holds recognizer and tagger configuration
type NLPConfig struct {
	RecognizerURL string        `mapstructure:"recognizer_url" yaml:"recognizer_url"`
	TaggerURL     string        `mapstructure:"tagger_url" yaml:"tagger_url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LinkingConfig holds candidate resolution settings
type LinkingConfig struct {
	Workers       int    `mapstructure:"workers" yaml:"workers"`
	CheckpointDir string `mapstructure:"checkpoint_dir" yaml:"checkpoint_dir"`
	NFC           bool   `mapstructure:"nfc" yaml:"nfc"`
	// MaxAttempts and MaxCheckpointAge bound which failed runs --resume picks up.
	MaxAttempts      int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	MaxCheckpointAge time.Duration `mapstructure:"max_checkpoint_age" yaml:"max_checkpoint_age"`
	// StallAfter is how long a run may go without saving before it is reported
	// as stalled.
	StallAfter time.Duration `mapstructure:"stall_after" yaml:"stall_after"`
}

// CoocConfig holds co-occurrence defaults
type CoocConfig struct {
	MaxDegree int      `mapstructure:"max_degree" yaml:"max_degree"`
	POSFilter []string `mapstructure:"pos_filter" yaml:"pos_filter"`
	Workers   int      `mapstructure:"workers" yaml:"workers"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path" yaml:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
	From     string   `mapstructure:"from" yaml:"from"`
	To       []string `mapstructure:"to" yaml:"to"`
}

// RetryConfig holds retry settings for external calls
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests" yaml:"max_requests"`
	Interval         int     `mapstructure:"interval" yaml:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout" yaml:"timeout"`   // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio" yaml:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// Default returns the default configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)
	config := &Config{}
	_ = v.Unmarshal(config)
	return config
}

// setDefaults sets default configuration values
func setDefaults() {
	applyDefaults(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 256)
	v.SetDefault("server.knowledge_base", "static/json/mdf-knowledge-base.json")
	v.SetDefault("server.claims", "static/json/qid_to_claims.json")

	// Database defaults
	v.SetDefault("database.uri", "")
	v.SetDefault("database.username", "neo4j")
	v.SetDefault("database.database", "neo4j")

	// KB defaults
	v.SetDefault("kb.endpoint", "https://www.wikidata.org/w/api.php")
	v.SetDefault("kb.entity_data", "https://www.wikidata.org/wiki/Special:EntityData")
	v.SetDefault("kb.languages", []string{"fr", "it", "en"})
	v.SetDefault("kb.search_limit", 10)
	v.SetDefault("kb.user_agent", "minerva/0.1 (entity linking)")
	v.SetDefault("kb.timeout", 30*time.Second)
	v.SetDefault("kb.cache_ttl", 7*24*time.Hour)

	// NLP defaults
	v.SetDefault("nlp.recognizer_url", "https://opentapioca.wordlift.io/api/annotate")
	v.SetDefault("nlp.tagger_url", "")
	v.SetDefault("nlp.timeout", 30*time.Second)

	// Linking defaults
	v.SetDefault("linking.workers", 4)
	v.SetDefault("linking.max_attempts", 3)
	v.SetDefault("linking.max_checkpoint_age", 7*24*time.Hour)
	v.SetDefault("linking.stall_after", time.Hour)

	// Cooc defaults
	v.SetDefault("cooc.max_degree", 10)
	v.SetDefault("cooc.workers", 1)

	// Retry defaults
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", 1*time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.backoff_multiplier", 2.0)

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", 60)
	v.SetDefault("circuit_breaker.timeout", 30)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		v.SetDefault("telemetry.parquet_path", filepath.Join(home, ".minerva", "telemetry"))
		v.SetDefault("linking.checkpoint_dir", filepath.Join(home, ".minerva", "checkpoints"))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Graph sink credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	// Services
	if endpoint := os.Getenv("MINERVA_KB_ENDPOINT"); endpoint != "" {
		config.KB.Endpoint = endpoint
	}
	if langs := os.Getenv("MINERVA_KB_LANGUAGES"); langs != "" {
		config.KB.Languages = strings.Split(langs, ",")
	}
	if path := os.Getenv("MINERVA_KB_CACHE"); path != "" {
		config.KB.CachePath = path
	}
	if url := os.Getenv("MINERVA_RECOGNIZER_URL"); url != "" {
		config.NLP.RecognizerURL = url
	}
	if url := os.Getenv("MINERVA_TAGGER_URL"); url != "" {
		config.NLP.TaggerURL = url
	}

	if dir := os.Getenv("MINERVA_CHECKPOINT_DIR"); dir != "" {
		config.Linking.CheckpointDir = dir
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Alert credentials
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Alert.Password = pass
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
