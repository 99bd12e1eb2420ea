// Package config loads service configuration from an optional YAML file
// overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nucleus/ucl-salesforce/internal/auth"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/dataset"
	"github.com/nucleus/ucl-salesforce/internal/logging"
)

// Config is the configuration shared by the server and the worker.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Temporal   TemporalConfig   `yaml:"temporal"`
	Salesforce SalesforceConfig `yaml:"salesforce"`
	Dataset    dataset.Config   `yaml:"dataset"`
	Audit      AuditConfig      `yaml:"audit"`
	Auth       auth.Config      `yaml:"auth"`
	Logging    logging.Options  `yaml:"logging"`
}

// ServerConfig holds gRPC server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TemporalConfig holds worker settings.
type TemporalConfig struct {
	Host      string `yaml:"host"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"taskQueue"`
}

// SalesforceConfig holds connection defaults applied to every plugin.
type SalesforceConfig struct {
	LoginURL        string  `yaml:"loginUrl"`
	APIVersion      string  `yaml:"apiVersion"`
	TimeoutSecs     int     `yaml:"timeoutSecs"`
	RateLimit       float64 `yaml:"rateLimit"`
	MaxRetries      int     `yaml:"maxRetries"`
	BulkBatchSize   int     `yaml:"bulkBatchSize"`
	PollIntervalMs  int     `yaml:"pollIntervalMs"`
	PollTimeoutSecs int     `yaml:"pollTimeoutSecs"`
}

// Apply copies the configured defaults into cfg. Values set by plugin
// parameters win.
func (s SalesforceConfig) Apply(cfg *salesforce.Config) {
	if cfg.LoginURL == "" && cfg.Domain == "" {
		cfg.LoginURL = s.LoginURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = s.APIVersion
	}
	if s.TimeoutSecs > 0 {
		cfg.Timeout = time.Duration(s.TimeoutSecs) * time.Second
	}
	if s.RateLimit > 0 {
		cfg.RateLimit = s.RateLimit
	}
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.BulkBatchSize > 0 {
		cfg.BulkBatchSize = s.BulkBatchSize
	}
	if s.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(s.PollIntervalMs) * time.Millisecond
	}
	if s.PollTimeoutSecs > 0 {
		cfg.PollTimeout = time.Duration(s.PollTimeoutSecs) * time.Second
	}
}

// AuditConfig selects the upsert audit sink. An empty DatabaseURL logs
// results instead.
type AuditConfig struct {
	DatabaseURL string `yaml:"databaseUrl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 50061},
		Temporal: TemporalConfig{Host: "localhost:7233", Namespace: "ucl-dev", TaskQueue: "ucl-salesforce"},
		Salesforce: SalesforceConfig{
			APIVersion:      salesforce.DefaultAPIVersion,
			TimeoutSecs:     60,
			RateLimit:       10,
			BulkBatchSize:   salesforce.DefaultBulkBatchSize,
			PollIntervalMs:  int(salesforce.DefaultPollInterval / time.Millisecond),
			PollTimeoutSecs: int(salesforce.DefaultPollTimeout / time.Second),
		},
		Dataset: dataset.Config{Backend: dataset.BackendMemory},
		Logging: logging.Options{Level: "info", Format: "json"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("UCL_SALESFORCE_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("UCL_SALESFORCE_PORT", c.Server.Port)

	c.Temporal.Host = getEnv("UCL_TEMPORAL_HOST", c.Temporal.Host)
	c.Temporal.Namespace = getEnv("UCL_TEMPORAL_NAMESPACE", c.Temporal.Namespace)
	c.Temporal.TaskQueue = getEnv("UCL_SALESFORCE_TASK_QUEUE", c.Temporal.TaskQueue)

	c.Salesforce.LoginURL = getEnv("SF_LOGIN_URL", c.Salesforce.LoginURL)
	c.Salesforce.APIVersion = getEnv("SF_API_VERSION", c.Salesforce.APIVersion)
	c.Salesforce.TimeoutSecs = getEnvInt("SF_TIMEOUT_SECS", c.Salesforce.TimeoutSecs)
	c.Salesforce.MaxRetries = getEnvInt("SF_MAX_RETRIES", c.Salesforce.MaxRetries)
	c.Salesforce.BulkBatchSize = getEnvInt("SF_BULK_BATCH_SIZE", c.Salesforce.BulkBatchSize)
	c.Salesforce.PollIntervalMs = getEnvInt("SF_POLL_INTERVAL_MS", c.Salesforce.PollIntervalMs)

	c.Dataset.Backend = getEnv("UCL_DATASET_BACKEND", c.Dataset.Backend)
	c.Dataset.Root = getEnv("UCL_DATASET_ROOT", c.Dataset.Root)
	c.Dataset.Bucket = getEnv("UCL_DATASET_BUCKET", c.Dataset.Bucket)
	c.Dataset.S3.EndpointURL = getEnv("MINIO_ENDPOINT", c.Dataset.S3.EndpointURL)
	c.Dataset.S3.AccessKeyID = getEnv("MINIO_ACCESS_KEY", c.Dataset.S3.AccessKeyID)
	c.Dataset.S3.SecretAccessKey = getEnv("MINIO_SECRET_KEY", c.Dataset.S3.SecretAccessKey)
	c.Dataset.DatabaseURL = getEnv("UCL_DATASET_DATABASE_URL", c.Dataset.DatabaseURL)

	c.Audit.DatabaseURL = getEnv("UCL_AUDIT_DATABASE_URL", c.Audit.DatabaseURL)

	c.Auth.Secret = getEnv("UCL_AUTH_SECRET", c.Auth.Secret)
	c.Auth.Issuer = getEnv("UCL_AUTH_ISSUER", c.Auth.Issuer)
	c.Auth.Audience = getEnv("UCL_AUTH_AUDIENCE", c.Auth.Audience)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
