package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:50061", cfg.Server.Addr())
	assert.Equal(t, "ucl-salesforce", cfg.Temporal.TaskQueue)
	assert.Equal(t, "memory", cfg.Dataset.Backend)
	assert.Equal(t, salesforce.DefaultAPIVersion, cfg.Salesforce.APIVersion)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 6000
salesforce:
  loginUrl: https://acme.my.salesforce.com
  bulkBatchSize: 500
dataset:
  backend: local
  root: /tmp/datasets
  s3:
    endpointUrl: http://minio:9000
auth:
  issuer: nucleus
logging:
  level: debug
`), 0o644))

	t.Setenv("UCL_SALESFORCE_PORT", "7000")
	t.Setenv("SF_POLL_INTERVAL_MS", "250")
	t.Setenv("SF_TIMEOUT_SECS", "not-a-number")
	t.Setenv("UCL_AUTH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://acme.my.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, 500, cfg.Salesforce.BulkBatchSize)
	assert.Equal(t, 250, cfg.Salesforce.PollIntervalMs)
	assert.Equal(t, 60, cfg.Salesforce.TimeoutSecs)
	assert.Equal(t, "local", cfg.Dataset.Backend)
	assert.Equal(t, "/tmp/datasets", cfg.Dataset.Root)
	assert.Equal(t, "http://minio:9000", cfg.Dataset.S3.EndpointURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "nucleus", cfg.Auth.Issuer)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSalesforceConfig_Apply(t *testing.T) {
	sf := Default().Salesforce
	sf.LoginURL = "https://acme.my.salesforce.com"

	cfg := &salesforce.Config{}
	sf.Apply(cfg)
	assert.Equal(t, "https://acme.my.salesforce.com", cfg.LoginURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.MaxRetries)

	cfg = &salesforce.Config{Domain: "test", APIVersion: "58.0"}
	sf.Apply(cfg)
	assert.Empty(t, cfg.LoginURL)
	assert.Equal(t, "58.0", cfg.APIVersion)
}
