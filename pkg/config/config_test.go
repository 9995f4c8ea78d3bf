package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"STORE_BACKEND", "POSTGRES_URL", "DYNAMO_TABLE", "DYNAMO_REGION", "DYNAMO_ENDPOINT",
		"LISTEN_ADDR", "DIAL_ADDR", "METRICS_ADDR", "LOG_LEVEL", "MAX_DOCUMENT_BYTES",
		"TRANSPORT_WORKERS", "SPILL_THRESHOLD", "NOT_ACCEPTED_RETRIES", "TRANSPORT_TIMEOUT",
		"TRANSPORT_COMPRESS",
	} {
		t.Setenv(EnvPrefix+name, "")
	}
	t.Setenv("LOG_LEVEL", "")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, DefaultMaxDocumentBytes, cfg.Store.MaxDocumentBytes)
	assert.Equal(t, DefaultListenAddr, cfg.Transport.ListenAddr)
	assert.Equal(t, DefaultTimeout, cfg.Transport.Timeout)
	assert.Equal(t, DefaultNotAcceptedRetries, cfg.Client.NotAcceptedRetries)
	assert.Equal(t, 0, cfg.Executor.DefaultSpillThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
store:
  backend: postgres
  max_document_bytes: 4096
  postgres_url: postgres://docgraph:secret@db:5432/docgraph
transport:
  listen_addr: tcp://0.0.0.0:7400
  timeout: 5s
  compress: true
executor:
  default_spill_threshold: 50
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 4096, cfg.Store.MaxDocumentBytes)
	assert.Equal(t, "tcp://0.0.0.0:7400", cfg.Transport.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Transport.Timeout)
	assert.True(t, cfg.Transport.Compress)
	assert.Equal(t, 50, cfg.Executor.DefaultSpillThreshold)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.ListenAddr, "unset keys keep their defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "executor:\n  default_spill_threshold: 50\nlog_level: debug\n")
	t.Setenv(EnvPrefix+"SPILL_THRESHOLD", "7")
	t.Setenv(EnvPrefix+"TRANSPORT_TIMEOUT", "12")
	t.Setenv(EnvPrefix+"TRANSPORT_COMPRESS", "yes")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Executor.DefaultSpillThreshold)
	assert.Equal(t, 12*time.Second, cfg.Transport.Timeout)
	assert.True(t, cfg.Transport.Compress)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv(EnvPrefix+"LOG_LEVEL", "error")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel, "prefixed variable wins")
}

func TestDynamoDBLowersDefaultDocumentSize(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"STORE_BACKEND", "dynamodb")
	t.Setenv(EnvPrefix+"DYNAMO_REGION", "eu-west-1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DynamoMaxDocumentBytes, cfg.Store.MaxDocumentBytes)

	t.Setenv(EnvPrefix+"MAX_DOCUMENT_BYTES", "1048576")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.max_document_bytes")
}

func TestInvalidEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"MAX_DOCUMENT_BYTES", "lots")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCGRAPH_MAX_DOCUMENT_BYTES")
}

func TestMalformedFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "store: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, []string{"store.backend"}},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }, []string{"store.postgres_url"}},
		{"dynamodb without region", func(c *Config) { c.Store.Backend = BackendDynamoDB }, []string{"store.dynamo_region"}},
		{
			"dynamodb document size over item limit",
			func(c *Config) {
				c.Store.Backend = BackendDynamoDB
				c.Store.DynamoRegion = "eu-west-1"
				c.Store.MaxDocumentBytes = 400 << 10
			},
			[]string{"store.max_document_bytes"},
		},
		{
			"dynamodb within item limit",
			func(c *Config) {
				c.Store.Backend = BackendDynamoDB
				c.Store.DynamoRegion = "eu-west-1"
				c.Store.MaxDocumentBytes = DynamoMaxDocumentBytes
			},
			nil,
		},
		{"zero document size", func(c *Config) { c.Store.MaxDocumentBytes = 0 }, []string{"store.max_document_bytes"}},
		{"negative threshold", func(c *Config) { c.Executor.DefaultSpillThreshold = -1 }, []string{"executor.default_spill_threshold"}},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, []string{"config.log_level"}},
		{
			"every problem reported",
			func(c *Config) {
				c.Transport.Timeout = 0
				c.Client.NotAcceptedRetries = -1
			},
			[]string{"transport.timeout", "client.not_accepted_retries"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestStringRedactsCredentials(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = BackendPostgres
	cfg.Store.PostgresURL = "postgres://docgraph:secret@db:5432/docgraph"

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "db:5432")
}
