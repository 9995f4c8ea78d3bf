// Package config loads process configuration from defaults, an optional
// YAML file and DOCGRAPH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-docgraph/pkg/validation"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Defaults
const (
	DefaultMaxDocumentBytes   = 2 << 20
	DefaultListenAddr         = "tcp://127.0.0.1:7400"
	DefaultTimeout            = 30 * time.Second
	DefaultNotAcceptedRetries = 3
	DefaultMetricsAddr        = ":9464"
	DefaultDynamoTable        = "docgraph"

	// DynamoMaxDocumentBytes keeps a body plus its key and etag attributes
	// under DynamoDB's 400 KB item limit.
	DynamoMaxDocumentBytes = 400<<10 - 4<<10
)

// Config is the complete process configuration
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Transport TransportConfig `yaml:"transport"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Client    ClientConfig    `yaml:"client"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Backend          string `yaml:"backend"`
	MaxDocumentBytes int    `yaml:"max_document_bytes"`
	PostgresURL      string `yaml:"postgres_url"`
	DynamoTable      string `yaml:"dynamo_table"`
	DynamoRegion     string `yaml:"dynamo_region"`
	DynamoEndpoint   string `yaml:"dynamo_endpoint"`
}

// TransportConfig configures the mangos socket between client and executor
type TransportConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	DialAddr   string        `yaml:"dial_addr"`
	Timeout    time.Duration `yaml:"timeout"`
	Compress   bool          `yaml:"compress"`
	Workers    int           `yaml:"workers"`
}

// ExecutorConfig configures batch execution
type ExecutorConfig struct {
	// DefaultSpillThreshold applies to operations that do not set their own.
	// Zero leaves spilling to the document size limit.
	DefaultSpillThreshold int `yaml:"default_spill_threshold"`
}

// ClientConfig configures bulk batches
type ClientConfig struct {
	NotAcceptedRetries int `yaml:"not_accepted_retries"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:          BackendMemory,
			MaxDocumentBytes: DefaultMaxDocumentBytes,
			DynamoTable:      DefaultDynamoTable,
		},
		Transport: TransportConfig{
			ListenAddr: DefaultListenAddr,
			DialAddr:   DefaultListenAddr,
			Timeout:    DefaultTimeout,
			Workers:    4,
		},
		Client:   ClientConfig{NotAcceptedRetries: DefaultNotAcceptedRetries},
		Metrics:  MetricsConfig{ListenAddr: DefaultMetricsAddr},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty; a missing file is not
// an error. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyBackendDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyBackendDefaults lowers a size limit left at the generic default to
// what the chosen backend can hold.
func (c *Config) applyBackendDefaults() {
	if c.Store.Backend == BackendDynamoDB && c.Store.MaxDocumentBytes == DefaultMaxDocumentBytes {
		c.Store.MaxDocumentBytes = DynamoMaxDocumentBytes
	}
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	store := validation.NewConfigValidator("store").
		OneOf("backend", c.Store.Backend, BackendMemory, BackendPostgres, BackendDynamoDB).
		Positive("max_document_bytes", c.Store.MaxDocumentBytes).
		When(c.Store.Backend == BackendPostgres, func(v *validation.ConfigValidator) {
			v.Required("postgres_url", c.Store.PostgresURL)
		}).
		When(c.Store.Backend == BackendDynamoDB, func(v *validation.ConfigValidator) {
			v.Required("dynamo_table", c.Store.DynamoTable).
				Required("dynamo_region", c.Store.DynamoRegion).
				Custom("max_document_bytes", func() error {
					if c.Store.MaxDocumentBytes > DynamoMaxDocumentBytes {
						return fmt.Errorf("value %d exceeds the DynamoDB limit of %d", c.Store.MaxDocumentBytes, DynamoMaxDocumentBytes)
					}
					return nil
				})
		})
	errs = append(errs, store.Errors()...)

	transport := validation.NewConfigValidator("transport").
		Required("listen_addr", c.Transport.ListenAddr).
		PositiveDuration("timeout", c.Transport.Timeout).
		Positive("workers", c.Transport.Workers)
	errs = append(errs, transport.Errors()...)

	errs = append(errs, validation.NewConfigValidator("executor").
		NonNegative("default_spill_threshold", c.Executor.DefaultSpillThreshold).
		Errors()...)
	errs = append(errs, validation.NewConfigValidator("client").
		NonNegative("not_accepted_retries", c.Client.NotAcceptedRetries).
		Errors()...)
	errs = append(errs, validation.NewConfigValidator("config").
		OneOf("log_level", strings.ToLower(c.LogLevel), "debug", "info", "warn", "warning", "error").
		Errors()...)

	return errors.Join(errs...)
}

// String describes the configuration without credentials
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s (%s, max %d bytes), Listen: %s, Metrics: %s, SpillThreshold: %d, LogLevel: %s}",
		c.Store.Backend, redactURL(c.Store.PostgresURL), c.Store.MaxDocumentBytes,
		c.Transport.ListenAddr, c.Metrics.ListenAddr, c.Executor.DefaultSpillThreshold, c.LogLevel)
}

func redactURL(raw string) string {
	if raw == "" {
		return "-"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
