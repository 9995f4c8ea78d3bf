package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DOCGRAPH_"

// applyEnv overrides cfg from DOCGRAPH_* variables. LOG_LEVEL is honoured
// when DOCGRAPH_LOG_LEVEL is unset.
func applyEnv(cfg *Config) error {
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.PostgresURL, "POSTGRES_URL")
	setString(&cfg.Store.DynamoTable, "DYNAMO_TABLE")
	setString(&cfg.Store.DynamoRegion, "DYNAMO_REGION")
	setString(&cfg.Store.DynamoEndpoint, "DYNAMO_ENDPOINT")
	setString(&cfg.Transport.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Transport.DialAddr, "DIAL_ADDR")
	setString(&cfg.Metrics.ListenAddr, "METRICS_ADDR")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	setString(&cfg.LogLevel, "LOG_LEVEL")

	for _, f := range []func() error{
		func() error { return setInt(&cfg.Store.MaxDocumentBytes, "MAX_DOCUMENT_BYTES") },
		func() error { return setInt(&cfg.Transport.Workers, "TRANSPORT_WORKERS") },
		func() error { return setInt(&cfg.Executor.DefaultSpillThreshold, "SPILL_THRESHOLD") },
		func() error { return setInt(&cfg.Client.NotAcceptedRetries, "NOT_ACCEPTED_RETRIES") },
		func() error { return setDuration(&cfg.Transport.Timeout, "TRANSPORT_TIMEOUT") },
		func() error { return setBool(&cfg.Transport.Compress, "TRANSPORT_COMPRESS") },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: invalid integer %q", EnvPrefix, name, v)
	}
	*dst = n
	return nil
}

// setDuration accepts a Go duration or a whole number of seconds
func setDuration(dst *time.Duration, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	return fmt.Errorf("%s%s: invalid duration %q", EnvPrefix, name, v)
}

func setBool(dst *bool, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("%s%s: invalid boolean %q", EnvPrefix, name, v)
	}
	return nil
}
