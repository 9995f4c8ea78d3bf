package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-docgraph/pkg/config"
	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/docstore/dynamostore"
	"github.com/dd0wney/cluso-docgraph/pkg/docstore/pgstore"
	"github.com/dd0wney/cluso-docgraph/pkg/executor"
	"github.com/dd0wney/cluso-docgraph/pkg/health"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/server"
	"github.com/dd0wney/cluso-docgraph/pkg/transport"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOCGRAPH_CONFIG"), "Path to YAML config file")
	listen := flag.String("listen", "", "Override transport listen address")
	flag.Parse()

	if err := run(*configPath, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "docgraph-executor: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Transport.ListenAddr = listen
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(logger)
	logger.Info("docgraph executor starting", logging.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := metrics.DefaultRegistry()
	exec := executor.New(store,
		executor.WithLogger(logger),
		executor.WithMetrics(reg),
		executor.WithDefaultSpillThreshold(cfg.Executor.DefaultSpillThreshold))

	srv := transport.NewServer(exec,
		transport.WithWorkers(cfg.Transport.Workers),
		transport.WithServerCompression(cfg.Transport.Compress),
		transport.WithServerLogger(logger),
		transport.WithServerMetrics(reg))
	if err := srv.Listen(cfg.Transport.ListenAddr); err != nil {
		return err
	}
	defer srv.Close()

	checker := health.NewChecker()
	checker.RegisterLivenessCheck("process", health.Alive("process"))
	checker.RegisterReadinessCheck("store", health.StoreCheck(store))
	checker.RegisterReadinessCheck("transport", health.ListenerCheck(cfg.Transport.ListenAddr, srv.Listening))

	ops := server.NewOpsServer(cfg.Metrics.ListenAddr, reg, checker, logger)
	go func() {
		if err := ops.Start(); err != nil {
			logger.Error("ops server failed", logging.Error(err))
		}
	}()
	go collectSystemMetrics(ctx, reg)

	<-ctx.Done()
	logger.Info("shutting down")
	if err := ops.Shutdown(10 * time.Second); err != nil {
		logger.Warn("ops server shutdown incomplete", logging.Error(err))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(cfg.Store.MaxDocumentBytes), nil
	case config.BackendPostgres:
		return pgstore.NewPGStore(ctx, cfg.Store.PostgresURL, cfg.Store.MaxDocumentBytes)
	case config.BackendDynamoDB:
		return dynamostore.NewDynamoStore(ctx, dynamostore.Options{
			Table:            cfg.Store.DynamoTable,
			Region:           cfg.Store.DynamoRegion,
			Endpoint:         cfg.Store.DynamoEndpoint,
			MaxDocumentBytes: cfg.Store.MaxDocumentBytes,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func collectSystemMetrics(ctx context.Context, reg *metrics.Registry) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		reg.UpdateSystemMetrics()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
