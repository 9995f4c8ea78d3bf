package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-docgraph/pkg/bulk"
	"github.com/dd0wney/cluso-docgraph/pkg/config"
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
	"github.com/dd0wney/cluso-docgraph/pkg/transport"
)

// Nodes CSV: id,label,<property columns...>
// Edges CSV: id,label,src,dst,<property columns...> (blank id generates one)

func main() {
	configPath := flag.String("config", os.Getenv("DOCGRAPH_CONFIG"), "Path to YAML config file")
	dial := flag.String("dial", "", "Override executor address")
	request := flag.String("request", "", "Send a raw JSON request file and print the response")
	nodesFile := flag.String("nodes", "", "Path to nodes.csv")
	edgesFile := flag.String("edges", "", "Path to edges.csv")
	batchSize := flag.Int("batch", 100, "Operations per batch")
	threshold := flag.Int("threshold", 0, "Spill threshold sent with edge operations (0 = executor default)")
	flag.Parse()

	if *request == "" && *nodesFile == "" {
		fmt.Println("Usage:")
		fmt.Println("  docgraph-bulk --request batch.json [--dial tcp://host:7400]")
		fmt.Println("  docgraph-bulk --nodes nodes.csv [--edges edges.csv] [--batch 100] [--threshold 0]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgraph-bulk: %v\n", err)
		os.Exit(1)
	}
	if *dial != "" {
		cfg.Transport.DialAddr = *dial
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(logger)

	client, err := transport.Dial(cfg.Transport.DialAddr,
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithCompression(cfg.Transport.Compress),
		transport.WithClientLogger(logger))
	if err != nil {
		logger.Error("dial failed", logging.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *request != "" {
		err = sendRaw(ctx, client, *request, os.Stdout)
	} else {
		l := &loader{
			batch: bulk.NewBatch(client, bulk.NewVersionCache(),
				bulk.WithLogger(logger),
				bulk.WithMetrics(metrics.DefaultRegistry()),
				bulk.WithNotAcceptedRetries(cfg.Client.NotAcceptedRetries)),
			vertices:  make(map[string]*bulk.VertexField),
			batchSize: *batchSize,
			threshold: *threshold,
			logger:    logger,
		}
		err = l.run(ctx, *nodesFile, *edgesFile)
	}
	if err != nil {
		logger.Error("docgraph-bulk failed", logging.Error(err))
		os.Exit(1)
	}
}

func sendRaw(ctx context.Context, t transport.Transport, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	resp, err := t.RoundTrip(ctx, &req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

type loader struct {
	batch     *bulk.Batch
	vertices  map[string]*bulk.VertexField
	batchSize int
	threshold int
	logger    logging.Logger

	pending []bulk.Operation
	applied int
}

func (l *loader) run(ctx context.Context, nodesFile, edgesFile string) error {
	start := time.Now()
	if err := l.readCSV(nodesFile, 2, l.addVertex); err != nil {
		return err
	}
	if err := l.flush(ctx); err != nil {
		return err
	}
	l.logger.Info("vertices loaded", logging.Count(len(l.vertices)), logging.Latency(time.Since(start)))

	if edgesFile == "" {
		return nil
	}
	start = time.Now()
	l.applied = 0
	err := l.readCSV(edgesFile, 4, func(header, row []string) error {
		if err := l.addEdge(header, row); err != nil {
			return err
		}
		if len(l.pending) >= l.batchSize {
			return l.flush(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := l.flush(ctx); err != nil {
		return err
	}
	l.logger.Info("edges loaded", logging.Count(l.applied/2), logging.Latency(time.Since(start)))
	return nil
}

// readCSV calls fn for every row after the header. Rows shorter than min
// columns are rejected.
func (l *loader) readCSV(path string, min int, fn func(header, row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: failed to read header: %w", path, err)
	}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if len(row) < min {
			return fmt.Errorf("%s:%d: expected at least %d columns, got %d", path, line, min, len(row))
		}
		if err := fn(header, row); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
}

func (l *loader) addVertex(header, row []string) error {
	id := row[0]
	if _, dup := l.vertices[id]; dup {
		return fmt.Errorf("duplicate vertex %q", id)
	}
	v := bulk.NewVertexField(id, row[1])
	for i := 2; i < len(row) && i < len(header); i++ {
		if row[i] == "" {
			continue
		}
		v.SetProperty(header[i], graph.PropertyValue{ID: uuid.NewString(), Value: row[i]}, true)
	}
	l.vertices[id] = v
	l.pending = append(l.pending, bulk.NewAddVertex(v))
	return nil
}

func (l *loader) addEdge(header, row []string) error {
	src, ok := l.vertices[row[2]]
	if !ok {
		return fmt.Errorf("unknown source vertex %q", row[2])
	}
	sink, ok := l.vertices[row[3]]
	if !ok {
		return fmt.Errorf("unknown sink vertex %q", row[3])
	}

	id := row[0]
	if id == "" {
		id = uuid.NewString()
	}
	props := make(map[string]any)
	for i := 4; i < len(row) && i < len(header); i++ {
		if row[i] != "" {
			props[header[i]] = row[i]
		}
	}

	out, in := bulk.NewEdgeSides(id, row[1], src, sink, props)
	l.pending = append(l.pending,
		bulk.NewAddEdge(l.batch.Cache(), src, out, l.threshold),
		bulk.NewAddEdge(l.batch.Cache(), sink, in, l.threshold))
	return nil
}

func (l *loader) flush(ctx context.Context) error {
	for len(l.pending) > 0 {
		n := len(l.pending)
		if l.batchSize > 0 && n > l.batchSize {
			n = l.batchSize
		}
		if _, err := l.batch.Execute(ctx, l.pending[:n]...); err != nil {
			return err
		}
		l.applied += n
		l.pending = l.pending[n:]
	}
	l.pending = nil
	return nil
}
