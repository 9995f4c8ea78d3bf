// Package pgstore is a PostgreSQL document host. Each batch runs in one SQL
// transaction; etag preconditions become conditional UPDATE/DELETE statements.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// PGStore stores documents in a single PostgreSQL table
type PGStore struct {
	pool             *pgxpool.Pool
	maxDocumentBytes int
}

// NewPGStore connects to databaseURL and creates the documents table if needed
func NewPGStore(ctx context.Context, databaseURL string, maxDocumentBytes int) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if maxDocumentBytes <= 0 {
		maxDocumentBytes = docstore.DefaultMaxDocumentBytes
	}
	s := &PGStore{pool: pool, maxDocumentBytes: maxDocumentBytes}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// Begin implements docstore.Store
func (s *PGStore) Begin(ctx context.Context) (docstore.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, mapError("begin", "", err)
	}
	return &pgTx{tx: tx, maxDocumentBytes: s.maxDocumentBytes}, nil
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// mapError converts a pgx error into a docstore.HostError
func mapError(op, docID string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		cause := err
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			cause = fmt.Errorf("%w: %v", docstore.ErrNotAccepted, err)
		case "23505": // unique_violation
			cause = fmt.Errorf("%w: %v", docstore.ErrConflict, err)
		case "54000": // program_limit_exceeded
			cause = fmt.Errorf("%w: %v", docstore.ErrTooLarge, err)
		}
		return &docstore.HostError{Op: op, DocID: docID, Code: pgErr.Code, Cause: cause}
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return &docstore.HostError{Op: op, DocID: docID, Code: "500", Cause: docstore.ErrTxDone}
	}
	return docstore.NewHostError(op, docID, err)
}

var _ docstore.Store = (*PGStore)(nil)
