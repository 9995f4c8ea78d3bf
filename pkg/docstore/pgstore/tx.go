package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

type pgTx struct {
	tx               pgx.Tx
	maxDocumentBytes int
}

func (t *pgTx) checkSize(op string, doc *docstore.Document) error {
	if len(doc.Body) > t.maxDocumentBytes {
		return docstore.NewHostError(op, doc.ID, docstore.ErrTooLarge)
	}
	return nil
}

// Create implements docstore.Host
func (t *pgTx) Create(ctx context.Context, doc *docstore.Document, autoID bool) (*docstore.Document, error) {
	next := doc.Clone()
	if next.ID == "" {
		if !autoID {
			return nil, docstore.NewHostError("create", "", errors.New("document id is required without autoID"))
		}
		next.ID = uuid.NewString()
	}
	if next.PartitionKey == "" {
		next.PartitionKey = next.ID
	}
	if err := t.checkSize("create", next); err != nil {
		return nil, err
	}
	next.ETag = uuid.NewString()

	query := `
		INSERT INTO documents (id, partition_key, etag, body)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, next.ID, next.PartitionKey, next.ETag, string(next.Body))
	if err != nil {
		return nil, mapError("create", next.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, docstore.NewHostError("create", next.ID, docstore.ErrConflict)
	}
	return next, nil
}

// Replace implements docstore.Host
func (t *pgTx) Replace(ctx context.Context, doc *docstore.Document, expectedETag string) (*docstore.Document, error) {
	next := doc.Clone()
	current, err := t.Retrieve(ctx, next.ID)
	if err != nil {
		return nil, err
	}
	if expectedETag != "" && current.ETag != expectedETag {
		return nil, docstore.NewHostError("replace", next.ID, docstore.ErrPreconditionFailed)
	}
	if next.PartitionKey == "" {
		next.PartitionKey = current.PartitionKey
	}
	if err := t.checkSize("replace", next); err != nil {
		return nil, err
	}
	next.ETag = uuid.NewString()

	query := `
		UPDATE documents
		SET partition_key = $2, etag = $3, body = $4::jsonb
		WHERE id = $1 AND etag = $5
	`
	tag, err := t.tx.Exec(ctx, query, next.ID, next.PartitionKey, next.ETag, string(next.Body), current.ETag)
	if err != nil {
		return nil, mapError("replace", next.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, docstore.NewHostError("replace", next.ID, docstore.ErrPreconditionFailed)
	}
	return next, nil
}

// Delete implements docstore.Host
func (t *pgTx) Delete(ctx context.Context, id string, expectedETag string) error {
	query := `DELETE FROM documents WHERE id = $1 AND ($2 = '' OR etag = $2)`
	tag, err := t.tx.Exec(ctx, query, id, expectedETag)
	if err != nil {
		return mapError("delete", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := t.Retrieve(ctx, id); err != nil {
		return err
	}
	return docstore.NewHostError("delete", id, docstore.ErrPreconditionFailed)
}

// Retrieve implements docstore.Host
func (t *pgTx) Retrieve(ctx context.Context, id string) (*docstore.Document, error) {
	query := `SELECT id, partition_key, etag, body::text FROM documents WHERE id = $1`

	doc := &docstore.Document{}
	var body string
	err := t.tx.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.PartitionKey, &doc.ETag, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.NewHostError("retrieve", id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, mapError("retrieve", id, err)
	}
	doc.Body = []byte(body)
	return doc, nil
}

// QueryByField implements docstore.Host
func (t *pgTx) QueryByField(ctx context.Context, field string, value any) ([]*docstore.Document, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query value: %w", err)
	}

	query := `
		SELECT id, partition_key, etag, body::text
		FROM documents
		WHERE body -> $1 = $2::jsonb
		ORDER BY id
	`
	rows, err := t.tx.Query(ctx, query, field, string(want))
	if err != nil {
		return nil, mapError("query", "", err)
	}
	defer rows.Close()

	var docs []*docstore.Document
	for rows.Next() {
		doc := &docstore.Document{}
		var body string
		if err := rows.Scan(&doc.ID, &doc.PartitionKey, &doc.ETag, &body); err != nil {
			return nil, mapError("query", "", err)
		}
		doc.Body = []byte(body)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("query", "", err)
	}
	return docs, nil
}

// Commit implements docstore.Tx
func (t *pgTx) Commit(ctx context.Context) error {
	return mapError("commit", "", t.tx.Commit(ctx))
}

// Rollback implements docstore.Tx
func (t *pgTx) Rollback(ctx context.Context) error {
	return mapError("rollback", "", t.tx.Rollback(ctx))
}

var _ docstore.Tx = (*pgTx)(nil)
