package pgstore

import "context"

// migrate creates the documents table
func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		partition_key TEXT NOT NULL,
		etag TEXT NOT NULL,
		body JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_partition_key ON documents(partition_key);
	CREATE INDEX IF NOT EXISTS idx_documents_overflow_vertex ON documents((body->>'_vertexId'));
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}
