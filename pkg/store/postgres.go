// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDB is the subset of pgxpool.Pool the repository uses. Tests satisfy
// it with pgxmock.
type PgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository on PostgreSQL. Chunk
// embeddings live in a pgvector column and chunk content carries a
// full-text index, shared with the pgvector search backend.
type PostgresRepository struct {
	db   PgDB
	pool *pgxpool.Pool
}

// NewPostgresRepository connects and prepares the schema.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := NewPostgresRepositoryWithDB(pool)
	repo.pool = pool

	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepositoryWithDB wraps an existing connection (or mock)
// without touching the schema.
func NewPostgresRepositoryWithDB(db PgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			source TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			content_hash TEXT NOT NULL DEFAULT '',
			chunk_count INT NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS documents_hash_idx ON documents (collection_id, content_hash)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			chunk_index INT NOT NULL,
			start_char INT NOT NULL DEFAULT 0,
			end_char INT NOT NULL DEFAULT 0,
			token_count INT NOT NULL DEFAULT 0,
			embedding vector,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_fts_idx
			ON chunks USING GIN (to_tsvector('english', content))`,
		`CREATE TABLE IF NOT EXISTS test_cases (
			id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			query TEXT NOT NULL,
			expected_ids TEXT[] NOT NULL DEFAULT '{}',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_runs (
			id UUID PRIMARY KEY,
			collection_id UUID,
			status TEXT NOT NULL DEFAULT 'running',
			config JSONB NOT NULL DEFAULT '{}',
			aggregate_metrics JSONB NOT NULL DEFAULT '{}',
			per_case_results JSONB NOT NULL DEFAULT '[]',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CreateCollection(ctx context.Context, name string, metadata map[string]any) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}

	collection := &Collection{
		ID:        NewID(),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	metadataJSON, err := encodeJSON(metadata)
	if err != nil {
		return nil, err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO collections (id, name, metadata, created_at) VALUES ($1, $2, $3, $4)`,
		collection.ID, collection.Name, metadataJSON, collection.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: collection %q", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return collection, nil
}

func (r *PostgresRepository) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var c Collection
	var metadataJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT c.id, c.name, c.metadata, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id AND d.status != 'deleted')
		FROM collections c WHERE c.name = $1`, name).
		Scan(&c.ID, &c.Name, &metadataJSON, &c.CreatedAt, &c.DocumentCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if err := decodeJSON(metadataJSON, &c.Metadata); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.name, c.metadata, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id AND d.status != 'deleted')
		FROM collections c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		var metadataJSON []byte
		if err := rows.Scan(&c.ID, &c.Name, &metadataJSON, &c.CreatedAt, &c.DocumentCount); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		if err := decodeJSON(metadataJSON, &c.Metadata); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteCollection(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: collection %s", ErrNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = NewID()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, collection_id, source, title, status, content_hash, chunk_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.CollectionID, doc.Source, doc.Title, string(doc.Status),
		doc.ContentHash, doc.ChunkCount, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

const documentColumns = `id, collection_id, source, title, status, content_hash, chunk_count, error_message, created_at, updated_at`

func (r *PostgresRepository) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return doc, err
}

func (r *PostgresRepository) FindDocumentByHash(ctx context.Context, collectionID, hash string) (*Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE collection_id = $1 AND content_hash = $2 AND status != 'deleted'
		LIMIT 1`, collectionID, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document with hash %s", ErrNotFound, hash)
	}
	return doc, err
}

func (r *PostgresRepository) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	sql := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any
	if filter.CollectionID != "" {
		args = append(args, filter.CollectionID)
		sql += fmt.Sprintf(` AND collection_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		sql += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	sql += ` ORDER BY created_at`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		sql += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus, errorMessage string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		id, string(status), errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) SetDocumentChunkCount(ctx context.Context, id string, count int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET chunk_count = $2, updated_at = now() WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) CreateChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := validateChunkIndexes(chunks); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = NewID()
		}
		chunks[i].DocumentID = documentID
		chunks[i].CreatedAt = time.Now()

		metadataJSON, err := encodeJSON(chunks[i].Metadata)
		if err != nil {
			return err
		}

		var embedding any
		if chunks[i].Embedding != nil {
			embedding = formatPgVector(chunks[i].Embedding)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, content, chunk_index, start_char, end_char, token_count, embedding, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9, $10)`,
			chunks[i].ID, documentID, chunks[i].Content, chunks[i].ChunkIndex,
			chunks[i].StartChar, chunks[i].EndChar, chunks[i].TokenCount,
			embedding, metadataJSON, chunks[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListChunks(ctx context.Context, filter ChunkFilter) ([]Chunk, error) {
	sql := `SELECT c.id, c.document_id, c.content, c.chunk_index, c.start_char, c.end_char,
			c.token_count, c.embedding::text, c.metadata, c.created_at
		FROM chunks c`
	var args []any
	var where []string

	if filter.CollectionID != "" {
		sql += ` JOIN documents d ON d.id = c.document_id`
		args = append(args, filter.CollectionID)
		where = append(where, fmt.Sprintf(`d.collection_id = $%d`, len(args)))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		where = append(where, fmt.Sprintf(`c.document_id = $%d`, len(args)))
	}
	if filter.WithoutEmbedding {
		where = append(where, `c.embedding IS NULL`)
	}
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sql += ` ORDER BY c.document_id, c.chunk_index`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		sql += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var chunk Chunk
		var embedding *string
		var metadataJSON []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex,
			&chunk.StartChar, &chunk.EndChar, &chunk.TokenCount, &embedding,
			&metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if embedding != nil {
			chunk.Embedding = parsePgVector(*embedding)
		}
		if err := decodeJSON(metadataJSON, &chunk.Metadata); err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chunks SET embedding = $2::vector WHERE id = $1`,
		chunkID, formatPgVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to update chunk embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID)
	}
	return nil
}

func (r *PostgresRepository) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	var d Diagnostics
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM collections),
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM chunks WHERE embedding IS NULL),
			(SELECT COUNT(*) FROM documents WHERE status = 'failed'),
			COALESCE(pg_total_relation_size('chunks'), 0)`).
		Scan(&d.Collections, &d.Documents, &d.Chunks,
			&d.ChunksWithoutEmbedding, &d.FailedDocuments, &d.StorageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) EmbeddingWidths(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT vector_dims(embedding), COUNT(*) FROM chunks
		WHERE embedding IS NOT NULL GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding widths: %w", err)
	}
	defer rows.Close()

	widths := make(map[int]int)
	for rows.Next() {
		var width, count int
		if err := rows.Scan(&width, &count); err != nil {
			return nil, fmt.Errorf("failed to scan embedding width: %w", err)
		}
		widths[width] = count
	}
	return widths, rows.Err()
}

func (r *PostgresRepository) ResetFailedDocuments(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = 'pending', error_message = '', updated_at = now()
		WHERE status = 'failed'`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) PurgeDeletedDocuments(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE status = 'deleted'`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) CreateTestCase(ctx context.Context, tc *TestCase) error {
	if tc.ID == "" {
		tc.ID = NewID()
	}
	tc.CreatedAt = time.Now()

	metadataJSON, err := encodeJSON(tc.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO test_cases (id, collection_id, query, expected_ids, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tc.ID, tc.CollectionID, tc.Query, tc.ExpectedIDs, metadataJSON, tc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create test case: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListTestCases(ctx context.Context, collectionID string) ([]TestCase, error) {
	sql := `SELECT id, collection_id, query, expected_ids, metadata, created_at FROM test_cases`
	var args []any
	if collectionID != "" {
		args = append(args, collectionID)
		sql += ` WHERE collection_id = $1`
	}
	sql += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	var out []TestCase
	for rows.Next() {
		var tc TestCase
		var metadataJSON []byte
		if err := rows.Scan(&tc.ID, &tc.CollectionID, &tc.Query, &tc.ExpectedIDs, &metadataJSON, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		if err := decodeJSON(metadataJSON, &tc.Metadata); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	run.StartedAt = time.Now()

	configJSON, err := encodeJSON(run.Config)
	if err != nil {
		return err
	}
	aggregateJSON, err := json.Marshal(run.AggregateMetrics)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate metrics: %w", err)
	}
	perCaseJSON, err := json.Marshal(run.PerCaseResults)
	if err != nil {
		return fmt.Errorf("failed to encode per-case results: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO evaluation_runs (id, collection_id, status, config, aggregate_metrics, per_case_results, started_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, nullable(run.CollectionID), string(run.Status), configJSON, aggregateJSON, perCaseJSON,
		run.StartedAt, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to create evaluation run: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	aggregateJSON, err := json.Marshal(run.AggregateMetrics)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate metrics: %w", err)
	}
	perCaseJSON, err := json.Marshal(run.PerCaseResults)
	if err != nil {
		return fmt.Errorf("failed to encode per-case results: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE evaluation_runs
		SET status = $2, aggregate_metrics = $3, per_case_results = $4, completed_at = $5, error_message = $6
		WHERE id = $1`,
		run.ID, string(run.Status), aggregateJSON, perCaseJSON, run.CompletedAt, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to update evaluation run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: evaluation run %s", ErrNotFound, run.ID)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*Document, error) {
	var doc Document
	var status string
	err := row.Scan(&doc.ID, &doc.CollectionID, &doc.Source, &doc.Title, &status,
		&doc.ContentHash, &doc.ChunkCount, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = DocumentStatus(status)
	return &doc, nil
}

func encodeJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

func decodeJSON(data []byte, out *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatPgVector(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}

func parsePgVector(text string) []float32 {
	text = strings.Trim(text, "[]")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		var v float32
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%g", &v); err != nil {
			return nil
		}
		vec = append(vec, v)
	}
	return vec
}

var _ Repository = (*PostgresRepository)(nil)
