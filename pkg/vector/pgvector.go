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

package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDB is the subset of pgxpool.Pool the backend uses. Tests satisfy it
// with pgxmock.
type PgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgvectorConfig configures the pgvector backend.
type PgvectorConfig struct {
	// DSN is the PostgreSQL connection string. Required unless a DB is
	// injected directly.
	DSN string `yaml:"dsn"`

	// Language is the default text search configuration. Default: english.
	Language string `yaml:"language,omitempty"`
}

// PgvectorStore implements Store on PostgreSQL with the pgvector
// extension. Items live in one table keyed by (index_id, id), with a
// dense vector column for similarity search and a tsvector expression
// index for full-text search, which makes this the only backend with
// true hybrid retrieval.
type PgvectorStore struct {
	db       PgDB
	pool     *pgxpool.Pool
	language string
}

// NewPgvectorStore connects to PostgreSQL and prepares the schema.
func NewPgvectorStore(ctx context.Context, cfg PgvectorConfig) (*PgvectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN is required for pgvector backend")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := NewPgvectorStoreWithDB(pool, cfg.Language)
	store.pool = pool

	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPgvectorStoreWithDB wraps an existing connection (or mock) without
// touching the schema.
func NewPgvectorStoreWithDB(db PgDB, language string) *PgvectorStore {
	if language == "" {
		language = "english"
	}
	return &PgvectorStore{db: db, language: language}
}

func (s *PgvectorStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS vector_indexes (
			id TEXT PRIMARY KEY,
			dimensions INT NOT NULL,
			metric TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vector_items (
			index_id TEXT NOT NULL REFERENCES vector_indexes(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			embedding vector NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (index_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS vector_items_fts_idx
			ON vector_items USING GIN (to_tsvector('english', content))`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

func (s *PgvectorStore) CreateIndex(ctx context.Context, id string, index Index) error {
	index.SetDefaults()
	if err := index.Validate(); err != nil {
		return fmt.Errorf("invalid index config: %w", err)
	}

	var existing int
	err := s.db.QueryRow(ctx,
		`SELECT dimensions FROM vector_indexes WHERE id = $1`, id).Scan(&existing)
	if err == nil {
		if existing != index.Dimensions {
			return fmt.Errorf("%w: index %q has %d dimensions, requested %d",
				ErrDimensionMismatch, id, existing, index.Dimensions)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check index: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO vector_indexes (id, dimensions, metric) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
		id, index.Dimensions, string(index.Metric))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (s *PgvectorStore) DeleteIndex(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM vector_indexes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	return nil
}

func (s *PgvectorStore) IndexExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM vector_indexes WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	return exists, nil
}

func (s *PgvectorStore) IndexStats(ctx context.Context, id string) (*IndexStats, error) {
	var stats IndexStats
	var metric string
	err := s.db.QueryRow(ctx,
		`SELECT i.dimensions, i.metric,
			(SELECT COUNT(*) FROM vector_items WHERE index_id = i.id)
		FROM vector_indexes i WHERE i.id = $1`, id).
		Scan(&stats.Dimensions, &metric, &stats.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	stats.Metric = Metric(metric)
	return &stats, nil
}

func (s *PgvectorStore) Store(ctx context.Context, indexID, id string, vec []float32, metadata map[string]any) error {
	dims, _, err := s.indexConfig(ctx, indexID)
	if err != nil {
		return err
	}
	if len(vec) != dims {
		return fmt.Errorf("%w: got %d dimensions, index %q expects %d",
			ErrDimensionMismatch, len(vec), indexID, dims)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, upsertItemSQL,
		indexID, id, formatVector(vec), contentOf(metadata), metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

const upsertItemSQL = `INSERT INTO vector_items (index_id, id, embedding, content, metadata)
	VALUES ($1, $2, $3::vector, $4, $5)
	ON CONFLICT (index_id, id) DO UPDATE
	SET embedding = EXCLUDED.embedding, content = EXCLUDED.content, metadata = EXCLUDED.metadata`

func (s *PgvectorStore) StoreBatch(ctx context.Context, indexID string, items []Item) error {
	dims, _, err := s.indexConfig(ctx, indexID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if len(item.Vector) != dims {
			return fmt.Errorf("%w: item %q has %d dimensions, index %q expects %d",
				ErrDimensionMismatch, item.ID, len(item.Vector), indexID, dims)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range items {
		metadataJSON, err := marshalMetadata(item.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, upsertItemSQL,
			indexID, item.ID, formatVector(item.Vector), contentOf(item.Metadata), metadataJSON)
		if err != nil {
			return fmt.Errorf("failed to upsert item %q: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PgvectorStore) Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error) {
	mode := opts.Mode
	if mode != "" && mode != ModeVector {
		return nil, fmt.Errorf("pgvector backend: use FulltextSearch for mode %q", mode)
	}

	dims, metric, err := s.indexConfig(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if len(vec) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %q expects %d",
			ErrDimensionMismatch, len(vec), indexID, dims)
	}
	if opts.Metric != "" {
		metric = opts.Metric
	}

	var scoreExpr string
	switch metric {
	case MetricEuclidean:
		scoreExpr = `1 - (embedding <-> $2::vector)`
	case MetricDot:
		scoreExpr = `-(embedding <#> $2::vector)`
	default:
		scoreExpr = `1 - (embedding <=> $2::vector)`
	}

	query := fmt.Sprintf(`SELECT id, content, metadata, embedding::text, %s AS score
		FROM vector_items
		WHERE index_id = $1`, scoreExpr)
	args := []any{indexID, formatVector(vec)}

	query, args = appendFilterClause(query, args, opts.Filter)
	query += fmt.Sprintf(` ORDER BY score DESC LIMIT %d`, k)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, opts.MinScore, opts.IncludeVector)
}

// FulltextSearch matches items whose content contains every query term,
// ranked by ts_rank. Phrase mode requires the terms adjacent and in
// order.
func (s *PgvectorStore) FulltextSearch(ctx context.Context, indexID, query string, k int, opts FulltextOptions) ([]Result, error) {
	language := opts.Language
	if language == "" {
		language = s.language
	}

	tsquery := buildTsquery(query, opts.Phrase)
	if tsquery == "" {
		return nil, nil
	}

	sql := `SELECT id, content, metadata, embedding::text,
			ts_rank(to_tsvector($2, content), to_tsquery($2, $3)) AS score
		FROM vector_items
		WHERE index_id = $1 AND to_tsvector($2, content) @@ to_tsquery($2, $3)`
	args := []any{indexID, language, tsquery}

	sql, args = appendFilterClause(sql, args, opts.Filter)
	sql += fmt.Sprintf(` ORDER BY score DESC LIMIT %d`, k)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext search failed: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, 0, false)
}

func (s *PgvectorStore) Delete(ctx context.Context, indexID, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM vector_items WHERE index_id = $1 AND id = $2`, indexID, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PgvectorStore) Name() string { return "pgvector" }

func (s *PgvectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PgvectorStore) indexConfig(ctx context.Context, indexID string) (int, Metric, error) {
	var dims int
	var metric string
	err := s.db.QueryRow(ctx,
		`SELECT dimensions, metric FROM vector_indexes WHERE id = $1`, indexID).
		Scan(&dims, &metric)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to read index config: %w", err)
	}
	return dims, Metric(metric), nil
}

// appendFilterClause adds jsonb equality conditions for each filter key.
func appendFilterClause(sql string, args []any, filter map[string]any) (string, []any) {
	for key, value := range filter {
		args = append(args, key, fmt.Sprint(value))
		sql += fmt.Sprintf(` AND metadata->>$%d = $%d`, len(args)-1, len(args))
	}
	return sql, args
}

// buildTsquery joins sanitized query terms with AND (or phrase
// adjacency). Characters with tsquery syntax meaning are stripped.
func buildTsquery(query string, phrase bool) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '&', '|', '!', ':', '(', ')', '\'':
			return -1
		}
		return r
	}, query)

	terms := strings.Fields(sanitized)
	if len(terms) == 0 {
		return ""
	}
	if phrase {
		return strings.Join(terms, " <-> ")
	}
	return strings.Join(terms, " & ")
}

func scanResults(rows pgx.Rows, minScore float32, includeVector bool) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var result Result
		var metadataJSON []byte
		var embedding string
		if err := rows.Scan(&result.ID, &result.Content, &metadataJSON, &embedding, &result.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if result.Score < minScore {
			continue
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &result.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		if includeVector {
			result.Vector = parseVector(embedding)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}

// formatVector renders a vector in pgvector's literal syntax.
func formatVector(vec []float32) string {
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

func parseVector(text string) []float32 {
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

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

func contentOf(metadata map[string]any) string {
	if content, ok := metadata["content"].(string); ok {
		return content
	}
	return ""
}

var (
	_ Store         = (*PgvectorStore)(nil)
	_ HybridCapable = (*PgvectorStore)(nil)
)
