package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepositoryWithDB(mock), mock
}

func TestPostgresRepository_CreateCollectionDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO collections`).
		WithArgs(pgxmock.AnyArg(), "docs", []byte(`{}`), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateCollection(context.Background(), "docs", nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_UpdateDocumentStatusMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE documents SET status`).
		WithArgs("doc-1", "failed", "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateDocumentStatus(context.Background(), "doc-1", StatusFailed, "boom")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_CreateChunksUsesTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs(pgxmock.AnyArg(), "doc-1", "first", 0, 0, 0, 0, nil, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs(pgxmock.AnyArg(), "doc-1", "second", 1, 0, 0, 0, nil, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.CreateChunks(context.Background(), "doc-1", []Chunk{
		{Content: "first", ChunkIndex: 0},
		{Content: "second", ChunkIndex: 1},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_CreateChunksRejectsSparseIndexes(t *testing.T) {
	repo, _ := newMockRepo(t)

	err := repo.CreateChunks(context.Background(), "doc-1", []Chunk{
		{Content: "a", ChunkIndex: 1},
	})
	if err == nil {
		t.Fatal("expected error for sparse chunk indexes")
	}
}

func TestFormatPgVector(t *testing.T) {
	got := formatPgVector([]float32{1, 0.5, -2})
	if got != "[1,0.5,-2]" {
		t.Errorf("unexpected literal: %s", got)
	}

	back := parsePgVector(got)
	if len(back) != 3 || back[0] != 1 || back[1] != 0.5 || back[2] != -2 {
		t.Errorf("round trip mismatch: %v", back)
	}
	if parsePgVector("[]") != nil {
		t.Error("expected nil for empty vector")
	}
}
