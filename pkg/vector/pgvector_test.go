package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestBuildTsquery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		phrase bool
		want   string
	}{
		{"single term", "hello", false, "hello"},
		{"and of terms", "hello world", false, "hello & world"},
		{"phrase", "hello world", true, "hello <-> world"},
		{"strips operators", "a & b | c ! d : e", false, "a & b & c & d & e"},
		{"only operators", "& | ! :", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTsquery(tt.query, tt.phrase); got != tt.want {
				t.Errorf("buildTsquery(%q, %v) = %q, want %q", tt.query, tt.phrase, got, tt.want)
			}
		})
	}
}

func TestFormatVector(t *testing.T) {
	if got := formatVector([]float32{1, 0.5, -2}); got != "[1,0.5,-2]" {
		t.Errorf("unexpected literal: %s", got)
	}
	if got := formatVector(nil); got != "[]" {
		t.Errorf("unexpected empty literal: %s", got)
	}
}

func TestParseVector(t *testing.T) {
	vec := parseVector("[1,0.5,-2]")
	if len(vec) != 3 || vec[0] != 1 || vec[1] != 0.5 || vec[2] != -2 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if parseVector("[]") != nil {
		t.Error("expected nil for empty literal")
	}
}

func TestPgvectorStore_CreateIndex(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	store := NewPgvectorStoreWithDB(mock, "")

	mock.ExpectQuery(`SELECT dimensions FROM vector_indexes`).
		WithArgs("docs").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO vector_indexes`).
		WithArgs("docs", 3, "cosine").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.CreateIndex(context.Background(), "docs", Index{Dimensions: 3}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPgvectorStore_CreateIndexDimensionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	store := NewPgvectorStoreWithDB(mock, "")

	mock.ExpectQuery(`SELECT dimensions FROM vector_indexes`).
		WithArgs("docs").
		WillReturnRows(pgxmock.NewRows([]string{"dimensions"}).AddRow(3))

	err = store.CreateIndex(context.Background(), "docs", Index{Dimensions: 8})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPgvectorStore_StoreBatchUsesTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	store := NewPgvectorStoreWithDB(mock, "")

	mock.ExpectQuery(`SELECT dimensions, metric FROM vector_indexes`).
		WithArgs("docs").
		WillReturnRows(pgxmock.NewRows([]string{"dimensions", "metric"}).AddRow(2, "cosine"))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vector_items`).
		WithArgs("docs", "a", "[1,0]", "", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO vector_items`).
		WithArgs("docs", "b", "[0,1]", "", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.StoreBatch(context.Background(), "docs", []Item{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPgvectorStore_DeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	store := NewPgvectorStoreWithDB(mock, "")

	mock.ExpectExec(`DELETE FROM vector_items`).
		WithArgs("docs", "ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.Delete(context.Background(), "docs", "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
