package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inaiurai/settlement/internal/models"
)

var alice = models.MustParseAddress("0x00000000000000000000000000000000000000a1")

func newMockRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db), mock
}

func TestSQLRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO credentials").
		WithArgs(alice.String(), "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	acc, err := repo.Create(context.Background(), alice, "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if acc.Address != alice || !acc.CreatedAt.Equal(created) {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO credentials").
		WithArgs(alice.String(), "hash").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	if _, err := repo.Create(context.Background(), alice, "hash"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLRepositoryGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT secret_hash, created_at FROM credentials").
		WithArgs(alice.String()).
		WillReturnRows(sqlmock.NewRows([]string{"secret_hash", "created_at"}).AddRow("hash", created))
	mock.ExpectQuery("SELECT secret_hash, created_at FROM credentials").
		WithArgs(alice.String()).
		WillReturnError(sql.ErrNoRows)

	acc, hash, err := repo.Get(context.Background(), alice)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hash != "hash" || acc.Address != alice {
		t.Fatalf("unexpected result: %+v %q", acc, hash)
	}

	if _, _, err := repo.Get(context.Background(), alice); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMemoryRepositoryDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.Create(context.Background(), alice, "h1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(context.Background(), alice, "h2"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	_, hash, err := repo.Get(context.Background(), alice)
	if err != nil || hash != "h1" {
		t.Fatalf("Get: %q %v", hash, err)
	}
}
