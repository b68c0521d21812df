package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// every sqlite :memory: connection is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&accountRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPostgresAccountRepo_InsertFind(t *testing.T) {
	repo := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	a, err := repo.Insert(ctx, "a@x.com", "Ann", "hash")
	if err != nil {
		t.Fatalf("insert %v", err)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Fatalf("id %q is not a uuid", a.ID)
	}

	got, err := repo.FindByEmail(ctx, "a@x.com")
	if err != nil || got.ID != a.ID || got.Name != "Ann" || got.PasswordHash != "hash" {
		t.Fatalf("find by email %+v %v", got, err)
	}

	if _, err := repo.FindByEmail(ctx, "b@x.com"); !customErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping %v", err)
	}
}

func TestPostgresAccountRepo_DuplicateEmail(t *testing.T) {
	repo := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "a@x.com", "Ann", "hash"); err != nil {
		t.Fatalf("insert %v", err)
	}
	if _, err := repo.Insert(ctx, "a@x.com", "Ann", "hash"); !customErrors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgDup := fmt.Errorf("create: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(pgDup) {
		t.Fatal("23505 must be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23502"}) {
		t.Fatal("not-null violation is not a unique violation")
	}
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatal("translated gorm error must be a unique violation")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Fatal("generic error is not a unique violation")
	}
}
