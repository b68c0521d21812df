package migrate

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer src.Close()

	first, err := src.First()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first != 1 {
		t.Fatalf("want first version 1, got %d", first)
	}

	r, ident, err := src.ReadUp(first)
	if err != nil {
		t.Fatalf("read up: %v", err)
	}
	r.Close()
	if ident != "create_accounts" {
		t.Fatalf("unexpected identifier %q", ident)
	}
}
