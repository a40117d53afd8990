package database

import (
	"context"
	"testing"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
	}{
		{"postgres://u:p@host/db", DialectPostgres, "postgres://u:p@host/db"},
		{"postgresql://host/db", DialectPostgres, "postgresql://host/db"},
		{"sqlite://data/api.db", DialectSQLite, "data/api.db"},
		{":memory:", DialectSQLite, ":memory:"},
		{"api_endpoints.db", DialectSQLite, "api_endpoints.db"},
	}
	for _, tt := range tests {
		dialect, source := DetectDialect(tt.dsn)
		if dialect != tt.dialect || source != tt.source {
			t.Errorf("DetectDialect(%q): expected %s %s, got %s %s", tt.dsn, tt.dialect, tt.source, dialect, source)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	if got := pg.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("unexpected rebind %q", got)
	}
	lite := &DB{Dialect: DialectSQLite}
	if got := lite.Rebind("a = ?"); got != "a = ?" {
		t.Errorf("expected sqlite query unchanged, got %q", got)
	}
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"schema_documents", "api_endpoints"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s: %v", table, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		t.Errorf("expected migrations to be idempotent, got %v", err)
	}
	if err := DropTables(ctx, db); err != nil {
		t.Errorf("DropTables failed: %v", err)
	}
}

func TestMaskDSN(t *testing.T) {
	if got := MaskDSN("postgres://user:secret@db:5432/app"); got != "postgres://[HIDDEN]@db:5432/app" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := MaskDSN("api_endpoints.db"); got != "api_endpoints.db" {
		t.Errorf("expected file dsn unchanged, got %q", got)
	}
}
