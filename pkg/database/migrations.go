package database

import (
	"context"
	"fmt"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		title TEXT,
		version TEXT,
		content TEXT NOT NULL,
		base_url TEXT NOT NULL DEFAULT '',
		file_format TEXT DEFAULT 'yaml',
		file_size INTEGER,
		credential_header TEXT,
		is_active BOOLEAN DEFAULT 1,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schema_documents_is_active ON schema_documents(is_active)`,
	`CREATE TABLE IF NOT EXISTS api_endpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		method TEXT NOT NULL,
		description TEXT,
		request_body TEXT,
		responses TEXT,
		credential_header TEXT,
		UNIQUE(path, method)
	)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_documents (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		title VARCHAR(500),
		version VARCHAR(100),
		content TEXT NOT NULL,
		base_url VARCHAR(1000) NOT NULL DEFAULT '',
		file_format VARCHAR(10) DEFAULT 'yaml',
		file_size INTEGER,
		credential_header VARCHAR(255),
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP(6) DEFAULT NOW(),
		updated_at TIMESTAMP(6) DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schema_documents_is_active ON schema_documents(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_schema_documents_name ON schema_documents(name)`,
	`CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ language 'plpgsql'`,
	`DROP TRIGGER IF EXISTS update_schema_documents_updated_at ON schema_documents`,
	`CREATE TRIGGER update_schema_documents_updated_at
		BEFORE UPDATE ON schema_documents
		FOR EACH ROW
		EXECUTE FUNCTION update_updated_at_column()`,
	`CREATE TABLE IF NOT EXISTS api_endpoints (
		id SERIAL PRIMARY KEY,
		path TEXT NOT NULL,
		method VARCHAR(16) NOT NULL,
		description TEXT,
		request_body TEXT,
		responses TEXT,
		credential_header TEXT,
		UNIQUE(path, method)
	)`,
}

// RunMigrations creates the schema_documents and api_endpoints tables.
func RunMigrations(ctx context.Context, db *DB) error {
	statements := sqliteMigrations
	if db.Dialect == DialectPostgres {
		statements = postgresMigrations
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// DropTables removes every table created by RunMigrations.
func DropTables(ctx context.Context, db *DB) error {
	statements := []string{
		`DROP TABLE IF EXISTS api_endpoints`,
		`DROP TABLE IF EXISTS schema_documents`,
	}
	if db.Dialect == DialectPostgres {
		statements = append(statements, `DROP FUNCTION IF EXISTS update_updated_at_column() CASCADE`)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	return nil
}
