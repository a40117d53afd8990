package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Dialect names the SQL flavour of a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DefaultDSN is the SQLite file used when no DATABASE_URL is configured.
const DefaultDSN = "api_endpoints.db"

// DB is a database handle that knows its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// DetectDialect picks the driver for dsn. postgres:// and postgresql://
// select PostgreSQL; everything else is treated as SQLite, with an optional
// sqlite:// prefix.
func DetectDialect(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		return DialectSQLite, dsn
	}
}

// Connect opens and pings the database at dsn.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	dialect, source := DetectDialect(dsn)

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// One connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Open connects to dsn and runs migrations.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Rebind rewrites ? placeholders into $n for PostgreSQL.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskDSN hides credentials in dsn for logging.
func MaskDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "[HIDDEN]" + dsn[at:]
		}
		return "[HIDDEN]" + dsn[at:]
	}
	return dsn
}
