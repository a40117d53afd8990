package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Nels2/mcp-trmm/pkg/database"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// EndpointRepository persists a schema index in the api_endpoints table.
type EndpointRepository struct {
	db *database.DB
}

// NewEndpointRepository creates a new repository instance
func NewEndpointRepository(db *database.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

// Save replaces the stored entries with entries in one transaction. The
// first occurrence of a duplicate (path, method) pair is kept. It returns
// the number of rows written.
func (r *EndpointRepository) Save(ctx context.Context, entries []models.EndpointSpec) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM api_endpoints`); err != nil {
		return 0, fmt.Errorf("failed to clear api_endpoints: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO api_endpoints (path, method, description, request_body, responses, credential_header)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (path, method) DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range entries {
		var requestBody sql.NullString
		if e.RequestSchema != nil {
			data, err := json.Marshal(e.RequestSchema)
			if err != nil {
				return 0, fmt.Errorf("failed to encode request body for %s %s: %w", e.Method, e.Path, err)
			}
			requestBody = sql.NullString{String: string(data), Valid: true}
		}
		responses, err := json.Marshal(e.ResponseSummary)
		if err != nil {
			return 0, fmt.Errorf("failed to encode responses for %s %s: %w", e.Method, e.Path, err)
		}

		header := sql.NullString{String: e.CredentialHeader, Valid: e.CredentialHeader != ""}
		result, err := stmt.ExecContext(ctx, e.Path, e.Method, e.Description, requestBody, string(responses), header)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s %s: %w", e.Method, e.Path, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			written += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit api_endpoints: %w", err)
	}
	return written, nil
}

// Load returns the stored entries in insertion order.
func (r *EndpointRepository) Load(ctx context.Context) ([]models.EndpointSpec, error) {
	return r.query(ctx, `SELECT path, method, description, request_body, responses, credential_header FROM api_endpoints ORDER BY id`)
}

// Search returns stored entries whose path contains substr, ignoring case.
func (r *EndpointRepository) Search(ctx context.Context, substr string) ([]models.EndpointSpec, error) {
	op := "LIKE"
	if r.db.Dialect == database.DialectPostgres {
		op = "ILIKE"
	}
	query := `SELECT path, method, description, request_body, responses, credential_header FROM api_endpoints WHERE path ` + op + ` ? ORDER BY id`
	return r.query(ctx, query, "%"+substr+"%")
}

// Count returns the number of stored entries.
func (r *EndpointRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_endpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count api_endpoints: %w", err)
	}
	return n, nil
}

func (r *EndpointRepository) query(ctx context.Context, query string, args ...any) ([]models.EndpointSpec, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query api_endpoints: %w", err)
	}
	defer rows.Close()

	var entries []models.EndpointSpec
	for rows.Next() {
		var (
			e           models.EndpointSpec
			description sql.NullString
			requestBody sql.NullString
			responses   sql.NullString
			header      sql.NullString
		)
		if err := rows.Scan(&e.Path, &e.Method, &description, &requestBody, &responses, &header); err != nil {
			return nil, fmt.Errorf("failed to scan api_endpoint: %w", err)
		}
		e.Description = description.String
		e.CredentialHeader = header.String
		if requestBody.Valid && requestBody.String != "" && requestBody.String != "null" {
			if err := json.Unmarshal([]byte(requestBody.String), &e.RequestSchema); err != nil {
				return nil, fmt.Errorf("failed to decode request body for %s %s: %w", e.Method, e.Path, err)
			}
		}
		e.ResponseSummary = map[string]string{}
		if responses.Valid && responses.String != "" && responses.String != "null" {
			if err := json.Unmarshal([]byte(responses.String), &e.ResponseSummary); err != nil {
				return nil, fmt.Errorf("failed to decode responses for %s %s: %w", e.Method, e.Path, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query api_endpoints: %w", err)
	}
	return entries, nil
}
