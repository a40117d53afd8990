package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/database"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

const documentColumns = `id, name, title, version, content, base_url, file_format, file_size, credential_header, is_active, created_at, updated_at`

// DocumentRepository handles database operations for schema documents
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new repository instance
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.SchemaDocument, error) {
	doc := &models.SchemaDocument{}
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Title,
		&doc.Version,
		&doc.Content,
		&doc.BaseURL,
		&doc.FileFormat,
		&doc.FileSize,
		&doc.CredentialHeader,
		&doc.IsActive,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	return doc, err
}

// Create inserts a new schema document into the database
func (r *DocumentRepository) Create(ctx context.Context, doc *models.SchemaDocument) (*models.SchemaDocument, error) {
	now := time.Now().UTC()
	if doc.IsActive == nil {
		active := true
		doc.IsActive = &active
	}
	doc.CreatedAt = &now
	doc.UpdatedAt = &now

	query := r.db.Rebind(`
		INSERT INTO schema_documents (name, title, version, content, base_url, file_format, file_size, credential_header, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowContext(ctx, query,
		doc.Name,
		doc.Title,
		doc.Version,
		doc.Content,
		doc.BaseURL,
		doc.FileFormat,
		doc.FileSize,
		doc.CredentialHeader,
		doc.IsActive,
		now,
		now,
	).Scan(&doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema document: %w", err)
	}

	return doc, nil
}

// GetByID retrieves a schema document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int) (*models.SchemaDocument, error) {
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM schema_documents WHERE id = ?`)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schema document with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schema document: %w", err)
	}
	return doc, nil
}

// GetByName retrieves a schema document by its name
func (r *DocumentRepository) GetByName(ctx context.Context, name string) (*models.SchemaDocument, error) {
	query := r.db.Rebind(`SELECT ` + documentColumns + ` FROM schema_documents WHERE name = ?`)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schema document with name %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schema document: %w", err)
	}
	return doc, nil
}

// GetAll retrieves all schema documents, newest first
func (r *DocumentRepository) GetAll(ctx context.Context) ([]*models.SchemaDocument, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM schema_documents ORDER BY created_at DESC, id DESC`)
}

// GetActive retrieves all active schema documents, newest first
func (r *DocumentRepository) GetActive(ctx context.Context) ([]*models.SchemaDocument, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM schema_documents WHERE is_active = ? ORDER BY created_at DESC, id DESC`, true)
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]*models.SchemaDocument, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.SchemaDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schema documents: %w", err)
	}
	return docs, nil
}

// Update modifies an existing schema document
func (r *DocumentRepository) Update(ctx context.Context, doc *models.SchemaDocument) (*models.SchemaDocument, error) {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		UPDATE schema_documents
		SET name = ?, title = ?, version = ?, content = ?, base_url = ?,
		    file_format = ?, file_size = ?, credential_header = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		doc.Name,
		doc.Title,
		doc.Version,
		doc.Content,
		doc.BaseURL,
		doc.FileFormat,
		doc.FileSize,
		doc.CredentialHeader,
		doc.IsActive,
		now,
		doc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update schema document: %w", err)
	}
	if err := expectRow(result, doc.ID); err != nil {
		return nil, err
	}
	doc.UpdatedAt = &now
	return doc, nil
}

// Delete removes a schema document from the database
func (r *DocumentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM schema_documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete schema document: %w", err)
	}
	return expectRow(result, id)
}

// SetActive sets the is_active status of a schema document
func (r *DocumentRepository) SetActive(ctx context.Context, id int, active bool) error {
	query := r.db.Rebind(`UPDATE schema_documents SET is_active = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set active status: %w", err)
	}
	return expectRow(result, id)
}

// UpdateCredentialHeader updates the header used to send the API key
func (r *DocumentRepository) UpdateCredentialHeader(ctx context.Context, id int, header *string) error {
	query := r.db.Rebind(`UPDATE schema_documents SET credential_header = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, header, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update credential header: %w", err)
	}
	return expectRow(result, id)
}

func expectRow(result sql.Result, id int) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("schema document with id %d: %w", id, ErrNotFound)
	}
	return nil
}
