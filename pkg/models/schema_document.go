package models

import (
	"time"
)

// SchemaDocument represents the schema_documents table structure
type SchemaDocument struct {
	ID               int        `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Title            *string    `json:"title,omitempty" db:"title"`
	Version          *string    `json:"version,omitempty" db:"version"`
	Content          string     `json:"content" db:"content"`
	BaseURL          string     `json:"base_url" db:"base_url"`
	FileFormat       *string    `json:"file_format,omitempty" db:"file_format"`
	FileSize         *int       `json:"file_size,omitempty" db:"file_size"`
	CredentialHeader *string    `json:"credential_header,omitempty" db:"credential_header"`
	IsActive         *bool      `json:"is_active,omitempty" db:"is_active"`
	CreatedAt        *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// TableName returns the table name for the SchemaDocument model
func (SchemaDocument) TableName() string {
	return "schema_documents"
}

// NewSchemaDocument creates a new SchemaDocument instance with default values
func NewSchemaDocument(name, content, baseURL, format string) *SchemaDocument {
	now := time.Now()
	active := true
	if format == "" {
		format = "yaml"
	}
	size := len(content)

	return &SchemaDocument{
		Name:       name,
		Content:    content,
		BaseURL:    baseURL,
		FileFormat: &format,
		FileSize:   &size,
		IsActive:   &active,
		CreatedAt:  &now,
		UpdatedAt:  &now,
	}
}

// Active reports whether the document is flagged active.
func (d *SchemaDocument) Active() bool {
	return d.IsActive != nil && *d.IsActive
}
