package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nels2/mcp-trmm/pkg/loader"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

var errNoDatabase = errors.New("database connection not initialized")

// ImportOptions override what is read from the document itself.
type ImportOptions struct {
	Name             string
	BaseURL          string
	CredentialHeader string
}

// Import loads source and stores it as a new schema document.
func (s *SpecLoaderService) Import(ctx context.Context, source string, opts ImportOptions) (*models.SchemaDocument, error) {
	if s.docs == nil {
		return nil, errNoDatabase
	}
	loaded, err := s.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = loaded.Name
	}
	return s.store(ctx, loaded, opts)
}

// CreateFromContent stores content as a new schema document.
func (s *SpecLoaderService) CreateFromContent(ctx context.Context, content string, opts ImportOptions) (*models.SchemaDocument, error) {
	if s.docs == nil {
		return nil, errNoDatabase
	}
	if opts.Name == "" {
		return nil, errors.New("name is required")
	}
	doc, err := loader.Decode([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	info, _ := loader.Inspect(ctx, []byte(content), false)
	return s.store(ctx, &loader.Loaded{
		Name:     opts.Name,
		Format:   loader.DetectFormat("", []byte(content)),
		Content:  []byte(content),
		Document: doc,
		Info:     info,
	}, opts)
}

func (s *SpecLoaderService) store(ctx context.Context, loaded *loader.Loaded, opts ImportOptions) (*models.SchemaDocument, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = loaded.Info.ServerURL
	}
	doc := models.NewSchemaDocument(opts.Name, string(loaded.Content), baseURL, loaded.Format)
	if loaded.Info.Title != "" {
		doc.Title = &loaded.Info.Title
	}
	if loaded.Info.Version != "" {
		doc.Version = &loaded.Info.Version
	}
	header := opts.CredentialHeader
	if header == "" {
		header = loaded.Info.CredentialHeader
	}
	if header != "" {
		doc.CredentialHeader = &header
	}

	created, err := s.docs.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save spec to database: %w", err)
	}
	s.logger.Info("Imported spec", "name", created.Name, "id", created.ID, "bytes", len(created.Content))
	return created, nil
}

// Documents returns every stored document, or only active ones.
func (s *SpecLoaderService) Documents(ctx context.Context, activeOnly bool) ([]*models.SchemaDocument, error) {
	if s.docs == nil {
		return nil, errNoDatabase
	}
	if activeOnly {
		return s.docs.GetActive(ctx)
	}
	return s.docs.GetAll(ctx)
}

// Document returns the document with id.
func (s *SpecLoaderService) Document(ctx context.Context, id int) (*models.SchemaDocument, error) {
	if s.docs == nil {
		return nil, errNoDatabase
	}
	return s.docs.GetByID(ctx, id)
}

// SetActive activates or deactivates a document.
func (s *SpecLoaderService) SetActive(ctx context.Context, id int, active bool) error {
	if s.docs == nil {
		return errNoDatabase
	}
	return s.docs.SetActive(ctx, id, active)
}

// Delete removes a document.
func (s *SpecLoaderService) Delete(ctx context.Context, id int) error {
	if s.docs == nil {
		return errNoDatabase
	}
	return s.docs.Delete(ctx, id)
}

// UpdateCredentialHeader sets or clears the credential header of a document.
func (s *SpecLoaderService) UpdateCredentialHeader(ctx context.Context, id int, header *string) error {
	if s.docs == nil {
		return errNoDatabase
	}
	return s.docs.UpdateCredentialHeader(ctx, id, header)
}
