// Package services loads schema documents from files, URLs, object storage or
// the database and turns them into a published schema index.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/database"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/loader"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/models"
	"github.com/Nels2/mcp-trmm/pkg/repository"
)

// ErrNoDocuments is returned when there is nothing to build an index from.
var ErrNoDocuments = errors.New("no schema documents available")

// Publisher receives freshly built indexes.
type Publisher interface {
	Publish(idx *index.SchemaIndex)
}

// SpecLoaderService handles loading schema documents from the database or files
type SpecLoaderService struct {
	docs      *repository.DocumentRepository
	endpoints *repository.EndpointRepository
	loader    *loader.Loader
	publisher Publisher
	logger    *logging.Logger
	sources   []string

	reloadMu sync.Mutex
	mu       sync.Mutex
	lastHash string
}

// Option configures a SpecLoaderService.
type Option func(*SpecLoaderService)

// WithDatabase stores documents and the persisted index in db.
func WithDatabase(db *database.DB) Option {
	return func(s *SpecLoaderService) {
		s.docs = repository.NewDocumentRepository(db)
		s.endpoints = repository.NewEndpointRepository(db)
	}
}

// WithSources sets the documents read in file mode.
func WithSources(sources ...string) Option {
	return func(s *SpecLoaderService) { s.sources = sources }
}

// WithLoader sets the document loader.
func WithLoader(l *loader.Loader) Option {
	return func(s *SpecLoaderService) { s.loader = l }
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *SpecLoaderService) { s.logger = l }
}

// NewSpecLoaderService creates a new spec loader service. publisher may be
// nil for tools that only manage documents.
func NewSpecLoaderService(publisher Publisher, opts ...Option) *SpecLoaderService {
	s := &SpecLoaderService{publisher: publisher}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	if s.loader == nil {
		s.loader = loader.New(loader.WithLogger(s.logger))
	}
	return s
}

// DatabaseMode reports whether the service is backed by a database.
func (s *SpecLoaderService) DatabaseMode() bool {
	return s.docs != nil
}

// persistedName names an index read back from the endpoint table.
const persistedName = "api_endpoints"

// BuildIndex builds an index without publishing it. Sources are preferred,
// then active database documents (newest first), then the persisted
// endpoint table. names lists what the index was built from.
func (s *SpecLoaderService) BuildIndex(ctx context.Context) (*index.SchemaIndex, []string, error) {
	b, err := s.build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return b.idx, b.names, nil
}

// buildResult is the outcome of one build. hash summarises the active
// documents the index was built from and is empty outside database mode.
type buildResult struct {
	idx       *index.SchemaIndex
	names     []string
	fromTable bool
	hash      string
}

func (s *SpecLoaderService) build(ctx context.Context) (*buildResult, error) {
	if len(s.sources) > 0 {
		idx, names, err := s.buildFromSources(ctx)
		if err != nil {
			return nil, err
		}
		return &buildResult{idx: idx, names: names}, nil
	}
	if !s.DatabaseMode() {
		return nil, ErrNoDocuments
	}

	docs, err := s.docs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs from database: %w", err)
	}
	hash := hashDocuments(docs)
	if len(docs) > 0 {
		idx, names, err := s.buildFromDocuments(docs)
		if err != nil {
			return nil, err
		}
		return &buildResult{idx: idx, names: names, hash: hash}, nil
	}

	idx, err := s.LoadPersisted(ctx)
	if err != nil {
		return nil, err
	}
	return &buildResult{idx: idx, names: []string{persistedName}, fromTable: true, hash: hash}, nil
}

func (s *SpecLoaderService) buildFromSources(ctx context.Context) (*index.SchemaIndex, []string, error) {
	var entries []models.EndpointSpec
	var names []string
	for _, source := range s.sources {
		loaded, err := s.loader.Load(ctx, source)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load %s: %w", source, err)
		}
		doc, err := index.Build(loaded.Document)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to index %s: %w", source, err)
		}
		entries = append(entries, withCredentialHeader(doc.Entries(), loaded.Info.CredentialHeader)...)
		names = append(names, loaded.Name)
	}
	idx, err := index.FromEntries(entries)
	if err != nil {
		return nil, nil, err
	}
	return idx, names, nil
}

func (s *SpecLoaderService) buildFromDocuments(docs []*models.SchemaDocument) (*index.SchemaIndex, []string, error) {
	var entries []models.EndpointSpec
	var names []string
	for _, doc := range docs {
		decoded, err := loader.Decode([]byte(doc.Content))
		if err != nil {
			s.logger.Warn("Failed to parse spec", "name", doc.Name, "error", err)
			continue
		}
		docIndex, err := index.Build(decoded)
		if err != nil {
			s.logger.Warn("Failed to index spec", "name", doc.Name, "error", err)
			continue
		}
		header := ""
		if doc.CredentialHeader != nil {
			header = *doc.CredentialHeader
		}
		entries = append(entries, withCredentialHeader(docIndex.Entries(), header)...)
		names = append(names, doc.Name)
		s.logger.Info("Loaded spec from database", "name", doc.Name, "endpoints", docIndex.Len())
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("none of %d active specs could be indexed", len(docs))
	}

	idx, err := index.FromEntries(entries)
	if err != nil {
		return nil, nil, err
	}
	return idx, names, nil
}

func withCredentialHeader(entries []models.EndpointSpec, header string) []models.EndpointSpec {
	if header == "" {
		return entries
	}
	for i := range entries {
		entries[i].CredentialHeader = header
	}
	return entries
}

// Reload builds a new index, publishes it and, in database mode, persists it
// to the endpoint table. A failed build leaves the published index alone.
// Reloads run one at a time.
func (s *SpecLoaderService) Reload(ctx context.Context) ([]string, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	b, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(b.idx)
	}

	if s.endpoints != nil && !b.fromTable {
		if _, err := s.Persist(ctx, b.idx); err != nil {
			s.logger.Warn("Failed to persist index", "error", err)
		}
	}
	if s.DatabaseMode() {
		s.setHash(b.hash)
	}
	return b.names, nil
}

// Persist writes idx to the endpoint table, replacing its content.
func (s *SpecLoaderService) Persist(ctx context.Context, idx *index.SchemaIndex) (int, error) {
	if s.endpoints == nil {
		return 0, errors.New("database connection not initialized")
	}
	return s.endpoints.Save(ctx, idx.Entries())
}

// LoadPersisted rebuilds an index from the endpoint table without reading
// any document.
func (s *SpecLoaderService) LoadPersisted(ctx context.Context) (*index.SchemaIndex, error) {
	if s.endpoints == nil {
		return nil, errors.New("database connection not initialized")
	}
	entries, err := s.endpoints.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoDocuments
	}
	return index.FromEntries(entries)
}

// documentsHash summarises the active documents for change detection.
func (s *SpecLoaderService) documentsHash(ctx context.Context) (string, error) {
	docs, err := s.docs.GetActive(ctx)
	if err != nil {
		return "", err
	}
	return hashDocuments(docs), nil
}

func hashDocuments(docs []*models.SchemaDocument) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(h, "-%d-%s-%d", doc.ID, doc.Name, len(doc.Content))
		if doc.UpdatedAt != nil {
			fmt.Fprintf(h, "-%d", doc.UpdatedAt.UnixNano())
		}
		if doc.CredentialHeader != nil {
			fmt.Fprintf(h, "-%s", *doc.CredentialHeader)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *SpecLoaderService) setHash(hash string) {
	s.mu.Lock()
	s.lastHash = hash
	s.mu.Unlock()
}

// Changed reports whether the active documents differ from the last reload.
func (s *SpecLoaderService) Changed(ctx context.Context) (bool, error) {
	if !s.DatabaseMode() {
		return false, nil
	}
	hash, err := s.documentsHash(ctx)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return hash != s.lastHash, nil
}

// Poll checks the database every interval and reloads when the active
// documents changed. It returns when ctx is done.
func (s *SpecLoaderService) Poll(ctx context.Context, interval time.Duration) {
	if !s.DatabaseMode() || interval <= 0 {
		s.logger.Info("Database polling disabled")
		return
	}
	s.logger.Info("Starting database polling", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Changed(ctx)
			if err != nil {
				s.logger.Warn("Database polling error", "error", err)
				continue
			}
			if !changed {
				continue
			}
			s.logger.Info("Spec changes detected, reloading")
			if _, err := s.Reload(ctx); err != nil {
				s.logger.Error("Failed to reload specs during polling", "error", err)
			}
		}
	}
}
