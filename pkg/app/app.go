// Package app wires configuration into a running gateway. It is shared by
// the server and the command line tools.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/database"
	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/loader"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/models"
	"github.com/Nels2/mcp-trmm/pkg/server"
	"github.com/Nels2/mcp-trmm/pkg/services"
	"github.com/Nels2/mcp-trmm/pkg/tools"
)

// App holds the wired components.
type App struct {
	Config *server.Config
	Logger *logging.Logger
	DB     *database.DB
	Engine *forward.Engine
	Facade *gateway.Facade
	Specs  *services.SpecLoaderService
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *server.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}

// New connects the database (when configured) and builds the engine, the
// facade and the document service. Nothing is published yet; call Reload.
func New(ctx context.Context, cfg *server.Config, logger *logging.Logger) (*App, error) {
	logger = logging.OrDiscard(logger)
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseMode() {
		db, err := database.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database %s: %w", database.MaskDSN(cfg.Database.URL), err)
		}
		a.DB = db
		logger.Info("Connected to database", "dialect", db.Dialect)
	}

	a.Engine = forward.NewEngine(cfg.Upstream.BaseURL,
		forward.WithTimeout(cfg.Upstream.Timeout),
		forward.WithUserAgent(cfg.Upstream.UserAgent),
		forward.WithCredentialHeader(cfg.Upstream.CredentialHeader),
		forward.WithMaxResponseBytes(cfg.Upstream.MaxResponseBytes),
		forward.WithLogger(logger.With("component", "forward")),
	)

	a.Facade = gateway.New(a.Engine,
		gateway.WithLogger(logger.With("component", "gateway")),
		gateway.WithRequireExplicitMethod(cfg.Gateway.RequireExplicitMethod),
		gateway.WithValidatePayloads(cfg.Gateway.ValidatePayloads),
	)

	opts := []services.Option{
		services.WithLogger(logger.With("component", "specs")),
		services.WithSources(cfg.Sources...),
		services.WithLoader(newLoader(cfg, logger)),
	}
	if a.DB != nil {
		opts = append(opts, services.WithDatabase(a.DB))
	}
	a.Specs = services.NewSpecLoaderService(a.Facade, opts...)
	return a, nil
}

// Reload builds and publishes the index.
func (a *App) Reload(ctx context.Context) ([]string, error) {
	return a.Specs.Reload(ctx)
}

// Router returns the HTTP front-ends, with the tool interface mounted on
// /mcp when enabled.
func (a *App) Router() http.Handler {
	cfg := RouterConfig(a)
	if a.Config.Server.MCPHTTP {
		cfg.MCP = tools.NewHTTPHandler(tools.NewServer(a.Facade, a.Config.Upstream.APIKey, a.Logger), a.Config.Upstream.CredentialHeader)
	}
	return server.NewRouter(cfg)
}

// RouterConfig returns the router wiring for a.
func RouterConfig(a *App) server.RouterConfig {
	return server.RouterConfig{
		Gateway:           a.Facade,
		Reload:            a.Reload,
		Verifier:          auth.NewBearerVerifier(a.Config.Auth.BearerToken, a.Config.Auth.JWTSecret),
		CredentialHeader:  a.Config.Upstream.CredentialHeader,
		DefaultCredential: a.Config.Upstream.APIKey,
		Logger:            a.Logger.With("component", "http"),
	}
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// IndexDocument builds an index from a stored document.
func IndexDocument(doc *models.SchemaDocument) (*index.SchemaIndex, error) {
	decoded, err := loader.Decode([]byte(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", doc.Name, err)
	}
	return index.Build(decoded)
}

// OpenDocuments opens the configured database (DefaultDSN when unset) and
// returns a spec service over it for the management tools.
func OpenDocuments(ctx context.Context, cfg *server.Config, logger *logging.Logger) (*services.SpecLoaderService, *database.DB, error) {
	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	specs := services.NewSpecLoaderService(nil,
		services.WithDatabase(db),
		services.WithLogger(logger),
		services.WithLoader(newLoader(cfg, logger)),
	)
	return specs, db, nil
}

func newLoader(cfg *server.Config, logger *logging.Logger) *loader.Loader {
	return loader.New(
		loader.WithLogger(logging.OrDiscard(logger).With("component", "loader")),
		loader.WithS3Options(loader.S3Options{Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint}),
	)
}
