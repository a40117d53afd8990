package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/server"
	"github.com/Nels2/mcp-trmm/pkg/services"
)

// SpecConfig defines how each document should be imported
type SpecConfig struct {
	Source           string `json:"source" yaml:"source"`
	Name             string `json:"name" yaml:"name"`
	BaseURL          string `json:"base_url" yaml:"base_url"`
	CredentialHeader string `json:"credential_header" yaml:"credential_header"`
	Active           *bool  `json:"active" yaml:"active"`
}

// SeedConfig defines the seeding configuration
type SeedConfig struct {
	Specs []SpecConfig `json:"specs" yaml:"specs"`
}

// defaultSeed is used when no seed file is given.
var defaultSeed = SeedConfig{Specs: []SpecConfig{
	{Source: "specs/trmm.yaml", Name: "trmm", BaseURL: "https://api.trmm.org"},
}}

func main() {
	cfg, err := server.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	seed := defaultSeed
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			logger.Error("Failed to read seed file", "error", err)
			os.Exit(1)
		}
		// yaml.v3 reads JSON seed files too.
		seed = SeedConfig{}
		if err := yaml.Unmarshal(data, &seed); err != nil {
			logger.Error("Failed to parse seed file", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	specs, db, err := app.OpenDocuments(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	imported := seedDocuments(ctx, specs, seed, logger)
	fmt.Printf("\nSeeding completed: %d documents imported successfully\n", imported)
	if imported == 0 {
		return
	}

	idx, names, err := specs.BuildIndex(ctx)
	if err != nil {
		logger.Error("Failed to build index", "error", err)
		os.Exit(1)
	}
	written, err := specs.Persist(ctx, idx)
	if err != nil {
		logger.Error("Failed to persist index", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Stored %d endpoints from %v\n", written, names)
}

func seedDocuments(ctx context.Context, specs *services.SpecLoaderService, seed SeedConfig, logger *logging.Logger) int {
	fmt.Printf("Seeding database with %d documents...\n", len(seed.Specs))

	imported := 0
	for _, sc := range seed.Specs {
		doc, err := specs.Import(ctx, sc.Source, services.ImportOptions{
			Name:             sc.Name,
			BaseURL:          sc.BaseURL,
			CredentialHeader: sc.CredentialHeader,
		})
		if err != nil {
			logger.Warn("Failed to import document", "source", sc.Source, "error", err)
			continue
		}

		status := "active"
		if sc.Active != nil && !*sc.Active {
			if err := specs.SetActive(ctx, doc.ID, false); err != nil {
				logger.Warn("Failed to deactivate document", "name", doc.Name, "error", err)
			}
			status = "inactive"
		}
		fmt.Printf("✓ Imported %s as '%s' (%s)\n", sc.Source, doc.Name, status)
		imported++
	}
	return imported
}
