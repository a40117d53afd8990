package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/server"
	"github.com/Nels2/mcp-trmm/pkg/services"
)

func main() {
	specsDir := "./specs"
	if len(os.Args) > 1 {
		specsDir = os.Args[1]
	}
	baseURL := ""
	if len(os.Args) > 2 {
		baseURL = os.Args[2]
	}

	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Specs directory does not exist: %s\n", specsDir)
		os.Exit(1)
	}

	cfg, err := server.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx := context.Background()
	specs, db, err := app.OpenDocuments(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	files, err := os.ReadDir(specsDir)
	if err != nil {
		logger.Error("Failed to read specs directory", "dir", specsDir, "error", err)
		os.Exit(1)
	}

	imported := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		fileName := file.Name()
		ext := strings.ToLower(filepath.Ext(fileName))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		name := strings.ReplaceAll(strings.TrimSuffix(fileName, ext), "_", "-")
		doc, err := specs.Import(ctx, filepath.Join(specsDir, fileName), services.ImportOptions{Name: name, BaseURL: baseURL})
		if err != nil {
			logger.Warn("Failed to import document", "file", fileName, "error", err)
			continue
		}

		fmt.Printf("✓ Imported %s as '%s' (ID %d)\n", fileName, doc.Name, doc.ID)
		imported++
	}

	fmt.Printf("\nImport completed: %d documents imported successfully\n", imported)
	if imported > 0 {
		fmt.Println("\nTo view imported documents, run:")
		fmt.Println("  spec-manager list")
		fmt.Println("\nTo rebuild the endpoint index, run:")
		fmt.Println("  spec-manager build-index")
	}
}
