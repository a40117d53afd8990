package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/server"
	"github.com/Nels2/mcp-trmm/pkg/services"
)

var logger *logging.Logger

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}
	command := os.Args[1]
	if command == "help" {
		printHelp()
		return
	}

	cfg, err := server.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger = app.NewLogger(cfg)

	ctx := context.Background()
	specs, db, err := app.OpenDocuments(ctx, cfg, logger)
	if err != nil {
		fatal("Failed to initialize database", err)
	}
	defer db.Close()

	switch command {
	case "list":
		handleList(ctx, specs, false)
	case "active":
		handleList(ctx, specs, true)
	case "import":
		handleImport(ctx, specs)
	case "show":
		handleShow(ctx, specs)
	case "activate":
		handleSetActive(ctx, specs, true)
	case "deactivate":
		handleSetActive(ctx, specs, false)
	case "delete":
		handleDelete(ctx, specs)
	case "set-header":
		handleSetHeader(ctx, specs)
	case "build-index":
		handleBuildIndex(ctx, specs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Schema Document Manager")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                               List all documents in the database")
	fmt.Println("  active                             List only active documents")
	fmt.Println("  import <source> [name] [base-url]  Import a document from a file, URL or s3://bucket/key")
	fmt.Println("  show <id>                          Print the endpoint summary of a document")
	fmt.Println("  activate <id>                      Activate a document by ID")
	fmt.Println("  deactivate <id>                    Deactivate a document by ID")
	fmt.Println("  delete <id>                        Delete a document by ID")
	fmt.Println("  set-header <id> <header>           Set the credential header of a document")
	fmt.Println("  build-index                        Rebuild the api_endpoints table from active documents")
	fmt.Println("  help                               Show this help message")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  spec-manager import trmm.yaml trmm https://api.trmm.org")
	fmt.Println("  spec-manager list")
	fmt.Println("  spec-manager set-header 1 X-API-KEY")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL                       postgres:// URL or SQLite file (default api_endpoints.db)")
	fmt.Println("  CONFIG_FILE                        Optional YAML configuration file")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func handleList(ctx context.Context, specs *services.SpecLoaderService, activeOnly bool) {
	docs, err := specs.Documents(ctx, activeOnly)
	if err != nil {
		fatal("Failed to get documents", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents found in the database.")
		return
	}

	fmt.Printf("%-4s %-20s %-30s %-10s %-8s %-6s %-12s %s\n", "ID", "Name", "Title", "Version", "Active", "Format", "Header", "Base URL")
	fmt.Println(strings.Repeat("-", 115))
	for _, doc := range docs {
		fmt.Printf("%-4d %-20s %-30s %-10s %-8t %-6s %-12s %s\n",
			doc.ID,
			truncate(doc.Name, 18),
			truncate(deref(doc.Title), 28),
			truncate(deref(doc.Version), 8),
			doc.Active(),
			deref(doc.FileFormat),
			truncate(deref(doc.CredentialHeader), 12),
			doc.BaseURL,
		)
	}
}

func handleImport(ctx context.Context, specs *services.SpecLoaderService) {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager import <source> [name] [base-url]\n")
		os.Exit(1)
	}
	opts := services.ImportOptions{}
	if len(os.Args) > 3 {
		opts.Name = os.Args[3]
	}
	if len(os.Args) > 4 {
		opts.BaseURL = os.Args[4]
	}

	doc, err := specs.Import(ctx, os.Args[2], opts)
	if err != nil {
		fatal("Failed to import document", err)
	}
	fmt.Printf("Successfully imported '%s' from '%s' with ID %d\n", doc.Name, os.Args[2], doc.ID)
}

func parseID() int {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager %s <id>\n", os.Args[1])
		os.Exit(1)
	}
	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fatal("Invalid ID", err)
	}
	return id
}

func handleShow(ctx context.Context, specs *services.SpecLoaderService) {
	doc, err := specs.Document(ctx, parseID())
	if err != nil {
		fatal("Failed to get document", err)
	}
	idx, err := app.IndexDocument(doc)
	if err != nil {
		fatal("Failed to index document", err)
	}
	fmt.Printf("%s (%s %s)\n", doc.Name, deref(doc.Title), deref(doc.Version))
	idx.Summary().Print(os.Stdout)
}

func handleSetActive(ctx context.Context, specs *services.SpecLoaderService, active bool) {
	id := parseID()
	if err := specs.SetActive(ctx, id, active); err != nil {
		fatal("Failed to update document", err)
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Printf("Successfully %s document with ID %d\n", state, id)
}

func handleDelete(ctx context.Context, specs *services.SpecLoaderService) {
	id := parseID()
	if err := specs.Delete(ctx, id); err != nil {
		fatal("Failed to delete document", err)
	}
	fmt.Printf("Successfully deleted document with ID %d\n", id)
}

func handleSetHeader(ctx context.Context, specs *services.SpecLoaderService) {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager set-header <id> <header>\n")
		fmt.Fprintf(os.Stderr, "       spec-manager set-header <id> \"\"  (to clear)\n")
		os.Exit(1)
	}
	id := parseID()
	var header *string
	if h := os.Args[3]; h != "" {
		header = &h
	}
	if err := specs.UpdateCredentialHeader(ctx, id, header); err != nil {
		fatal("Failed to update credential header", err)
	}
	fmt.Printf("Successfully updated credential header for document with ID %d\n", id)
}

func handleBuildIndex(ctx context.Context, specs *services.SpecLoaderService) {
	idx, names, err := specs.BuildIndex(ctx)
	if err != nil {
		fatal("Failed to build index", err)
	}
	written, err := specs.Persist(ctx, idx)
	if err != nil {
		fatal("Failed to persist index", err)
	}
	fmt.Printf("Stored %d endpoints from %s\n", written, strings.Join(names, ", "))
}
