package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/database"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/loader"
	"github.com/Nels2/mcp-trmm/pkg/repository"
	"github.com/Nels2/mcp-trmm/pkg/server"
)

func main() {
	dsn := flag.String("db", "", "database URL or SQLite file (default: DATABASE_URL or api_endpoints.db)")
	reset := flag.Bool("reset", false, "drop and recreate the tables first")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: create-index [-db dsn] [-reset] <schema-source>\n\n")
		fmt.Fprintf(os.Stderr, "Builds the api_endpoints table from a schema document.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := server.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dsn != "" {
		cfg.Database.URL = *dsn
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	loaded, err := loader.New(
		loader.WithLogger(logger),
		loader.WithS3Options(loader.S3Options{Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint}),
	).Load(ctx, flag.Arg(0))
	if err != nil {
		logger.Error("Failed to load schema", "error", err)
		os.Exit(1)
	}
	idx, err := index.Build(loaded.Document)
	if err != nil {
		logger.Error("Failed to index schema", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if *reset {
		if err := database.DropTables(ctx, db); err != nil {
			logger.Error("Failed to drop tables", "error", err)
			os.Exit(1)
		}
	}
	if err := database.RunMigrations(ctx, db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	written, err := repository.NewEndpointRepository(db).Save(ctx, idx.Entries())
	if err != nil {
		logger.Error("Failed to store endpoints", "error", err)
		os.Exit(1)
	}

	idx.Summary().Print(os.Stdout)
	fmt.Printf("\n> API schema stored successfully: %d endpoints in %s\n", written, database.MaskDSN(cfg.Database.URL))
}
