package main

import (
	"context"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/server"
	"github.com/Nels2/mcp-trmm/pkg/tools"
)

func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol; logs go to stderr.
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if _, err := a.Reload(ctx); err != nil {
		logger.Error("Failed to build schema index", "error", err)
		os.Exit(1)
	}
	if cfg.PollingEnabled() {
		go a.Specs.Poll(ctx, cfg.Database.PollingInterval)
	}

	logger.Info("Starting tool server (stdio)", "name", tools.ServerName)
	if err := mcpserver.ServeStdio(tools.NewServer(a.Facade, cfg.Upstream.APIKey, logger)); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
