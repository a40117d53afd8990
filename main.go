package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/server"
)

// startServerWithGracefulShutdown starts the HTTP server with proper graceful shutdown handling
func startServerWithGracefulShutdown(ctx context.Context, srv *http.Server, timeout time.Duration, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Received signal, initiating graceful shutdown", "timeout", timeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server shut down gracefully")
		return nil
	}
}

func run(args []string) error {
	cfg, err := server.LoadConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := app.NewLogger(cfg)
	cfg.LogConfiguration(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to build schema index: %w", err)
	}
	logger.Info("Schema index ready", "specs", names)

	if cfg.PollingEnabled() {
		go a.Specs.Poll(ctx, cfg.Database.PollingInterval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return startServerWithGracefulShutdown(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
