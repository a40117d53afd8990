package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"github.com/Nels2/mcp-trmm/pkg/app"
	"github.com/Nels2/mcp-trmm/pkg/server"
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

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".gateway_cli_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "trmm> ",
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("find"),
			readline.PcItem("show"),
			readline.PcItem("run",
				readline.PcItem("GET"),
				readline.PcItem("POST"),
				readline.PcItem("PUT"),
				readline.PcItem("PATCH"),
				readline.PcItem("DELETE"),
			),
			readline.PcItem("summary"),
			readline.PcItem("reload"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		logger.Error("Failed to start readline", "error", err)
		os.Exit(1)
	}
	defer rl.Close()

	r := &repl{facade: a.Facade, reload: a.Reload, credential: cfg.Upstream.APIKey, out: rl.Stdout()}
	fmt.Fprint(rl.Stdout(), helpText)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Error("Read failed", "error", err)
			return
		}

		if err := r.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}
