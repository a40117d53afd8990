package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/matcher"
)

var errQuit = errors.New("quit")

type repl struct {
	facade     *gateway.Facade
	reload     func(ctx context.Context) ([]string, error)
	credential string
	out        io.Writer
}

const helpText = `Commands:
  find <fragment>                   List endpoints whose path contains fragment
  show <fragment>                   Print full entries with request schema and responses
  run <method> <path> [json-body]   Call an indexed endpoint
  summary                           Print an index summary
  reload                            Rebuild the index
  help                              Show this help
  quit                              Exit
`

func (r *repl) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "find":
		return r.find(rest)
	case "show":
		return r.show(rest)
	case "run":
		return r.run(ctx, rest)
	case "summary":
		idx, err := r.facade.Index()
		if err != nil {
			return err
		}
		idx.Summary().Print(r.out)
		return nil
	case "reload":
		names, err := r.reload(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Reloaded %s\n", strings.Join(names, ", "))
		return nil
	case "help", "?":
		fmt.Fprint(r.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (r *repl) find(fragment string) error {
	candidates, err := r.facade.ListCandidates(fragment)
	if err != nil {
		return lookupError(err)
	}
	for _, c := range candidates {
		fmt.Fprintf(r.out, "- %-6s %s: %s\n", c.Method, c.Path, c.Description)
	}
	return nil
}

func (r *repl) show(fragment string) error {
	match, err := r.facade.Match(fragment)
	if err != nil {
		return lookupError(err)
	}
	return r.printJSON(match.Entries())
}

func (r *repl) run(ctx context.Context, args string) error {
	method, rest, _ := strings.Cut(args, " ")
	path, body, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if method == "" || path == "" {
		return errors.New("usage: run <method> <path> [json-body]")
	}

	var payload any
	if body = strings.TrimSpace(body); body != "" {
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return fmt.Errorf("invalid json body: %w", err)
		}
	}

	res := r.facade.Execute(ctx, gateway.ExecuteRequest{Query: path, Method: method, Credential: r.credential, Payload: payload})
	return r.printJSON(res)
}

func (r *repl) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

func lookupError(err error) error {
	var noMatch *matcher.NoMatchError
	if errors.As(err, &noMatch) {
		return errors.New(gateway.NoMatchMessage)
	}
	return err
}
