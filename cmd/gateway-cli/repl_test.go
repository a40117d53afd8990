package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"method":"` + r.Method + `","key":"` + r.Header.Get("X-API-KEY") + `"}`))
	}))
	t.Cleanup(upstream.Close)

	idx, err := index.FromEntries([]models.EndpointSpec{
		{Path: "/agents/", Method: "GET", Description: "List agents"},
		{Path: "/scripts/", Method: "POST", Description: "Create script", RequestSchema: map[string]any{"type": "object"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := gateway.New(forward.NewEngine(upstream.URL))
	f.Publish(idx)

	out := &bytes.Buffer{}
	return &repl{
		facade:     f,
		reload:     func(ctx context.Context) ([]string, error) { return []string{"trmm"}, nil },
		credential: "cli-key",
		out:        out,
	}, out
}

func TestREPLFind(t *testing.T) {
	r, out := newTestREPL(t)
	if err := r.exec(context.Background(), "find agents"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "GET") || !strings.Contains(out.String(), "/agents/: List agents") {
		t.Errorf("unexpected output %q", out.String())
	}
	if err := r.exec(context.Background(), "find nothing"); err == nil || err.Error() != gateway.NoMatchMessage {
		t.Errorf("expected no match message, got %v", err)
	}
}

func TestREPLShowAndRun(t *testing.T) {
	r, out := newTestREPL(t)
	if err := r.exec(context.Background(), "show scripts"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"request_body"`) {
		t.Errorf("expected request_body in show output, got %s", out.String())
	}

	out.Reset()
	if err := r.exec(context.Background(), `run POST /scripts/ {"name":"x"}`); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"method": "POST"`) {
		t.Errorf("expected upstream echo, got %s", out.String())
	}
	if !strings.Contains(out.String(), `"key": "cli-key"`) {
		t.Errorf("expected configured key upstream, got %s", out.String())
	}

	if err := r.exec(context.Background(), "run GET"); err == nil {
		t.Error("expected usage error")
	}
	if err := r.exec(context.Background(), "run POST /scripts/ {bad"); err == nil {
		t.Error("expected json error")
	}
}

func TestREPLMisc(t *testing.T) {
	r, out := newTestREPL(t)
	ctx := context.Background()
	if err := r.exec(ctx, "summary"); err != nil {
		t.Fatal(err)
	}
	if err := r.exec(ctx, "reload"); err != nil || !strings.Contains(out.String(), "Reloaded trmm") {
		t.Errorf("unexpected reload result %v %q", err, out.String())
	}
	if err := r.exec(ctx, "   "); err != nil {
		t.Errorf("expected empty line to be ignored, got %v", err)
	}
	if err := r.exec(ctx, "quit"); !errors.Is(err, errQuit) {
		t.Errorf("expected errQuit, got %v", err)
	}
	if err := r.exec(ctx, "dance"); err == nil {
		t.Error("expected unknown command error")
	}
}
