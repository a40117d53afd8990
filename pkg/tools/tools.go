// Package tools exposes the gateway as tool-protocol tools over stdio or
// streamable HTTP.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/matcher"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

const (
	ServerName    = "trmm-api-agent"
	ServerVersion = "1.0.4"
)

// Gateway is the part of the facade the tools use.
type Gateway interface {
	ListCandidates(query string) ([]models.Candidate, error)
	Execute(ctx context.Context, req gateway.ExecuteRequest) *forward.Result
}

// NewServer creates a tool server with query_api and run_api registered.
// defaultCredential is the upstream key run_api falls back to.
func NewServer(gw Gateway, defaultCredential string, logger *logging.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions("Use query_api to find API endpoints by path fragment, then run_api with one of the returned paths and its method to call the API."),
	)
	Register(s, gw, defaultCredential, logger)
	return s
}

// Register adds the gateway tools to s.
func Register(s *server.MCPServer, gw Gateway, defaultCredential string, logger *logging.Logger) {
	logger = logging.OrDiscard(logger)

	s.AddTool(
		mcp.NewTool("query_api",
			mcp.WithDescription("Search the API schema for an endpoint. Returns the matching paths with their method and description."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The path or path fragment to search for in the API schema")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleQueryAPI(req, gw)
		},
	)

	s.AddTool(
		mcp.NewTool("run_api",
			mcp.WithDescription("Run an API call by forwarding the request to the external API. The path must be one returned by query_api."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The path or path fragment of the endpoint to call")),
			mcp.WithString("method", mcp.Required(), mcp.Description("The method to use: GET, POST, PUT, PATCH, DELETE"),
				mcp.Enum("GET", "POST", "PUT", "PATCH", "DELETE")),
			mcp.WithObject("payload", mcp.Description("JSON body for POST, PUT and PATCH")),
			mcp.WithString("api_key", mcp.Description("API key for the external API. Defaults to the configured key")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRunAPI(ctx, req, gw, defaultCredential, logger)
		},
	)
}

func handleQueryAPI(req mcp.CallToolRequest, gw Gateway) (*mcp.CallToolResult, error) {
	query := mcp.ParseString(req, "query", "")
	candidates, err := gw.ListCandidates(query)
	if err != nil {
		var noMatch *matcher.NoMatchError
		if errors.As(err, &noMatch) {
			return jsonText(map[string]string{"error": gateway.NoMatchMessage}), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonText(map[string]any{"available_paths": candidates}), nil
}

func handleRunAPI(ctx context.Context, req mcp.CallToolRequest, gw Gateway, defaultCredential string, logger *logging.Logger) (*mcp.CallToolResult, error) {
	logger = logging.OrDiscard(logger)
	query := mcp.ParseString(req, "query", "")
	method := strings.ToUpper(mcp.ParseString(req, "method", ""))
	if query == "" || method == "" {
		return mcp.NewToolResultError("query and method are required"), nil
	}

	credential := mcp.ParseString(req, "api_key", "")
	if credential == "" {
		credential, _ = auth.CredentialFromContext(ctx)
	}
	if credential == "" {
		credential = defaultCredential
	}

	execReq := gateway.ExecuteRequest{Query: query, Method: method, Credential: credential}
	if payload := mcp.ParseStringMap(req, "payload", nil); payload != nil {
		execReq.Payload = payload
	}

	res := gw.Execute(ctx, execReq)
	data, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Err != nil {
		logger.Debug("run_api failed", "kind", forward.ErrorKind(res.Err), "error", res.Err)
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonText(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// HTTPContext copies the caller's credential header into the tool context.
func HTTPContext(credentialHeader string) func(context.Context, *http.Request) context.Context {
	if credentialHeader == "" {
		credentialHeader = auth.DefaultCredentialHeader
	}
	return func(ctx context.Context, r *http.Request) context.Context {
		if key := r.Header.Get(credentialHeader); key != "" {
			ctx = auth.WithCredential(ctx, key)
		}
		return ctx
	}
}

// NewHTTPHandler serves s as streamable HTTP on /mcp.
func NewHTTPHandler(s *server.MCPServer, credentialHeader string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(HTTPContext(credentialHeader)),
	)
}
