package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/matcher"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

const maxRequestBody = 1 << 20

// Gateway is the lookup-and-forward core the handlers serve.
type Gateway interface {
	Index() (*index.SchemaIndex, error)
	Match(query string) (*matcher.MatchResult, error)
	ListCandidates(query string) ([]models.Candidate, error)
	Execute(ctx context.Context, req gateway.ExecuteRequest) *forward.Result
}

// ReloadFunc rebuilds and republishes the index, returning the names of the
// documents it was built from.
type ReloadFunc func(ctx context.Context) ([]string, error)

// ReloadResponse represents the response from a reload operation
type ReloadResponse struct {
	Success        bool     `json:"success"`
	ReloadedSpecs  []string `json:"reloaded_specs,omitempty"`
	IndexEndpoints int      `json:"index_endpoints"`
	Error          string   `json:"error,omitempty"`
}

// ErrorResponse is the error body of the management endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// QueryBody is the request of POST /query_api.
type QueryBody struct {
	Query string `json:"query" jsonschema:"required,description=Path or path fragment to search for"`
}

// RunBody is the request of POST /run_api.
type RunBody struct {
	Query   string         `json:"query" jsonschema:"required,description=Path or path fragment of the endpoint to call"`
	Method  string         `json:"method" jsonschema:"required,enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	Payload map[string]any `json:"payload,omitempty" jsonschema:"description=JSON body sent with POST PUT and PATCH"`
}

// AvailablePaths is the response of POST /query_api.
type AvailablePaths struct {
	AvailablePaths []models.Candidate `json:"available_paths"`
}

// RouterConfig wires the HTTP front-ends. DefaultCredential is the upstream
// key used by /run_api; /forward only ever sends the caller's key.
type RouterConfig struct {
	Gateway           Gateway
	Reload            ReloadFunc
	Verifier          *auth.BearerVerifier
	CredentialHeader  string
	DefaultCredential string
	MCP               http.Handler
	Logger            *logging.Logger
}

// NewRouter returns the HTTP handler serving every front-end.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrDiscard(cfg.Logger)
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = auth.NewBearerVerifier("", "")
	}
	header := cfg.CredentialHeader
	if header == "" {
		header = auth.DefaultCredentialHeader
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", HandleHealth(cfg.Gateway))
	mux.Handle("GET /openapi.json", HandleOpenAPI())
	mux.Handle("GET /query", HandleQuery(cfg.Gateway, logger))
	mux.Handle("POST /forward", HandleForward(cfg.Gateway, header, logger))

	mux.Handle("POST /query_api", verifier.Middleware(HandleQueryAPI(cfg.Gateway, logger)))
	mux.Handle("POST /run_api", verifier.Middleware(HandleRunAPI(cfg.Gateway, cfg.DefaultCredential, logger)))
	if cfg.Reload != nil {
		mux.Handle("POST /reload", verifier.Middleware(HandleReload(cfg.Reload, cfg.Gateway, logger)))
	}
	if cfg.MCP != nil {
		mux.Handle("/mcp", verifier.Middleware(cfg.MCP))
	}
	return withRequestID(mux)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// HandleHealth handles the /health endpoint for health checks
func HandleHealth(gw Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"status":  "healthy",
			"service": "mcp-trmm",
		}
		status := http.StatusOK
		if idx, err := gw.Index(); err != nil {
			response["status"] = "starting"
			response["index_ready"] = false
			status = http.StatusServiceUnavailable
		} else {
			response["index_ready"] = true
			response["endpoints"] = idx.Len()
			response["built_at"] = idx.BuiltAt()
		}
		writeJSON(w, status, response)
	}
}

// HandleQuery handles GET /query?query= and returns every matching entry.
func HandleQuery(gw Gateway, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := gw.Match(r.URL.Query().Get("query"))
		if err != nil {
			writeLookupError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, match.Entries())
	}
}

// HandleForward handles POST /forward?query=&method=. The credential comes
// from the request header, the payload from the JSON body and every other
// query parameter is passed on to the upstream call.
func HandleForward(gw Gateway, credentialHeader string, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		query := values.Get("query")
		if query == "" {
			writeErrorResponse(w, http.StatusBadRequest, "missing query", "the query parameter is required")
			return
		}
		method := values.Get("method")

		var params map[string]string
		for key := range values {
			if key == "query" || key == "method" {
				continue
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[key] = values.Get(key)
		}

		payload, err := decodePayload(r)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid body", err.Error())
			return
		}

		res := gw.Execute(r.Context(), gateway.ExecuteRequest{
			Query:      query,
			Method:     method,
			Credential: r.Header.Get(credentialHeader),
			Payload:    payload,
			Params:     params,
		})
		if res.Err != nil {
			logResultError(r.Context(), logger, res.Err)
			writeJSON(w, res.HTTPStatus(), res)
			return
		}
		writeJSON(w, res.Status, res.Body)
	}
}

// HandleQueryAPI handles POST /query_api.
func HandleQueryAPI(gw Gateway, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body QueryBody
		if err := decodeBody(r, &body); err != nil {
			writeErrorResponse(w, http.StatusUnprocessableEntity, "invalid body", err.Error())
			return
		}
		candidates, err := gw.ListCandidates(body.Query)
		if err != nil {
			writeLookupError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, AvailablePaths{AvailablePaths: candidates})
	}
}

// HandleRunAPI handles POST /run_api. The upstream credential is
// defaultCredential.
func HandleRunAPI(gw Gateway, defaultCredential string, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body RunBody
		if err := decodeBody(r, &body); err != nil {
			writeErrorResponse(w, http.StatusUnprocessableEntity, "invalid body", err.Error())
			return
		}
		if body.Query == "" || body.Method == "" {
			writeErrorResponse(w, http.StatusUnprocessableEntity, "invalid body", "query and method are required")
			return
		}

		req := gateway.ExecuteRequest{Query: body.Query, Method: body.Method, Credential: defaultCredential}
		if body.Payload != nil {
			req.Payload = body.Payload
		}
		res := gw.Execute(r.Context(), req)
		if res.Err != nil {
			logResultError(r.Context(), logger, res.Err)
		}
		writeJSON(w, res.HTTPStatus(), res)
	}
}

// HandleReload handles the /reload endpoint for rebuilding the index
func HandleReload(reload ReloadFunc, gw Gateway, logger *logging.Logger) http.HandlerFunc {
	logger = logging.OrDiscard(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := reload(r.Context())

		response := ReloadResponse{
			Success:       err == nil,
			ReloadedSpecs: names,
		}
		if idx, idxErr := gw.Index(); idxErr == nil {
			response.IndexEndpoints = idx.Len()
		}

		status := http.StatusOK
		if err != nil {
			response.Error = err.Error()
			status = http.StatusInternalServerError
			logger.Error("Reload failed", "error", err, "request_id", RequestID(r.Context()))
		} else {
			logger.Info("Reload finished", "specs", names, "endpoints", response.IndexEndpoints)
		}
		writeJSON(w, status, response)
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func decodePayload(r *http.Request) (any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeLookupError(w http.ResponseWriter, r *http.Request, err error, logger *logging.Logger) {
	var noMatch *matcher.NoMatchError
	switch {
	case errors.As(err, &noMatch):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": gateway.NoMatchMessage})
	case errors.Is(err, gateway.ErrIndexNotReady):
		writeErrorResponse(w, http.StatusServiceUnavailable, "index not ready", err.Error())
	default:
		serr := WrapWithContext(r.Context(), err, GetType(err), "lookup failed")
		if serr.Type == ErrorTypeInternal {
			serr.WithStackTrace()
		}
		serr.LogError(logger)
		writeErrorResponse(w, serr.HTTPStatus(), serr.Message, err.Error())
	}
}

func logResultError(ctx context.Context, logger *logging.Logger, err error) {
	logging.OrDiscard(logger).Debug("Forward returned an error",
		"kind", forward.ErrorKind(err),
		"error", err,
		"request_id", RequestID(ctx),
	)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, ErrorResponse{Error: message, Message: details, Code: code})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
