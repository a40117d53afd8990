// Package gateway ties the schema index, the matcher and the forwarding
// engine together behind two operations: listing candidates for a query and
// executing a query against the upstream API.
package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/matcher"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// Forwarder performs one upstream call.
type Forwarder interface {
	Forward(ctx context.Context, req forward.Request) *forward.Result
}

// Facade owns the published index. All methods are safe for concurrent use.
type Facade struct {
	current   atomic.Pointer[index.SchemaIndex]
	forwarder Forwarder
	logger    *logging.Logger

	requireExplicitMethod bool
	validatePayloads      bool
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the facade logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// WithRequireExplicitMethod makes a method-less execute over several
// candidates fail with AmbiguousMatchError instead of using the first match.
func WithRequireExplicitMethod(require bool) Option {
	return func(f *Facade) { f.requireExplicitMethod = require }
}

// WithValidatePayloads checks payloads against the entry request schema
// before forwarding.
func WithValidatePayloads(validate bool) Option {
	return func(f *Facade) { f.validatePayloads = validate }
}

// New creates a facade with no published index.
func New(fwd Forwarder, opts ...Option) *Facade {
	f := &Facade{forwarder: fwd}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.OrDiscard(f.logger)
	return f
}

// Publish atomically replaces the served index. A nil index is ignored.
func (f *Facade) Publish(idx *index.SchemaIndex) {
	if idx == nil {
		return
	}
	f.current.Store(idx)
	f.logger.Info("Index published", "endpoints", idx.Len())
}

// Rebuild builds an index from doc and publishes it. On failure the
// previously published index stays in place.
func (f *Facade) Rebuild(doc any) (*index.SchemaIndex, error) {
	idx, err := index.Build(doc)
	if err != nil {
		f.logger.Warn("Index rebuild failed, keeping previous index", "error", err)
		return nil, err
	}
	f.Publish(idx)
	return idx, nil
}

// Index returns the published index.
func (f *Facade) Index() (*index.SchemaIndex, error) {
	idx := f.current.Load()
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	return idx, nil
}

// Match resolves query against the published index.
func (f *Facade) Match(query string) (*matcher.MatchResult, error) {
	idx, err := f.Index()
	if err != nil {
		return nil, err
	}
	return matcher.Resolve(idx, query)
}

// ListCandidates returns every endpoint matching query. It fails with
// ErrIndexNotReady before the first publish and with *matcher.NoMatchError
// when nothing matches.
func (f *Facade) ListCandidates(query string) ([]models.Candidate, error) {
	match, err := f.Match(query)
	if err != nil {
		return nil, err
	}
	return match.Candidates(), nil
}

// ExecuteRequest is one execute call. Credential is sent as is; an empty
// credential sends no credential header.
type ExecuteRequest struct {
	Query      string
	Method     string
	Credential string
	Payload    any
	Params     map[string]string
	PathParams map[string]string
}

// Execute resolves req.Query to an indexed endpoint and forwards the call to
// that endpoint's path. It never forwards to a path absent from the index.
func (f *Facade) Execute(ctx context.Context, req ExecuteRequest) *forward.Result {
	logger := f.logger.With("request_id", uuid.NewString(), "query", req.Query)
	start := time.Now()

	entry, err := f.selectEntry(req)
	if err != nil {
		logger.Info("Execute rejected", "kind", forward.ErrorKind(err), "error", err)
		return forward.Failed(err)
	}

	path, err := expandPath(entry.Path, req.PathParams)
	if err != nil {
		logger.Info("Execute rejected", "kind", forward.ErrorKind(err), "error", err)
		return forward.Failed(err)
	}

	if f.validatePayloads {
		if err := validatePayload(entry, req.Payload, logger); err != nil {
			logger.Info("Execute rejected", "kind", forward.ErrorKind(err), "error", err)
			return forward.Failed(err)
		}
	}

	res := f.forwarder.Forward(ctx, forward.Request{
		Path:             path,
		Method:           entry.Method,
		Credential:       req.Credential,
		CredentialHeader: entry.CredentialHeader,
		Payload:          req.Payload,
		Params:           req.Params,
	})
	if res == nil {
		res = forward.Failed(errors.New("forwarder returned no result"))
	}

	if res.Err != nil {
		logger.Warn("Execute failed",
			"method", entry.Method,
			"path", path,
			"kind", forward.ErrorKind(res.Err),
			"error", res.Err,
			"duration", time.Since(start),
		)
	} else {
		logger.Info("Execute finished",
			"method", entry.Method,
			"path", path,
			"status", res.Status,
			"duration", time.Since(start),
		)
	}
	return res
}

func (f *Facade) selectEntry(req ExecuteRequest) (models.EndpointSpec, error) {
	if req.Method != "" {
		if _, err := forward.ParseMethod(req.Method); err != nil {
			return models.EndpointSpec{}, err
		}
	}

	match, err := f.Match(req.Query)
	if err != nil {
		return models.EndpointSpec{}, err
	}

	if req.Method != "" {
		return match.WithMethod(req.Method)
	}
	if !f.requireExplicitMethod {
		return match.First(), nil
	}
	if match.Ambiguous() {
		return models.EndpointSpec{}, &AmbiguousMatchError{Query: req.Query, Candidates: match.Candidates()}
	}
	if exact, ok := match.Exact(); ok {
		return exact, nil
	}
	return match.First(), nil
}
