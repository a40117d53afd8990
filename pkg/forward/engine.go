// Package forward sends authenticated calls to the upstream API and turns
// every outcome into a Result.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/memory"
)

const (
	// DefaultTimeout bounds each outbound call.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the gateway to the upstream API.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	// DefaultMaxResponseBytes caps how much of an upstream body is read.
	DefaultMaxResponseBytes = 10 << 20
)

// Request is one call to forward. CredentialHeader, when set, replaces the
// engine's credential header for this call.
type Request struct {
	Path             string
	Method           string
	Credential       string
	CredentialHeader string
	Payload          any
	Params           map[string]string
}

// Engine forwards requests to a fixed base URL. It is safe for concurrent use.
type Engine struct {
	baseURL          string
	transport        http.RoundTripper
	client           *http.Client
	timeout          time.Duration
	userAgent        string
	credentialHeader string
	maxResponseBytes int64
	logger           *logging.Logger
	buffers          *memory.BufferPool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTransport sets the base transport, below credential injection.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Engine) { e.transport = rt }
}

// WithTimeout sets the per-call timeout budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent attached to every call.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithCredentialHeader sets the header that carries the credential.
func WithCredentialHeader(h string) Option {
	return func(e *Engine) {
		if h != "" {
			e.credentialHeader = h
		}
	}
}

// WithMaxResponseBytes caps the upstream body size. Zero disables the cap.
func WithMaxResponseBytes(n int64) Option {
	return func(e *Engine) { e.maxResponseBytes = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine forwarding to baseURL.
func NewEngine(baseURL string, opts ...Option) *Engine {
	e := &Engine{
		baseURL:          strings.TrimRight(baseURL, "/"),
		timeout:          DefaultTimeout,
		userAgent:        DefaultUserAgent,
		credentialHeader: auth.DefaultCredentialHeader,
		maxResponseBytes: DefaultMaxResponseBytes,
		buffers:          memory.NewBufferPool(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	e.client = &http.Client{
		Transport: auth.NewSecureRoundTripper(e.transport, auth.NewHeaderProvider(e.credentialHeader, e.userAgent)),
		// Redirects are never followed; a 3xx is reported as an upstream status.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return e
}

// Forward performs one call. It never returns nil and never panics on
// network failures; every failure is reported through Result.Err.
func (e *Engine) Forward(ctx context.Context, req Request) *Result {
	method, err := ParseMethod(req.Method)
	if err != nil {
		return Failed(err)
	}

	target, err := e.targetURL(req.Path, req.Params)
	if err != nil {
		return Failed(&UpstreamUnreachableError{URL: e.baseURL + req.Path, Cause: err})
	}

	var body io.Reader
	if method.SendsBody() && req.Payload != nil {
		data, err := json.Marshal(req.Payload)
		if err != nil {
			return Failed(&InvalidPayloadError{Cause: err})
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.Credential != "" {
		ctx = auth.WithCredential(ctx, req.Credential)
		if req.CredentialHeader != "" {
			ctx = auth.WithCredentialHeader(ctx, req.CredentialHeader)
		}
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(e.timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	httpReq, err := http.NewRequestWithContext(ctx, string(method), target, body)
	if err != nil {
		return Failed(&UpstreamUnreachableError{URL: target, Cause: err})
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	e.logger.Debug("Forwarding request",
		"method", method,
		"url", target,
		"credential_len", len(req.Credential),
	)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Failed(e.classify(err, timedOut.Load(), target))
	}
	defer resp.Body.Close()

	// Headers arrived; the same budget now bounds the body read.
	timer.Reset(e.timeout)

	data, err := e.buffers.ReadLimited(resp.Body, e.maxResponseBytes)
	if err != nil {
		if errors.Is(err, memory.ErrLimitExceeded) {
			return Failed(&ResponseTooLargeError{URL: target, Limit: e.maxResponseBytes})
		}
		return Failed(e.classify(err, timedOut.Load(), target))
	}

	decoded := DecodeBody(data, resp.Header.Get("Content-Type"))
	e.logger.Debug("Upstream responded",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failed(&UpstreamStatusError{URL: target, Status: resp.StatusCode, Body: decoded})
	}
	return &Result{Status: resp.StatusCode, Body: decoded}
}

func (e *Engine) targetURL(path string, params map[string]string) (string, error) {
	if e.baseURL == "" {
		return "", errors.New("no upstream base URL configured")
	}
	raw := e.baseURL + "/" + strings.TrimLeft(path, "/")
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (e *Engine) classify(err error, timedOut bool, target string) error {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamTimeoutError{URL: target, Timeout: e.timeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamTimeoutError{URL: target, Timeout: e.timeout}
	}
	return &UpstreamUnreachableError{URL: target, Cause: err}
}

// DecodeBody parses data as JSON when it looks structured, and returns it
// as a string otherwise. An empty body decodes to nil.
func DecodeBody(data []byte, contentType string) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	structured := trimmed[0] == '{' || trimmed[0] == '[' || strings.Contains(contentType, "json")
	if structured {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v
		}
	}
	return string(data)
}
