// Package loader fetches schema documents from files, URLs and S3 buckets
// and decodes them for indexing.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Nels2/mcp-trmm/pkg/document"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/server"
)

// DefaultMaxDocumentBytes caps the size of a fetched document.
const DefaultMaxDocumentBytes = 50 << 20

// ObjectGetter is the part of the S3 client the loader uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the lazily created S3 client.
type S3Options struct {
	Region   string
	Endpoint string // custom endpoint for MinIO compatibility
}

// Loader fetches and decodes schema documents.
type Loader struct {
	httpClient *http.Client
	s3Options  S3Options
	logger     *logging.Logger
	maxBytes   int64

	s3Once sync.Once
	s3     ObjectGetter
	s3Err  error
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithS3Client sets the client used for s3:// sources.
func WithS3Client(c ObjectGetter) Option {
	return func(l *Loader) {
		l.s3 = c
		l.s3Once.Do(func() {})
	}
}

// WithS3Options configures the default S3 client.
func WithS3Options(opts S3Options) Option {
	return func(l *Loader) { l.s3Options = opts }
}

// WithLogger sets the loader logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   DefaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrDiscard(l.logger)
	return l
}

// Loaded is a fetched and decoded document.
type Loaded struct {
	Source   string
	Name     string
	Format   string
	Content  []byte
	Document document.Map
	Info     Info
	LoadedAt time.Time
}

// Load fetches source, decodes it and inspects its metadata. Inspection
// failures are logged and leave Info empty; the paths section alone is
// enough to build an index.
func (l *Loader) Load(ctx context.Context, source string) (*Loaded, error) {
	content, err := l.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(content)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeValidation, "failed to decode schema document")
	}

	info, err := Inspect(ctx, content, false)
	if err != nil {
		l.logger.Warn("Document metadata unavailable", "source", source, "error", err)
	}

	l.logger.Info("Schema document loaded",
		"source", source,
		"bytes", len(content),
		"title", info.Title,
		"version", info.Version,
	)

	return &Loaded{
		Source:   source,
		Name:     NameFromSource(source),
		Format:   DetectFormat(source, content),
		Content:  content,
		Document: doc,
		Info:     info,
		LoadedAt: time.Now(),
	}, nil
}

// Fetch reads the raw bytes of source: a local path, an http(s) URL or an
// s3://bucket/key URL.
func (l *Loader) Fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.fetchURL(ctx, source)
	case strings.HasPrefix(source, "s3://"):
		return l.fetchS3(ctx, source)
	default:
		return l.fetchFile(ctx, source)
	}
}

func (l *Loader) fetchURL(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to create request")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to fetch document from URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, server.NewErrorWithContext(ctx, server.ErrorTypeNetwork,
			fmt.Sprintf("HTTP %d when fetching document", resp.StatusCode), source)
	}

	return l.readAll(ctx, resp.Body, source)
}

func (l *Loader) fetchFile(ctx context.Context, path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "file://")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, server.NewErrorWithContext(ctx, server.ErrorTypeNotFound, "schema file not found", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeInternal, "failed to read schema file")
	}
	defer f.Close()

	return l.readAll(ctx, f, path)
}

func (l *Loader) fetchS3(ctx context.Context, source string) ([]byte, error) {
	bucket, key, err := ParseS3URL(source)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeValidation, "invalid s3 source")
	}

	client, err := l.s3Client(ctx)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to create s3 client")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to get s3 object")
	}
	defer out.Body.Close()

	return l.readAll(ctx, out.Body, source)
}

func (l *Loader) s3Client(ctx context.Context) (ObjectGetter, error) {
	l.s3Once.Do(func() {
		optFns := []func(*awsconfig.LoadOptions) error{}
		if l.s3Options.Region != "" {
			optFns = append(optFns, awsconfig.WithRegion(l.s3Options.Region))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			l.s3Err = fmt.Errorf("load aws config: %w", err)
			return
		}

		s3Opts := []func(*s3.Options){}
		if l.s3Options.Endpoint != "" {
			endpoint := l.s3Options.Endpoint
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true // required for MinIO
			})
		}
		l.s3 = s3.NewFromConfig(cfg, s3Opts...)
	})
	return l.s3, l.s3Err
}

func (l *Loader) readAll(ctx context.Context, r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to read document")
	}
	if int64(len(data)) > l.maxBytes {
		return nil, server.NewErrorWithContext(ctx, server.ErrorTypeValidation,
			fmt.Sprintf("document exceeds %d bytes", l.maxBytes), source)
	}
	return data, nil
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("expected s3://bucket/key, got %q", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("missing object key in %q", raw)
	}
	return u.Host, key, nil
}

// NameFromSource derives a short document name from a file path or URL.
func NameFromSource(source string) string {
	name := source
	if i := strings.IndexAny(name, "?#"); i != -1 {
		name = name[:i]
	}
	name = filepath.Base(strings.TrimRight(name, "/"))
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
