package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/logging"
)

// Config holds server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	S3       S3Config       `yaml:"s3"`
	Sources  []string       `yaml:"sources"`
}

// ServerConfig contains HTTP front-end configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	MCPHTTP         bool          `yaml:"mcp_http"` // mount the tool interface on /mcp
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig describes the API calls are forwarded to
type UpstreamConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	UserAgent        string        `yaml:"user_agent"`
	Timeout          time.Duration `yaml:"timeout"`
	CredentialHeader string        `yaml:"credential_header"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// GatewayConfig toggles facade policies
type GatewayConfig struct {
	RequireExplicitMethod bool `yaml:"require_explicit_method"`
	ValidatePayloads      bool `yaml:"validate_payloads"`
}

// DatabaseConfig contains persistence configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	DisablePolling  bool          `yaml:"disable_polling"`
}

// AuthConfig secures the agent interface
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// LoggingConfig selects log level and format
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// S3Config configures s3:// schema sources
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			ShutdownTimeout: 25 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:          "https://api.trmm.org",
			UserAgent:        forward.DefaultUserAgent,
			Timeout:          forward.DefaultTimeout,
			CredentialHeader: auth.DefaultCredentialHeader,
			MaxResponseBytes: forward.DefaultMaxResponseBytes,
		},
		Database: DatabaseConfig{
			PollingInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env (if present), the optional YAML file at path and then the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig builds configuration from command line arguments and the
// environment. It understands --config <file>, --http <addr> and treats
// remaining arguments as schema sources.
func LoadConfig(args []string) (*Config, error) {
	var configPath, httpAddr string
	var sources []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case (arg == "--config" || arg == "-c") && i+1 < len(args):
			configPath = args[i+1]
			i++
		case arg == "--http" && i+1 < len(args):
			httpAddr = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--http="):
			httpAddr = strings.TrimPrefix(arg, "--http=")
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %s", arg)
		default:
			sources = append(sources, arg)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if len(sources) > 0 {
		cfg.Sources = sources
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = b
		return nil
	}
	setDuration := func(name string, dst *time.Duration) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		d, err := ParseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = d
		return nil
	}

	setString("HTTP_ADDR", &c.Server.HTTPAddr)
	setString("EXTERNAL_API_BASE", &c.Upstream.BaseURL)
	setString("API_KEY", &c.Upstream.APIKey)
	setString("USER_AGENT", &c.Upstream.UserAgent)
	setString("CREDENTIAL_HEADER", &c.Upstream.CredentialHeader)
	setString("DATABASE_URL", &c.Database.URL)
	setString("MCP_BEARER_TOKEN", &c.Auth.BearerToken)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)
	setString("S3_ENDPOINT", &c.S3.Endpoint)
	setString("S3_REGION", &c.S3.Region)
	if v := os.Getenv("SCHEMA_SOURCE"); v != "" {
		c.Sources = splitList(v)
	}

	for name, dst := range map[string]*time.Duration{
		"FORWARD_TIMEOUT":  &c.Upstream.Timeout,
		"POLLING_INTERVAL": &c.Database.PollingInterval,
	} {
		if err := setDuration(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*bool{
		"DISABLE_POLLING":         &c.Database.DisablePolling,
		"REQUIRE_EXPLICIT_METHOD": &c.Gateway.RequireExplicitMethod,
		"VALIDATE_PAYLOADS":       &c.Gateway.ValidatePayloads,
		"MCP_HTTP":                &c.Server.MCPHTTP,
	} {
		if err := setBool(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// ParseSeconds parses a duration. Bare integers are seconds.
func ParseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := cast.ToIntE(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DatabaseMode reports whether a database is configured.
func (c *Config) DatabaseMode() bool {
	return c.Database.URL != ""
}

// PollingEnabled reports whether the database should be polled for changes.
func (c *Config) PollingEnabled() bool {
	return c.DatabaseMode() && !c.Database.DisablePolling
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("EXTERNAL_API_BASE must be an http(s) URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("forward timeout must be positive")
	}
	if c.PollingEnabled() && c.Database.PollingInterval <= 0 {
		return fmt.Errorf("POLLING_INTERVAL must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if !c.DatabaseMode() && len(c.Sources) == 0 {
		return fmt.Errorf("no schema sources provided and DATABASE_URL is not set")
	}
	return nil
}

// LogConfiguration logs the current configuration
func (c *Config) LogConfiguration(logger *logging.Logger) {
	logger = logging.OrDiscard(logger)
	if c.DatabaseMode() {
		logger.Info("Running in database mode",
			"database_url", maskSensitive(c.Database.URL),
			"polling", c.PollingEnabled(),
			"polling_interval", c.Database.PollingInterval,
		)
	} else {
		logger.Info("Running in file mode", "sources", len(c.Sources))
	}
	logger.Info("Upstream configured",
		"base_url", c.Upstream.BaseURL,
		"timeout", c.Upstream.Timeout,
		"credential_header", c.Upstream.CredentialHeader,
		"api_key", maskSensitive(c.Upstream.APIKey),
	)
	logger.Info("Gateway policies",
		"require_explicit_method", c.Gateway.RequireExplicitMethod,
		"validate_payloads", c.Gateway.ValidatePayloads,
		"bearer_auth", c.Auth.BearerToken != "" || c.Auth.JWTSecret != "",
		"mcp_http", c.Server.MCPHTTP,
	)
	logger.Info("HTTP server configured", "addr", c.Server.HTTPAddr)
}

// maskSensitive masks sensitive values for logging
func maskSensitive(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 20 {
		return value[:8] + "***" + value[len(value)-8:]
	}
	return "***"
}
