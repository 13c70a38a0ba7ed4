package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names a docstore implementation.
type Backend string

const (
	// BackendCosmos talks to the Cosmos DB SQL API through azcosmos.
	BackendCosmos Backend = "cosmos"
	// BackendMongo talks to Cosmos DB for MongoDB through the Mongo driver.
	BackendMongo Backend = "mongo"
	// BackendMemory keeps everything in process. Intended for demos and tests.
	BackendMemory Backend = "memory"
)

// Transport names how the MCP server is exposed.
type Transport string

const (
	// TransportStdio serves MCP over stdin/stdout through the go-sdk server.
	TransportStdio Transport = "stdio"
	// TransportJSONL serves newline-delimited JSON-RPC on stdin/stdout.
	TransportJSONL Transport = "jsonl"
	// TransportHTTP serves /mcp, /rpc, /sse and /healthz on an HTTP listener.
	TransportHTTP Transport = "http"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COSMOSMCP_"

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = EnvPrefix + "CONFIG"

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the MCP surface.
type ServerConfig struct {
	Name      string    `yaml:"name"`
	Version   string    `yaml:"version"`
	Transport Transport `yaml:"transport"`

	// HTTPAddr is the listen address for the http transport.
	HTTPAddr string `yaml:"http_addr"`

	// CallTimeout bounds each tool call. Zero uses the registry default;
	// negative disables the bound.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RequestTimeout bounds each HTTP request on the JSON-RPC routes.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// AuthSecretEnv names the variable holding the HS256 secret for bearer
	// tokens on the http transport. An unset or empty variable disables auth.
	AuthSecretEnv string `yaml:"auth_secret_env"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Backend Backend `yaml:"backend"`

	// KeyEnv names the variable holding an explicit account key.
	KeyEnv string `yaml:"key_env"`

	// KeyFile is a file holding an account key, e.g. a mounted secret. It
	// takes precedence over KeyEnv and is watched for rotation.
	KeyFile string `yaml:"key_file"`

	// EndpointDomain is the DNS suffix for SQL API accounts.
	EndpointDomain string `yaml:"endpoint_domain"`

	// MongoURITemplate is the connection string for the mongo backend,
	// with %s standing for the account name.
	MongoURITemplate string `yaml:"mongo_uri_template"`

	// PageSize hints how many items each listing or query page holds.
	PageSize int `yaml:"page_size"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used before any file or environment
// override is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:           "cosmosmcp",
			Version:        "dev",
			Transport:      TransportStdio,
			HTTPAddr:       "127.0.0.1:8080",
			RequestTimeout: 2 * time.Minute,
			AuthSecretEnv:  EnvPrefix + "AUTH_SECRET",
		},
		Store: StoreConfig{
			Backend:        BackendCosmos,
			KeyEnv:         "COSMOSDB_ACCOUNT_KEY",
			EndpointDomain: "documents.azure.com",
			PageSize:       100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the file at path (or at
// $COSMOSMCP_CONFIG when path is empty) and COSMOSMCP_* environment
// variables, in that order. A missing path is not an error; a path that
// cannot be read is.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path == "" {
		path, _ = lookup(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path, lookup); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into c. ${VAR} and ${VAR:-default} are
// expanded before parsing.
func (c *Config) loadFile(path string, lookup func(string) (string, bool)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	expanded := expandVars(string(data), lookup)
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from COSMOSMCP_* variables. Empty values are
// ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	str("SERVER_NAME", &c.Server.Name)
	str("HTTP_ADDR", &c.Server.HTTPAddr)
	str("AUTH_SECRET_ENV", &c.Server.AuthSecretEnv)
	str("KEY_ENV", &c.Store.KeyEnv)
	str("KEY_FILE", &c.Store.KeyFile)
	str("ENDPOINT_DOMAIN", &c.Store.EndpointDomain)
	str("MONGO_URI_TEMPLATE", &c.Store.MongoURITemplate)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := get("TRANSPORT"); ok {
		c.Server.Transport = Transport(v)
	}
	if v, ok := get("BACKEND"); ok {
		c.Store.Backend = Backend(v)
	}

	var errs []error
	if v, ok := get("CALL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCALL_TIMEOUT: %w", EnvPrefix, err))
		}
		c.Server.CallTimeout = d
	}
	if v, ok := get("REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUEST_TIMEOUT: %w", EnvPrefix, err))
		}
		c.Server.RequestTimeout = d
	}
	if v, ok := get("PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err))
		}
		c.Store.PageSize = n
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Transport {
	case TransportStdio, TransportJSONL, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("invalid server.transport %q", c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP && c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required for the http transport"))
	}
	if c.Server.Name == "" {
		errs = append(errs, errors.New("server.name is required"))
	}

	switch c.Store.Backend {
	case BackendCosmos, BackendMongo, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid store.backend %q", c.Store.Backend))
	}
	if c.Store.PageSize < 0 {
		errs = append(errs, fmt.Errorf("store.page_size must not be negative, got %d", c.Store.PageSize))
	}
	if c.Store.MongoURITemplate != "" && strings.Count(c.Store.MongoURITemplate, "%s") != 1 {
		errs = append(errs, errors.New("store.mongo_uri_template must contain exactly one %s"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger. Output goes to w, which should be
// stderr whenever stdout carries a transport.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log.format %q", l.Format)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}.
func expandVars(s string, lookup func(string) (string, bool)) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v, ok := lookup(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
}
