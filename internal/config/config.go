// Package config holds the configuration structures for the codegraphrag-mcp server.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/codegraphrag/codegraphrag-mcp/pkg/version"
)

// EmbeddingProvider enumerates the recognized embedding provider kinds
// (spec.md §4.3): local-runtime, http-remote-openai-compatible,
// http-remote-vendor, in-memory-stub.
type EmbeddingProvider string

const (
	ProviderLocalRuntime      EmbeddingProvider = "local-runtime"
	ProviderHTTPOpenAICompat  EmbeddingProvider = "http-remote-openai-compatible"
	ProviderHTTPVendor        EmbeddingProvider = "http-remote-vendor"
	ProviderInMemoryStub      EmbeddingProvider = "in-memory-stub"
)

// Config holds the configuration for the codegraphrag-mcp server.
type Config struct {
	// MCPStreamableHTTP enables MCP over the SSE transport, bound to
	// MCPStreamableHTTPAddr; MCPStreamableHTTPEndpoint is not read by
	// cmd/codegraphrag. stdio is the default transport (required by
	// spec.md §6's "never write non-framed bytes on the outbound
	// stream" contract).
	MCPStreamableHTTP         bool   `mapstructure:"mcp-http"`
	MCPStreamableHTTPAddr     string `mapstructure:"mcp-http-addr"`
	MCPStreamableHTTPEndpoint string `mapstructure:"mcp-http-endpoint"`

	// Workspace is the root directory this server instance indexes.
	Workspace string `mapstructure:"workspace"`

	// DatabasePath is the persisted-state location (spec.md §6):
	// "./.code-graph-rag/vectors.db" by default, overridable via
	// --db-path or the DATABASE_PATH environment variable.
	DatabasePath string `mapstructure:"db-path"`

	// Embedding provider selection and options (spec.md §4.3's
	// recognized option set).
	EmbeddingProvider    string            `mapstructure:"embedding-provider"`
	EmbeddingBaseURL     string            `mapstructure:"embedding-base-url"`
	EmbeddingAPIKey      string            `mapstructure:"embedding-api-key"`
	EmbeddingTimeoutMs   int               `mapstructure:"embedding-timeout-ms"`
	EmbeddingConcurrency int               `mapstructure:"embedding-concurrency"`
	EmbeddingMaxBatch    int               `mapstructure:"embedding-max-batch"`
	EmbeddingHeaders     map[string]string `mapstructure:"embedding-headers"`
	EmbeddingAutoPull    bool              `mapstructure:"embedding-auto-pull"`
	EmbeddingWarmupText  string            `mapstructure:"embedding-warmup-text"`
	EmbeddingCheckServer bool              `mapstructure:"embedding-check-server"`
	EmbeddingPullTimeMs  int               `mapstructure:"embedding-pull-timeout-ms"`
	EmbeddingQuantized   bool              `mapstructure:"embedding-quantized"`
	EmbeddingLocalPath   string            `mapstructure:"embedding-local-path"`
	EmbeddingDimension   int               `mapstructure:"embedding-dimension"`
	EmbeddingModel       string            `mapstructure:"embedding-model"`

	// Parser Engine cache (spec.md §4.1).
	ParserCacheBytes int `mapstructure:"parser-cache-bytes"`

	// Semantic Cache (spec.md §4.4).
	SemanticCacheTTLSeconds int `mapstructure:"semantic-cache-ttl-seconds"`
	SemanticCacheCapacity   int `mapstructure:"semantic-cache-capacity"`
	SemanticWarmupCount     int `mapstructure:"semantic-warmup-count"`

	// Clone detection threshold (spec.md §9 Open Question; default
	// documented in DESIGN.md as the stricter of the two observed
	// values, 0.7).
	CloneThreshold float64 `mapstructure:"clone-threshold"`

	// Resource Governor bounds (spec.md §4.6).
	MaxMemoryMB         int `mapstructure:"max-memory-mb"`
	MaxCPUPercent       int `mapstructure:"max-cpu-percent"`
	MaxConcurrentAgents int `mapstructure:"max-concurrent-agents"`
	MaxTaskQueueSize    int `mapstructure:"max-task-queue-size"`

	// Knowledge Bus (spec.md §4.5).
	BusRingBufferSize  int `mapstructure:"bus-ring-buffer-size"`
	BusDirectQueueSize int `mapstructure:"bus-direct-queue-size"`

	// ExcludePatterns augments the default indexing exclusion set
	// (spec.md §6).
	ExcludePatterns []string `mapstructure:"exclude-patterns"`

	LogFile string `mapstructure:"log"`
	LogDir  string `mapstructure:"log-dir"`
	// DisableOutputLog disables all console logging output; when
	// unset and running over stdio, console logs still default to
	// stderr to protect the JSON-RPC stream (spec.md §6,
	// STDIO_ALLOW_STDOUT_LOGS).
	DisableOutputLog      bool `mapstructure:"disable-output-log"`
	StdioAllowStdoutLogs  bool `mapstructure:"stdio-allow-stdout-logs"`

	DisableCodeWatch bool `mapstructure:"disable-code-watch"`
}

// Load loads the configuration from CLI flags, a YAML config file, and
// environment variables, following the teacher's viper+pflag wiring
// pattern (flags registered, bound to viper, then AutomaticEnv with a
// module-specific prefix).
func Load() (*Config, error) {
	pflag.String("config", "", "Path to YAML configuration file")

	pflag.Bool("mcp-http", false, "Enable MCP SSE transport")
	pflag.String("mcp-http-addr", "3000", "Port or address to bind MCP SSE transport")
	pflag.String("mcp-http-endpoint", "/mcp", "HTTP path for an MCP HTTP endpoint (not used by the SSE transport)")

	pflag.String("workspace", ".", "Workspace root directory to index")
	pflag.String("db-path", "./.code-graph-rag/vectors.db", "Path to the persisted graph/vector store")

	pflag.String("embedding-provider", string(ProviderInMemoryStub), "Embedding provider: local-runtime|http-remote-openai-compatible|http-remote-vendor|in-memory-stub")
	pflag.String("embedding-base-url", "http://localhost:11434", "Base URL for the embedding provider's HTTP endpoint")
	pflag.String("embedding-api-key", "", "API key for the embedding provider, can also be set via EMBEDDING_API_KEY")
	pflag.Int("embedding-timeout-ms", 30000, "Per-request timeout for embedding calls")
	pflag.Int("embedding-concurrency", 4, "Max concurrent embedding requests")
	pflag.Int("embedding-max-batch", 64, "Max texts per embedding batch request")
	pflag.Bool("embedding-auto-pull", false, "Auto-pull the local model if missing (local-runtime only)")
	pflag.String("embedding-warmup-text", "package main", "Text used to warm up the embedding provider at startup")
	pflag.Bool("embedding-check-server", true, "Probe the embedding server's health before first use")
	pflag.Int("embedding-pull-timeout-ms", 120000, "Timeout for an auto-pull operation")
	pflag.Bool("embedding-quantized", false, "Prefer a quantized local model variant")
	pflag.String("embedding-local-path", "", "Local filesystem path to a model directory (local-runtime only)")
	pflag.Int("embedding-dimension", 768, "Expected embedding vector dimension")
	pflag.String("embedding-model", "nomic-embed-text", "Model name/tag to request from the provider")

	pflag.Int("parser-cache-bytes", 256*1024*1024, "Byte budget for the parser's content-hash LRU cache")

	pflag.Int("semantic-cache-ttl-seconds", 600, "TTL in seconds for semantic cache entries")
	pflag.Int("semantic-cache-capacity", 1000, "Max entry count for the semantic cache")
	pflag.Int("semantic-warmup-count", 20, "Number of most-referenced entities to warm up at startup")

	pflag.Float64("clone-threshold", 0.7, "Default similarity threshold for clone detection")

	pflag.Int("max-memory-mb", 2048, "Resource Governor memory budget in MB")
	pflag.Int("max-cpu-percent", 80, "Resource Governor CPU budget as a percent")
	pflag.Int("max-concurrent-agents", 8, "Resource Governor max concurrent agents")
	pflag.Int("max-task-queue-size", 256, "Resource Governor max queued tasks")

	pflag.Int("bus-ring-buffer-size", 100, "Knowledge Bus per-topic ring buffer capacity")
	pflag.Int("bus-direct-queue-size", 1000, "Knowledge Bus direct-message queue capacity")

	pflag.StringSlice("exclude-patterns", nil, "Additional glob patterns excluded from indexing")

	pflag.String("log", "", "Path to the log file (logs will be written to both console and file)")
	pflag.String("log-dir", "", "Directory for the diagnostic log file codegraphrag.log (appended to, not rotated), can also be set via LOG_DIR")
	pflag.Bool("disable-output-log", false, "Disable logging to stdout/stderr; only write to log file if configured")
	pflag.Bool("stdio-allow-stdout-logs", false, "Allow console logs on stdout even over stdio transport, can also be set via STDIO_ALLOW_STDOUT_LOGS=1")
	pflag.Bool("disable-code-watch", false, "Disable automatic file watching for the workspace")

	flag.Bool("version", false, "Print version and exit")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if ver := pflag.Lookup("version"); ver != nil && ver.Value.String() == "true" {
		fmt.Println(version.Describe())
		os.Exit(0)
	}

	v := viper.New()

	configPath := pflag.Lookup("config").Value.String()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		standardConfigPath := filepath.Join(homeDir, ".config", "codegraphrag", "config.yaml")
		if _, statErr := os.Stat(standardConfigPath); statErr == nil {
			v.SetConfigFile(standardConfigPath)
			if readErr := v.ReadInConfig(); readErr == nil {
				slog.Info("using configuration file from standard location", "path", standardConfigPath)
			}
		}
	}

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetEnvPrefix("CGRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Spec-mandated environment variables that bypass the CGRAG_ prefix.
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if apiKey := os.Getenv("EMBEDDING_API_KEY"); apiKey != "" {
		cfg.EmbeddingAPIKey = apiKey
	}
	if os.Getenv("STDIO_ALLOW_STDOUT_LOGS") == "1" {
		cfg.StdioAllowStdoutLogs = true
	}
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		cfg.LogDir = logDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch EmbeddingProvider(c.EmbeddingProvider) {
	case ProviderLocalRuntime, ProviderHTTPOpenAICompat, ProviderHTTPVendor, ProviderInMemoryStub:
	default:
		return fmt.Errorf("unrecognized embedding provider %q", c.EmbeddingProvider)
	}

	if c.DatabasePath == "" {
		return errors.New("a database path must be configured (db-path or DATABASE_PATH)")
	}

	if c.Workspace == "" {
		return errors.New("a workspace root must be configured")
	}

	return nil
}

// ResolvedDatabasePath returns the persisted-state path, honoring an
// override but falling back to the workspace-local default
// "./.code-graph-rag/vectors.db" described in spec.md §6.
func (c *Config) ResolvedDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.Workspace, ".code-graph-rag", "vectors.db")
}

// Getenv reads an environment variable or returns a default value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SetupLogging configures slog output.
//
// Important: when running MCP over stdio, stdout must be reserved for
// protocol messages (spec.md §6's framing contract). Console logs
// default to stderr in stdio mode unless STDIO_ALLOW_STDOUT_LOGS=1 /
// --stdio-allow-stdout-logs disables the guard.
func (c *Config) SetupLogging() error {
	var writers []io.Writer

	if !c.DisableOutputLog {
		stdioMode := !c.MCPStreamableHTTP
		if stdioMode && !c.StdioAllowStdoutLogs {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if c.LogFile != "" {
		logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", c.LogFile, err)
		}
		writers = append(writers, logFile)
	}

	if c.LogDir != "" {
		if err := os.MkdirAll(c.LogDir, 0755); err != nil {
			return fmt.Errorf("failed to create log dir %s: %w", c.LogDir, err)
		}
		logFile, err := os.OpenFile(filepath.Join(c.LogDir, "codegraphrag.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log dir file: %w", err)
		}
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	multiWriter := io.MultiWriter(writers...)
	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	})

	slog.SetDefault(slog.New(handler))
	return nil
}

// DefaultExcludeDirs lists the indexing exclusion defaults from
// spec.md §6, plus the store directory itself.
func DefaultExcludeDirs() []string {
	return []string{
		"node_modules", ".git", ".hg", ".svn",
		"dist", "build", "out", "target",
		"__pycache__", ".pytest_cache",
		"venv", ".venv", "env",
		".idea", ".vscode",
		".code-graph-rag",
	}
}
