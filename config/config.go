package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/seqpack/core"
)

// CodecConfig selects the sequence kind and type modifier used to compress input.
type CodecConfig struct {
	Kind          string `yaml:"kind"`     // "dna" or "aa"
	Alphabet      string `yaml:"alphabet"` // "flc", "iupac" or "ascii"
	Strategy      string `yaml:"strategy"` // "default", "short" or "reference"
	CaseSensitive bool   `yaml:"case_sensitive"`
}

// ArchiveConfig holds archive writing and reading options.
type ArchiveConfig struct {
	Compression string `yaml:"compression"` // "none", "snappy", "lz4" or "zstd"
	Workers     int    `yaml:"workers"`     // 0 uses GOMAXPROCS
	CacheSize   int    `yaml:"cache_size"`  // parsed sequences kept per open archive
	LineWidth   int    `yaml:"line_width"`  // FASTA output line width
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	ListenAddress   string   `yaml:"listen_address"`
	ReadTimeout     string   `yaml:"read_timeout"`
	WriteTimeout    string   `yaml:"write_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	MaxSymbols      int64    `yaml:"max_symbols"` // symbols one request may decode
	Archives        []string `yaml:"archives"` // archive files served under /archives/{name}
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "stderr", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ListenAddress    string `yaml:"listen_address"`
	PProfEnabled     bool   `yaml:"pprof_enabled"`
	MonitorUIEnabled bool   `yaml:"monitor_ui_enabled"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the top-level configuration struct.
type Config struct {
	Codec   CodecConfig   `yaml:"codec"`
	Archive ArchiveConfig `yaml:"archive"`
	Server  ServerConfig  `yaml:"server"`
	Debug   DebugConfig   `yaml:"debug"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// Modifier resolves the codec keywords to a sequence kind and type modifier.
func (c CodecConfig) Modifier() (core.SequenceKind, core.TypeModifier, error) {
	kind, err := core.ParseKind(c.Kind)
	if err != nil {
		return 0, core.TypeModifier{}, err
	}
	alpha, err := core.ParseAlphabet(c.Alphabet)
	if err != nil {
		return 0, core.TypeModifier{}, err
	}
	strategy, err := core.ParseStrategy(c.Strategy)
	if err != nil {
		return 0, core.TypeModifier{}, err
	}
	tm := core.TypeModifier{CaseSensitive: c.CaseSensitive, Alphabet: alpha, Strategy: strategy}
	if err := tm.Check(kind); err != nil {
		return 0, core.TypeModifier{}, err
	}
	return kind, tm, nil
}

// CompressionType resolves the archive compression keyword.
func (a ArchiveConfig) CompressionType() (core.CompressionType, error) {
	return core.ParseCompressionType(a.Compression)
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Codec: CodecConfig{
			Kind:     "dna",
			Alphabet: "iupac",
			Strategy: "default",
		},
		Archive: ArchiveConfig{
			Compression: "none",
			Workers:     0,
			CacheSize:   64,
			LineWidth:   60,
		},
		Server: ServerConfig{
			ListenAddress:   ":8088",
			ReadTimeout:     "30s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
			MaxBodyBytes:    64 << 20,
			MaxSymbols:      64 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			File:   "seqpack.log",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Debug: DebugConfig{
			Enabled:          false,
			ListenAddress:    "127.0.0.1:6060",
			PProfEnabled:     true,
			MonitorUIEnabled: true,
		},
	}
}

// Load reads configuration from an io.Reader on top of the defaults and
// validates the codec and archive keywords.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	if _, _, err := cfg.Codec.Modifier(); err != nil {
		return nil, fmt.Errorf("invalid codec section: %w", err)
	}
	if _, err := cfg.Archive.CompressionType(); err != nil {
		return nil, fmt.Errorf("invalid archive section: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads the file at path, or the defaults when it does not exist.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
