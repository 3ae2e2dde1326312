// Command seqpack compresses FASTA files into sequence archives, extracts
// them again and serves archives and the sequence codec over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/seqpack/config"
)

const usage = `usage: seqpack <command> [flags]

commands:
  pack     compress a FASTA file into an archive
  unpack   write every entry of an archive as FASTA
  get      print one entry, or a slice of it, as FASTA
  stats    summarize an archive
  verify   check every block of an archive
  serve    run the HTTP API

Run "seqpack <command> -h" for the flags of a command.
`

// errUsage marks argument errors; the flag package already printed details.
var errUsage = errors.New("invalid arguments")

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// initTracerProvider creates an OpenTelemetry TracerProvider exporting to the
// configured OTLP collector. A disabled configuration yields a provider
// without exporters.
func initTracerProvider(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Enabled {
		logger.Debug("Distributed tracing is disabled.")
		return sdktrace.NewTracerProvider(), func() {}, nil
	}

	logger.Info("Initializing distributed tracing", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("seqpack")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}
	return tp, cleanup, nil
}

// env is the state shared by every command once flags are parsed.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
	stdout io.Writer
	stderr io.Writer

	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newEnv(ctx context.Context, configPath string, stdout, stderr io.Writer) (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	if logCloser != nil {
		e.closers = append(e.closers, func() { logCloser.Close() })
	}
	tp, cleanup, err := initTracerProvider(ctx, cfg.Tracing, logger)
	if err != nil {
		e.close()
		return nil, err
	}
	e.closers = append(e.closers, cleanup)
	if cfg.Tracing.Enabled {
		e.tracer = tp.Tracer("seqpack")
	}
	return e, nil
}

type command struct {
	name  string
	flags func(fs *flag.FlagSet) func(ctx context.Context, e *env) error
}

var commands = []command{
	{"pack", packFlags},
	{"unpack", unpackFlags},
	{"get", getFlags},
	{"stats", statsFlags},
	{"verify", verifyFlags},
	{"serve", serveFlags},
}

// run executes the command named by args[0].
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		fs := flag.NewFlagSet("seqpack "+c.name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		configPath := fs.String("config", "config.yaml", "Path to the configuration file")
		exec := c.flags(fs)
		if err := fs.Parse(args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return errUsage
		}
		e, err := newEnv(ctx, *configPath, stdout, stderr)
		if err != nil {
			return err
		}
		defer e.close()
		return exec(ctx, e)
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return errUsage
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "seqpack: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
