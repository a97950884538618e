package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/a3tai/pdf-unlocker/internal/classify"
	"github.com/a3tai/pdf-unlocker/internal/config"
	"github.com/a3tai/pdf-unlocker/internal/httpapi"
	"github.com/a3tai/pdf-unlocker/internal/mcp"
	"github.com/a3tai/pdf-unlocker/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger builds the process logger. Stdio mode writes text to w so that
// stdout stays reserved for MCP frames; server mode writes JSON.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}
	if cfg.IsServerMode() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newService wires the lookup tables, parser and pipeline from cfg
func newService(cfg *config.Config, logger *slog.Logger) (*pdf.Service, error) {
	tables := classify.DefaultTables()
	if cfg.TablesFile != "" {
		loaded, err := classify.LoadTables(cfg.TablesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load lookup tables: %w", err)
		}
		tables = loaded
		logger.Info("Loaded lookup tables", "file", cfg.TablesFile, "tables", tables.String())
	}

	return pdf.NewService(pdf.Options{
		MaxFileSize:      cfg.MaxFileSize,
		MaxCandidates:    cfg.MaxCandidates,
		Workers:          cfg.Workers,
		DefaultPasswords: cfg.Passwords,
		Directory:        cfg.PDFDirectory,
		Parser:           classify.NewParser(tables, cfg.ExcerptLength),
		Logger:           logger,
	})
}

// runServerMode serves HTTP through the functions framework until a signal
// arrives or the listener fails
func runServerMode(ctx context.Context, cfg *config.Config, service *pdf.Service, logger *slog.Logger) error {
	handler, err := httpapi.NewHandler(service, httpapi.Options{
		CORSOrigin: cfg.CORSOrigin,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP handler: %w", err)
	}

	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/", handler.ServeHTTP); err != nil {
		return fmt.Errorf("failed to register HTTP handler: %w", err)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", cfg.Address())
		serverErrCh <- funcframework.StartHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}()

	select {
	case sig := <-signalCh:
		logger.Info("Received signal, shutting down", "signal", sig.String())
		return nil
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// runStdioMode serves MCP over stdio. The parent process controls the
// lifecycle; the server returns when stdin closes.
func runStdioMode(ctx context.Context, cfg *config.Config, service *pdf.Service, logger *slog.Logger) error {
	server, err := mcp.NewServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("Starting with configuration", "config", cfg.String())

	service, err := newService(cfg, logger)
	if err != nil {
		logger.Error("Failed to create PDF service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		err = runServerMode(ctx, cfg, service, logger)
	} else {
		err = runStdioMode(ctx, cfg, service, logger)
	}
	if err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Unlocker\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
