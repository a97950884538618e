package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-unlocker/internal/classify"
	"github.com/a3tai/pdf-unlocker/internal/pdf"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultMaxCandidates = pdf.DefaultMaxCandidates
	DefaultExcerptLength = classify.DefaultExcerptLength
	DefaultCORSOrigin    = "*"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PDF_UNLOCK"
)

// Config holds all configuration for the PDF unlocker
type Config struct {
	// Server configuration
	Mode       string // "server" or "stdio"
	Host       string
	Port       int
	CORSOrigin string

	// PDF configuration
	PDFDirectory  string
	MaxFileSize   int64 // Maximum PDF file size in bytes
	Passwords     []string
	MaxCandidates int
	Workers       int

	// Classification configuration
	ExcerptLength int
	TablesFile    string // optional YAML/JSON lookup table override

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:          ModeStdio,
		Host:          DefaultHost,
		Port:          DefaultPort,
		CORSOrigin:    DefaultCORSOrigin,
		PDFDirectory:  currentDir,
		MaxFileSize:   DefaultMaxFileSize,
		Passwords:     append([]string(nil), pdf.DefaultPasswords...),
		MaxCandidates: DefaultMaxCandidates,
		Workers:       runtime.NumCPU(),
		ExcerptLength: DefaultExcerptLength,
		Version:       "1.0.0",
		ServerName:    "pdf-unlocker",
		LogLevel:      DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("cors", cfg.CORSOrigin)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("passwords", cfg.Passwords)
	viper.SetDefault("maxcandidates", cfg.MaxCandidates)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("excerpt", cfg.ExcerptLength)
	viper.SetDefault("tables", cfg.TablesFile)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("cors", cfg.CORSOrigin, "Access-Control-Allow-Origin value (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory the file tool may read and write")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.StringSlice("passwords", cfg.Passwords, "Candidate passwords tried when a request supplies none")
	pflag.Int("maxcandidates", cfg.MaxCandidates, "Maximum number of candidate passwords tried per document")
	pflag.Int("workers", cfg.Workers, "Number of documents processed concurrently in a batch")
	pflag.Int("excerpt", cfg.ExcerptLength, "Number of characters kept in the raw text excerpt")
	pflag.String("tables", cfg.TablesFile, "YAML or JSON file overriding the company and currency tables")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "cors", "dir", "loglevel", "maxfilesize",
		"passwords", "maxcandidates", "workers", "excerpt", "tables",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Unlocker - unlocks password protected PDFs and classifies their company and currency\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# MCP over stdio, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081               # HTTP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --passwords=1234,secret --tables=t.yaml # custom candidates and tables\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_MODE          Server mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_HOST          Server host\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_PORT          Server port\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_DIR           File tool directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_MAXFILESIZE   Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_PASSWORDS     Comma separated candidate passwords\n")
		fmt.Fprintf(os.Stderr, "  PDF_UNLOCK_TABLES        Lookup table file\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.CORSOrigin = viper.GetString("cors")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Passwords = passwordsFromViper()
	cfg.MaxCandidates = viper.GetInt("maxcandidates")
	cfg.Workers = viper.GetInt("workers")
	cfg.ExcerptLength = viper.GetInt("excerpt")
	cfg.TablesFile = viper.GetString("tables")
}

// passwordsFromViper reads the candidate list. Environment values arrive as
// one comma separated string; an explicitly empty entry stays empty.
func passwordsFromViper() []string {
	if raw, ok := viper.Get("passwords").(string); ok {
		return strings.Split(raw, ",")
	}
	return viper.GetStringSlice("passwords")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters when serving HTTP
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.MaxCandidates <= 0 {
		return errors.New("maximum candidate count must be positive")
	}

	if len(c.Passwords) > c.MaxCandidates {
		return fmt.Errorf("%d default passwords exceed the candidate limit of %d", len(c.Passwords), c.MaxCandidates)
	}

	if c.Workers <= 0 {
		return errors.New("worker count must be positive")
	}

	if c.ExcerptLength <= 0 {
		return errors.New("excerpt length must be positive")
	}

	if c.TablesFile != "" {
		if _, err := os.Stat(c.TablesFile); err != nil {
			return fmt.Errorf("cannot access tables file %s: %w", c.TablesFile, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. Passwords
// are reported by count only.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, "+
		"MaxFileSize: %d, Passwords: %d, MaxCandidates: %d, Workers: %d, ExcerptLength: %d, TablesFile: %q}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel,
		c.MaxFileSize, len(c.Passwords), c.MaxCandidates, c.Workers, c.ExcerptLength, c.TablesFile)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
