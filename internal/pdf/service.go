package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-unlocker/internal/classify"
	"github.com/a3tai/pdf-unlocker/internal/pdf/security"
)

// Options configures a Service
type Options struct {
	MaxFileSize      int64
	MaxCandidates    int
	Workers          int
	DefaultPasswords []string
	// Directory bounds PDFClassifyFile. Empty disables file access.
	Directory string
	Parser    *classify.Parser
	Logger    *slog.Logger
}

// textExtractor is satisfied by *Reader
type textExtractor interface {
	ExtractText(doc []byte) (*TextContent, error)
}

// Service runs the unlock, extract and classify pipeline
type Service struct {
	maxFileSize      int64
	workers          int
	defaultPasswords []string
	resolver         *Resolver
	reader           textExtractor
	parser           *classify.Parser
	pathValidator    *security.PathValidator
	logger           *slog.Logger
}

// NewService creates a pipeline service with all components
func NewService(opts Options) (*Service, error) {
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	passwords := opts.DefaultPasswords
	if len(passwords) == 0 {
		passwords = DefaultPasswords
	}

	parser := opts.Parser
	if parser == nil {
		parser = classify.NewParser(classify.DefaultTables(), classify.DefaultExcerptLength)
	}

	s := &Service{
		maxFileSize:      opts.MaxFileSize,
		workers:          workers,
		defaultPasswords: append([]string(nil), passwords...),
		resolver:         NewResolver(opts.MaxCandidates, logger),
		reader:           NewReader(DefaultMaxTextSize),
		parser:           parser,
		logger:           logger,
	}

	if opts.Directory != "" {
		pathValidator, err := security.NewPathValidator(opts.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to create path validator: %w", err)
		}
		s.pathValidator = pathValidator
	}

	return s, nil
}

// Run unlocks raw with the given candidates, extracts its text and
// classifies it. The candidates are used as given; see Candidates for
// default handling. The first failing stage ends the run.
func (s *Service) Run(ctx context.Context, raw []byte, candidates []string) (*RunResult, error) {
	unlocked, err := s.resolver.Resolve(ctx, raw, candidates)
	if err != nil {
		s.logger.Warn("Unlock failed", "size", len(raw), "candidates", len(candidates), "error", err)
		return nil, err
	}

	content, err := s.reader.ExtractText(unlocked.Data)
	if err != nil {
		s.logger.Warn("Text extraction failed", "size", len(unlocked.Data), "error", err)
		return nil, err
	}

	result := &RunResult{
		Classification: s.parser.Parse(content.Text),
		Document:       unlocked.Data,
		Text:           content.Text,
		Pages:          content.Pages,
		Encrypted:      unlocked.Encrypted,
		PasswordIndex:  unlocked.PasswordIndex,
		Attempts:       unlocked.Attempts,
	}

	s.logger.Info("Document classified",
		"pages", result.Pages,
		"encrypted", result.Encrypted,
		"attempts", result.Attempts,
		"company", result.Classification.CompanyCode,
		"currency", result.Classification.CurrencyCode)

	return result, nil
}

// RunBatch runs every job concurrently, at most Workers at a time. A failed
// job does not stop the others; results keep the order of jobs.
func (s *Service) RunBatch(ctx context.Context, jobs []BatchJob) []BatchResult {
	results := make([]BatchResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, job := range jobs {
		g.Go(func() error {
			result, err := s.Run(gctx, job.Data, s.Candidates(job.Passwords))
			results[i] = BatchResult{Name: job.Name, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// PDFClassifyFile runs the pipeline on a file inside the configured directory
func (s *Service) PDFClassifyFile(ctx context.Context, req PDFClassifyFileRequest) (*PDFClassifyFileResult, error) {
	if s.pathValidator == nil {
		return nil, fmt.Errorf("file access is not configured")
	}

	path, info, err := s.pathValidator.ResolveFile(req.Path, s.maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	outputPath := ""
	if req.OutputPath != "" {
		outputPath, err = s.pathValidator.NormalizePath(req.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	run, err := s.Run(ctx, raw, s.Candidates(req.Passwords))
	if err != nil {
		return nil, err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, run.Document, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write unlocked PDF: %w", err)
		}
	}

	return &PDFClassifyFileResult{
		Path:       path,
		Size:       info.Size(),
		OutputPath: outputPath,
		Run:        run,
	}, nil
}

// Candidates returns supplied, or the default password list when none were
// supplied
func (s *Service) Candidates(supplied []string) []string {
	if len(supplied) == 0 {
		return append([]string(nil), s.defaultPasswords...)
	}
	return supplied
}

// CheckSize rejects documents larger than the configured maximum
func (s *Service) CheckSize(size int64) error {
	if size > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrDocumentTooLarge, size, s.maxFileSize)
	}
	return nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// Parser returns the field parser
func (s *Service) Parser() *classify.Parser {
	return s.parser
}

// PDFServerInfo describes limits and lookup tables
func (s *Service) PDFServerInfo(serverName, version string) *ServerInfo {
	tables := s.parser.Tables()
	companies := tables.Companies()

	seen := make(map[string]bool)
	codes := []string{}
	for _, entry := range companies {
		if !seen[entry.Code] {
			seen[entry.Code] = true
			codes = append(codes, entry.Code)
		}
	}

	directory := ""
	if s.pathValidator != nil {
		directory = s.pathValidator.GetConfiguredDirectory()
	}

	return &ServerInfo{
		ServerName:       serverName,
		Version:          version,
		Directory:        directory,
		MaxFileSize:      s.maxFileSize,
		MaxCandidates:    s.resolver.MaxCandidates(),
		Workers:          s.workers,
		DefaultPasswords: len(s.defaultPasswords),
		CompanyCount:     len(companies),
		CurrencyCount:    len(tables.Currencies()),
		CompanyCodes:     codes,
	}
}
