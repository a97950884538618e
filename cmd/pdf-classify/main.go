package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/a3tai/pdf-unlocker/internal/classify"
	"github.com/a3tai/pdf-unlocker/internal/pdf"
)

const maxFileSize = 100 * 1024 * 1024

// FileResult is the outcome for one input file
type FileResult struct {
	File          string `json:"file"`
	Success       bool   `json:"success"`
	CompanyCode   string `json:"company_code,omitempty"`
	CurrencyCode  string `json:"currency_code,omitempty"`
	Pages         int    `json:"pages,omitempty"`
	Encrypted     bool   `json:"encrypted,omitempty"`
	PasswordIndex int    `json:"password_index,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run classifies the files named in args and returns the process exit code:
// 0 when every file succeeded, 1 when any failed and 2 on usage errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pdf-classify", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	passwords := flags.StringArrayP("password", "p", nil,
		"Candidate password, repeatable and tried in order (default: built-in list)")
	outDir := flags.StringP("out", "o", "", "Directory for unlocked copies named unlocked_<file>")
	outputFormat := flags.StringP("format", "f", "text", "Output format: text, json")
	tablesPath := flags.String("tables", "", "YAML or JSON file overriding the lookup tables")
	workers := flags.IntP("workers", "w", runtime.NumCPU(), "Number of files processed concurrently")
	verbose := flags.BoolP("verbose", "v", false, "Log pipeline progress to stderr")

	flags.Usage = func() {
		fmt.Fprintln(stderr, "PDF Classify - unlock PDFs and detect their company and currency")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  pdf-classify [OPTIONS] <pdf_file>...")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		flags.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "EXAMPLES:")
		fmt.Fprintln(stderr, "  pdf-classify statement.pdf")
		fmt.Fprintln(stderr, "  pdf-classify -p secret -p 1234 -o unlocked/ reports/*.pdf")
		fmt.Fprintln(stderr, "  pdf-classify --format json invoices/*.pdf")
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if flags.NArg() == 0 {
		fmt.Fprintf(stderr, "Error: at least one PDF file path required\n\n")
		flags.Usage()
		return 2
	}

	if *outputFormat != "text" && *outputFormat != "json" {
		fmt.Fprintf(stderr, "Error: unsupported format %q\n", *outputFormat)
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	tables, err := classify.LoadTables(*tablesPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	service, err := pdf.NewService(pdf.Options{
		MaxFileSize: maxFileSize,
		Workers:     *workers,
		Parser:      classify.NewParser(tables, classify.DefaultExcerptLength),
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	results := classifyFiles(ctx, service, flags.Args(), *passwords, *outDir)

	if err := outputResults(stdout, results, *outputFormat); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}

	for _, r := range results {
		if !r.Success {
			return 1
		}
	}
	return 0
}

// classifyFiles reads every path, runs the batch and writes unlocked copies
// into outDir when it is set
func classifyFiles(ctx context.Context, service *pdf.Service, paths, passwords []string, outDir string) []FileResult {
	results := make([]FileResult, len(paths))
	jobs := make([]pdf.BatchJob, 0, len(paths))
	jobIndex := make([]int, 0, len(paths))

	for i, path := range paths {
		results[i].File = path

		info, err := os.Stat(path)
		if err == nil {
			err = service.CheckSize(info.Size())
		}
		var data []byte
		if err == nil {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			results[i].Error = err.Error()
			results[i].ErrorKind = pdf.KindOf(err).String()
			continue
		}

		jobs = append(jobs, pdf.BatchJob{Name: path, Data: data, Passwords: passwords})
		jobIndex = append(jobIndex, i)
	}

	for j, batch := range service.RunBatch(ctx, jobs) {
		r := &results[jobIndex[j]]
		if batch.Err != nil {
			r.Error = batch.Err.Error()
			r.ErrorKind = pdf.KindOf(batch.Err).String()
			continue
		}

		run := batch.Result
		r.Success = true
		r.CompanyCode = run.Classification.CompanyCode
		r.CurrencyCode = run.Classification.CurrencyCode
		r.Pages = run.Pages
		r.Encrypted = run.Encrypted
		r.PasswordIndex = run.PasswordIndex

		if outDir != "" {
			outputPath, err := writeUnlocked(outDir, batch.Name, run.Document)
			if err != nil {
				r.Success = false
				r.Error = err.Error()
				continue
			}
			r.OutputPath = outputPath
		}
	}

	return results
}

func writeUnlocked(outDir, name string, document []byte) (string, error) {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outDir, "unlocked_"+filepath.Base(name))
	if err := os.WriteFile(outputPath, document, 0o600); err != nil {
		return "", fmt.Errorf("failed to write unlocked PDF: %w", err)
	}
	return outputPath, nil
}

func outputResults(w io.Writer, results []FileResult, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(w, "%s: FAILED (%s) %s\n", r.File, r.ErrorKind, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s: company=%s currency=%s pages=%d", r.File, orDash(r.CompanyCode), orDash(r.CurrencyCode), r.Pages)
		if r.Encrypted {
			fmt.Fprintf(w, " password=#%d", r.PasswordIndex+1)
		}
		if r.OutputPath != "" {
			fmt.Fprintf(w, " -> %s", r.OutputPath)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
