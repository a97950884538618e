package pdf

import (
	"encoding/base64"

	"github.com/a3tai/pdf-unlocker/internal/classify"
)

// RunResult is the output of one pipeline run
type RunResult struct {
	Classification classify.Result `json:"classification"`
	// Document is the unlocked PDF, or the input unchanged when it was not
	// encrypted.
	Document      []byte `json:"-"`
	Text          string `json:"-"`
	Pages         int    `json:"pages"`
	Encrypted     bool   `json:"encrypted"`
	PasswordIndex int    `json:"password_index"`
	Attempts      int    `json:"attempts"`
}

// Request Types

// BatchJob is one document submitted to RunBatch
type BatchJob struct {
	Name      string   `json:"name"`
	Data      []byte   `json:"-"`
	Passwords []string `json:"-"`
}

// PDFClassifyFileRequest represents a request to unlock and classify a file
// inside the configured directory
type PDFClassifyFileRequest struct {
	Path      string   `json:"path"`
	Passwords []string `json:"-"`
	// OutputPath, when set, receives the unlocked document. It must also lie
	// inside the configured directory.
	OutputPath string `json:"output_path,omitempty"`
}

// Response Types

// BatchResult pairs a BatchJob with its outcome. Exactly one of Result and
// Err is set.
type BatchResult struct {
	Name   string     `json:"name"`
	Result *RunResult `json:"result,omitempty"`
	Err    error      `json:"-"`
}

// PDFClassifyFileResult represents the result of PDFClassifyFile
type PDFClassifyFileResult struct {
	Path       string     `json:"path"`
	Size       int64      `json:"size"`
	OutputPath string     `json:"output_path,omitempty"`
	Run        *RunResult `json:"run"`
}

// ServerInfo describes the service limits and lookup tables
type ServerInfo struct {
	ServerName       string   `json:"server_name"`
	Version          string   `json:"version"`
	Directory        string   `json:"directory"`
	MaxFileSize      int64    `json:"max_file_size"`
	MaxCandidates    int      `json:"max_candidates"`
	Workers          int      `json:"workers"`
	DefaultPasswords int      `json:"default_password_count"`
	CompanyCount     int      `json:"company_count"`
	CurrencyCount    int      `json:"currency_count"`
	CompanyCodes     []string `json:"company_codes"`
}

// ClassifyResponse is the flat JSON body returned by the transports
type ClassifyResponse struct {
	RequestID     string `json:"request_id"`
	CompanyCode   string `json:"company_code"`
	CurrencyCode  string `json:"currency_code"`
	RawExcerpt    string `json:"raw_excerpt"`
	Pages         int    `json:"pages"`
	Encrypted     bool   `json:"encrypted"`
	PasswordIndex int    `json:"password_index"`
	Attempts      int    `json:"attempts"`
	OutputPath    string `json:"output_path,omitempty"`
	PDFBase64     string `json:"pdf_base64,omitempty"`
}

// NewClassifyResponse flattens run. When includePDF is set the unlocked
// document is attached as standard base64.
func NewClassifyResponse(requestID string, run *RunResult, includePDF bool) *ClassifyResponse {
	resp := &ClassifyResponse{
		RequestID:     requestID,
		CompanyCode:   run.Classification.CompanyCode,
		CurrencyCode:  run.Classification.CurrencyCode,
		RawExcerpt:    run.Classification.RawExcerpt,
		Pages:         run.Pages,
		Encrypted:     run.Encrypted,
		PasswordIndex: run.PasswordIndex,
		Attempts:      run.Attempts,
	}
	if includePDF {
		resp.PDFBase64 = base64.StdEncoding.EncodeToString(run.Document)
	}
	return resp
}

// ErrorResponse is the JSON body returned when a run fails
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
}

// NewErrorResponse describes err, using its pipeline kind when it has one
func NewErrorResponse(requestID string, err error) *ErrorResponse {
	return &ErrorResponse{
		RequestID: requestID,
		Error:     err.Error(),
		Kind:      KindOf(err).String(),
	}
}
