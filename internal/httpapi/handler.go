// Package httpapi exposes the unlock and classify pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/pdf-unlocker/internal/pdf"
)

const (
	FormatPDF    = "pdf"
	FormatJSON   = "json"
	FormatBase64 = "base64"

	// multipartOverhead leaves room for form fields and boundaries on top of
	// the document itself
	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20

	// statusClientClosedRequest is the nginx convention for a client that
	// went away before the response was ready
	statusClientClosedRequest = 499

	HeaderRequestID    = "X-Request-Id"
	HeaderCompanyCode  = "X-Company-Code"
	HeaderCurrencyCode = "X-Currency-Code"
)

// Options configures a Handler
type Options struct {
	CORSOrigin string
	Logger     *slog.Logger
}

// Handler serves the unlock endpoint and a health check
type Handler struct {
	service    *pdf.Service
	corsOrigin string
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewHandler creates a handler over service
func NewHandler(service *pdf.Service, opts Options) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		service:    service,
		corsOrigin: opts.CORSOrigin,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /unlock-pdf", h.handleUnlock)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	return h, nil
}

// ServeHTTP applies CORS headers and routes the request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.corsOrigin != "" {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", h.corsOrigin)
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		header.Set("Access-Control-Expose-Headers",
			strings.Join([]string{HeaderRequestID, HeaderCompanyCode, HeaderCurrencyCode, "Content-Disposition"}, ", "))
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(HeaderRequestID, requestID)
	logger := h.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, h.service.GetMaxFileSize()+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(w, requestID, http.StatusRequestEntityTooLarge, pdf.ErrDocumentTooLarge)
			return
		}
		h.writeError(w, requestID, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	format := r.FormValue("format")
	if format == "" {
		format = FormatPDF
	}
	if format != FormatPDF && format != FormatJSON && format != FormatBase64 {
		h.writeError(w, requestID, http.StatusBadRequest,
			fmt.Errorf("unsupported format %q (must be one of: pdf, json, base64)", format))
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, requestID, http.StatusBadRequest, fmt.Errorf("missing file: %w", err))
		return
	}
	defer file.Close()

	if err := h.service.CheckSize(fileHeader.Size); err != nil {
		h.writeError(w, requestID, http.StatusRequestEntityTooLarge, err)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, requestID, http.StatusBadRequest, fmt.Errorf("failed to read file: %w", err))
		return
	}

	passwords := h.service.Candidates(r.MultipartForm.Value["password"])
	logger.Info("Unlock requested",
		"filename", fileHeader.Filename,
		"size", len(raw),
		"candidates", len(passwords),
		"format", format)

	run, err := h.service.Run(r.Context(), raw, passwords)
	if err != nil {
		h.writeError(w, requestID, statusFor(err), err)
		return
	}

	w.Header().Set(HeaderCompanyCode, run.Classification.CompanyCode)
	w.Header().Set(HeaderCurrencyCode, run.Classification.CurrencyCode)

	switch format {
	case FormatJSON:
		writeJSON(w, http.StatusOK, pdf.NewClassifyResponse(requestID, run, false))
	case FormatBase64:
		writeJSON(w, http.StatusOK, pdf.NewClassifyResponse(requestID, run, true))
	default:
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", contentDisposition(fileHeader.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(run.Document)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(run.Document); err != nil {
			logger.Warn("Failed to write response", "error", err)
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, requestID string, status int, err error) {
	h.logger.Warn("Request failed", "request_id", requestID, "status", status, "error", err)
	writeJSON(w, status, pdf.NewErrorResponse(requestID, err))
}

// statusFor maps a pipeline failure to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, pdf.ErrUnlockFailed):
		return http.StatusUnauthorized
	case errors.Is(err, pdf.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pdf.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// contentDisposition names the download after the uploaded file
func contentDisposition(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": "unlocked_" + name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
