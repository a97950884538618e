package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-unlocker/internal/pdf"
	"github.com/a3tai/pdf-unlocker/internal/pdf/pdftest"
)

const invoiceText = "Statement\nECO ENERGY POWER LLC\nCurrency: US Dollars"

func newTestHandler(t *testing.T, maxFileSize int64) *Handler {
	t.Helper()
	service, err := pdf.NewService(pdf.Options{MaxFileSize: maxFileSize})
	require.NoError(t, err)

	h, err := NewHandler(service, Options{CORSOrigin: "*"})
	require.NoError(t, err)
	return h
}

type upload struct {
	filename  string
	content   []byte
	passwords []string
	format    string
}

func (u upload) request(t *testing.T) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if u.content != nil {
		part, err := writer.CreateFormFile("file", u.filename)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}
	for _, pw := range u.passwords {
		require.NoError(t, writer.WriteField("password", pw))
	}
	if u.format != "" {
		require.NoError(t, writer.WriteField("format", u.format))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/unlock-pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pdf.ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp pdf.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(nil, Options{})
	assert.Error(t, err)
}

func TestUnlock_PDFFormat(t *testing.T) {
	h := newTestHandler(t, 1024*1024)
	encrypted := pdftest.MustEncrypt(pdftest.Build(invoiceText), "secret")

	rec := serve(h, upload{
		filename:  "statement.pdf",
		content:   encrypted,
		passwords: []string{"wrong", "secret"},
	}.request(t))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=unlocked_statement.pdf", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Eco", rec.Header().Get(HeaderCompanyCode))
	assert.Equal(t, "USD", rec.Header().Get(HeaderCurrencyCode))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	ctx, err := api.ReadContext(bytes.NewReader(rec.Body.Bytes()), model.NewDefaultConfiguration())
	require.NoError(t, err)
	assert.Nil(t, ctx.Encrypt)
}

func TestUnlock_JSONFormats(t *testing.T) {
	h := newTestHandler(t, 1024*1024)
	encrypted := pdftest.MustEncrypt(pdftest.Build(invoiceText), "1234")

	t.Run("json uses default passwords", func(t *testing.T) {
		rec := serve(h, upload{filename: "a.pdf", content: encrypted, format: FormatJSON}.request(t))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp pdf.ClassifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Eco", resp.CompanyCode)
		assert.Equal(t, "USD", resp.CurrencyCode)
		assert.Equal(t, 0, resp.PasswordIndex)
		assert.Equal(t, rec.Header().Get(HeaderRequestID), resp.RequestID)
		assert.Empty(t, resp.PDFBase64)
	})

	t.Run("base64 attaches document", func(t *testing.T) {
		rec := serve(h, upload{filename: "a.pdf", content: encrypted, format: FormatBase64}.request(t))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp pdf.ClassifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		unlocked, err := base64.StdEncoding.DecodeString(resp.PDFBase64)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(unlocked, []byte("%PDF")))
	})
}

func TestUnlock_Errors(t *testing.T) {
	encrypted := pdftest.MustEncrypt(pdftest.Build(invoiceText), "secret")

	tests := []struct {
		name       string
		maxSize    int64
		upload     upload
		wantStatus int
		wantKind   string
	}{
		{
			name:       "wrong passwords",
			maxSize:    1024 * 1024,
			upload:     upload{filename: "a.pdf", content: encrypted, passwords: []string{"nope"}},
			wantStatus: http.StatusUnauthorized,
			wantKind:   "UNLOCK_FAILED",
		},
		{
			name:       "not a pdf",
			maxSize:    1024 * 1024,
			upload:     upload{filename: "a.pdf", content: []byte("hello")},
			wantStatus: http.StatusUnauthorized,
			wantKind:   "UNLOCK_FAILED",
		},
		{
			name:       "missing file",
			maxSize:    1024 * 1024,
			upload:     upload{passwords: []string{"secret"}},
			wantStatus: http.StatusBadRequest,
			wantKind:   "UNKNOWN",
		},
		{
			name:       "unsupported format",
			maxSize:    1024 * 1024,
			upload:     upload{filename: "a.pdf", content: encrypted, format: "xml"},
			wantStatus: http.StatusBadRequest,
			wantKind:   "UNKNOWN",
		},
		{
			name:       "file over limit",
			maxSize:    64,
			upload:     upload{filename: "a.pdf", content: encrypted},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   "UNKNOWN",
		},
		{
			name:       "body over limit",
			maxSize:    64,
			upload:     upload{filename: "a.pdf", content: make([]byte, 2*multipartOverhead)},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   "UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.maxSize)
			rec := serve(h, tt.upload.request(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, rec.Header().Get(HeaderRequestID), resp.RequestID)
		})
	}
}

func TestUnlock_NotMultipart(t *testing.T) {
	h := newTestHandler(t, 1024)
	req := httptest.NewRequest(http.MethodPost, "/unlock-pdf", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting(t *testing.T) {
	h := newTestHandler(t, 1024)

	t.Run("health", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("preflight", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodOptions, "/unlock-pdf", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), HeaderCompanyCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/unlock-pdf", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "too_large", err: pdf.ErrDocumentTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "canceled", err: context.Canceled, want: statusClientClosedRequest},
		{name: "wrapped_canceled", err: fmt.Errorf("resolve: %w", context.Canceled), want: statusClientClosedRequest},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusRequestTimeout},
		{name: "other", err: assert.AnError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestUnlock_CanceledRequest(t *testing.T) {
	h := newTestHandler(t, 1024*1024)
	encrypted := pdftest.MustEncrypt(pdftest.Build(invoiceText), "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := upload{filename: "a.pdf", content: encrypted, passwords: []string{"secret"}}.request(t).WithContext(ctx)

	rec := serve(h, req)
	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.Equal(t, "UNKNOWN", decodeError(t, rec).Kind)
}

func TestUnlock_ExtractionFailure(t *testing.T) {
	h := newTestHandler(t, 1024*1024)

	for name, doc := range map[string][]byte{
		"kid_is_not_a_page":    pdftest.BuildBrokenPageTree(),
		"corrupt_flate_stream": pdftest.BuildCorruptStream(),
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, upload{filename: "a.pdf", content: doc, format: FormatJSON}.request(t))

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Empty(t, rec.Header().Get(HeaderCompanyCode))
			resp := decodeError(t, rec)
			assert.Equal(t, "EXTRACTION_FAILED", resp.Kind)
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := map[string]string{
		"statement.pdf":             "attachment; filename=unlocked_statement.pdf",
		`C:\Users\me\statement.pdf`: "attachment; filename=unlocked_statement.pdf",
		"../../etc/report.pdf":      "attachment; filename=unlocked_report.pdf",
		"":                          "attachment; filename=unlocked_document.pdf",
		"my statement.pdf":          `attachment; filename="unlocked_my statement.pdf"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, contentDisposition(in), in)
	}
}
