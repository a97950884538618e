package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-unlocker/internal/pdf/pdftest"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string][]byte{
		"eco.pdf":     pdftest.MustEncrypt(pdftest.Build("ECO ENERGY POWER LLC\nCurrency: USD"), "secret"),
		"wind.pdf":    pdftest.Build("Wind Farm Holdings annual report\nCurrency - Swiss Francs"),
		"garbage.pdf": []byte("not a pdf"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	return dir
}

func TestRun_JSON(t *testing.T) {
	dir := writeFixtures(t)
	outDir := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--format", "json",
		"-p", "secret",
		"-o", outDir,
		filepath.Join(dir, "eco.pdf"),
		filepath.Join(dir, "wind.pdf"),
		filepath.Join(dir, "garbage.pdf"),
		filepath.Join(dir, "missing.pdf"),
	}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var results []FileResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results), stdout.String())
	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.Equal(t, "Eco", results[0].CompanyCode)
	assert.Equal(t, "USD", results[0].CurrencyCode)
	assert.True(t, results[0].Encrypted)
	assert.Equal(t, filepath.Join(outDir, "unlocked_eco.pdf"), results[0].OutputPath)
	assert.FileExists(t, results[0].OutputPath)

	assert.True(t, results[1].Success)
	assert.Equal(t, "WFH", results[1].CompanyCode)
	assert.Equal(t, "CHF", results[1].CurrencyCode)

	assert.False(t, results[2].Success)
	assert.Equal(t, "UNLOCK_FAILED", results[2].ErrorKind)

	assert.False(t, results[3].Success)
	assert.Equal(t, "UNKNOWN", results[3].ErrorKind)
}

func TestRun_Text(t *testing.T) {
	dir := writeFixtures(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--password=secret",
		filepath.Join(dir, "eco.pdf"),
		filepath.Join(dir, "wind.pdf"),
	}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "eco.pdf: company=Eco currency=USD pages=1 password=#1")
	assert.Contains(t, out, "wind.pdf: company=WFH currency=CHF pages=1")
}

func TestRun_DefaultPasswords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.MustEncrypt(pdftest.Build("Blue Water Hydro"), "12345"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{path}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "company=BWH currency=- pages=1 password=#2")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := map[string][]string{
		"no files":       {},
		"bad format":     {"--format", "xml", "a.pdf"},
		"unknown flag":   {"--nope", "a.pdf"},
		"missing tables": {"--tables", "/does/not/exist.yaml", "a.pdf"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 2, run(context.Background(), args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "USAGE:")
}
