// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Build returns an unencrypted PDF with one page per argument. Each line of
// a page's text is drawn as a separate text line in Helvetica. Build with no
// arguments returns a document without pages.
func Build(pages ...string) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font; pages and contents follow.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)

	for i, text := range pages {
		stream := contentStream(text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	return assemble(objects...)
}

// BuildCorruptStream returns an unencrypted single page PDF whose content
// stream claims /FlateDecode but holds bytes that are not zlib data. The
// document opens, but its page text cannot be decoded.
func BuildCorruptStream() []byte {
	stream := "this is not zlib data"
	return assemble(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>",
		fmt.Sprintf("<< /Length %d /Filter /FlateDecode >>\nstream\n%s\nendstream", len(stream), stream),
	)
}

// BuildBrokenPageTree returns an unencrypted PDF whose page tree counts one
// page while its only kid is an integer instead of a page dictionary.
func BuildBrokenPageTree() []byte {
	return assemble(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"42",
	)
}

// assemble numbers objects from 1, in order, and writes them with a matching
// xref table and trailer. Object 1 must be the catalog.
func assemble(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)

	return buf.Bytes()
}

var disableConfigDir sync.Once

// Encrypt protects raw with AES-256 using the given passwords
func Encrypt(raw []byte, userPW, ownerPW string) ([]byte, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewAESConfiguration(userPW, ownerPW, 256)

	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(raw), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	return out.Bytes(), nil
}

// MustEncrypt is Encrypt with user and owner password both set to password.
// It panics on error.
func MustEncrypt(raw []byte, password string) []byte {
	out, err := Encrypt(raw, password, password)
	if err != nil {
		panic(err)
	}
	return out
}

func contentStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escape(line))
	}
	b.WriteString("ET")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
