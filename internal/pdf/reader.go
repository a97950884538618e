package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxTextSize caps the extracted text kept per document
const DefaultMaxTextSize = 10 * 1024 * 1024

// errMissingPage is reported when the page tree counts a page it cannot
// resolve
var errMissingPage = errors.New("page object missing or not a dictionary")

// TextContent is the text extracted from a document
type TextContent struct {
	Text  string
	Pages int
}

// Reader extracts plain text from unencrypted PDF bytes
type Reader struct {
	maxTextSize int
}

// NewReader creates a text reader. A non-positive maxTextSize selects
// DefaultMaxTextSize.
func NewReader(maxTextSize int) *Reader {
	if maxTextSize <= 0 {
		maxTextSize = DefaultMaxTextSize
	}
	return &Reader{
		maxTextSize: maxTextSize,
	}
}

// ExtractText returns the text of every page in ascending order, joined by a
// single newline. A document without pages yields empty text. Decode
// failures and page tree entries that do not resolve to a page are reported
// as a *PipelineError of kind KindExtraction.
func (r *Reader) ExtractText(doc []byte) (content *TextContent, err error) {
	// ledongthuc/pdf panics on some malformed object graphs
	defer func() {
		if rec := recover(); rec != nil {
			content, err = nil, extractionError("extract_text", fmt.Errorf("decoder panic: %v", rec))
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, extractionError("open", err)
	}

	text, err := r.extractTextContent(pdfReader)
	if err != nil {
		return nil, err
	}

	return &TextContent{Text: text, Pages: pdfReader.NumPage()}, nil
}

// extractTextContent concatenates page texts, stopping at maxTextSize
func (r *Reader) extractTextContent(pdfReader *pdf.Reader) (string, error) {
	var builder strings.Builder

	numPages := pdfReader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if pageNum > 1 {
			builder.WriteByte('\n')
		}

		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			return "", extractionError(fmt.Sprintf("page %d", pageNum), errMissingPage)
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", extractionError(fmt.Sprintf("page %d", pageNum), err)
		}

		if builder.Len()+len(content) > r.maxTextSize {
			builder.WriteString(truncateUTF8(content, r.maxTextSize-builder.Len()))
			break
		}
		builder.WriteString(content)
	}

	return builder.String(), nil
}

// truncateUTF8 returns the longest prefix of s that fits in n bytes without
// splitting a rune
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
