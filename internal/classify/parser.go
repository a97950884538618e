package classify

import (
	"regexp"
	"strings"
)

// DefaultExcerptLength is the number of characters kept in Result.RawExcerpt
const DefaultExcerptLength = 500

// currencyPattern matches a "Currency" label, an optional ':' or '-' and the
// run of letters and spaces after it.
var currencyPattern = regexp.MustCompile(`(?i)Currency\s*[:\-]?\s*([A-Za-z ]+)`)

// Result is the classification derived from a document's text
type Result struct {
	CompanyCode  string `json:"company_code"`
	CurrencyCode string `json:"currency_code"`
	RawExcerpt   string `json:"raw_excerpt"`
}

// Parser derives a Result from extracted text. It holds no mutable state and
// is safe for concurrent use.
type Parser struct {
	tables        *Tables
	excerptLength int
}

// NewParser creates a parser over the given tables. A non-positive excerpt
// length selects DefaultExcerptLength.
func NewParser(tables *Tables, excerptLength int) *Parser {
	if tables == nil {
		tables = DefaultTables()
	}
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Parser{
		tables:        tables,
		excerptLength: excerptLength,
	}
}

// Tables returns the lookup tables used by the parser
func (p *Parser) Tables() *Tables {
	return p.tables
}

// Parse classifies text. Missing data leaves the matching field empty.
func (p *Parser) Parse(text string) Result {
	return Result{
		CompanyCode:  p.companyCode(text),
		CurrencyCode: p.currencyCode(text),
		RawExcerpt:   excerpt(text, p.excerptLength),
	}
}

// companyCode returns the code of the company name occurring earliest in
// text. Ties go to the entry listed first.
func (p *Parser) companyCode(text string) string {
	upper := strings.ToUpper(text)

	best := -1
	code := ""
	for _, entry := range p.tables.companies {
		idx := strings.Index(upper, entry.Name)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
			code = entry.Code
		}
	}
	return code
}

// currencyCode normalizes the value of the first Currency label. Values
// missing from the table pass through upper-cased.
func (p *Parser) currencyCode(text string) string {
	match := currencyPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}

	value := strings.ToUpper(strings.TrimSpace(match[1]))
	if value == "" {
		return ""
	}
	if code, ok := p.tables.CurrencyCode(value); ok {
		return code
	}
	return value
}

func excerpt(text string, n int) string {
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
