package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// CompanyEntry maps a company name (or alias) to its short code
type CompanyEntry struct {
	Name string `mapstructure:"name" json:"name"`
	Code string `mapstructure:"code" json:"code"`
}

// CompanyTable is an ordered list of company entries. Order decides ties
// between names found at the same offset.
type CompanyTable []CompanyEntry

// CurrencyTable maps an upper-cased currency name or alias to its code
type CurrencyTable map[string]string

// Tables bundles the two lookup tables used by the parser. A Tables value is
// never modified after construction and may be shared between goroutines.
type Tables struct {
	companies  CompanyTable
	currencies CurrencyTable
}

// defaultCompanies is the built-in company table
var defaultCompanies = CompanyTable{
	{Name: "Eco Energy Power LLC", Code: "Eco"},
	{Name: "Eco Energy Power", Code: "Eco"},
	{Name: "Solar Generation Power LLC", Code: "SG"},
	{Name: "Solar Generation Power", Code: "SG"},
	{Name: "Wind Farm Holdings LLC", Code: "WFH"},
	{Name: "Wind Farm Holdings", Code: "WFH"},
	{Name: "Green Grid Utilities", Code: "GGU"},
	{Name: "Blue Water Hydro", Code: "BWH"},
}

// defaultCurrencies is the built-in currency table
var defaultCurrencies = CurrencyTable{
	"US DOLLARS":            "USD",
	"US DOLLAR":             "USD",
	"UNITED STATES DOLLARS": "USD",
	"UNITED STATES DOLLAR":  "USD",
	"DOLLARS":               "USD",
	"USD":                   "USD",
	"EURO":                  "EUR",
	"EUROS":                 "EUR",
	"EUR":                   "EUR",
	"BRITISH POUNDS":        "GBP",
	"BRITISH POUND":         "GBP",
	"POUNDS STERLING":       "GBP",
	"GBP":                   "GBP",
	"JAPANESE YEN":          "JPY",
	"YEN":                   "JPY",
	"JPY":                   "JPY",
	"CHINESE YUAN":          "CNY",
	"RENMINBI":              "CNY",
	"CNY":                   "CNY",
	"MONGOLIAN TUGRIK":      "MNT",
	"TUGRIK":                "MNT",
	"MNT":                   "MNT",
	"SWISS FRANCS":          "CHF",
	"SWISS FRANC":           "CHF",
	"CHF":                   "CHF",
	"CANADIAN DOLLARS":      "CAD",
	"CANADIAN DOLLAR":       "CAD",
	"CAD":                   "CAD",
}

// DefaultTables returns the built-in lookup tables
func DefaultTables() *Tables {
	t, err := NewTables(defaultCompanies, defaultCurrencies)
	if err != nil {
		// The built-in tables are static; failing here is a programming error.
		panic(err)
	}
	return t
}

// NewTables builds immutable tables from the given entries. Names and aliases
// are upper-cased; the inputs are copied so later changes by the caller have
// no effect.
func NewTables(companies CompanyTable, currencies CurrencyTable) (*Tables, error) {
	t := &Tables{
		companies:  make(CompanyTable, 0, len(companies)),
		currencies: make(CurrencyTable, len(currencies)),
	}

	for i, entry := range companies {
		name := strings.ToUpper(strings.TrimSpace(entry.Name))
		if name == "" {
			return nil, fmt.Errorf("company entry %d: name cannot be empty", i)
		}
		if strings.TrimSpace(entry.Code) == "" {
			return nil, fmt.Errorf("company entry %d (%s): code cannot be empty", i, entry.Name)
		}
		t.companies = append(t.companies, CompanyEntry{Name: name, Code: entry.Code})
	}

	for alias, code := range currencies {
		key := strings.ToUpper(strings.TrimSpace(alias))
		if key == "" {
			return nil, errors.New("currency alias cannot be empty")
		}
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("currency alias %s: code cannot be empty", alias)
		}
		t.currencies[key] = code
	}

	return t, nil
}

// tablesFile is the on-disk layout of a lookup table override file
type tablesFile struct {
	Companies  []CompanyEntry    `mapstructure:"companies"`
	Currencies map[string]string `mapstructure:"currencies"`
}

// LoadTables reads lookup tables from a YAML, JSON or TOML file. Sections
// missing from the file fall back to the built-in tables.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read tables file %s: %w", path, err)
	}

	var file tablesFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode tables file %s: %w", path, err)
	}

	companies := CompanyTable(file.Companies)
	if len(companies) == 0 {
		companies = defaultCompanies
	}
	currencies := CurrencyTable(file.Currencies)
	if len(currencies) == 0 {
		currencies = defaultCurrencies
	}

	return NewTables(companies, currencies)
}

// Companies returns a copy of the company table in lookup order
func (t *Tables) Companies() CompanyTable {
	out := make(CompanyTable, len(t.companies))
	copy(out, t.companies)
	return out
}

// Currencies returns a copy of the currency table
func (t *Tables) Currencies() CurrencyTable {
	out := make(CurrencyTable, len(t.currencies))
	for k, v := range t.currencies {
		out[k] = v
	}
	return out
}

// CurrencyCode looks up an upper-cased alias
func (t *Tables) CurrencyCode(alias string) (string, bool) {
	code, ok := t.currencies[alias]
	return code, ok
}

// String summarizes the table sizes
func (t *Tables) String() string {
	return fmt.Sprintf("Tables{Companies: %d, Currencies: %d}", len(t.companies), len(t.currencies))
}
