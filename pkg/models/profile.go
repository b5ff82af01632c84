// Package models defines the data structures shared by the adapters, the
// reconciliation policy and the HTTP layer.
package models

import (
	"strings"
)

// Field names a logical profile attribute.
type Field string

const (
	FieldExchange          Field = "exchange"
	FieldSector            Field = "sector"
	FieldIndustry          Field = "industry"
	FieldEmployees         Field = "employees"
	FieldCountry           Field = "country"
	FieldMarketCap         Field = "marketCap"
	FieldEBITDA            Field = "ebitda"
	FieldFloat             Field = "float"
	FieldShortInterest     Field = "shortInterestPercent"
	FieldDilution          Field = "dilutionInfo"
	FieldSharesOutstanding Field = "sharesOutstanding"
)

// Fields holds the values one source extracted. Values are string,
// float64 or int64; absent fields are simply not present.
type Fields map[Field]any

// SetString stores a non-blank string.
func (f Fields) SetString(k Field, v string) {
	if v = strings.TrimSpace(v); v != "" {
		f[k] = v
	}
}

// SetFloat stores a float value.
func (f Fields) SetFloat(k Field, v float64) {
	f[k] = v
}

// SetFloatPtr stores *v when v is non-nil.
func (f Fields) SetFloatPtr(k Field, v *float64) {
	if v != nil {
		f[k] = *v
	}
}

// SetInt stores an integer value.
func (f Fields) SetInt(k Field, v int64) {
	f[k] = v
}

// Has reports whether k has a usable value.
func (f Fields) Has(k Field) bool {
	if f == nil {
		return false
	}
	switch v := f[k].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}

// String returns the string value of k.
func (f Fields) String(k Field) (string, bool) {
	if !f.Has(k) {
		return "", false
	}
	s, ok := f[k].(string)
	return s, ok
}

// Number returns the numeric value of k as a float64.
func (f Fields) Number(k Field) (float64, bool) {
	if !f.Has(k) {
		return 0, false
	}
	switch v := f[k].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Empty reports whether no field carries a usable value.
func (f Fields) Empty() bool {
	for k := range f {
		if f.Has(k) {
			return false
		}
	}
	return true
}

// Profile is the merged per-ticker profile. Each populated field traces to
// exactly one source, recorded in Provenance.
type Profile struct {
	Symbol               string   `json:"symbol"`
	Exchange             *string  `json:"exchange"`
	Sector               *string  `json:"sector"`
	Industry             *string  `json:"industry"`
	Employees            *int64   `json:"employees"`
	Country              *string  `json:"country"`
	MarketCap            *float64 `json:"marketCap"`
	EBITDA               *float64 `json:"ebitda"`
	Float                *float64 `json:"float"`
	ShortInterestPercent *float64 `json:"shortInterestPercent"`
	DilutionInfo         *string  `json:"dilutionInfo"`

	Sources    map[string]bool    `json:"sources"`
	Errors     map[string]*string `json:"errors"`
	SourceURLs map[string]*string `json:"sourceUrls"`
	Provenance map[Field]string   `json:"provenance"`
}

// NewProfile returns an empty profile for symbol with initialized side-car maps.
func NewProfile(symbol string) *Profile {
	return &Profile{
		Symbol:     symbol,
		Sources:    make(map[string]bool),
		Errors:     make(map[string]*string),
		SourceURLs: make(map[string]*string),
		Provenance: make(map[Field]string),
	}
}

// Set assigns field k from v. It returns false when v is missing or has the
// wrong type for k, leaving the profile unchanged.
func (p *Profile) Set(k Field, v any) bool {
	switch k {
	case FieldExchange:
		return setString(&p.Exchange, v)
	case FieldSector:
		return setString(&p.Sector, v)
	case FieldIndustry:
		return setString(&p.Industry, v)
	case FieldCountry:
		return setString(&p.Country, v)
	case FieldDilution:
		return setString(&p.DilutionInfo, v)
	case FieldMarketCap:
		return setFloat(&p.MarketCap, v)
	case FieldEBITDA:
		return setFloat(&p.EBITDA, v)
	case FieldFloat:
		return setFloat(&p.Float, v)
	case FieldShortInterest:
		return setFloat(&p.ShortInterestPercent, v)
	case FieldEmployees:
		switch n := v.(type) {
		case int64:
			p.Employees = &n
			return true
		case int:
			e := int64(n)
			p.Employees = &e
			return true
		case float64:
			e := int64(n)
			p.Employees = &e
			return true
		}
	}
	return false
}

// Has reports whether field k has been populated.
func (p *Profile) Has(k Field) bool {
	switch k {
	case FieldExchange:
		return p.Exchange != nil
	case FieldSector:
		return p.Sector != nil
	case FieldIndustry:
		return p.Industry != nil
	case FieldCountry:
		return p.Country != nil
	case FieldDilution:
		return p.DilutionInfo != nil
	case FieldMarketCap:
		return p.MarketCap != nil
	case FieldEBITDA:
		return p.EBITDA != nil
	case FieldFloat:
		return p.Float != nil
	case FieldShortInterest:
		return p.ShortInterestPercent != nil
	case FieldEmployees:
		return p.Employees != nil
	}
	return false
}

func setString(dst **string, v any) bool {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	s = strings.TrimSpace(s)
	*dst = &s
	return true
}

func setFloat(dst **float64, v any) bool {
	switch n := v.(type) {
	case float64:
		*dst = &n
		return true
	case int64:
		f := float64(n)
		*dst = &f
		return true
	case int:
		f := float64(n)
		*dst = &f
		return true
	}
	return false
}
