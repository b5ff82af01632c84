// Package reconcile merges per-source outcomes into one profile and one
// news list. Everything here is pure: no I/O happens except through the
// deferred loaders the caller supplies.
package reconcile

import (
	"fmt"

	"github.com/seenimoa/tickerlab/pkg/models"
)

// Source names. The datasource adapters report under these same names.
const (
	Yahoo             = "yahoo"
	Polygon           = "polygon"
	PolygonFinancials = "polygonFinancials"
	GoogleFinance     = "googleFinance"
	Finviz            = "finviz"
	KnowTheFloat      = "knowTheFloat"
	DilutionTracker   = "dilutionTracker"
)

// Rule lists the sources that may supply Field, highest priority first.
type Rule struct {
	Field   models.Field
	Sources []string
}

// ProfileRules is the field priority policy. Rules are applied in order, so
// exchange is settled before the EBITDA chain reaches googleFinance, which
// uses it as a URL hint.
var ProfileRules = []Rule{
	{models.FieldExchange, []string{Yahoo, Finviz, Polygon}},
	{models.FieldSector, []string{Yahoo, Finviz, Polygon}},
	{models.FieldIndustry, []string{Yahoo, Finviz, Polygon}},
	{models.FieldCountry, []string{Yahoo, Finviz, Polygon}},
	{models.FieldMarketCap, []string{Yahoo, Finviz, Polygon}},
	{models.FieldEmployees, []string{Yahoo, Polygon}},
	{models.FieldEBITDA, []string{Yahoo, PolygonFinancials, GoogleFinance, Finviz}},
	{models.FieldFloat, []string{Finviz, KnowTheFloat}},
	{models.FieldShortInterest, []string{Finviz}},
	{models.FieldDilution, []string{DilutionTracker}},
}

// Loader fetches a deferred source. It receives the profile merged so far.
type Loader func(merged *models.Profile) models.ProfileOutcome

// Inputs carries the eagerly fetched outcomes and the loaders for sources
// that are only fetched when a rule reaches them.
type Inputs struct {
	Outcomes map[string]models.ProfileOutcome
	Deferred map[string]Loader
}

// Profile merges in according to ProfileRules.
func Profile(symbol string, in Inputs) *models.Profile {
	return ProfileWithRules(symbol, in, ProfileRules)
}

// ProfileWithRules merges in according to rules. For each field the first
// OK source with a usable value wins; later sources are not consulted for
// that field. A deferred loader runs at most once.
func ProfileWithRules(symbol string, in Inputs, rules []Rule) *models.Profile {
	p := models.NewProfile(symbol)

	resolved := make(map[string]models.ProfileOutcome, len(in.Outcomes)+len(in.Deferred))
	for name, o := range in.Outcomes {
		resolved[name] = o
	}
	skipped := make(map[string]models.Field)

	outcome := func(name string) (models.ProfileOutcome, bool) {
		if o, ok := resolved[name]; ok {
			return o, true
		}
		load, ok := in.Deferred[name]
		if !ok {
			return models.ProfileOutcome{}, false
		}
		o := load(p)
		resolved[name] = o
		return o, true
	}

	won := make(map[string]bool)
	for _, rule := range rules {
		winner := ""
		for _, name := range rule.Sources {
			if winner != "" {
				if _, deferred := in.Deferred[name]; deferred {
					if _, done := resolved[name]; !done {
						if _, noted := skipped[name]; !noted {
							skipped[name] = rule.Field
						}
					}
				}
				continue
			}
			o, ok := outcome(name)
			if !ok || !o.OK || !o.Value.Has(rule.Field) {
				continue
			}
			if p.Set(rule.Field, o.Value[rule.Field]) {
				winner = name
				p.Provenance[rule.Field] = name
				won[name] = true
			}
		}
	}

	for _, name := range sourceNames(rules) {
		o, ok := resolved[name]
		switch {
		case ok:
			p.Sources[name] = o.OK
			if o.OK {
				p.Errors[name] = nil
			} else {
				p.Errors[name] = strPtr(coalesceError(o.Error))
			}
		case isDeferred(in, name):
			field := skipped[name]
			p.Sources[name] = false
			p.Errors[name] = strPtr(fmt.Sprintf("not consulted: %s resolved by %s", field, p.Provenance[field]))
		default:
			p.Sources[name] = false
			p.Errors[name] = strPtr("not consulted")
		}

		p.SourceURLs[name] = nil
		if won[name] && o.SourceURL != "" {
			p.SourceURLs[name] = strPtr(o.SourceURL)
		}
	}
	return p
}

// sourceNames returns every source named in rules, in first-seen order.
func sourceNames(rules []Rule) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range rules {
		for _, s := range r.Sources {
			if !seen[s] {
				seen[s] = true
				names = append(names, s)
			}
		}
	}
	return names
}

func isDeferred(in Inputs, name string) bool {
	_, ok := in.Deferred[name]
	return ok
}

func coalesceError(msg string) string {
	if msg == "" {
		return "unavailable"
	}
	return msg
}

func strPtr(s string) *string { return &s }
