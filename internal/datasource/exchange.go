package datasource

import "strings"

// Exchange is the canonical exchange code used in Google Finance URLs.
type Exchange string

const (
	ExchangeUnknown      Exchange = ""
	ExchangeNASDAQ       Exchange = "NASDAQ"
	ExchangeNYSE         Exchange = "NYSE"
	ExchangeNYSEAmerican Exchange = "NYSEAMERICAN"
	ExchangeNYSEArca     Exchange = "NYSEARCA"
)

// FallbackExchanges is tried in order when the exchange is unknown.
var FallbackExchanges = []Exchange{ExchangeNASDAQ, ExchangeNYSE, ExchangeNYSEAmerican}

var exchangeAliases = map[string]Exchange{
	// NASDAQ tiers and MIC
	"XNAS":     ExchangeNASDAQ,
	"NASDAQ":   ExchangeNASDAQ,
	"NASD":     ExchangeNASDAQ,
	"NMS":      ExchangeNASDAQ,
	"NGM":      ExchangeNASDAQ,
	"NCM":      ExchangeNASDAQ,
	"NASDAQGS": ExchangeNASDAQ,
	"NASDAQGM": ExchangeNASDAQ,
	"NASDAQCM": ExchangeNASDAQ,

	"XNYS": ExchangeNYSE,
	"NYSE": ExchangeNYSE,
	"NYQ":  ExchangeNYSE,

	"XASE":         ExchangeNYSEAmerican,
	"AMEX":         ExchangeNYSEAmerican,
	"ASE":          ExchangeNYSEAmerican,
	"NYSEAMERICAN": ExchangeNYSEAmerican,
	"NYSEMKT":      ExchangeNYSEAmerican,

	"XBOS":     ExchangeNYSEArca,
	"ARCA":     ExchangeNYSEArca,
	"PCX":      ExchangeNYSEArca,
	"NYSEARCA": ExchangeNYSEArca,
	"ARCX":     ExchangeNYSEArca,
}

// NormalizeExchange maps a provider exchange code or name onto the
// canonical enum. Spaces and case are ignored. Unknown inputs return
// ExchangeUnknown.
func NormalizeExchange(code string) Exchange {
	key := strings.ToUpper(strings.Join(strings.Fields(code), ""))
	return exchangeAliases[key]
}

// ExchangeCandidates returns the exchanges to try for a hint, in order:
// the normalized hint when known, then FallbackExchanges without repeats.
func ExchangeCandidates(hint string) []Exchange {
	out := make([]Exchange, 0, len(FallbackExchanges)+1)
	if ex := NormalizeExchange(hint); ex != ExchangeUnknown {
		out = append(out, ex)
	}
	for _, fb := range FallbackExchanges {
		if len(out) > 0 && out[0] == fb {
			continue
		}
		out = append(out, fb)
	}
	return out
}
