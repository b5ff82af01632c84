package datasource

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// googleConsentCookie skips the EU consent interstitial.
const googleConsentCookie = "CONSENT=YES+cb.20210720-07-p0.en+FX+111; SOCS=CAISHAgCEhJnd3NfMjAyMzA4MTAtMF9SQzIaAmVuIAEaBgiAo_CmBg"

// googleEBITDAPatterns are tried in order against the raw page when the
// labeled row is absent.
var googleEBITDAPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)EBITDA[^<]*?<[^>]*>([0-9.,]+\s*[KMBT]?)\s*(USD)?`),
	regexp.MustCompile(`(?is)>EBITDA<[^>]*>\s*(?:<[^>]*>)*\s*([0-9.,]+\s*[KMBT]?)`),
	regexp.MustCompile(`(?is)EBITDA\s*</[^>]+>\s*<[^>]+>\s*([0-9.,]+\s*[KMBT]?)`),
	regexp.MustCompile(`(?is)EBITDA\s*([0-9.,]+\s*[KMBT]?)`),
	regexp.MustCompile(`(?is)data-[^>]*EBITDA[^>]*>([0-9.,]+\s*[KMBT]?)<`),
}

// GoogleFinanceEBITDA scrapes EBITDA from the Google Finance quote page.
// exchangeHint is normalized and tried first, followed by the common US
// listing venues.
func (c *Client) GoogleFinanceEBITDA(ctx context.Context, symbol, exchangeHint string) models.ProfileOutcome {
	hint := string(NormalizeExchange(exchangeHint))
	return memo(ctx, c.caches.Profile, infra.Key("google_ebitda", symbol, hint), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourceGoogleFinance, symbol, c.fetchGoogleEBITDA(ctx, symbol, exchangeHint))
	})
}

func (c *Client) fetchGoogleEBITDA(ctx context.Context, symbol, exchangeHint string) models.ProfileOutcome {
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9",
		"Cookie":          googleConsentCookie,
	}

	responded := false
	var lastErr error
	for _, ex := range ExchangeCandidates(exchangeHint) {
		pageURL := c.ep.GoogleFinance + "/quote/" + url.PathEscape(symbol+":"+string(ex)) + "?gl=US&hl=en"
		data, err := c.http.Get(ctx, pageURL, c.scrapeTimeout, headers)
		if err != nil {
			if _, ok := infra.IsHTTPStatus(err); ok {
				responded = true
			}
			lastErr = err
			continue
		}
		responded = true

		if v, ok := extractGoogleEBITDA(string(data)); ok {
			return models.Success(models.Fields{models.FieldEBITDA: v}, pageURL)
		}
	}

	if !responded && lastErr != nil {
		return failFetch[models.Fields]("Google Finance", "", lastErr)
	}
	return models.Failure[models.Fields](models.KindNotFound, "", "EBITDA not found in Google Finance")
}

// extractGoogleEBITDA reads the labeled financial row first and falls back
// to pattern matching over the raw page.
func extractGoogleEBITDA(html string) (float64, bool) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		var (
			value float64
			found bool
		)
		doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return true
			}
			if !strings.HasPrefix(strings.TrimSpace(cells.Eq(0).Text()), "EBITDA") {
				return true
			}
			raw := strings.ReplaceAll(strings.TrimSpace(cells.Eq(1).Text()), "$", "")
			value, found = utils.ParseHumanNumber(strings.ReplaceAll(raw, " ", ""))
			return !found
		})
		if found {
			return value, true
		}
	}

	for _, re := range googleEBITDAPatterns {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		if v, ok := utils.ParseHumanNumber(strings.ReplaceAll(m[1], " ", "")); ok {
			return v, true
		}
	}
	return 0, false
}
