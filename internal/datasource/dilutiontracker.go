package datasource

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
)

var dilutionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ATM\s+offering[^.]{5,120}\.)`),
	regexp.MustCompile(`(?i)(shelf\s+registration[^.]{5,120}\.)`),
	regexp.MustCompile(`(?i)(shares\s+outstanding[:\s]+[0-9,.]+[KMBT]?)`),
	regexp.MustCompile(`(?i)(authorized\s+shares[:\s]+[0-9,.]+[KMBT]?)`),
	regexp.MustCompile(`(?i)(dilution\s+risk[^.]{5,80}\.)`),
	regexp.MustCompile(`(?i)(S-3\s+filing[^.]{5,80}\.)`),
}

const (
	dilutionMatchesPerPattern = 2
	dilutionMinSnippetLen     = 15
	dilutionMaxSnippets       = 3
)

// DilutionTracker extracts dilution-risk snippets from dilutiontracker.com.
// Most data sits behind a subscription; the public page often has none.
func (c *Client) DilutionTracker(ctx context.Context, symbol string) models.ProfileOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("dilution", symbol), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourceDilutionTracker, symbol, c.fetchDilutionTracker(ctx, symbol))
	})
}

func (c *Client) fetchDilutionTracker(ctx context.Context, symbol string) models.ProfileOutcome {
	pageURL := c.ep.DilutionTracker + "/app/search/" + url.PathEscape(strings.ToUpper(symbol))

	data, err := c.http.Get(ctx, pageURL, c.scrapeTimeout, infra.BrowserHeaders())
	if err != nil {
		if he, ok := infra.IsHTTPStatus(err); ok {
			return models.Failure[models.Fields](models.KindFetchFailed, pageURL, "HTTP %d", he.StatusCode)
		}
		return failFetch[models.Fields]("DilutionTracker", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return models.Failure[models.Fields](models.KindNotFound, pageURL, "No dilution data found (may require subscription)")
	}

	info := dilutionSnippets(pageText(doc))
	if info == "" {
		return models.Failure[models.Fields](models.KindNotFound, pageURL, "No dilution data found (may require subscription)")
	}
	return models.Success(models.Fields{models.FieldDilution: info}, pageURL)
}

// dilutionSnippets collects up to two matches per pattern, keeps the
// distinct ones longer than 15 characters and joins the first three.
func dilutionSnippets(text string) string {
	var snippets []string
	seen := make(map[string]bool)
	for _, re := range dilutionPatterns {
		for _, m := range re.FindAllStringSubmatch(text, dilutionMatchesPerPattern) {
			s := strings.TrimSpace(m[1])
			if len(s) <= dilutionMinSnippetLen || seen[s] {
				continue
			}
			seen[s] = true
			snippets = append(snippets, s)
		}
	}
	if len(snippets) > dilutionMaxSnippets {
		snippets = snippets[:dilutionMaxSnippets]
	}
	return strings.Join(snippets, " | ")
}

// pageText returns the visible text of doc with one space between text
// nodes and runs of whitespace collapsed.
func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		collectText(s, &parts)
	})
	return strings.Join(parts, " ")
}

func collectText(s *goquery.Selection, parts *[]string) {
	if goquery.NodeName(s) == "#text" {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		collectText(child, parts)
	})
}
