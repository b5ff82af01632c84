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

var ktfFloatRe = regexp.MustCompile(`(?i)Float\s*:\s*([0-9,.]+)\s*(K|M|B)?`)

// KnowTheFloat scrapes the public float from knowthefloat.com.
func (c *Client) KnowTheFloat(ctx context.Context, symbol string) models.ProfileOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("ktf", symbol), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourceKnowTheFloat, symbol, c.fetchKnowTheFloat(ctx, symbol))
	})
}

func (c *Client) fetchKnowTheFloat(ctx context.Context, symbol string) models.ProfileOutcome {
	pageURL := c.ep.KnowTheFloat + "/stock/" + url.PathEscape(strings.ToLower(symbol)) + ".htm"

	data, err := c.http.Get(ctx, pageURL, c.scrapeTimeout, infra.BrowserHeaders())
	if err != nil {
		if he, ok := infra.IsHTTPStatus(err); ok {
			return models.Failure[models.Fields](models.KindFetchFailed, pageURL, "HTTP %d", he.StatusCode)
		}
		return failFetch[models.Fields]("KnowTheFloat", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return models.Failure[models.Fields](models.KindNotFound, pageURL, "Float not found in page")
	}

	if v, ok := ktfLabeledFloat(doc); ok {
		return models.Success(models.Fields{models.FieldFloat: v}, pageURL)
	}

	if m := ktfFloatRe.FindStringSubmatch(doc.Text()); m != nil {
		if v, ok := utils.ParseHumanNumber(m[1] + strings.ToUpper(m[2])); ok {
			return models.Success(models.Fields{models.FieldFloat: v}, pageURL)
		}
	}
	return models.Failure[models.Fields](models.KindNotFound, pageURL, "Float not found in page")
}

// ktfLabeledFloat finds a cell labeled "Float" and parses its sibling.
func ktfLabeledFloat(doc *goquery.Document) (float64, bool) {
	var (
		value float64
		found bool
	)
	doc.Find("td, th, dt").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(label.Text()), ":"), "Float") {
			return true
		}
		value, found = utils.ParseHumanNumber(strings.TrimSpace(label.Next().Text()))
		return !found
	})
	return value, found
}
