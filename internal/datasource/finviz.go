package datasource

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

var (
	finvizShortFloatRe     = regexp.MustCompile(`([0-9.]+)%`)
	finvizShortFloatTextRe = regexp.MustCompile(`(?i)Short Float\s*([0-9.]+)%`)
	finvizDayRe            = regexp.MustCompile(`^([A-Z][a-z]{2}-\d{2}-\d{2})`)
	finvizClockRe          = regexp.MustCompile(`(\d{1,2}:\d{2}[AP]M)`)
)

// finvizTabLinks maps quote-header link filters to profile fields.
var finvizTabLinks = []struct {
	marker string
	field  models.Field
}{
	{"f=sec_", models.FieldSector},
	{"f=ind_", models.FieldIndustry},
	{"f=geo_", models.FieldCountry},
	{"f=exch_", models.FieldExchange},
}

func (c *Client) finvizQuoteURL(symbol string) string {
	return c.ep.Finviz + "/quote.ashx?t=" + url.QueryEscape(symbol) + "&p=d"
}

// finvizPage returns the raw quote page for symbol. The page is cached once
// and shared by the profile and news extractors.
func (c *Client) finvizPage(ctx context.Context, symbol string) models.Outcome[string] {
	return memo(ctx, c.caches.Profile, infra.Key("finviz_page", symbol), func(ctx context.Context) models.Outcome[string] {
		pageURL := c.finvizQuoteURL(symbol)
		headers := infra.BrowserHeaders()
		headers["Referer"] = c.ep.Finviz + "/"

		data, err := c.http.Get(ctx, pageURL, c.scrapeTimeout, headers)
		if err != nil {
			return failFetch[string]("Finviz", pageURL, err)
		}
		return models.Success(string(data), pageURL)
	})
}

// FinvizProfile scrapes exchange, sector, industry, country, market cap,
// float, short float and EBITDA from the Finviz quote page.
func (c *Client) FinvizProfile(ctx context.Context, symbol string) models.ProfileOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("finviz_profile", symbol), func(ctx context.Context) models.ProfileOutcome {
		page := c.finvizPage(ctx, symbol)
		if !page.OK {
			o := models.Outcome[models.Fields]{Kind: page.Kind, Error: page.Error, SourceURL: page.SourceURL, Transient: page.Transient}
			return observe(c, SourceFinviz, symbol, o)
		}
		return observe(c, SourceFinviz, symbol, parseFinvizProfile(page.Value, page.SourceURL))
	})
}

func parseFinvizProfile(html, sourceURL string) models.ProfileOutcome {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Failure[models.Fields](models.KindNotFound, sourceURL, "Finviz page unreadable: %v", err)
	}

	f := models.Fields{}

	doc.Find("a.tab-link, .quote-links a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if text == "" || text == "-" {
			return
		}
		for _, tl := range finvizTabLinks {
			if strings.Contains(href, tl.marker) {
				f.SetString(tl.field, text)
				return
			}
		}
	})

	snapshot := finvizSnapshot(doc)

	if v, ok := snapshotNumber(snapshot, "Market Cap"); ok {
		f.SetFloat(models.FieldMarketCap, v)
	}
	if v, ok := snapshotNumber(snapshot, "Shs Float"); ok {
		f.SetFloat(models.FieldFloat, v)
	}
	if v, ok := snapshotNumber(snapshot, "EBITDA"); ok {
		f.SetFloat(models.FieldEBITDA, v)
	}

	sf := snapshot["Short Float / Ratio"]
	if sf == "" {
		sf = snapshot["Short Float"]
	}
	if m := finvizShortFloatRe.FindStringSubmatch(sf); m != nil {
		if v, ok := utils.ParseHumanNumber(m[1]); ok {
			f.SetFloat(models.FieldShortInterest, v)
		}
	}
	if !f.Has(models.FieldShortInterest) {
		if m := finvizShortFloatTextRe.FindStringSubmatch(doc.Text()); m != nil {
			if v, ok := utils.ParseHumanNumber(m[1]); ok {
				f.SetFloat(models.FieldShortInterest, v)
			}
		}
	}

	if f.Empty() {
		return models.Failure[models.Fields](models.KindNotFound, sourceURL, "Finviz page fetched but no profile data found")
	}
	return models.Success(f, sourceURL)
}

// finvizSnapshot reads the label/value cell pairs of the snapshot table.
func finvizSnapshot(doc *goquery.Document) map[string]string {
	snapshot := make(map[string]string)
	doc.Find("table.snapshot-table2").Each(func(_ int, table *goquery.Selection) {
		cells := table.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			if label == "" {
				continue
			}
			snapshot[label] = strings.TrimSpace(cells.Eq(i + 1).Text())
		}
	})
	return snapshot
}

func snapshotNumber(snapshot map[string]string, label string) (float64, bool) {
	v := snapshot[label]
	if v == "" || v == "-" {
		return 0, false
	}
	return utils.ParseHumanNumber(v)
}

// FinvizNews scrapes the headline table of the Finviz quote page. Items
// carry UTC RFC 3339 timestamps; recency filtering happens at merge time.
func (c *Client) FinvizNews(ctx context.Context, symbol string) models.NewsOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("finviz_news", symbol), func(ctx context.Context) models.NewsOutcome {
		page := c.finvizPage(ctx, symbol)
		if !page.OK {
			o := models.NewsOutcome{Kind: page.Kind, Error: page.Error, SourceURL: page.SourceURL, Transient: page.Transient}
			return observe(c, SourceFinvizNews, symbol, o)
		}
		return observe(c, SourceFinvizNews, symbol, c.parseFinvizNews(page.Value, page.SourceURL))
	})
}

func (c *Client) parseFinvizNews(html, sourceURL string) models.NewsOutcome {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Failure[[]models.NewsItem](models.KindNotFound, sourceURL, "Finviz page unreadable: %v", err)
	}

	table := doc.Find("#news-table")
	if table.Length() == 0 {
		return models.Failure[[]models.NewsItem](models.KindNotFound, sourceURL, "Finviz news table not found")
	}

	base, _ := url.Parse(c.ep.Finviz + "/")
	today := c.now().In(c.loc)
	var current time.Time

	items := make([]models.NewsItem, 0)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		link := cells.Eq(1).Find("a").First()
		if link.Length() == 0 {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}

		current = finvizTimestamp(strings.TrimSpace(cells.Eq(0).Text()), current, today, c.loc)

		source := "Finviz"
		if span := cells.Eq(1).Find("span").First(); span.Length() > 0 {
			if s := strings.Trim(strings.TrimSpace(span.Text()), "()"); s != "" {
				source = s
			}
		}

		href, _ := link.Attr("href")
		item := models.NewsItem{
			Title:  title,
			URL:    resolveURL(base, href),
			Source: source,
		}
		if !current.IsZero() {
			pub := current.UTC().Format(time.RFC3339)
			item.PublishedAt = &pub
		}
		items = append(items, item)
	})

	return models.Success(items, sourceURL)
}

// finvizTimestamp parses a news-table date cell. Cells hold either
// "Jan-02-06 03:04PM", "Today 03:04PM" or a bare time, in which case the
// date of the previous row carries forward.
func finvizTimestamp(cell string, prev, today time.Time, loc *time.Location) time.Time {
	day := prev
	switch {
	case finvizDayRe.MatchString(cell):
		if d, err := time.ParseInLocation("Jan-02-06", finvizDayRe.FindStringSubmatch(cell)[1], loc); err == nil {
			day = d
		}
	case strings.HasPrefix(strings.ToLower(cell), "today"):
		day = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	}
	if day.IsZero() {
		return time.Time{}
	}

	if m := finvizClockRe.FindStringSubmatch(cell); m != nil {
		if clock, err := time.Parse("3:04PM", m[1]); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
