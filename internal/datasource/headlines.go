package datasource

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
)

// YahooHeadlines reads the per-ticker Yahoo Finance RSS feed. Like the
// Finviz table it is a recent-only list, filtered at merge time.
func (c *Client) YahooHeadlines(ctx context.Context, symbol string) models.NewsOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("yahoo_rss", symbol), func(ctx context.Context) models.NewsOutcome {
		return observe(c, SourceYahooRSS, symbol, c.fetchYahooHeadlines(ctx, symbol))
	})
}

func (c *Client) fetchYahooHeadlines(ctx context.Context, symbol string) models.NewsOutcome {
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("region", "US")
	q.Set("lang", "en-US")
	feedURL := c.ep.YahooRSS + "?" + q.Encode()

	data, err := c.http.Get(ctx, feedURL, c.apiTimeout, map[string]string{
		"Accept": "application/rss+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return failFetch[[]models.NewsItem]("Yahoo RSS", feedURL, err)
	}

	// gofeed parsers keep per-parse state; one per call.
	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return models.Failure[[]models.NewsItem](models.KindNotFound, feedURL, "Yahoo RSS feed unreadable: %v", err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = "Yahoo Finance"
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		item := models.NewsItem{
			Title:  title,
			URL:    it.Link,
			Source: source,
		}
		if desc := cleanHTML(it.Description); desc != "" {
			item.Description = &desc
		}
		if it.PublishedParsed != nil {
			pub := it.PublishedParsed.UTC().Format(time.RFC3339)
			item.PublishedAt = &pub
		}
		items = append(items, item)
	}
	return models.Success(items, feedURL)
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
