package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/tickerlab/pkg/models"
)

var newsNow = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

func item(title, source, published string) models.NewsItem {
	it := models.NewsItem{Title: title, Source: source, URL: "https://news.example/" + source}
	if published != "" {
		it.PublishedAt = &published
	}
	return it
}

func list(source string, recentOnly bool, items ...models.NewsItem) NewsList {
	return NewsList{Source: source, RecentOnly: recentOnly, Outcome: models.Success(items, "")}
}

func titles(items []models.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestTitleKey(t *testing.T) {
	assert.Equal(t, "acme beats earnings", TitleKey("Acme beats earnings"))
	assert.Equal(t, "acme beats earnings", TitleKey("  ACME   beats earnings!!"))
	assert.Equal(t, "acme s q3 eps 1 20", TitleKey("Acme's Q3 EPS: $1.20"))
	assert.Equal(t, "", TitleKey("!!!"))

	long := TitleKey("a very long headline that keeps going well past the sixty character limit for keys")
	assert.Len(t, []rune(long), 60)
}

func TestNewsDedupKeepsFirstOccurrence(t *testing.T) {
	resp := News("ACME", newsNow, DefaultNewsOptions(),
		list("polygonNews", false, item("Acme beats earnings", "Benzinga", "2026-03-04T12:00:00Z")),
		list("finvizNews", true, item("Acme beats earnings!!", "Reuters", "2026-03-04T13:00:00Z")),
	)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Benzinga", resp.Items[0].Source)
	assert.Equal(t, []string{"Benzinga"}, resp.Sources)
}

func TestNewsRecencyAppliesToRecentOnlyLists(t *testing.T) {
	resp := News("ACME", newsNow, NewsOptions{RecencyDays: 3, MaxItems: 20},
		list("polygonNews", false, item("Old filing", "Polygon", "2026-01-10T09:00:00Z")),
		list("finvizNews", true,
			item("Stale finviz", "Reuters", "2026-02-28T23:59:00Z"),
			item("Edge finviz", "Reuters", "2026-03-01T00:00:00Z"),
			item("Undated finviz", "Reuters", ""),
		),
		list("yahooRSS", true,
			item("Garbled date", "Yahoo", "yesterday-ish"),
		),
	)

	assert.ElementsMatch(t,
		[]string{"Old filing", "Edge finviz", "Undated finviz", "Garbled date"},
		titles(resp.Items))
}

func TestNewsSortsNewestFirstUnknownLast(t *testing.T) {
	resp := News("ACME", newsNow, DefaultNewsOptions(),
		list("finvizNews", true,
			item("Undated", "Finviz", ""),
			item("Morning", "Finviz", "2026-03-04T13:00:00Z"),
		),
		list("yahooRSS", true,
			item("Yesterday", "Yahoo", "2026-03-03T20:00:00Z"),
			item("Midday", "Yahoo", "2026-03-04T16:30:00Z"),
		),
	)

	assert.Equal(t, []string{"Midday", "Morning", "Yesterday", "Undated"}, titles(resp.Items))
	assert.Equal(t, []string{"Finviz", "Yahoo"}, resp.Sources)
}

func TestNewsCapsItems(t *testing.T) {
	var items []models.NewsItem
	for i := 0; i < 30; i++ {
		items = append(items, item(fmt.Sprintf("Headline %02d", i), "Polygon", fmt.Sprintf("2026-03-04T%02d:00:00Z", i%24)))
	}
	resp := News("ACME", newsNow, NewsOptions{RecencyDays: 3, MaxItems: 5}, list("polygonNews", false, items...))
	assert.Len(t, resp.Items, 5)
	assert.True(t, resp.OK)
	assert.Nil(t, resp.Error)
}

func TestNewsSkipsFailedLists(t *testing.T) {
	polygon := NewsList{Source: "polygonNews", Outcome: models.NewsOutcome{Kind: models.KindConfig, Error: "POLYGON_API_KEY not configured"}}
	resp := News("ACME", newsNow, DefaultNewsOptions(), polygon)

	assert.False(t, resp.OK)
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Sources)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "No recent news found (last 3 days)", *resp.Error)
}

func TestNewsZeroMaxItemsUsesDefault(t *testing.T) {
	resp := News("ACME", newsNow, NewsOptions{RecencyDays: 3},
		list("polygonNews", false, item("One", "Polygon", "2026-03-04T10:00:00Z")))
	assert.Len(t, resp.Items, 1)
}

func TestCutoffDate(t *testing.T) {
	late := time.Date(2026, 3, 4, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), cutoffDate(late, 3), "cutoff is computed on the UTC calendar")
}
