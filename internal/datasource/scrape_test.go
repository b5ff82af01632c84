package datasource

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/tickerlab/pkg/models"
)

const finvizQuoteHTML = `<html><body>
<div class="quote-links">
  <a href="screener.ashx?v=111&f=sec_technology" class="tab-link">Technology</a>
  <a href="screener.ashx?v=111&f=ind_consumerelectronics" class="tab-link">Consumer Electronics</a>
  <a href="screener.ashx?v=111&f=geo_usa" class="tab-link">USA</a>
  <a href="screener.ashx?v=111&f=exch_nasd" class="tab-link">NASD</a>
</div>
<table class="snapshot-table2">
  <tr><td>Index</td><td>DJIA, NDX, S&P 500</td><td>Market Cap</td><td>2.85T</td></tr>
  <tr><td>Shs Float</td><td>15.20B</td><td>EBITDA</td><td>130.50B</td></tr>
  <tr><td>Short Float / Ratio</td><td>0.75% / 1.20</td><td>Employees</td><td>-</td></tr>
</table>
<table id="news-table">
  <tr><td>Mar-04-26 09:15AM</td><td><a href="https://news.example/a">Acme beats earnings</a><span>(Reuters)</span></td></tr>
  <tr><td>08:00AM</td><td><a href="/news/b">Acme guidance raised</a><span>(Zacks)</span></td></tr>
  <tr><td>Today 07:30AM</td><td><a href="https://news.example/t">Acme premarket movers</a></td></tr>
  <tr><td>Feb-20-26 10:00AM</td><td><a href="https://news.example/c">Acme old story</a><span>(AP)</span></td></tr>
  <tr><td colspan="2">advertisement</td></tr>
</table>
</body></html>`

func TestFinvizProfile(t *testing.T) {
	u := newUpstream(t)
	u.handle("/finviz/quote.ashx", http.StatusOK, "text/html", finvizQuoteHTML)
	c := u.client("")

	o := c.FinvizProfile(context.Background(), "AAPL")
	require.True(t, o.OK, o.Error)

	assert.Equal(t, "Technology", o.Value[models.FieldSector])
	assert.Equal(t, "Consumer Electronics", o.Value[models.FieldIndustry])
	assert.Equal(t, "USA", o.Value[models.FieldCountry])
	assert.Equal(t, "NASD", o.Value[models.FieldExchange])
	assert.InDelta(t, 2.85e12, o.Value[models.FieldMarketCap], 1e-3)
	assert.InDelta(t, 1.52e10, o.Value[models.FieldFloat], 1e-3)
	assert.InDelta(t, 1.305e11, o.Value[models.FieldEBITDA], 1e-3)
	assert.Equal(t, 0.75, o.Value[models.FieldShortInterest])
	assert.True(t, strings.HasSuffix(o.SourceURL, "/finviz/quote.ashx?t=AAPL&p=d"))
}

func TestFinvizPageSharedByProfileAndNews(t *testing.T) {
	u := newUpstream(t)
	u.handle("/finviz/quote.ashx", http.StatusOK, "text/html", finvizQuoteHTML)
	c := u.client("")

	c.FinvizProfile(context.Background(), "AAPL")
	c.FinvizNews(context.Background(), "AAPL")
	assert.Equal(t, 1, u.count("/finviz/quote.ashx"))
}

func TestFinvizProfileNoData(t *testing.T) {
	u := newUpstream(t)
	u.handle("/finviz/quote.ashx", http.StatusOK, "text/html", `<html><body>Just a moment...</body></html>`)
	c := u.client("")

	o := c.FinvizProfile(context.Background(), "AAPL")
	assert.False(t, o.OK)
	assert.Equal(t, models.KindNotFound, o.Kind)
	assert.Equal(t, "Finviz page fetched but no profile data found", o.Error)
}

func TestFinvizShortFloatTextFallback(t *testing.T) {
	o := parseFinvizProfile(`<html><body><div>Short Float 12.5%</div></body></html>`, "u")
	require.True(t, o.OK, o.Error)
	assert.Equal(t, 12.5, o.Value[models.FieldShortInterest])
}

func TestFinvizNews(t *testing.T) {
	u := newUpstream(t)
	u.handle("/finviz/quote.ashx", http.StatusOK, "text/html", finvizQuoteHTML)
	c := u.client("")

	o := c.FinvizNews(context.Background(), "AAPL")
	require.True(t, o.OK, o.Error)
	require.Len(t, o.Value, 4)

	first := o.Value[0]
	assert.Equal(t, "Acme beats earnings", first.Title)
	assert.Equal(t, "Reuters", first.Source)
	assert.Equal(t, "https://news.example/a", first.URL)
	assert.Equal(t, "2026-03-04T14:15:00Z", *first.PublishedAt)

	second := o.Value[1]
	assert.Equal(t, "2026-03-04T13:00:00Z", *second.PublishedAt, "bare time carries the previous date")
	assert.Equal(t, u.srv.URL+"/news/b", second.URL)
	assert.Equal(t, "Zacks", second.Source)

	assert.Equal(t, "Finviz", o.Value[2].Source)
	assert.Equal(t, "2026-03-04T12:30:00Z", *o.Value[2].PublishedAt)
	assert.Equal(t, "2026-02-20T15:00:00Z", *o.Value[3].PublishedAt)
}

func TestFinvizNewsTableMissing(t *testing.T) {
	u := newUpstream(t)
	u.handle("/finviz/quote.ashx", http.StatusOK, "text/html", `<html><body><p>nothing</p></body></html>`)
	c := u.client("")

	o := c.FinvizNews(context.Background(), "AAPL")
	assert.False(t, o.OK)
	assert.Equal(t, "Finviz news table not found", o.Error)
}

func TestFinvizTimestamp(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	today := time.Date(2026, 3, 4, 10, 0, 0, 0, loc)

	got := finvizTimestamp("Jan-15-26 04:30PM", time.Time{}, today, loc)
	assert.Equal(t, time.Date(2026, 1, 15, 16, 30, 0, 0, loc), got)

	assert.True(t, finvizTimestamp("09:00AM", time.Time{}, today, loc).IsZero(), "bare time without a previous date")

	got = finvizTimestamp("Mar-01-26", time.Time{}, today, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), got)
}

func TestGoogleFinanceStructuredRow(t *testing.T) {
	u := newUpstream(t)
	u.handle("/google/quote/AAPL:NASDAQ", http.StatusOK, "text/html",
		`<table><tr><td>Revenue</td><td>94.93B</td></tr><tr><td>EBITDA<div>Earnings before interest</div></td><td>$ 32.50B</td></tr></table>`)
	c := u.client("")

	o := c.GoogleFinanceEBITDA(context.Background(), "AAPL", "NMS")
	require.True(t, o.OK, o.Error)
	assert.InDelta(t, 3.25e10, o.Value[models.FieldEBITDA], 1e-3)
	assert.Contains(t, o.SourceURL, "/google/quote/AAPL:NASDAQ")
	assert.Equal(t, []string{"/google/quote/AAPL:NASDAQ"}, u.requested())
}

func TestGoogleFinancePatternFallback(t *testing.T) {
	u := newUpstream(t)
	u.handle("/google/quote/AAPL:NYSE", http.StatusOK, "text/html", `<div>No financials</div>`)
	u.handle("/google/quote/AAPL:NASDAQ", http.StatusOK, "text/html", `<div class="x">EBITDA</div><div class="y">45.6M</div>`)
	c := u.client("")

	o := c.GoogleFinanceEBITDA(context.Background(), "AAPL", "NYQ")
	require.True(t, o.OK, o.Error)
	assert.InDelta(t, 4.56e7, o.Value[models.FieldEBITDA], 1e-3)
	assert.Equal(t, []string{"/google/quote/AAPL:NYSE", "/google/quote/AAPL:NASDAQ"}, u.requested())
}

func TestGoogleFinanceNotFound(t *testing.T) {
	u := newUpstream(t)
	c := u.client("")

	o := c.GoogleFinanceEBITDA(context.Background(), "ZZZZ", "")
	assert.False(t, o.OK)
	assert.False(t, o.Transient)
	assert.Equal(t, "EBITDA not found in Google Finance", o.Error)
	assert.Len(t, u.requested(), len(FallbackExchanges))
}

func TestExtractGoogleEBITDA(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
		ok   bool
	}{
		{"labeled row", `<tr><td>EBITDA</td><td>1.2B</td></tr>`, 1.2e9, true},
		{"inline text", `<span>EBITDA 987.1K</span>`, 987100, true},
		{"data attribute", `<div data-metric="EBITDA">12.5T<`, 1.25e13, true},
		{"absent", `<p>Revenue 1B</p>`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractGoogleEBITDA(tt.html)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-3)
		})
	}
}

func TestKnowTheFloat(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
	}{
		{"labeled cell", `<table><tr><td>Float:</td><td>15.2M</td></tr></table>`, 1.52e7},
		{"definition list", `<dl><dt>Float</dt><dd>850K</dd></dl>`, 850000},
		{"free text", `<p>Public Float: 3,400,000 shares</p>`, 3.4e6},
		{"free text suffix", `<p>Float : 2.5 m</p>`, 2.5e6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t)
			u.handle("/ktf/stock/aapl.htm", http.StatusOK, "text/html", tt.html)
			c := u.client("")

			o := c.KnowTheFloat(context.Background(), "AAPL")
			require.True(t, o.OK, o.Error)
			assert.InDelta(t, tt.want, o.Value[models.FieldFloat], 1e-3)
		})
	}
}

func TestKnowTheFloatFailures(t *testing.T) {
	u := newUpstream(t)
	u.handle("/ktf/stock/gone.htm", http.StatusNotFound, "text/html", `nope`)
	u.handle("/ktf/stock/blank.htm", http.StatusOK, "text/html", `<p>nothing here</p>`)
	c := u.client("")

	o := c.KnowTheFloat(context.Background(), "GONE")
	assert.False(t, o.OK)
	assert.Equal(t, "HTTP 404", o.Error)

	o = c.KnowTheFloat(context.Background(), "BLANK")
	assert.False(t, o.OK)
	assert.Equal(t, "Float not found in page", o.Error)
}

func TestDilutionTracker(t *testing.T) {
	u := newUpstream(t)
	u.handle("/dt/app/search/ACME", http.StatusOK, "text/html", `<html><head><script>var x = "ATM offering hidden in script.";</script></head><body>
<p>The company has an active ATM offering of up to $50 million.</p>
<p>A shelf registration was filed in 2024 for $200M.</p>
<div>Shares outstanding: 12.5M</div>
<div>Authorized shares: 500M</div>
</body></html>`)
	c := u.client("")

	o := c.DilutionTracker(context.Background(), "ACME")
	require.True(t, o.OK, o.Error)
	assert.Equal(t,
		"ATM offering of up to $50 million. | shelf registration was filed in 2024 for $200M. | Shares outstanding: 12.5M",
		o.Value[models.FieldDilution])
}

func TestDilutionTrackerNoData(t *testing.T) {
	u := newUpstream(t)
	u.handle("/dt/app/search/ACME", http.StatusOK, "text/html", `<html><body>Sign in to continue</body></html>`)
	c := u.client("")

	o := c.DilutionTracker(context.Background(), "ACME")
	assert.False(t, o.OK)
	assert.Equal(t, "No dilution data found (may require subscription)", o.Error)
}

func TestDilutionSnippetsDedup(t *testing.T) {
	text := "Shares outstanding: 1.5M and later Shares outstanding: 1.5M again."
	assert.Equal(t, "Shares outstanding: 1.5M", dilutionSnippets(text))
	assert.Equal(t, "", dilutionSnippets("S-3 filing."))
}

const yahooRSSXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Yahoo! Finance: AAPL News</title>
<item>
  <title>Acme beats earnings!!</title>
  <link>https://finance.yahoo.com/news/a</link>
  <description>&lt;p&gt;Strong &lt;b&gt;quarter&lt;/b&gt;&lt;/p&gt;</description>
  <pubDate>Wed, 04 Mar 2026 07:00:00 -0500</pubDate>
</item>
<item>
  <title>   </title>
  <link>https://finance.yahoo.com/news/blank</link>
</item>
<item>
  <title>Acme undated note</title>
  <link>https://finance.yahoo.com/news/u</link>
</item>
</channel></rss>`

func TestYahooHeadlines(t *testing.T) {
	u := newUpstream(t)
	u.handle("/rss", http.StatusOK, "application/rss+xml", yahooRSSXML)
	c := u.client("")

	o := c.YahooHeadlines(context.Background(), "AAPL")
	require.True(t, o.OK, o.Error)
	require.Len(t, o.Value, 2)

	first := o.Value[0]
	assert.Equal(t, "Acme beats earnings!!", first.Title)
	assert.Equal(t, "Yahoo! Finance: AAPL News", first.Source)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Strong quarter", *first.Description)
	assert.Equal(t, "2026-03-04T12:00:00Z", *first.PublishedAt)
	assert.Nil(t, o.Value[1].PublishedAt)
}

func TestYahooHeadlinesUnreadable(t *testing.T) {
	u := newUpstream(t)
	u.handle("/rss", http.StatusOK, "text/plain", `not a feed`)
	c := u.client("")

	o := c.YahooHeadlines(context.Background(), "AAPL")
	assert.False(t, o.OK)
	assert.Contains(t, o.Error, "Yahoo RSS feed unreadable")
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "", cleanHTML(""))
	assert.Equal(t, "bold text", cleanHTML("<b>bold</b> text"))
}
