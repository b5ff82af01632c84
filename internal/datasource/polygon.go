package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

const polygonFinancialsDocs = "https://polygon.io/docs/stocks/get_vx_reference_financials"

// --- Polygon API types ---

type polygonTickerResponse struct {
	Status  string               `json:"status"`
	Results *polygonTickerResult `json:"results"`
}

type polygonTickerResult struct {
	Ticker                      string   `json:"ticker"`
	PrimaryExchange             string   `json:"primary_exchange"`
	Exchange                    string   `json:"exchange"`
	SICDescription              string   `json:"sic_description"`
	Sector                      string   `json:"sector"`
	Industry                    string   `json:"industry"`
	TotalEmployees              *int64   `json:"total_employees"`
	Locale                      string   `json:"locale"`
	MarketCap                   *float64 `json:"market_cap"`
	WeightedSharesOutstanding   *float64 `json:"weighted_shares_outstanding"`
	ShareClassSharesOutstanding *float64 `json:"share_class_shares_outstanding"`
}

type polygonFinancialsResponse struct {
	Results []struct {
		Financials struct {
			IncomeStatement map[string]struct {
				Value *float64 `json:"value"`
			} `json:"income_statement"`
		} `json:"financials"`
	} `json:"results"`
}

type polygonNewsResponse struct {
	Results []struct {
		Title        string  `json:"title"`
		Description  *string `json:"description"`
		ArticleURL   string  `json:"article_url"`
		PublishedUTC string  `json:"published_utc"`
		Publisher    *struct {
			Name string `json:"name"`
		} `json:"publisher"`
	} `json:"results"`
}

type polygonAggsResponse struct {
	Results []struct {
		T int64    `json:"t"`
		O *float64 `json:"o"`
		H *float64 `json:"h"`
		L *float64 `json:"l"`
		C *float64 `json:"c"`
		V float64  `json:"v"`
	} `json:"results"`
}

// polygonGet performs an authenticated GET. The key travels in the
// Authorization header so it never appears in URLs or error text.
func (c *Client) polygonGet(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.ep.Polygon + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.http.Get(ctx, endpoint, c.polygonTimeout, map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer " + c.polygonKey,
	})
}

// PolygonProfile fetches reference data for symbol. It returns
// ErrMissingCredential when no API key is configured.
func (c *Client) PolygonProfile(ctx context.Context, symbol string) (models.ProfileOutcome, error) {
	if !c.HasPolygonKey() {
		return models.ProfileOutcome{}, ErrMissingCredential
	}
	return memo(ctx, c.caches.Profile, infra.Key("polygon_profile", symbol), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourcePolygon, symbol, c.fetchPolygonProfile(ctx, symbol))
	}), nil
}

func (c *Client) fetchPolygonProfile(ctx context.Context, symbol string) models.ProfileOutcome {
	sourceURL := "https://polygon.io/stocks/" + url.PathEscape(symbol)
	data, err := c.polygonGet(ctx, "/v3/reference/tickers/"+url.PathEscape(symbol), nil)
	if err != nil {
		return failFetch[models.Fields]("Polygon", sourceURL, err)
	}

	var resp polygonTickerResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Results == nil {
		return models.Failure[models.Fields](models.KindNotFound, sourceURL, "Polygon results missing")
	}
	r := resp.Results

	f := models.Fields{}
	f.SetString(models.FieldExchange, coalesce(r.PrimaryExchange, r.Exchange))
	f.SetString(models.FieldSector, coalesce(r.SICDescription, r.Sector))
	f.SetString(models.FieldIndustry, r.Industry)
	f.SetString(models.FieldCountry, strings.ToUpper(r.Locale))
	if r.TotalEmployees != nil {
		f.SetInt(models.FieldEmployees, *r.TotalEmployees)
	}
	f.SetFloatPtr(models.FieldMarketCap, r.MarketCap)
	if r.WeightedSharesOutstanding != nil {
		f.SetFloatPtr(models.FieldSharesOutstanding, r.WeightedSharesOutstanding)
	} else {
		f.SetFloatPtr(models.FieldSharesOutstanding, r.ShareClassSharesOutstanding)
	}
	return models.Success(f, sourceURL)
}

// PolygonFinancials fetches the latest filing's EBITDA.
func (c *Client) PolygonFinancials(ctx context.Context, symbol string) (models.ProfileOutcome, error) {
	if !c.HasPolygonKey() {
		return models.ProfileOutcome{}, ErrMissingCredential
	}
	return memo(ctx, c.caches.Profile, infra.Key("polygon_financials", symbol), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourcePolygonFinancials, symbol, c.fetchPolygonFinancials(ctx, symbol))
	}), nil
}

func (c *Client) fetchPolygonFinancials(ctx context.Context, symbol string) models.ProfileOutcome {
	q := url.Values{}
	q.Set("ticker", symbol)
	q.Set("limit", "1")
	q.Set("sort", "filing_date")
	q.Set("order", "desc")

	data, err := c.polygonGet(ctx, "/vX/reference/financials", q)
	if err != nil {
		return failFetch[models.Fields]("Polygon financials", polygonFinancialsDocs, err)
	}

	var resp polygonFinancialsResponse
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Results) == 0 {
		return models.Failure[models.Fields](models.KindNotFound, polygonFinancialsDocs, "Polygon financials empty")
	}

	ebitda, ok := resp.Results[0].Financials.IncomeStatement["ebitda"]
	if !ok || ebitda.Value == nil {
		return models.Failure[models.Fields](models.KindNotFound, polygonFinancialsDocs, "EBITDA not available from Polygon financials")
	}
	return models.Success(models.Fields{models.FieldEBITDA: *ebitda.Value}, polygonFinancialsDocs)
}

// PolygonNews fetches the ten most recent articles for symbol.
func (c *Client) PolygonNews(ctx context.Context, symbol string) (models.NewsOutcome, error) {
	if !c.HasPolygonKey() {
		return models.NewsOutcome{}, ErrMissingCredential
	}
	return memo(ctx, c.caches.Profile, infra.Key("polygon_news", symbol), func(ctx context.Context) models.NewsOutcome {
		return observe(c, SourcePolygonNews, symbol, c.fetchPolygonNews(ctx, symbol))
	}), nil
}

func (c *Client) fetchPolygonNews(ctx context.Context, symbol string) models.NewsOutcome {
	q := url.Values{}
	q.Set("ticker", symbol)
	q.Set("limit", "10")
	q.Set("order", "desc")
	q.Set("sort", "published_utc")

	data, err := c.polygonGet(ctx, "/v2/reference/news", q)
	if err != nil {
		return failFetch[[]models.NewsItem]("Polygon news", "", err)
	}

	var resp polygonNewsResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Results == nil {
		return models.Failure[[]models.NewsItem](models.KindNotFound, "", "Polygon news results missing")
	}

	items := make([]models.NewsItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		item := models.NewsItem{
			Title:       strings.TrimSpace(r.Title),
			Description: r.Description,
			URL:         r.ArticleURL,
			Source:      "Polygon",
		}
		if r.Publisher != nil && r.Publisher.Name != "" {
			item.Source = r.Publisher.Name
		}
		if r.PublishedUTC != "" {
			pub := r.PublishedUTC
			item.PublishedAt = &pub
		}
		items = append(items, item)
	}
	return models.Success(items, "")
}

// PolygonDaily fetches adjusted daily aggregates covering months×31 days.
func (c *Client) PolygonDaily(ctx context.Context, symbol string, months int) (models.BarsOutcome, error) {
	if !c.HasPolygonKey() {
		return models.BarsOutcome{}, ErrMissingCredential
	}
	return memo(ctx, c.caches.Daily, infra.Key("polygon_daily", symbol, months), func(ctx context.Context) models.BarsOutcome {
		return observe(c, SourcePolygon, symbol, c.fetchPolygonDaily(ctx, symbol, months))
	}), nil
}

func (c *Client) fetchPolygonDaily(ctx context.Context, symbol string, months int) models.BarsOutcome {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -months*31)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), start.Format(utils.DateLayout), end.Format(utils.DateLayout))

	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("sort", "asc")
	q.Set("limit", "50000")

	data, err := c.polygonGet(ctx, path, q)
	if err != nil {
		return failFetch[[]models.DailyBar]("Polygon daily", "", err)
	}

	var resp polygonAggsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.Failure[[]models.DailyBar](models.KindNotFound, "", "Polygon daily response malformed")
	}

	bars := make([]models.DailyBar, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.O == nil || r.H == nil || r.L == nil || r.C == nil {
			continue
		}
		bars = append(bars, models.DailyBar{
			Date:   utils.FormatDate(time.UnixMilli(r.T), c.loc),
			Open:   *r.O,
			High:   *r.H,
			Low:    *r.L,
			Close:  *r.C,
			Volume: int64(r.V),
		})
	}
	if len(bars) == 0 {
		return models.Failure[[]models.DailyBar](models.KindNotFound, "", "No Polygon daily data for %s", symbol)
	}
	return models.Success(bars, "")
}
