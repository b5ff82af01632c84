package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// errYahooEmpty is the rate-limit guard message.
const errYahooEmpty = "Yahoo returned empty profile (possible rate limit)"

// yahooTrackedFields are the profile fields the rate-limit guard inspects.
var yahooTrackedFields = []models.Field{
	models.FieldExchange,
	models.FieldSector,
	models.FieldIndustry,
	models.FieldEmployees,
	models.FieldCountry,
	models.FieldMarketCap,
	models.FieldEBITDA,
	models.FieldShortInterest,
}

// --- Yahoo Finance API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeName         string `json:"exchangeName"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []yfSummaryResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"quoteSummary"`
}

type yfSummaryResult struct {
	AssetProfile         *yfAssetProfile `json:"assetProfile"`
	SummaryProfile       *yfAssetProfile `json:"summaryProfile"`
	Price                *yfPrice        `json:"price"`
	SummaryDetail        *yfDetail       `json:"summaryDetail"`
	DefaultKeyStatistics *yfKeyStats     `json:"defaultKeyStatistics"`
	FinancialData        *yfFinancial    `json:"financialData"`
}

type yfAssetProfile struct {
	Sector            string `json:"sector"`
	Industry          string `json:"industry"`
	Country           string `json:"country"`
	FullTimeEmployees *int64 `json:"fullTimeEmployees"`
}

type yfPrice struct {
	Exchange     string   `json:"exchange"`
	ExchangeName string   `json:"exchangeName"`
	MarketCap    yfFinVal `json:"marketCap"`
}

type yfDetail struct {
	MarketCap yfFinVal `json:"marketCap"`
}

type yfKeyStats struct {
	ShortPercentOfFloat yfFinVal `json:"shortPercentOfFloat"`
	FloatShares         yfFinVal `json:"floatShares"`
	SharesOutstanding   yfFinVal `json:"sharesOutstanding"`
}

type yfFinancial struct {
	Ebitda yfFinVal `json:"ebitda"`
}

// yfFinVal is Yahoo's {raw, fmt} number wrapper; Raw is nil when Yahoo
// sends an empty object.
type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Profile ---

// YahooProfile fetches the quoteSummary profile for symbol. A 200 response
// with every tracked field empty is treated as a rate-limit signal: the
// outcome is not OK and is never cached.
func (c *Client) YahooProfile(ctx context.Context, symbol string) models.ProfileOutcome {
	return memo(ctx, c.caches.Profile, infra.Key("yahoo_profile", symbol), func(ctx context.Context) models.ProfileOutcome {
		return observe(c, SourceYahoo, symbol, c.fetchYahooProfile(ctx, symbol))
	})
}

func (c *Client) fetchYahooProfile(ctx context.Context, symbol string) models.ProfileOutcome {
	modules := "assetProfile,summaryProfile,price,summaryDetail,defaultKeyStatistics,financialData"
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", c.ep.Yahoo, url.PathEscape(symbol), modules)
	sourceURL := "https://finance.yahoo.com/quote/" + url.PathEscape(symbol)

	data, err := c.http.Get(ctx, endpoint, c.apiTimeout, map[string]string{"Accept": "application/json"})
	if err != nil {
		return failFetch[models.Fields]("Yahoo", sourceURL, err)
	}

	var resp yfSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.Failure[models.Fields](models.KindNotFound, sourceURL, "Yahoo response malformed: %v", err)
	}
	if resp.QuoteSummary.Error != nil {
		return models.Failure[models.Fields](models.KindNotFound, sourceURL, "Yahoo error: %s", resp.QuoteSummary.Error.Description)
	}

	fields := models.Fields{}
	if len(resp.QuoteSummary.Result) > 0 {
		fields = yahooFields(resp.QuoteSummary.Result[0])
	}

	// Rate-limit guard: never cache an all-empty profile.
	if !anyTracked(fields) {
		o := models.Failure[models.Fields](models.KindEmpty, sourceURL, errYahooEmpty)
		o.Transient = true
		return o
	}
	return models.Success(fields, sourceURL)
}

func yahooFields(r yfSummaryResult) models.Fields {
	f := models.Fields{}

	profile := r.AssetProfile
	if profile == nil {
		profile = r.SummaryProfile
	}
	if profile != nil {
		f.SetString(models.FieldSector, profile.Sector)
		f.SetString(models.FieldIndustry, profile.Industry)
		f.SetString(models.FieldCountry, profile.Country)
		if profile.FullTimeEmployees != nil {
			f.SetInt(models.FieldEmployees, *profile.FullTimeEmployees)
		}
	}

	if r.Price != nil {
		f.SetString(models.FieldExchange, coalesce(r.Price.Exchange, r.Price.ExchangeName))
		f.SetFloatPtr(models.FieldMarketCap, r.Price.MarketCap.Raw)
	}
	if !f.Has(models.FieldMarketCap) && r.SummaryDetail != nil {
		f.SetFloatPtr(models.FieldMarketCap, r.SummaryDetail.MarketCap.Raw)
	}
	if r.FinancialData != nil {
		f.SetFloatPtr(models.FieldEBITDA, r.FinancialData.Ebitda.Raw)
	}
	if ks := r.DefaultKeyStatistics; ks != nil {
		if ks.ShortPercentOfFloat.Raw != nil {
			spof := *ks.ShortPercentOfFloat.Raw
			if spof <= 1 {
				spof *= 100
			}
			f.SetFloat(models.FieldShortInterest, utils.Round(spof, 4))
		}
		f.SetFloatPtr(models.FieldSharesOutstanding, ks.SharesOutstanding.Raw)
	}
	return f
}

func anyTracked(f models.Fields) bool {
	for _, k := range yahooTrackedFields {
		if f.Has(k) {
			return true
		}
	}
	return false
}

// --- Bars ---

// YahooDaily returns daily bars covering the last months×31 days.
func (c *Client) YahooDaily(ctx context.Context, symbol string, months int) models.BarsOutcome {
	return memo(ctx, c.caches.Daily, infra.Key("yahoo_daily", symbol, months), func(ctx context.Context) models.BarsOutcome {
		return observe(c, SourceYahoo, symbol, c.fetchYahooDaily(ctx, symbol, months))
	})
}

func (c *Client) fetchYahooDaily(ctx context.Context, symbol string, months int) models.BarsOutcome {
	end := c.now().AddDate(0, 0, 1)
	start := c.now().AddDate(0, 0, -months*31)
	endpoint := c.chartURL(symbol, start, end, "1d")
	sourceURL := "https://finance.yahoo.com/quote/" + url.PathEscape(symbol) + "/history"

	result, err := c.fetchChart(ctx, endpoint)
	if err != nil {
		if he, ok := infra.IsHTTPStatus(err); ok {
			return models.Failure[[]models.DailyBar](models.KindFetchFailed, sourceURL, "Yahoo status %d", he.StatusCode)
		}
		if errorsIsAny(err, ErrNoData, ErrUnexpectedShape) {
			return models.Failure[[]models.DailyBar](models.KindNotFound, sourceURL, "Yahoo daily: %v", err)
		}
		return models.TransientFailure[[]models.DailyBar](sourceURL, fmt.Errorf("Yahoo daily request failed: %s", rootCause(err)))
	}

	bars := dailyBarsFromChart(result, c.loc)
	if len(bars) == 0 {
		return models.Failure[[]models.DailyBar](models.KindNotFound, sourceURL, "Yahoo returned no daily data")
	}
	return models.Success(bars, sourceURL)
}

// YahooIntraday returns 1-minute candles for the calendar day containing
// day in the market timezone. Only successful results are cached. Errors
// wrap ErrNoData, ErrUpstream or ErrUnexpectedShape.
func (c *Client) YahooIntraday(ctx context.Context, symbol string, day time.Time) (*models.IntradayResponse, error) {
	date := utils.FormatDate(day, c.loc)
	key := infra.Key("yahoo_intraday", symbol, date)
	if cached, ok := c.caches.Intraday.Get(key); ok {
		return cached.(*models.IntradayResponse), nil
	}

	start, end := utils.DayBounds(day, c.loc)
	result, err := c.fetchChart(ctx, c.chartURL(symbol, start, end, "1m"))
	if err != nil {
		if he, ok := infra.IsHTTPStatus(err); ok {
			if he.StatusCode >= 500 {
				err = fmt.Errorf("%w: Yahoo status %d", ErrUpstream, he.StatusCode)
			} else {
				err = fmt.Errorf("%w: Yahoo status %d", ErrNoData, he.StatusCode)
			}
		} else if !errorsIsAny(err, ErrNoData, ErrUnexpectedShape) {
			err = fmt.Errorf("%w: %s", ErrUpstream, rootCause(err))
		}
		c.logOutcome(SourceYahoo, symbol, models.KindFetchFailed, err.Error())
		return nil, err
	}

	candles, err := candlesFromChart(result)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w for %s on %s", ErrNoData, symbol, date)
	}

	resp := &models.IntradayResponse{
		Symbol:  symbol,
		Date:    date,
		Count:   len(candles),
		Candles: candles,
	}
	c.caches.Intraday.Set(key, resp)
	return resp, nil
}

func (c *Client) chartURL(symbol string, from, to time.Time, interval string) string {
	return fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&includePrePost=true&events=history",
		c.ep.Yahoo, url.PathEscape(symbol), from.Unix(), to.Unix(), interval,
	)
}

// fetchChart downloads and decodes one chart result. A body that does not
// decode is ErrUnexpectedShape; an empty result is ErrNoData.
func (c *Client) fetchChart(ctx context.Context, endpoint string) (*yfChartResult, error) {
	data, err := c.http.Get(ctx, endpoint, c.apiTimeout, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse chart: %v", ErrUnexpectedShape, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoData
	}
	return &resp.Chart.Result[0], nil
}

func candlesFromChart(result *yfChartResult) ([]models.Candle, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: missing OHLC columns", ErrUnexpectedShape)
	}
	q := result.Indicators.Quote[0]
	if q.Open == nil || q.High == nil || q.Low == nil || q.Close == nil {
		return nil, fmt.Errorf("%w: missing OHLC columns", ErrUnexpectedShape)
	}

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl, ok := ohlcAt(q, i)
		if !ok {
			continue
		}
		candles = append(candles, models.Candle{
			Time:   ts,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: volumeAt(q, i),
		})
	}
	return candles, nil
}

func dailyBarsFromChart(result *yfChartResult, loc *time.Location) []models.DailyBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]

	bars := make([]models.DailyBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl, ok := ohlcAt(q, i)
		if !ok {
			continue
		}
		bars = append(bars, models.DailyBar{
			Date:   utils.FormatDate(time.Unix(ts, 0), loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: volumeAt(q, i),
		})
	}
	return bars
}

// ohlcAt returns the bar at i, or ok=false when any price is missing.
func ohlcAt(q yfOHLCV, i int) (o, h, l, c float64, ok bool) {
	at := func(s []*float64) (float64, bool) {
		if i >= len(s) || s[i] == nil {
			return 0, false
		}
		return *s[i], true
	}
	var okO, okH, okL, okC bool
	o, okO = at(q.Open)
	h, okH = at(q.High)
	l, okL = at(q.Low)
	c, okC = at(q.Close)
	return o, h, l, c, okO && okH && okL && okC
}

func volumeAt(q yfOHLCV, i int) int64 {
	if i >= len(q.Volume) || q.Volume[i] == nil {
		return 0
	}
	return int64(*q.Volume[i])
}
