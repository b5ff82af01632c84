package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/tickerlab/internal/analysis/gaps"
	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/internal/reconcile"
	"github.com/seenimoa/tickerlab/pkg/models"
)

// Aggregator fans requests out to the adapters concurrently and merges the
// outcomes.
type Aggregator struct {
	client *Client
	news   reconcile.NewsOptions
}

// NewAggregator creates an aggregator over client.
func NewAggregator(client *Client, news reconcile.NewsOptions) *Aggregator {
	if news.MaxItems <= 0 {
		news = reconcile.DefaultNewsOptions()
	}
	return &Aggregator{client: client, news: news}
}

// Client returns the underlying adapter client.
func (a *Aggregator) Client() *Client { return a.client }

// Profile fetches every profile source concurrently and merges them. The
// Google Finance EBITDA page is only fetched when the higher-priority EBITDA
// sources come up empty. Profile never fails; per-source problems are
// reported in the side-car maps.
func (a *Aggregator) Profile(ctx context.Context, symbol string) *models.Profile {
	c := a.client

	var mu sync.Mutex
	outcomes := make(map[string]models.ProfileOutcome, 6)
	put := func(name string, o models.ProfileOutcome) {
		mu.Lock()
		outcomes[name] = o
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		put(SourceYahoo, c.YahooProfile(gctx, symbol))
		return nil
	})
	g.Go(func() error {
		o, err := c.PolygonProfile(gctx, symbol)
		put(SourcePolygon, credentialed(o, err))
		return nil
	})
	g.Go(func() error {
		o, err := c.PolygonFinancials(gctx, symbol)
		put(SourcePolygonFinancials, credentialed(o, err))
		return nil
	})
	g.Go(func() error {
		put(SourceFinviz, c.FinvizProfile(gctx, symbol))
		return nil
	})
	g.Go(func() error {
		put(SourceKnowTheFloat, c.KnowTheFloat(gctx, symbol))
		return nil
	})
	g.Go(func() error {
		put(SourceDilutionTracker, c.DilutionTracker(gctx, symbol))
		return nil
	})
	_ = g.Wait()

	p := reconcile.Profile(symbol, reconcile.Inputs{
		Outcomes: outcomes,
		Deferred: map[string]reconcile.Loader{
			SourceGoogleFinance: func(merged *models.Profile) models.ProfileOutcome {
				hint := ""
				if merged.Exchange != nil {
					hint = *merged.Exchange
				}
				return c.GoogleFinanceEBITDA(ctx, symbol, hint)
			},
		},
	})

	c.log.Info().
		Str("symbol", symbol).
		Interface("provenance", p.Provenance).
		Interface("sources", p.Sources).
		Msg("ticker profile merged")
	return p
}

// News merges Polygon news with the recent-only Finviz and Yahoo RSS
// headline lists.
func (a *Aggregator) News(ctx context.Context, symbol string) models.NewsResponse {
	c := a.client

	var polygonNews, finvizNews, yahooNews models.NewsOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := c.PolygonNews(gctx, symbol)
		polygonNews = credentialed(o, err)
		return nil
	})
	g.Go(func() error {
		finvizNews = c.FinvizNews(gctx, symbol)
		return nil
	})
	g.Go(func() error {
		yahooNews = c.YahooHeadlines(gctx, symbol)
		return nil
	})
	_ = g.Wait()

	resp := reconcile.News(symbol, c.now(), a.news,
		reconcile.NewsList{Source: SourcePolygonNews, Outcome: polygonNews},
		reconcile.NewsList{Source: SourceFinvizNews, RecentOnly: true, Outcome: finvizNews},
		reconcile.NewsList{Source: SourceYahooRSS, RecentOnly: true, Outcome: yahooNews},
	)

	c.log.Info().
		Str("symbol", symbol).
		Int("polygon_count", len(polygonNews.Value)).
		Int("finviz_count", len(finvizNews.Value)).
		Int("yahoo_rss_count", len(yahooNews.Value)).
		Int("merged_count", len(resp.Items)).
		Strs("sources", resp.Sources).
		Msg("ticker news merged")
	return resp
}

// Intraday returns 1-minute candles for day. Errors wrap ErrNoData,
// ErrUpstream or ErrUnexpectedShape.
func (a *Aggregator) Intraday(ctx context.Context, symbol string, day time.Time) (*models.IntradayResponse, error) {
	return a.client.YahooIntraday(ctx, symbol, day)
}

// Gaps computes gap statistics over Yahoo daily bars, falling back to
// Polygon. Provider failure yields ok=false with zeroed statistics rather
// than an error.
func (a *Aggregator) Gaps(ctx context.Context, symbol string, months int, threshold float64) models.GapsResponse {
	c := a.client
	resp := models.GapsResponse{
		Symbol:   symbol,
		Months:   months,
		GapStats: models.GapStats{GapThresholdPercent: threshold},
	}

	provider := SourceYahoo
	bars := c.YahooDaily(ctx, symbol, months)
	if !bars.OK {
		c.log.Warn().Str("symbol", symbol).Str("detail", bars.Error).Msg("yahoo daily unavailable, trying polygon")
		yahooErr := bars.Error
		provider = SourcePolygon
		polygonBars, err := c.PolygonDaily(ctx, symbol, months)
		bars = credentialed(polygonBars, err)
		if !bars.OK {
			msg := fmt.Sprintf("Yahoo: %s; Polygon: %s", yahooErr, bars.Error)
			resp.Error = &msg
			c.log.Warn().Str("symbol", symbol).Int("months", months).Str("detail", msg).Msg("gaps unavailable")
			return resp
		}
	}

	resp.OK = true
	resp.Provider = provider
	resp.GapStats = gaps.Compute(bars.Value, threshold)

	c.log.Info().
		Str("symbol", symbol).
		Int("rows", len(bars.Value)).
		Int("gaps_count", resp.GapsCount).
		Int("red_after_gap_count", resp.RedAfterGapCount).
		Str("provider", provider).
		Msg("gap stats computed")
	return resp
}

// credentialed folds a missing-credential error into a non-OK outcome so
// it surfaces as a field-level error. Such outcomes are never cached.
func credentialed[T any](o models.Outcome[T], err error) models.Outcome[T] {
	if err == nil {
		return o
	}
	kind := models.KindFetchFailed
	if errors.Is(err, ErrMissingCredential) {
		kind = models.KindConfig
	}
	return models.Outcome[T]{Kind: kind, Error: err.Error(), Transient: true}
}

// CacheStat describes one cache instance.
type CacheStat struct {
	Name     string `json:"name"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	TTL      string `json:"ttl"`
}

// CacheStats reports occupancy of the profile, intraday and daily caches.
func (a *Aggregator) CacheStats() []CacheStat {
	caches := a.client.caches
	out := make([]CacheStat, 0, 3)
	for _, c := range []*infra.Cache{caches.Profile, caches.Intraday, caches.Daily} {
		out = append(out, CacheStat{
			Name:     c.Name(),
			Entries:  c.Len(),
			Capacity: c.Capacity(),
			TTL:      c.TTL().String(),
		})
	}
	return out
}
