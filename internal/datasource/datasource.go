// Package datasource provides the per-upstream adapters and the aggregator
// that fans requests out to them. Adapters cover Yahoo Finance, Polygon,
// Finviz, Google Finance, KnowTheFloat and DilutionTracker. Every adapter
// returns a models.Outcome and is memoized through one of three bounded
// TTL caches.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/tickerlab/internal/config"
	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/internal/reconcile"
	"github.com/seenimoa/tickerlab/pkg/models"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// Source names used as keys in the merged profile side-car maps. The
// profile names are owned by reconcile, whose rules refer to them.
const (
	SourceYahoo             = reconcile.Yahoo
	SourcePolygon           = reconcile.Polygon
	SourcePolygonFinancials = reconcile.PolygonFinancials
	SourceGoogleFinance     = reconcile.GoogleFinance
	SourceFinviz            = reconcile.Finviz
	SourceKnowTheFloat      = reconcile.KnowTheFloat
	SourceDilutionTracker   = reconcile.DilutionTracker

	SourcePolygonNews = "polygonNews"
	SourceFinvizNews  = "finvizNews"
	SourceYahooRSS    = "yahooRSS"
)

// --- Sentinel errors ---

// ErrMissingCredential is returned when the Polygon API key is not configured.
var ErrMissingCredential = errors.New("POLYGON_API_KEY not configured")

// ErrNoData is returned when a provider answered but had no bars.
var ErrNoData = errors.New("no data returned")

// ErrUpstream is returned when a provider could not be reached.
var ErrUpstream = errors.New("upstream request failed")

// ErrUnexpectedShape is returned when a provider response lacks required columns.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Endpoints holds the base URL of every upstream.
type Endpoints struct {
	Yahoo           string
	YahooRSS        string
	Polygon         string
	Finviz          string
	GoogleFinance   string
	KnowTheFloat    string
	DilutionTracker string
}

// DefaultEndpoints returns the production base URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Yahoo:           "https://query1.finance.yahoo.com",
		YahooRSS:        "https://feeds.finance.yahoo.com/rss/2.0/headline",
		Polygon:         "https://api.polygon.io",
		Finviz:          "https://finviz.com",
		GoogleFinance:   "https://www.google.com/finance",
		KnowTheFloat:    "https://www.knowthefloat.com",
		DilutionTracker: "https://dilutiontracker.com",
	}
}

// Caches partitions memoized outcomes by volatility class.
type Caches struct {
	Profile  *infra.Cache // profile, news, financials, EBITDA, float, dilution
	Intraday *infra.Cache // 1-minute bars
	Daily    *infra.Cache // daily bar history
}

// DefaultCaches returns 512-entry caches with 1h, 2m and 6h TTLs.
func DefaultCaches() *Caches {
	return &Caches{
		Profile:  infra.NewCache("profile", 512, time.Hour),
		Intraday: infra.NewCache("intraday", 512, 2*time.Minute),
		Daily:    infra.NewCache("daily", 512, 6*time.Hour),
	}
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	Endpoints      Endpoints
	PolygonAPIKey  string
	PolygonTimeout time.Duration
	UserAgent      string
	APITimeout     time.Duration
	ScrapeTimeout  time.Duration
	Location       *time.Location
	HTTPClient     *http.Client
	Caches         *Caches
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Client owns the upstream adapters and their caches.
type Client struct {
	http           *infra.HTTPClient
	ep             Endpoints
	polygonKey     string
	polygonTimeout time.Duration
	apiTimeout     time.Duration
	scrapeTimeout  time.Duration
	loc            *time.Location
	caches         *Caches
	log            zerolog.Logger
	now            func() time.Time
}

// New creates a Client from opts.
func New(opts Options) *Client {
	ep := opts.Endpoints
	def := DefaultEndpoints()
	if ep.Yahoo == "" {
		ep.Yahoo = def.Yahoo
	}
	if ep.YahooRSS == "" {
		ep.YahooRSS = def.YahooRSS
	}
	if ep.Polygon == "" {
		ep.Polygon = def.Polygon
	}
	if ep.Finviz == "" {
		ep.Finviz = def.Finviz
	}
	if ep.GoogleFinance == "" {
		ep.GoogleFinance = def.GoogleFinance
	}
	if ep.KnowTheFloat == "" {
		ep.KnowTheFloat = def.KnowTheFloat
	}
	if ep.DilutionTracker == "" {
		ep.DilutionTracker = def.DilutionTracker
	}

	c := &Client{
		http:           infra.NewHTTPClient(opts.HTTPClient, opts.UserAgent),
		ep:             trimEndpoints(ep),
		polygonKey:     strings.TrimSpace(opts.PolygonAPIKey),
		polygonTimeout: opts.PolygonTimeout,
		apiTimeout:     opts.APITimeout,
		scrapeTimeout:  opts.ScrapeTimeout,
		loc:            opts.Location,
		caches:         opts.Caches,
		log:            opts.Logger,
		now:            opts.Now,
	}
	if c.apiTimeout <= 0 {
		c.apiTimeout = 15 * time.Second
	}
	if c.polygonTimeout <= 0 {
		c.polygonTimeout = c.apiTimeout
	}
	if c.scrapeTimeout <= 0 {
		c.scrapeTimeout = 20 * time.Second
	}
	if c.loc == nil {
		c.loc = utils.LoadLocation(utils.DefaultMarketTimezone)
	}
	if c.caches == nil {
		c.caches = DefaultCaches()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// NewFromConfig creates a Client wired from application config.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) *Client {
	return New(Options{
		Endpoints: Endpoints{
			Yahoo:           cfg.Sources.YahooURL,
			YahooRSS:        cfg.Sources.YahooRSSURL,
			Polygon:         cfg.Polygon.BaseURL,
			Finviz:          cfg.Sources.FinvizURL,
			GoogleFinance:   cfg.Sources.GoogleFinanceURL,
			KnowTheFloat:    cfg.Sources.KnowTheFloatURL,
			DilutionTracker: cfg.Sources.DilutionTrackerURL,
		},
		PolygonAPIKey:  cfg.Polygon.APIKey,
		PolygonTimeout: cfg.Polygon.Timeout,
		UserAgent:      cfg.Sources.UserAgent,
		APITimeout:     cfg.Sources.APITimeout,
		ScrapeTimeout:  cfg.Sources.ScrapeTimeout,
		Location:       utils.LoadLocation(cfg.Market.Timezone),
		Caches: &Caches{
			Profile:  infra.NewCache("profile", cfg.Cache.Profile.Capacity, cfg.Cache.Profile.TTL),
			Intraday: infra.NewCache("intraday", cfg.Cache.Intraday.Capacity, cfg.Cache.Intraday.TTL),
			Daily:    infra.NewCache("daily", cfg.Cache.Daily.Capacity, cfg.Cache.Daily.TTL),
		},
		Logger: log,
	})
}

// Caches exposes the cache instances, e.g. for status reporting.
func (c *Client) Caches() *Caches { return c.caches }

// Location returns the market timezone.
func (c *Client) Location() *time.Location { return c.loc }

// HasPolygonKey reports whether the Polygon credential is configured.
func (c *Client) HasPolygonKey() bool { return c.polygonKey != "" }

// --- Shared helpers ---

// memo runs fill through cache under key, storing only cacheable outcomes.
// Concurrent callers share one fill, so fill runs under a ctx detached from
// any single caller's cancellation; the adapter timeout still bounds it.
// A caller that gives up while waiting gets a transient outcome of its own.
func memo[T any](ctx context.Context, cache *infra.Cache, key string, fill func(ctx context.Context) models.Outcome[T]) models.Outcome[T] {
	shared := context.WithoutCancel(ctx)
	v, err := cache.LoadContext(ctx, key, func() (any, bool) {
		o := fill(shared)
		return o, o.Cacheable()
	})
	if err != nil {
		return models.TransientFailure[T]("", fmt.Errorf("request abandoned: %w", err))
	}
	return v.(models.Outcome[T])
}

// failFetch converts a GET error into an outcome. Status errors mean the
// round trip completed and are cacheable; anything else is transient.
func failFetch[T any](label, sourceURL string, err error) models.Outcome[T] {
	if he, ok := infra.IsHTTPStatus(err); ok {
		return models.Failure[T](models.KindFetchFailed, sourceURL, "%s status %d", label, he.StatusCode)
	}
	return models.TransientFailure[T](sourceURL, fmt.Errorf("%s request failed: %s", label, rootCause(err)))
}

// rootCause strips request URLs from transport errors so credentials in
// query strings never reach responses.
func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// logOutcome records a non-OK adapter outcome.
func (c *Client) logOutcome(source, symbol string, kind models.FailureKind, msg string) {
	ev := c.log.Debug()
	if kind == models.KindFetchFailed {
		ev = c.log.Warn()
	}
	ev.Str("source", source).
		Str("symbol", symbol).
		Str("kind", string(kind)).
		Msg(msg)
}

// observe logs o when it is not OK and returns it unchanged.
func observe[T any](c *Client, source, symbol string, o models.Outcome[T]) models.Outcome[T] {
	if !o.OK {
		c.logOutcome(source, symbol, o.Kind, o.Error)
	}
	return o
}

// errorsIsAny reports whether err matches any of targets.
func errorsIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func trimEndpoints(ep Endpoints) Endpoints {
	ep.Yahoo = strings.TrimRight(ep.Yahoo, "/")
	ep.YahooRSS = strings.TrimRight(ep.YahooRSS, "/")
	ep.Polygon = strings.TrimRight(ep.Polygon, "/")
	ep.Finviz = strings.TrimRight(ep.Finviz, "/")
	ep.GoogleFinance = strings.TrimRight(ep.GoogleFinance, "/")
	ep.KnowTheFloat = strings.TrimRight(ep.KnowTheFloat, "/")
	ep.DilutionTracker = strings.TrimRight(ep.DilutionTracker, "/")
	return ep
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
