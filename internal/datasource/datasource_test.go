package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/tickerlab/internal/infra"
	"github.com/seenimoa/tickerlab/internal/reconcile"
	"github.com/seenimoa/tickerlab/pkg/models"
)

// testNow is a Wednesday before the 2026 DST switch, 10:00 ET.
var testNow = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

// upstream is a fake for every provider, routed by path prefix.
type upstream struct {
	t   *testing.T
	srv *httptest.Server
	mux *http.ServeMux

	mu    sync.Mutex
	hits  map[string]int
	paths []string
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{t: t, mux: http.NewServeMux(), hits: make(map[string]int)}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		u.paths = append(u.paths, r.URL.Path)
		u.mu.Unlock()
		u.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

// handle registers body for an exact path, or for a prefix when pattern
// ends in "/".
func (u *upstream) handle(pattern string, status int, contentType, body string) {
	u.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) requested() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func (u *upstream) endpoints() Endpoints {
	base := u.srv.URL
	return Endpoints{
		Yahoo:           base + "/yahoo",
		YahooRSS:        base + "/rss",
		Polygon:         base + "/polygon",
		Finviz:          base + "/finviz",
		GoogleFinance:   base + "/google",
		KnowTheFloat:    base + "/ktf",
		DilutionTracker: base + "/dt",
	}
}

func (u *upstream) client(polygonKey string) *Client {
	return New(Options{
		Endpoints:     u.endpoints(),
		PolygonAPIKey: polygonKey,
		APITimeout:    2 * time.Second,
		ScrapeTimeout: 2 * time.Second,
		Logger:        zerolog.Nop(),
		Now:           func() time.Time { return testNow },
	})
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Options{PolygonAPIKey: "  key  "})

	assert.True(t, c.HasPolygonKey())
	assert.Equal(t, "key", c.polygonKey)
	assert.Equal(t, 15*time.Second, c.apiTimeout)
	assert.Equal(t, c.apiTimeout, c.polygonTimeout)
	assert.Equal(t, "America/New_York", c.Location().String())
	assert.Equal(t, DefaultEndpoints(), c.ep)
	require.NotNil(t, c.Caches())
	assert.Equal(t, 512, c.Caches().Profile.Capacity())
	assert.Equal(t, 2*time.Minute, c.Caches().Intraday.TTL())
	assert.Equal(t, 6*time.Hour, c.Caches().Daily.TTL())
}

func TestNewTrimsTrailingSlashes(t *testing.T) {
	c := New(Options{Endpoints: Endpoints{Polygon: "http://localhost:9/"}})
	assert.Equal(t, "http://localhost:9", c.ep.Polygon)
}

func TestMemoSkipsTransientOutcomes(t *testing.T) {
	ctx := context.Background()
	cache := infra.NewCache("test", 8, time.Minute)
	calls := 0
	fill := func(context.Context) models.Outcome[string] {
		calls++
		return models.Outcome[string]{Kind: models.KindFetchFailed, Error: "boom", Transient: true}
	}

	memo(ctx, cache, "k", fill)
	memo(ctx, cache, "k", fill)
	assert.Equal(t, 2, calls)

	ok := func(context.Context) models.Outcome[string] {
		calls++
		return models.Failure[string](models.KindFetchFailed, "", "status 404")
	}
	memo(ctx, cache, "k2", ok)
	memo(ctx, cache, "k2", ok)
	assert.Equal(t, 3, calls, "completed round trips are cached even when not OK")
}

func TestMemoFillIgnoresCallerCancellation(t *testing.T) {
	cache := infra.NewCache("test", 8, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fillErr := make(chan error, 1)
	o := memo(ctx, cache, "k", func(ctx context.Context) models.Outcome[string] {
		fillErr <- ctx.Err()
		return models.Success("v", "")
	})

	// The cancelled caller may or may not wait for the fill, but the fill
	// itself never sees the cancellation.
	if o.OK {
		assert.Equal(t, "v", o.Value)
	} else {
		assert.True(t, o.Transient)
		assert.Contains(t, o.Error, "context canceled")
	}
	assert.NoError(t, <-fillErr)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestProfileRulesNameOnlyAdapterSources(t *testing.T) {
	adapters := map[string]bool{
		SourceYahoo: true, SourcePolygon: true, SourcePolygonFinancials: true,
		SourceGoogleFinance: true, SourceFinviz: true, SourceKnowTheFloat: true,
		SourceDilutionTracker: true,
	}
	for _, rule := range reconcile.ProfileRules {
		for _, name := range rule.Sources {
			assert.True(t, adapters[name], "rule for %s names unknown source %q", rule.Field, name)
		}
	}
}

func TestFailFetch(t *testing.T) {
	status := failFetch[string]("Finviz", "https://finviz.com", &infra.ErrHTTP{StatusCode: 403})
	assert.False(t, status.OK)
	assert.False(t, status.Transient)
	assert.Equal(t, "Finviz status 403", status.Error)

	transport := failFetch[string]("Finviz", "", assert.AnError)
	assert.True(t, transport.Transient)
	assert.Contains(t, transport.Error, "Finviz request failed")
}

func TestNormalizeExchange(t *testing.T) {
	tests := []struct {
		in   string
		want Exchange
	}{
		{"NMS", ExchangeNASDAQ},
		{"NasdaqGS", ExchangeNASDAQ},
		{"XNAS", ExchangeNASDAQ},
		{"NYQ", ExchangeNYSE},
		{"nyse", ExchangeNYSE},
		{"NYSE American", ExchangeNYSEAmerican},
		{"AMEX", ExchangeNYSEAmerican},
		{"ARCX", ExchangeNYSEArca},
		{"", ExchangeUnknown},
		{"LSE", ExchangeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeExchange(tt.in))
		})
	}
}

func TestExchangeCandidates(t *testing.T) {
	assert.Equal(t, FallbackExchanges, ExchangeCandidates(""))
	assert.Equal(t, FallbackExchanges, ExchangeCandidates("NMS"))
	assert.Equal(t,
		[]Exchange{ExchangeNYSE, ExchangeNASDAQ, ExchangeNYSEAmerican},
		ExchangeCandidates("NYQ"))
	assert.Equal(t,
		[]Exchange{ExchangeNYSEArca, ExchangeNASDAQ, ExchangeNYSE, ExchangeNYSEAmerican},
		ExchangeCandidates("PCX"))
}
