package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fields ──

func TestFieldsAccessors(t *testing.T) {
	f := Fields{}
	f.SetString(FieldSector, "  Technology ")
	f.SetString(FieldIndustry, "   ")
	f.SetFloat(FieldMarketCap, 2.5e12)
	f.SetInt(FieldEmployees, 161000)
	f.SetFloatPtr(FieldEBITDA, nil)

	s, ok := f.String(FieldSector)
	assert.True(t, ok)
	assert.Equal(t, "Technology", s)

	assert.False(t, f.Has(FieldIndustry), "blank strings are not stored")
	assert.False(t, f.Has(FieldEBITDA), "nil pointers are not stored")

	n, ok := f.Number(FieldMarketCap)
	assert.True(t, ok)
	assert.Equal(t, 2.5e12, n)

	n, ok = f.Number(FieldEmployees)
	assert.True(t, ok)
	assert.Equal(t, 161000.0, n)

	_, ok = f.Number(FieldSector)
	assert.False(t, ok, "strings are not numbers")
	assert.False(t, f.Empty())
}

func TestFieldsEmpty(t *testing.T) {
	assert.True(t, Fields{}.Empty())
	assert.True(t, Fields{FieldSector: "", FieldExchange: nil}.Empty())

	var nilFields Fields
	assert.True(t, nilFields.Empty())
	assert.False(t, nilFields.Has(FieldSector))
}

// ── Profile ──

func TestProfileSet(t *testing.T) {
	p := NewProfile("AAPL")

	assert.True(t, p.Set(FieldExchange, "NASDAQ"))
	assert.True(t, p.Set(FieldMarketCap, 3.1e12))
	assert.True(t, p.Set(FieldEmployees, int64(161000)))
	assert.True(t, p.Set(FieldEmployees, 150000.0))
	assert.True(t, p.Set(FieldFloat, int64(15_000_000)))

	assert.False(t, p.Set(FieldSector, 42.0), "wrong type is rejected")
	assert.False(t, p.Set(FieldMarketCap, "big"), "wrong type is rejected")
	assert.False(t, p.Set(FieldCountry, " "), "blank is rejected")

	require.NotNil(t, p.Exchange)
	assert.Equal(t, "NASDAQ", *p.Exchange)
	require.NotNil(t, p.Employees)
	assert.Equal(t, int64(150000), *p.Employees)
	require.NotNil(t, p.Float)
	assert.Equal(t, 15e6, *p.Float)

	assert.True(t, p.Has(FieldExchange))
	assert.False(t, p.Has(FieldSector))
	assert.False(t, p.Has(FieldCountry))
}

func TestProfileJSONNullFields(t *testing.T) {
	p := NewProfile("BRK.B")
	p.Set(FieldSector, "Financial")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "BRK.B", raw["symbol"])
	assert.Equal(t, "Financial", raw["sector"])
	assert.Contains(t, raw, "ebitda")
	assert.Nil(t, raw["ebitda"], "unset fields serialize as null")
	assert.Contains(t, raw, "sourceUrls")
	assert.Contains(t, raw, "shortInterestPercent")
}

// ── Outcome ──

func TestOutcomeConstructors(t *testing.T) {
	ok := Success(Fields{FieldSector: "Energy"}, "https://example.com/x")
	assert.True(t, ok.OK)
	assert.True(t, ok.Cacheable())
	assert.Empty(t, ok.Error)

	nf := Failure[Fields](KindNotFound, "https://example.com/y", "EBITDA not found in %s", "page")
	assert.False(t, nf.OK)
	assert.Equal(t, "EBITDA not found in page", nf.Error)
	assert.Equal(t, KindNotFound, nf.Kind)
	assert.True(t, nf.Cacheable(), "completed calls are cacheable even when not OK")

	tr := TransientFailure[Fields]("https://example.com/z", errors.New("dial tcp: timeout"))
	assert.False(t, tr.OK)
	assert.False(t, tr.Cacheable())
	assert.Equal(t, KindFetchFailed, tr.Kind)
}

func TestNewsItemSortKey(t *testing.T) {
	ts := "2026-02-20T14:30:00Z"
	assert.Equal(t, ts, NewsItem{PublishedAt: &ts}.SortKey())
	assert.Equal(t, "", NewsItem{}.SortKey())
}

func TestGapsResponseFlattensStats(t *testing.T) {
	r := GapsResponse{
		Symbol: "XYZ",
		Months: 9,
		OK:     true,
		GapStats: GapStats{
			GapThresholdPercent: 24,
			GapsCount:           3,
		},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 3.0, raw["gapsCount"])
	assert.Equal(t, 24.0, raw["gapThresholdPercent"])
	assert.NotContains(t, raw, "error")
	assert.NotContains(t, raw, "provider")
}
