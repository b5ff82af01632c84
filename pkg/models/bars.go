package models

// DailyBar is one trading day of OHLCV data. Series are ascending by Date.
type DailyBar struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Candle is one intraday bar keyed by unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// IntradayResponse is the body of GET /ticker/intraday.
type IntradayResponse struct {
	Symbol  string   `json:"symbol"`
	Date    string   `json:"date"`
	Count   int      `json:"count"`
	Candles []Candle `json:"candles"`
}

// GapStats summarizes how often a series gaps up and then closes red.
type GapStats struct {
	GapThresholdPercent float64 `json:"gapThresholdPercent"`
	GapsCount           int     `json:"gapsCount"`
	RedAfterGapCount    int     `json:"redAfterGapCount"`
	RedAfterGapPercent  float64 `json:"redAfterGapPercent"`
}

// GapsResponse is the body of GET /ticker/gaps.
type GapsResponse struct {
	Symbol   string `json:"symbol"`
	Months   int    `json:"months"`
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	GapStats
	Error *string `json:"error,omitempty"`
}

// BarsOutcome is the outcome of a daily-bar adapter.
type BarsOutcome = Outcome[[]DailyBar]
