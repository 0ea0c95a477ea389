package models

import "strings"

type Market string

const (
	MarketUS Market = "US"
	MarketAR Market = "AR"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyARS Currency = "ARS"
)

// Source tags where a result came from. UNAVAILABLE implies an empty result.
type Source string

const (
	SourceLive        Source = "LIVE"
	SourceCache       Source = "CACHE"
	SourceMock        Source = "MOCK"
	SourceUnavailable Source = "UNAVAILABLE"
)

// Range is a lookback window token. Ranking uses the subset returned by
// RankingTimeframes; detail views accept the full set.
type Range string

const (
	Range1H  Range = "1H"
	Range1D  Range = "1D"
	Range1W  Range = "1W"
	Range1M  Range = "1M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	Range1Y  Range = "1Y"
	RangeYTD Range = "YTD"
)

var detailRanges = map[Range]bool{
	Range1H: true, Range1D: true, Range1W: true, Range1M: true,
	Range3M: true, Range6M: true, Range1Y: true, RangeYTD: true,
}

var rankingTimeframes = map[Range]bool{
	Range1H: true, Range1D: true, Range1W: true, Range1M: true,
	Range3M: true, RangeYTD: true,
}

// ParseRange normalizes a range token, defaulting to 1D on anything
// unrecognized so a malformed request degrades instead of failing.
func ParseRange(s string) Range {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	if detailRanges[r] {
		return r
	}
	return Range1D
}

func IsRankingTimeframe(r Range) bool { return rankingTimeframes[r] }

// IsIntraday reports whether the range is served from intraday series
// rather than daily bars. 1D counts as intraday so a one-day sparkline
// keeps hour-level resolution instead of collapsing to two daily closes.
func (r Range) IsIntraday() bool { return r == Range1H || r == Range1D }

type SparklinePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Stock is one ranking row. Sparkline is ordered ascending by timestamp.
type Stock struct {
	ID            string           `json:"id"`
	Ticker        string           `json:"ticker"`
	CompanyName   string           `json:"companyName,omitempty"`
	Market        Market           `json:"market"`
	Price         float64          `json:"price"`
	PercentChange float64          `json:"percentChange"`
	Sparkline     []SparklinePoint `json:"sparkline"`
}

type RankingResult struct {
	Stocks []Stock `json:"stocks"`
	Source Source  `json:"source"`
	Stale  bool    `json:"stale,omitempty"`
}

type StockDetail struct {
	Ticker        string           `json:"ticker"`
	Market        Market           `json:"market"`
	Price         float64          `json:"price"`
	PercentChange float64          `json:"percentChange"`
	Series        []SparklinePoint `json:"series"`
	Range         Range            `json:"range"`
	Source        Source           `json:"source"`
	LastUpdatedAt string           `json:"lastUpdatedAt"`
}

type CompanyProfile struct {
	Ticker        string  `json:"ticker"`
	Market        Market  `json:"market"`
	CompanyName   string  `json:"companyName"`
	Description   string  `json:"description,omitempty"`
	Sector        string  `json:"sector,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	MarketCap     float64 `json:"marketCap,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	Country       string  `json:"country,omitempty"`
	Website       string  `json:"website,omitempty"`
	Source        Source  `json:"source"`
	LastUpdatedAt string  `json:"lastUpdatedAt"`
}

// NativeCurrency maps a market to the currency its prices are quoted in.
func NativeCurrency(market Market) Currency {
	if market == MarketAR {
		return CurrencyARS
	}
	return CurrencyUSD
}
