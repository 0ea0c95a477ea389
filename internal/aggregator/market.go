// Package aggregator implements the Argentine market functions. The
// market service fetches quote and history for a fixed BYMA watch-list,
// maintains a persisted cache table, and answers with an explicit
// provenance label (live, cache, cache_fallback). It backs both the
// HTTP function endpoint and the scheduled background refresh.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/repository"
)

// ErrNoData means the live fetch produced nothing and the cache table is
// empty. The HTTP layer maps it to a 502.
var ErrNoData = errors.New("no market data and no cache available")

// ErrUnknownTicker rejects single-ticker requests outside the watch-list.
var ErrUnknownTicker = errors.New("ticker not in watch list")

// Request is the function input. Ticker is optional; when set the
// response carries exactly one row.
type Request struct {
	Timeframe models.Range `json:"timeframe"`
	Ticker    string       `json:"ticker,omitempty"`
}

// Result mirrors the function's wire response.
type Result struct {
	Source    string         `json:"source"`
	Stale     bool           `json:"stale,omitempty"`
	Timeframe models.Range   `json:"timeframe"`
	Stocks    []models.Stock `json:"stocks"`
	RequestID string         `json:"requestId"`
}

// QuoteClient is the market-data surface the service fetches from.
// *external.YahooClient satisfies it.
type QuoteClient interface {
	Quote(ctx context.Context, symbol string) (*external.Quote, error)
	Chart(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.SparklinePoint, error)
}

// CacheStore is the persisted market cache table.
type CacheStore interface {
	TopByTimeframe(ctx context.Context, timeframe models.Range, limit int) ([]repository.MarketRow, error)
	GetTicker(ctx context.Context, ticker string, timeframe models.Range) (*repository.MarketRow, error)
	Upsert(ctx context.Context, timeframe models.Range, stocks []models.Stock, now time.Time) error
}

type tickerFailure struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

type MarketService struct {
	quotes    QuoteClient
	store     CacheStore
	watchList []string
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewMarketService builds the aggregation service. store may be nil when
// no database is configured; caching tiers are then skipped.
func NewMarketService(quotes QuoteClient, store CacheStore, watchList []string, cacheTTL time.Duration, logger *zap.Logger, now func() time.Time) *MarketService {
	if now == nil {
		now = time.Now
	}
	return &MarketService{
		quotes:    quotes,
		store:     store,
		watchList: watchList,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       now,
	}
}

// Run executes one aggregation request: fresh cache, else live fetch
// with cache write-back, else stale cache. Every request gets an id that
// threads through the log events and the response.
func (s *MarketService) Run(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	started := s.now()

	timeframe := req.Timeframe
	if !models.IsRankingTimeframe(timeframe) {
		timeframe = models.Range1D
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker != "" && !s.inWatchList(ticker) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	log := s.logger.With(
		zap.String("requestId", requestID),
		zap.String("timeframe", string(timeframe)),
	)
	if ticker != "" {
		log = log.With(zap.String("ticker", ticker))
	}
	log.Info("argentina market request started")

	cachedRows := s.readCache(ctx, timeframe, ticker, log)
	if s.isFresh(cachedRows, ticker) {
		log.Info("argentina market request served from cache",
			zap.Int("rows", len(cachedRows)),
			zap.Duration("elapsed", s.now().Sub(started)))
		return &Result{
			Source:    "cache",
			Timeframe: timeframe,
			Stocks:    mapRows(cachedRows),
			RequestID: requestID,
		}, nil
	}

	live, failures := s.fetchLive(ctx, timeframe, ticker)
	log.Info("argentina market live fetch finished",
		zap.Int("succeeded", len(live)),
		zap.Int("failed", len(failures)),
		zap.Any("failures", failures),
		zap.Duration("elapsed", s.now().Sub(started)))

	if len(live) > 0 {
		if s.store != nil {
			if err := s.store.Upsert(ctx, timeframe, live, s.now()); err != nil {
				log.Warn("argentina market cache upsert failed", zap.Error(err))
			}
		}
		log.Info("argentina market request completed",
			zap.String("source", "live"),
			zap.Duration("elapsed", s.now().Sub(started)))
		return &Result{
			Source:    "live",
			Timeframe: timeframe,
			Stocks:    live,
			RequestID: requestID,
		}, nil
	}

	if len(cachedRows) > 0 {
		log.Warn("argentina market live fetch empty, serving stale cache",
			zap.Duration("elapsed", s.now().Sub(started)))
		return &Result{
			Source:    "cache_fallback",
			Stale:     true,
			Timeframe: timeframe,
			Stocks:    mapRows(cachedRows),
			RequestID: requestID,
		}, nil
	}

	log.Error("argentina market request failed",
		zap.Duration("elapsed", s.now().Sub(started)))
	return nil, ErrNoData
}

func (s *MarketService) inWatchList(ticker string) bool {
	for _, t := range s.watchList {
		if t == ticker {
			return true
		}
	}
	return false
}

func (s *MarketService) readCache(ctx context.Context, timeframe models.Range, ticker string, log *zap.Logger) []repository.MarketRow {
	if s.store == nil {
		return nil
	}
	if ticker != "" {
		row, err := s.store.GetTicker(ctx, ticker, timeframe)
		if err != nil {
			log.Warn("argentina market cache read failed", zap.Error(err))
			return nil
		}
		if row == nil {
			return nil
		}
		return []repository.MarketRow{*row}
	}

	rows, err := s.store.TopByTimeframe(ctx, timeframe, 10)
	if err != nil {
		log.Warn("argentina market cache read failed", zap.Error(err))
		return nil
	}
	log.Info("argentina market cache read", zap.Int("rows", len(rows)))
	return rows
}

// isFresh requires every row within the TTL, and for list requests a
// minimum of 5 rows so a near-empty cache does not mask a live fetch.
func (s *MarketService) isFresh(rows []repository.MarketRow, ticker string) bool {
	minRows := 5
	if ticker != "" {
		minRows = 1
	}
	if len(rows) < minRows {
		return false
	}
	now := s.now()
	for _, row := range rows {
		if now.Sub(row.CachedAt) > s.cacheTTL {
			return false
		}
	}
	return true
}

func (s *MarketService) fetchLive(ctx context.Context, timeframe models.Range, ticker string) ([]models.Stock, []tickerFailure) {
	tickers := s.watchList
	if ticker != "" {
		tickers = []string{ticker}
	}

	type outcome struct {
		stock models.Stock
		fail  *tickerFailure
	}
	outcomes := make([]outcome, len(tickers))

	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			stock, err := s.fetchTicker(ctx, t, timeframe)
			if err != nil {
				outcomes[i] = outcome{fail: &tickerFailure{Ticker: t, Reason: err.Error()}}
				return
			}
			outcomes[i] = outcome{stock: stock}
		}(i, t)
	}
	wg.Wait()

	var (
		stocks   []models.Stock
		failures []tickerFailure
	)
	for _, o := range outcomes {
		if o.fail != nil {
			failures = append(failures, *o.fail)
			continue
		}
		stocks = append(stocks, o.stock)
	}
	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].PercentChange > stocks[j].PercentChange
	})
	if len(stocks) > 10 {
		stocks = stocks[:10]
	}
	return stocks, failures
}

func (s *MarketService) fetchTicker(ctx context.Context, ticker string, timeframe models.Range) (models.Stock, error) {
	symbol := ticker + ".BA"

	quote, err := s.quotes.Quote(ctx, symbol)
	if err != nil {
		return models.Stock{}, fmt.Errorf("quote: %w", err)
	}
	price, ok := quote.BestPrice()
	if !ok {
		return models.Stock{}, errors.New("no usable price in quote")
	}

	history, err := s.quotes.Chart(ctx, symbol, s.startDate(timeframe), s.now(), chartInterval(timeframe))
	if err != nil {
		return models.Stock{}, fmt.Errorf("chart: %w", err)
	}

	sparkline := history
	if len(sparkline) == 0 {
		sparkline = []models.SparklinePoint{{Timestamp: s.now().UnixMilli(), Value: price}}
	}

	var percentChange float64
	switch {
	case timeframe == models.Range1D && finitePercent(quote.RegularMarketChangePercent):
		percentChange = *quote.RegularMarketChangePercent
	case timeframe == models.Range1H:
		percentChange = oneHourPercent(history, price)
	default:
		percentChange = percentFromHistory(history, price)
	}

	return models.Stock{
		ID:            ticker,
		Ticker:        ticker,
		CompanyName:   quote.CompanyName(),
		Market:        models.MarketAR,
		Price:         price,
		PercentChange: percentChange,
		Sparkline:     sparkline,
	}, nil
}

// startDate deliberately over-fetches the shorter ranges so weekends and
// holidays still leave enough bars to compute a change from.
func (s *MarketService) startDate(timeframe models.Range) time.Time {
	now := s.now()
	switch timeframe {
	case models.Range1H:
		return now.AddDate(0, 0, -1)
	case models.Range1D:
		return now.AddDate(0, 0, -7)
	case models.Range1W:
		return now.AddDate(0, 0, -21)
	case models.Range1M, models.Range3M:
		return now.AddDate(0, -3, 0)
	case models.RangeYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	}
	return now.AddDate(0, 0, -7)
}

func chartInterval(timeframe models.Range) string {
	switch timeframe {
	case models.Range1H:
		return "5m"
	case models.RangeYTD:
		return "1wk"
	}
	return "1d"
}

// percentFromHistory measures the current price against the earliest
// positive close in the fetched window. Degenerate inputs yield 0.
func percentFromHistory(history []models.SparklinePoint, currentPrice float64) float64 {
	for _, point := range history {
		if point.Value > 0 {
			return ((currentPrice - point.Value) / point.Value) * 100
		}
	}
	return 0
}

// oneHourPercent walks back to the last bar at least an hour behind the
// latest one and measures against it, falling back to the first bar when
// the series is shorter than an hour.
func oneHourPercent(history []models.SparklinePoint, currentPrice float64) float64 {
	if len(history) == 0 {
		return 0
	}
	latest := history[len(history)-1]
	target := latest.Timestamp - time.Hour.Milliseconds()

	baseline := history[0]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Timestamp <= target {
			baseline = history[i]
			break
		}
	}
	if baseline.Value <= 0 {
		return 0
	}
	return ((currentPrice - baseline.Value) / baseline.Value) * 100
}

func finitePercent(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func mapRows(rows []repository.MarketRow) []models.Stock {
	stocks := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		stocks = append(stocks, row.Stock())
	}
	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].PercentChange > stocks[j].PercentChange
	})
	if len(stocks) > 10 {
		stocks = stocks[:10]
	}
	return stocks
}
