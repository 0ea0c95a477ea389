package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// MarketCacheRepo persists AR ranking rows keyed by (ticker, timeframe).
// The aggregation pipeline writes it on every successful live fetch; both
// the aggregator and the client-side ranking fallback read it.
type MarketCacheRepo struct {
	pool *pgxpool.Pool
}

func NewMarketCacheRepo(pool *pgxpool.Pool) *MarketCacheRepo {
	return &MarketCacheRepo{pool: pool}
}

type MarketRow struct {
	Ticker        string
	Timeframe     models.Range
	Price         float64
	PercentChange float64
	Sparkline     []models.SparklinePoint
	CachedAt      time.Time
}

// Stock converts a cache row back into a ranking row.
func (r MarketRow) Stock() models.Stock {
	return models.Stock{
		ID:            r.Ticker,
		Ticker:        r.Ticker,
		Market:        models.MarketAR,
		Price:         r.Price,
		PercentChange: r.PercentChange,
		Sparkline:     r.Sparkline,
	}
}

// TopByTimeframe reads the cached rows for a timeframe ordered by percent
// change descending, limited to limit.
func (r *MarketCacheRepo) TopByTimeframe(ctx context.Context, timeframe models.Range, limit int) ([]MarketRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ticker, timeframe, price, percent_change, sparkline, cached_at
		 FROM argentina_market_cache
		 WHERE timeframe = $1
		 ORDER BY percent_change DESC
		 LIMIT $2`,
		string(timeframe), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMarketRows(rows)
}

// GetTicker reads a single cached row, or nil when absent.
func (r *MarketCacheRepo) GetTicker(ctx context.Context, ticker string, timeframe models.Range) (*MarketRow, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT ticker, timeframe, price, percent_change, sparkline, cached_at
		 FROM argentina_market_cache
		 WHERE ticker = $1 AND timeframe = $2`,
		ticker, string(timeframe),
	)
	m, err := scanMarketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// Upsert writes the latest live rows for a timeframe, replacing any prior
// entry per (ticker, timeframe).
func (r *MarketCacheRepo) Upsert(ctx context.Context, timeframe models.Range, stocks []models.Stock, now time.Time) error {
	for _, stock := range stocks {
		sparkline, err := json.Marshal(stock.Sparkline)
		if err != nil {
			return fmt.Errorf("marshal sparkline for %s: %w", stock.Ticker, err)
		}
		_, err = r.pool.Exec(ctx,
			`INSERT INTO argentina_market_cache
			   (ticker, ticker_yahoo, timeframe, market, price, percent_change, sparkline, source, cached_at, updated_at)
			 VALUES ($1, $2, $3, 'AR', $4, $5, $6, 'yahoo', $7, $7)
			 ON CONFLICT (ticker, timeframe) DO UPDATE SET
			   price = EXCLUDED.price,
			   percent_change = EXCLUDED.percent_change,
			   sparkline = EXCLUDED.sparkline,
			   cached_at = EXCLUDED.cached_at,
			   updated_at = EXCLUDED.updated_at`,
			stock.Ticker, stock.Ticker+".BA", string(timeframe),
			stock.Price, stock.PercentChange, sparkline, now,
		)
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", stock.Ticker, timeframe, err)
		}
	}
	return nil
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanMarketRow(row scannable) (*MarketRow, error) {
	var m MarketRow
	var timeframe string
	var sparkline []byte
	if err := row.Scan(&m.Ticker, &timeframe, &m.Price, &m.PercentChange, &sparkline, &m.CachedAt); err != nil {
		return nil, err
	}
	m.Timeframe = models.Range(timeframe)
	if len(sparkline) > 0 {
		// A corrupt sparkline column degrades to an empty line, not an error.
		_ = json.Unmarshal(sparkline, &m.Sparkline)
	}
	return &m, nil
}

func collectMarketRows(rows pgx.Rows) ([]MarketRow, error) {
	var out []MarketRow
	for rows.Next() {
		m, err := scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
