package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// ProfileCacheRepo persists AR company profiles keyed by ticker.
type ProfileCacheRepo struct {
	pool *pgxpool.Pool
}

func NewProfileCacheRepo(pool *pgxpool.Pool) *ProfileCacheRepo {
	return &ProfileCacheRepo{pool: pool}
}

type ProfileRow struct {
	Ticker      string
	CompanyName string
	Description sql.NullString
	Sector      sql.NullString
	Industry    sql.NullString
	MarketCap   sql.NullFloat64
	Exchange    sql.NullString
	Country     sql.NullString
	Website     sql.NullString
	CachedAt    time.Time
	UpdatedAt   time.Time
}

// Profile converts a cache row into the wire shape. Blank columns stay
// absent rather than becoming empty strings.
func (r ProfileRow) Profile() models.CompanyProfile {
	return models.CompanyProfile{
		Ticker:        r.Ticker,
		Market:        models.MarketAR,
		CompanyName:   r.CompanyName,
		Description:   r.Description.String,
		Sector:        r.Sector.String,
		Industry:      r.Industry.String,
		MarketCap:     r.MarketCap.Float64,
		Exchange:      r.Exchange.String,
		Country:       r.Country.String,
		Website:       r.Website.String,
		LastUpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (r *ProfileCacheRepo) Get(ctx context.Context, ticker string) (*ProfileRow, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT ticker, company_name, description, sector, industry, market_cap,
		        exchange, country, website, cached_at, updated_at
		 FROM argentina_company_profile_cache
		 WHERE ticker = $1`,
		ticker,
	)

	var p ProfileRow
	err := row.Scan(&p.Ticker, &p.CompanyName, &p.Description, &p.Sector, &p.Industry,
		&p.MarketCap, &p.Exchange, &p.Country, &p.Website, &p.CachedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileCacheRepo) Upsert(ctx context.Context, profile models.CompanyProfile, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO argentina_company_profile_cache
		   (ticker, ticker_yahoo, market, company_name, description, sector, industry,
		    market_cap, exchange, country, website, source, cached_at, updated_at)
		 VALUES ($1, $2, 'AR', $3, $4, $5, $6, $7, $8, $9, $10, 'yahoo', $11, $11)
		 ON CONFLICT (ticker) DO UPDATE SET
		   company_name = EXCLUDED.company_name,
		   description = EXCLUDED.description,
		   sector = EXCLUDED.sector,
		   industry = EXCLUDED.industry,
		   market_cap = EXCLUDED.market_cap,
		   exchange = EXCLUDED.exchange,
		   country = EXCLUDED.country,
		   website = EXCLUDED.website,
		   cached_at = EXCLUDED.cached_at,
		   updated_at = EXCLUDED.updated_at`,
		profile.Ticker, profile.Ticker+".BA", profile.CompanyName,
		nullStr(profile.Description), nullStr(profile.Sector), nullStr(profile.Industry),
		nullFloat(profile.MarketCap), nullStr(profile.Exchange), nullStr(profile.Country),
		nullStr(profile.Website), now,
	)
	return err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f > 0}
}
