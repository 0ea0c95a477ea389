package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/api"
	"github.com/alzas-app/alzas-backend/internal/config"
	"github.com/alzas-app/alzas-backend/internal/db"
	"github.com/alzas-app/alzas-backend/internal/detail"
	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/logging"
	"github.com/alzas-app/alzas-backend/internal/names"
	"github.com/alzas-app/alzas-backend/internal/profile"
	"github.com/alzas-app/alzas-backend/internal/ranking"
	"github.com/alzas-app/alzas-backend/internal/repository"
	"github.com/alzas-app/alzas-backend/internal/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
)

const banner = `
╔══════════════════════════════════════╗
║      ALZAS Market Backend v0.3       ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	logger := logging.New(cfg.Debug)
	defer logger.Sync()

	// Persisted cache store. Missing or unreachable means the cache
	// tiers are skipped, not a fatal error.
	var pool *pgxpool.Pool
	if cfg.DBConfigured() {
		pool, err = db.Connect(cfg.DSN())
		if err != nil {
			logger.Warn("cache store unavailable, continuing without it", zap.Error(err))
			pool = nil
		} else {
			defer pool.Close()
		}
	} else {
		logger.Warn("cache store not configured, continuing without it")
	}

	var marketRepo *repository.MarketCacheRepo
	var profileRepo *repository.ProfileCacheRepo
	if pool != nil {
		marketRepo = repository.NewMarketCacheRepo(pool)
		profileRepo = repository.NewProfileCacheRepo(pool)
	}

	// Upstream clients
	timeout := cfg.HTTPTimeout()
	alpha := external.NewAlphaVantageClient(cfg.AlphaVantageURL, cfg.StockAPIKey, timeout)
	yahoo := external.NewYahooClient(cfg.YahooFinanceURL, timeout)
	fx := external.NewFXClient(cfg.FXRateURL, timeout)

	// Argentine aggregation functions
	var marketStore aggregator.CacheStore
	var profileStore aggregator.ProfileStore
	if marketRepo != nil {
		marketStore = marketRepo
	}
	if profileRepo != nil {
		profileStore = profileRepo
	}
	marketFn := aggregator.NewMarketService(yahoo, marketStore, cfg.WatchList, cfg.MarketCacheTTL,
		logger.Named("ar-market"), nil)
	profileFn := aggregator.NewProfileService(yahoo, profileStore, cfg.WatchList, cfg.ProfileCacheTTL,
		logger.Named("ar-profile"), nil)

	// Client-side services
	resolver := names.NewResolver(yahoo, alpha, cfg.NameCacheTTL, logger.Named("names"))
	usRanking := ranking.NewUSService(alpha, resolver, ranking.USConfig{
		RankingTTL:       cfg.RankingCacheTTL,
		PoolTTL:          cfg.PoolCacheTTL,
		IntradayBudget:   cfg.IntradayTickerBudget,
		DailyBudget:      cfg.DailyTickerBudget,
		NameLookupBudget: cfg.NameLookupBudget,
		PoolSize:         cfg.CandidatePoolSize,
		AllowMock:        cfg.AllowMockFallback,
	}, logger.Named("ranking-us"), nil)

	var cacheReader ranking.CacheReader
	if marketRepo != nil {
		cacheReader = marketRepo
	}
	arRanking := ranking.NewARService(marketFn, cacheReader, cfg.AllowMockFallback,
		logger.Named("ranking-ar"), nil)

	detailSvc := detail.NewService(alpha, marketFn, cfg.DetailCacheTTL, logger.Named("detail"), nil)
	profileSvc := profile.NewService(alpha, profileFn, cfg.ProfileCacheTTL, logger.Named("profile"), nil)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(pool, api.Services{
		USRanking: usRanking,
		ARRanking: arRanking,
		Detail:    detailSvc,
		Profile:   profileSvc,
		FX:        fx,
		MarketFn:  marketFn,
		ProfileFn: profileFn,
	}, cfg.Port, cfg.APIKey, cfg.CORSAllowOrigin, logger.Named("api"))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// 2. Background refresh keeps the AR cache table warm.
	var refresh *scheduler.RefreshScheduler
	if pool != nil {
		refresh = scheduler.NewRefreshScheduler(marketFn, detailSvc, cfg.RefreshCron, logger.Named("scheduler"))
		if err := refresh.Start(); err != nil {
			logger.Error("scheduler start failed", zap.Error(err))
			os.Exit(1)
		}
	} else {
		logger.Warn("background refresh skipped, no cache store to warm")
	}

	logger.Info("all services started")

	<-ctx.Done()
	logger.Info("shutting down")

	if refresh != nil {
		refresh.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
