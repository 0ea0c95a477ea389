// Package scheduler runs the background Argentine market refresh so the
// persisted cache stays warm between user requests.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/models"
)

// refreshTimeframes are the windows kept warm by the background job.
var refreshTimeframes = []models.Range{
	models.Range1D, models.Range1W, models.Range1M, models.RangeYTD,
}

// MarketFunction is the aggregation entry point the refresh drives.
type MarketFunction interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

// DetailInvalidator drops short-lived detail caches after a refresh.
type DetailInvalidator interface {
	Refresh()
}

type RefreshScheduler struct {
	fn       MarketFunction
	detail   DetailInvalidator
	cronSpec string
	logger   *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRefreshScheduler builds the scheduler. detail may be nil.
func NewRefreshScheduler(fn MarketFunction, detail DetailInvalidator, cronSpec string, logger *zap.Logger) *RefreshScheduler {
	if cronSpec == "" {
		cronSpec = "*/5 * * * *"
	}
	return &RefreshScheduler{
		fn:       fn,
		detail:   detail,
		cronSpec: cronSpec,
		logger:   logger,
	}
}

func (s *RefreshScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("refresh scheduler already running")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cronSpec, s.refreshAll); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true

	// Warm the cache immediately instead of waiting for the first tick.
	go s.refreshAll()

	s.logger.Info("refresh scheduler started", zap.String("cron", s.cronSpec))
	return nil
}

func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("refresh scheduler stopped")
}

func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshNow triggers one refresh pass outside the schedule.
func (s *RefreshScheduler) RefreshNow(ctx context.Context) {
	s.refresh(ctx)
}

func (s *RefreshScheduler) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	s.refresh(ctx)
}

func (s *RefreshScheduler) refresh(ctx context.Context) {
	started := time.Now()
	for _, timeframe := range refreshTimeframes {
		res, err := s.fn.Run(ctx, aggregator.Request{Timeframe: timeframe})
		if err != nil {
			s.logger.Warn("background refresh failed",
				zap.String("timeframe", string(timeframe)),
				zap.Error(err))
			continue
		}
		s.logger.Info("background refresh completed",
			zap.String("timeframe", string(timeframe)),
			zap.String("source", res.Source),
			zap.Int("rows", len(res.Stocks)))
	}
	if s.detail != nil {
		s.detail.Refresh()
	}
	s.logger.Info("background refresh pass finished",
		zap.Duration("elapsed", time.Since(started)))
}
