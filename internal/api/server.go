// Package api exposes the HTTP surface: versioned read endpoints for
// rankings, detail, profiles and FX, plus the two function endpoints
// that mirror the Argentine aggregation contract.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/models"
)

// RankingService produces a ranked top-gainers list for one market.
type RankingService interface {
	TopGainers(ctx context.Context, timeframe models.Range) models.RankingResult
}

// DetailService serves per-ticker history.
type DetailService interface {
	Fetch(ctx context.Context, market models.Market, ticker string, r models.Range) (models.StockDetail, error)
}

// ProfileService serves company fundamentals.
type ProfileService interface {
	Fetch(ctx context.Context, market models.Market, ticker, fallbackName string) models.CompanyProfile
}

// FXService supplies the USD to ARS conversion rate.
type FXService interface {
	USDARSRate(ctx context.Context) (float64, error)
}

// MarketFunction and ProfileFunction are the Argentine function
// endpoints' backing services.
type MarketFunction interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

type ProfileFunction interface {
	Run(ctx context.Context, ticker string) (*aggregator.ProfileResult, error)
}

type Server struct {
	pool       *pgxpool.Pool
	usRanking  RankingService
	arRanking  RankingService
	detail     DetailService
	profile    ProfileService
	fx         FXService
	marketFn   MarketFunction
	profileFn  ProfileFunction
	logger     *zap.Logger
	httpServer *http.Server
	apiKey     string
}

type Services struct {
	USRanking RankingService
	ARRanking RankingService
	Detail    DetailService
	Profile   ProfileService
	FX        FXService
	MarketFn  MarketFunction
	ProfileFn ProfileFunction
}

func NewServer(pool *pgxpool.Pool, svcs Services, port int, apiKey, corsOrigin string, logger *zap.Logger) *Server {
	s := &Server{
		pool:      pool,
		usRanking: svcs.USRanking,
		arRanking: svcs.ARRanking,
		detail:    svcs.Detail,
		profile:   svcs.Profile,
		fx:        svcs.FX,
		marketFn:  svcs.MarketFn,
		profileFn: svcs.ProfileFn,
		logger:    logger,
		apiKey:    apiKey,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware(corsOrigin))
	r.Use(s.authMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ranking/{market}", s.handleRanking)
		r.Get("/detail/{market}/{ticker}", s.handleDetail)
		r.Get("/profile/{market}/{ticker}", s.handleProfile)
		r.Get("/fx/usd-ars", s.handleFXRate)
	})

	r.Route("/functions", func(r chi.Router) {
		r.Post("/argentina-market", s.handleArgentinaMarket)
		r.Post("/argentina-company-profile", s.handleArgentinaProfile)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("api server started",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth", s.apiKey != ""))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- request helpers ---

func parseMarket(raw string) (models.Market, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "US":
		return models.MarketUS, true
	case "AR":
		return models.MarketAR, true
	}
	return "", false
}

func decodeBody(r *http.Request, out any) {
	// Malformed bodies fall back to zero values, matching the function
	// contract's lenient body handling.
	defer r.Body.Close()
	_ = json.NewDecoder(r.Body).Decode(out)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
