package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/models"
)

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	market, ok := parseMarket(chi.URLParam(r, "market"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown market, expected US or AR")
		return
	}
	timeframe := models.ParseRange(r.URL.Query().Get("timeframe"))

	svc := s.usRanking
	if market == models.MarketAR {
		svc = s.arRanking
	}

	writeJSON(w, http.StatusOK, svc.TopGainers(r.Context(), timeframe))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	market, ok := parseMarket(chi.URLParam(r, "market"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown market, expected US or AR")
		return
	}
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "missing ticker")
		return
	}
	rng := models.ParseRange(r.URL.Query().Get("range"))

	detail, err := s.detail.Fetch(r.Context(), market, ticker, rng)
	if err != nil {
		s.logger.Warn("detail request failed",
			zap.String("market", string(market)),
			zap.String("ticker", ticker),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch detail data")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	market, ok := parseMarket(chi.URLParam(r, "market"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown market, expected US or AR")
		return
	}
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "missing ticker")
		return
	}

	profile := s.profile.Fetch(r.Context(), market, ticker, r.URL.Query().Get("name"))
	writeJSON(w, http.StatusOK, profile)
}

type fxResponse struct {
	Base  string  `json:"base"`
	Quote string  `json:"quote"`
	Rate  float64 `json:"rate"`
}

func (s *Server) handleFXRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.fx.USDARSRate(r.Context())
	if err != nil {
		s.logger.Warn("fx rate request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch exchange rate")
		return
	}
	writeJSON(w, http.StatusOK, fxResponse{Base: "USD", Quote: "ARS", Rate: rate})
}
