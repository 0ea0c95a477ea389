package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/models"
)

// The /functions endpoints keep the aggregation functions' original wire
// contract: POST with a JSON body, 400 for bad tickers, 502/500 when no
// tier can answer.

type marketFunctionBody struct {
	Timeframe string `json:"timeframe"`
	Ticker    string `json:"ticker"`
}

func (s *Server) handleArgentinaMarket(w http.ResponseWriter, r *http.Request) {
	var body marketFunctionBody
	decodeBody(r, &body)

	res, err := s.marketFn.Run(r.Context(), aggregator.Request{
		Timeframe: models.Range(body.Timeframe),
		Ticker:    body.Ticker,
	})
	if err != nil {
		switch {
		case errors.Is(err, aggregator.ErrUnknownTicker):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported ticker: %s", body.Ticker))
		case errors.Is(err, aggregator.ErrNoData):
			writeError(w, http.StatusBadGateway, "Unable to fetch Argentina market data and no cache is available.")
		default:
			s.logger.Error("argentina market function failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "Unable to fetch Argentina market data.")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type profileFunctionBody struct {
	Ticker string `json:"ticker"`
}

func (s *Server) handleArgentinaProfile(w http.ResponseWriter, r *http.Request) {
	var body profileFunctionBody
	decodeBody(r, &body)

	res, err := s.profileFn.Run(r.Context(), body.Ticker)
	if err != nil {
		switch {
		case errors.Is(err, aggregator.ErrUnknownTicker):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported ticker: %s", body.Ticker))
		case errors.Is(err, aggregator.ErrProfileUnavailable):
			writeError(w, http.StatusInternalServerError, "Company profile unavailable")
		default:
			s.logger.Error("argentina profile function failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Company profile unavailable")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
