package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/alzas-app/alzas-backend/internal/models"
)

type mockRow struct {
	ticker        string
	name          string
	price         float64
	percentChange float64
}

var mockUSRows = []mockRow{
	{"NVDA", "NVIDIA Corporation", 850.20, 8.5},
	{"AAPL", "Apple Inc.", 175.50, 2.1},
	{"MSFT", "Microsoft Corporation", 420.30, 1.8},
	{"TSLA", "Tesla, Inc.", 210.00, 1.5},
	{"AMZN", "Amazon.com, Inc.", 180.50, 1.2},
	{"META", "Meta Platforms, Inc.", 500.00, 1.0},
	{"GOOGL", "Alphabet Inc.", 145.20, 0.8},
	{"AMD", "Advanced Micro Devices, Inc.", 160.00, 0.5},
	{"NFLX", "Netflix, Inc.", 610.20, 0.3},
	{"INTC", "Intel Corporation", 45.10, 0.1},
}

var mockARRows = []mockRow{
	{"GGAL", "Grupo Financiero Galicia S.A.", 4500.50, 5.2},
	{"YPFD", "YPF Sociedad Anónima", 21500.00, 4.8},
	{"PAMP", "Pampa Energía S.A.", 2800.75, 3.5},
	{"BMA", "Banco Macro S.A.", 6200.00, 2.1},
	{"TXAR", "Ternium Argentina S.A.", 980.00, 1.8},
	{"LOMA", "Loma Negra C.I.A.S.A.", 1550.00, 1.5},
	{"CEPU", "Central Puerto S.A.", 1200.00, 1.2},
	{"EDN", "Edenor S.A.", 850.50, 0.9},
	{"CRES", "Cresud S.A.C.I.F. y A.", 1100.25, 0.5},
	{"SUPV", "Grupo Supervielle S.A.", 480.00, 0.2},
}

// MockStocks builds the placeholder ranking for a market. The sparklines
// are synthesized deterministically so repeated calls and test runs agree.
func MockStocks(market models.Market, now time.Time) []models.Stock {
	rows := mockUSRows
	if market == models.MarketAR {
		rows = mockARRows
	}

	stocks := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		stocks = append(stocks, models.Stock{
			ID:            row.ticker,
			Ticker:        row.ticker,
			CompanyName:   row.name,
			Market:        market,
			Price:         row.price,
			PercentChange: row.percentChange,
			Sparkline:     syntheticSparkline(row.price, now),
		})
	}
	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].PercentChange > stocks[j].PercentChange
	})
	return stocks
}

// syntheticSparkline ramps from 90% of the base price up to the base over
// 20 hourly points with a small sine wobble. No randomness.
func syntheticSparkline(basePrice float64, now time.Time) []models.SparklinePoint {
	const points = 20
	line := make([]models.SparklinePoint, 0, points+1)
	for i := 0; i < points; i++ {
		progress := float64(i) / float64(points)
		wobble := math.Sin(float64(i)*1.3) * basePrice * 0.01
		line = append(line, models.SparklinePoint{
			Timestamp: now.Add(-time.Duration(points-i) * time.Hour).UnixMilli(),
			Value:     basePrice*(0.9+0.1*progress) + wobble,
		})
	}
	line = append(line, models.SparklinePoint{Timestamp: now.UnixMilli(), Value: basePrice})
	return line
}
