// Package currency converts prices between a market's native currency and a
// user-selected display currency using an externally supplied FX rate.
package currency

import (
	"math"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// ConversionFactor returns the multiplier that converts a market's native
// prices into the selected currency. ok is false when a conversion is
// needed but the rate is missing or invalid; callers show native prices
// with a warning instead of a wrong number. A rate that is zero, negative,
// or non-finite counts as missing.
func ConversionFactor(market models.Market, selected models.Currency, usdToARS float64) (float64, bool) {
	if selected == models.NativeCurrency(market) {
		return 1, true
	}

	if usdToARS <= 0 || math.IsNaN(usdToARS) || math.IsInf(usdToARS, 0) {
		return 0, false
	}

	if market == models.MarketUS && selected == models.CurrencyARS {
		return usdToARS, true
	}
	if market == models.MarketAR && selected == models.CurrencyUSD {
		return 1 / usdToARS, true
	}

	return 0, false
}

// Convert applies a conversion factor to a value.
func Convert(value, factor float64) float64 { return value * factor }
