package series

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// Provider payloads are loosely typed JSON objects: a series sub-object is
// located by key pattern and each entry carries a string timestamp and a
// string close price. Anything that fails to parse to a finite number is
// dropped.

const (
	intradayKeyPrefix = "Time Series ("
	dailySeriesKey    = "Time Series (Daily)"
	closeField        = "4. close"
)

// ErrProviderSoft marks a 200-response that carries a rate-limit note or
// error message instead of data. Callers treat it like a thrown error and
// run their fallback ladder.
var ErrProviderSoft = errors.New("provider soft error")

// IsProviderError reports whether the payload carries one of the known soft
// error markers. Check this before attempting to parse a series.
func IsProviderError(payload map[string]any) bool {
	return hasNonEmpty(payload, "Note") ||
		hasNonEmpty(payload, "Information") ||
		hasNonEmpty(payload, "Error Message")
}

// ProviderErrorMessage extracts the most specific soft-error text available.
func ProviderErrorMessage(payload map[string]any) string {
	for _, key := range []string{"Note", "Information", "Error Message"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return "provider error"
}

func hasNonEmpty(payload map[string]any, key string) bool {
	v, ok := payload[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// ParseIntraday extracts the intraday series, keyed by the first key
// starting with "Time Series (". Timestamps are date-time strings in the
// local zone. Output is sorted ascending; parsing is idempotent.
func ParseIntraday(payload map[string]any) []models.SparklinePoint {
	for key, raw := range payload {
		if !strings.HasPrefix(key, intradayKeyPrefix) {
			continue
		}
		return parseEntries(raw, func(s string) (int64, bool) {
			t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
			if err != nil {
				return 0, false
			}
			return t.UnixMilli(), true
		})
	}
	return nil
}

// ParseDaily extracts the daily series under the fixed "Time Series (Daily)"
// key. Date-only timestamps resolve to UTC midnight.
func ParseDaily(payload map[string]any) []models.SparklinePoint {
	raw, ok := payload[dailySeriesKey]
	if !ok {
		return nil
	}
	return parseEntries(raw, func(s string) (int64, bool) {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	})
}

func parseEntries(raw any, parseTs func(string) (int64, bool)) []models.SparklinePoint {
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	points := make([]models.SparklinePoint, 0, len(entries))
	for tsRaw, rowRaw := range entries {
		ts, ok := parseTs(tsRaw)
		if !ok {
			continue
		}
		row, ok := rowRaw.(map[string]any)
		if !ok {
			continue
		}
		value, ok := closeValue(row)
		if !ok {
			continue
		}
		points = append(points, models.SparklinePoint{Timestamp: ts, Value: value})
	}
	return Normalize(points)
}

func closeValue(row map[string]any) (float64, bool) {
	switch v := row[closeField].(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}
