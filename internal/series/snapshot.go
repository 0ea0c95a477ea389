package series

import (
	"math"
	"time"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// Snapshot is a normalized view of one ticker over one range: last price,
// percent change across the window, and the sliced sparkline.
type Snapshot struct {
	Price         float64
	PercentChange float64
	Sparkline     []models.SparklinePoint
}

// FromSeries builds a snapshot from a historical series sliced to the range.
// referenceMs <= 0 means "latest point". When requireFullCoverage is set, a
// series whose earliest point starts after the window boundary is rejected
// rather than silently producing a shortened window. Returns false when the
// data cannot support a two-point view.
func FromSeries(points []models.SparklinePoint, r models.Range, referenceMs int64, requireFullCoverage bool) (Snapshot, bool) {
	sorted := Normalize(points)
	if len(sorted) < 2 {
		return Snapshot{}, false
	}

	latest := referenceMs
	if latest <= 0 {
		latest = sorted[len(sorted)-1].Timestamp
	}
	if requireFullCoverage && sorted[0].Timestamp > RangeStart(r, latest) {
		return Snapshot{}, false
	}

	sliced := SliceByRange(sorted, r, latest)
	if len(sliced) < 2 {
		return Snapshot{}, false
	}

	return Snapshot{
		Price:         sliced[len(sliced)-1].Value,
		PercentChange: PercentChange(sliced),
		Sparkline:     sliced,
	}, true
}

// FromQuote builds a two-point synthetic snapshot from a provider's
// self-reported price and percent change, for candidates whose full history
// is unavailable. The baseline is the implied price before the move; when
// the percent change puts the baseline at or below zero the line is flat.
// Downstream consumers cannot tell this apart from a real two-point series.
func FromQuote(price, percentChange float64, now time.Time) Snapshot {
	baseline := price / (1 + percentChange/100)
	if percentChange <= -100 || math.IsNaN(baseline) || math.IsInf(baseline, 0) || baseline <= 0 {
		baseline = price
	}

	nowMs := now.UnixMilli()
	return Snapshot{
		Price:         price,
		PercentChange: percentChange,
		Sparkline: []models.SparklinePoint{
			{Timestamp: nowMs - 24*time.Hour.Milliseconds(), Value: baseline},
			{Timestamp: nowMs, Value: price},
		},
	}
}
