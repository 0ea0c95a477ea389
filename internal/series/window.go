package series

import (
	"math"
	"sort"
	"time"

	"github.com/alzas-app/alzas-backend/internal/models"
)

// RangeStart returns the epoch-millis lookback boundary for a range token
// relative to a reference instant. Month and year ranges use calendar
// arithmetic, not fixed-day multiples.
func RangeStart(r models.Range, referenceMs int64) int64 {
	ref := time.UnixMilli(referenceMs)

	switch r {
	case models.Range1H:
		return referenceMs - time.Hour.Milliseconds()
	case models.Range1D:
		return referenceMs - 24*time.Hour.Milliseconds()
	case models.Range1W:
		return referenceMs - 7*24*time.Hour.Milliseconds()
	case models.Range1M:
		return ref.AddDate(0, -1, 0).UnixMilli()
	case models.Range3M:
		return ref.AddDate(0, -3, 0).UnixMilli()
	case models.Range6M:
		return ref.AddDate(0, -6, 0).UnixMilli()
	case models.Range1Y:
		return ref.AddDate(-1, 0, 0).UnixMilli()
	case models.RangeYTD:
		return time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location()).UnixMilli()
	default:
		return referenceMs - 24*time.Hour.Milliseconds()
	}
}

// Normalize filters out non-finite points and returns a fresh slice sorted
// ascending by timestamp. The input is never mutated.
func Normalize(points []models.SparklinePoint) []models.SparklinePoint {
	out := make([]models.SparklinePoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// SliceByRange keeps the points inside [RangeStart(r, reference), reference].
// referenceMs <= 0 means "use the latest point's timestamp". Series with two
// or fewer points are returned as-is, and when fewer than two points fall
// inside the window the last two points of the full series are returned so a
// detail view can always draw a line.
func SliceByRange(points []models.SparklinePoint, r models.Range, referenceMs int64) []models.SparklinePoint {
	sorted := Normalize(points)
	if len(sorted) <= 2 {
		return sorted
	}

	latest := referenceMs
	if latest <= 0 {
		latest = sorted[len(sorted)-1].Timestamp
	}
	start := RangeStart(r, latest)

	filtered := make([]models.SparklinePoint, 0, len(sorted))
	for _, p := range sorted {
		if p.Timestamp >= start && p.Timestamp <= latest {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) >= 2 {
		return filtered
	}
	return sorted[len(sorted)-2:]
}

// PercentChange computes the percent change between the first and last point
// of a series. Degenerate inputs (fewer than two points, non-positive or
// non-finite first value) yield a neutral 0, never a panic.
func PercentChange(points []models.SparklinePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0].Value
	last := points[len(points)-1].Value
	if first <= 0 || math.IsNaN(first) || math.IsInf(first, 0) ||
		math.IsNaN(last) || math.IsInf(last, 0) {
		return 0
	}
	return (last - first) / first * 100
}
