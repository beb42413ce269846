package gex

import (
	"math"
	"sort"

	"github.com/vovonacci/gexray/pkg/models"
)

// BuildCurve computes the smoothed cumulative net-gamma curve over strikes
// and the HVL flip level at its minimum.
//
// The per-strike net (call - put) series, ascending by strike, is run
// through a centered moving average of odd width window (clamped at the
// boundaries), then cumulatively summed. The flip level is where dealer
// net gamma transitions from net-negative to net-positive moving up
// through strikes; taking the cumulative minimum instead of a
// zero-crossing tolerates noisy and sparse chains. First occurrence wins
// on ties. Smoothing is skipped when window <= 1 or there are fewer than
// 3 points.
func BuildCurve(masses []models.StrikeMass, window int) (*float64, []models.CurvePoint) {
	if len(masses) == 0 {
		return nil, []models.CurvePoint{}
	}

	sorted := make([]models.StrikeMass, len(masses))
	copy(sorted, masses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	net := make([]float64, len(sorted))
	for i, m := range sorted {
		net[i] = m.Call - m.Put
	}

	smoothed := smooth(net, window)

	curve := make([]models.CurvePoint, len(sorted))
	cum := 0.0
	minIdx := 0
	for i, m := range sorted {
		cum += smoothed[i]
		curve[i] = models.CurvePoint{Strike: m.Strike, Value: cum}
		if curve[i].Value < curve[minIdx].Value {
			minIdx = i
		}
	}

	hvl := sorted[minIdx].Strike
	return &hvl, curve
}

// smooth applies a centered moving average of odd width. At the sequence
// boundaries the window is clamped to valid indices, so edge values are
// averaged over fewer points.
func smooth(series []float64, window int) []float64 {
	if window <= 1 || len(series) < 3 {
		return series
	}
	if window%2 == 0 {
		window++
	}
	if window < 3 {
		window = 3
	}

	half := window / 2
	out := make([]float64, len(series))
	for i := range series {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(series)-1 {
			hi = len(series) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += series[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// ResampleCurve linearly interpolates the cumulative curve at each of the
// given strikes, clamping to the boundary values outside the curve's
// range. The curve must be ascending by strike (BuildCurve output).
func ResampleCurve(curve []models.CurvePoint, strikes []float64) []models.CurvePoint {
	if len(curve) == 0 {
		return []models.CurvePoint{}
	}

	out := make([]models.CurvePoint, len(strikes))
	for i, s := range strikes {
		out[i] = models.CurvePoint{Strike: s, Value: interpolate(curve, s)}
	}
	return out
}

// interpolate binary-searches the curve for strike s and linearly
// interpolates between the bracketing points.
func interpolate(curve []models.CurvePoint, s float64) float64 {
	n := len(curve)
	if s <= curve[0].Strike {
		return curve[0].Value
	}
	if s >= curve[n-1].Strike {
		return curve[n-1].Value
	}

	// First index with strike >= s.
	idx := sort.Search(n, func(i int) bool { return curve[i].Strike >= s })
	a, b := curve[idx-1], curve[idx]
	if b.Strike == a.Strike {
		return a.Value
	}
	t := (s - a.Strike) / (b.Strike - a.Strike)
	return a.Value + t*(b.Value-a.Value)
}

// ScaleCurve rescales the interpolated curve to 90% of the bar chart's
// value range so the overlay fits without clipping. A zero curve
// magnitude is treated as 1 to avoid dividing by zero.
func ScaleCurve(curve []models.CurvePoint, maxBarMagnitude float64) []models.CurvePoint {
	maxCurve := 0.0
	for _, p := range curve {
		if v := math.Abs(p.Value); v > maxCurve {
			maxCurve = v
		}
	}
	if maxCurve == 0 {
		maxCurve = 1
	}

	factor := 0.9 * maxBarMagnitude / maxCurve
	out := make([]models.CurvePoint, len(curve))
	for i, p := range curve {
		out[i] = models.CurvePoint{Strike: p.Strike, Value: p.Value * factor}
	}
	return out
}
