package gex

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/vovonacci/gexray/pkg/models"
)

// ToBars reshapes strike masses into a display-ready two-sided bar
// series, negating the put side for plotting. Magnitudes are preserved;
// this is the only place the sign convention is applied.
func ToBars(masses []models.StrikeMass) []models.Bar {
	bars := make([]models.Bar, len(masses))
	for i, m := range masses {
		bars[i] = models.Bar{Strike: m.Strike, Call: m.Call, Put: -m.Put}
	}
	return bars
}

// NormalizeBars compresses bar magnitudes for visualization: the given
// quantile of all |call| and |put| magnitudes becomes a soft cap, and
// each value is squashed through sign(x)*cap*log(1+|x|/cap). Outliers are
// compressed without hard clipping; sign and zero-crossings survive.
//
// Purely a display transform — never feed the result back into level or
// HVL computation.
func NormalizeBars(bars []models.Bar, quantile float64) []models.Bar {
	if len(bars) == 0 {
		return bars
	}
	if quantile <= 0 || quantile >= 1 {
		quantile = 0.9
	}

	mags := make([]float64, 0, 2*len(bars))
	for _, b := range bars {
		if b.Call != 0 {
			mags = append(mags, math.Abs(b.Call))
		}
		if b.Put != 0 {
			mags = append(mags, math.Abs(b.Put))
		}
	}
	if len(mags) == 0 {
		return bars
	}

	sort.Float64s(mags)
	softCap := stat.Quantile(quantile, stat.LinInterp, mags, nil)
	if softCap <= 0 {
		return bars
	}

	out := make([]models.Bar, len(bars))
	for i, b := range bars {
		out[i] = models.Bar{
			Strike: b.Strike,
			Call:   squash(b.Call, softCap),
			Put:    squash(b.Put, softCap),
		}
	}
	return out
}

// squash compresses x through a signed logarithmic curve with soft cap c.
func squash(x, c float64) float64 {
	if x == 0 {
		return 0
	}
	return math.Copysign(c*math.Log(1+math.Abs(x)/c), x)
}

// MaxBarMagnitude returns the largest |call| or |put| across the series,
// used to scale the cumulative-curve overlay onto the bar axis.
func MaxBarMagnitude(bars []models.Bar) float64 {
	max := 0.0
	for _, b := range bars {
		if v := math.Abs(b.Call); v > max {
			max = v
		}
		if v := math.Abs(b.Put); v > max {
			max = v
		}
	}
	return max
}
