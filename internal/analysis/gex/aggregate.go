package gex

import (
	"math"
	"sort"
	"time"

	"github.com/vovonacci/gexray/pkg/models"
	"github.com/vovonacci/gexray/pkg/utils"
)

// Dollarized gamma exposure of one contract per 1% spot move:
// gamma * S^2 * pctMove * contractMultiplier.
const (
	contractMult = 100
	pctMove      = 0.01
)

// Filters restricts and bins the rows that enter one aggregation pass.
// All fields are optional and combine independently.
type Filters struct {
	// Expiry keeps only rows matching this exact ISO date.
	Expiry string
	// MaxDTEDays keeps only rows whose whole-day time to expiry is in
	// [0, MaxDTEDays]. Zero disables the filter.
	MaxDTEDays int
	// MinOpenInterest drops rows below this OI floor.
	MinOpenInterest int64
	// SpotWindow drops rows with |strike-spot|/spot above this fraction.
	// Zero disables the filter.
	SpotWindow float64
	// BinStep rounds strikes to the nearest multiple of this step before
	// aggregation (round-half-up). Zero leaves strikes unbinned.
	BinStep float64
}

// Aggregate buckets rows into per-strike call/put gamma mass.
//
// Per-row contribution is |gamma * spot^2 * 0.01 * 100 * openInterest|,
// accumulated in input order per bucket so the result is reproducible.
// Output is sorted descending by strike; a strike present on one side
// always appears with 0 on the other rather than being omitted.
func Aggregate(rows []models.OptionRow, spot float64, f Filters, now time.Time) []models.StrikeMass {
	type bucket struct {
		call float64
		put  float64
	}
	buckets := make(map[float64]*bucket)

	for _, r := range rows {
		if f.Expiry != "" && r.Expiry != f.Expiry {
			continue
		}
		if f.MaxDTEDays > 0 {
			dte, ok := wholeDaysToExpiry(r.Expiry, now)
			if !ok || dte < 0 || dte > f.MaxDTEDays {
				continue
			}
		}
		if r.OpenInterest < f.MinOpenInterest {
			continue
		}
		if f.SpotWindow > 0 && math.Abs(r.Strike-spot)/spot > f.SpotWindow {
			continue
		}

		strike := r.Strike
		if f.BinStep > 0 {
			strike = math.Round(strike/f.BinStep) * f.BinStep
		}

		mass := math.Abs(r.Gamma * spot * spot * pctMove * contractMult * float64(r.OpenInterest))

		b := buckets[strike]
		if b == nil {
			b = &bucket{}
			buckets[strike] = b
		}
		if r.Side == models.SideCall {
			b.call += mass
		} else {
			b.put += mass
		}
	}

	masses := make([]models.StrikeMass, 0, len(buckets))
	for strike, b := range buckets {
		masses = append(masses, models.StrikeMass{Strike: strike, Call: b.call, Put: b.put})
	}
	sort.Slice(masses, func(i, j int) bool { return masses[i].Strike > masses[j].Strike })
	return masses
}

// wholeDaysToExpiry computes floor((expiry - now) / 24h) from an ISO date.
func wholeDaysToExpiry(expiry string, now time.Time) (int, bool) {
	t, err := utils.ParseDate(expiry)
	if err != nil {
		return 0, false
	}
	return int(math.Floor(t.Sub(now).Hours() / 24)), true
}
