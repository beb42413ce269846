// Package gex derives dealer gamma-exposure analytics from an index
// option chain: per-strike call/put gamma mass, Call Resistance and
// Put Support pin levels, the HVL flip level from the smoothed cumulative
// net-gamma curve, and one-day expected-move bands from blended
// realized/implied volatility with risk-reversal skew adjustment.
//
// All functions are pure over immutable inputs; everything is recomputed
// per request.
package gex

import (
	"encoding/json"
	"math"
	"time"

	"github.com/vovonacci/gexray/pkg/models"
	"github.com/vovonacci/gexray/pkg/utils"
)

// Normalize converts raw vendor records into validated OptionRows and
// reports the data as-of timestamp in epoch milliseconds.
//
// Records whose gamma is missing, non-finite, or exactly zero are dropped:
// they contribute nothing to gamma mass and would poison the aggregates.
// Open interest defaults to 0 when absent. The as-of timestamp is the
// maximum across every row's quote/trade/greeks/day-bar candidates,
// normalized to milliseconds; if no candidate in the whole batch parses,
// it falls back to the current time.
func Normalize(recs []models.RawOptionRecord) ([]models.OptionRow, int64) {
	rows := make([]models.OptionRow, 0, len(recs))
	var asOf int64

	for _, rec := range recs {
		for _, ts := range []int64{
			millisOf(rec.QuoteTime),
			millisOf(rec.TradeTime),
			millisOf(rec.GreeksTime),
			millisOf(rec.DayBarTime),
		} {
			if ts > asOf {
				asOf = ts
			}
		}

		if rec.Gamma == nil {
			continue
		}
		gamma := *rec.Gamma
		if math.IsNaN(gamma) || math.IsInf(gamma, 0) || gamma == 0 {
			continue
		}

		side := models.SideCall
		if rec.Side == "put" {
			side = models.SidePut
		} else if rec.Side != "call" {
			continue
		}

		var oi int64
		if rec.OpenInterest != nil && *rec.OpenInterest > 0 {
			oi = *rec.OpenInterest
		}

		var iv float64
		if rec.ImpliedVol != nil && !math.IsNaN(*rec.ImpliedVol) && !math.IsInf(*rec.ImpliedVol, 0) {
			iv = *rec.ImpliedVol
		}

		rows = append(rows, models.OptionRow{
			InstrumentID: rec.Ticker,
			Side:         side,
			Expiry:       rec.Expiry,
			Strike:       rec.Strike,
			OpenInterest: oi,
			Gamma:        gamma,
			ImpliedVol:   iv,
		})
	}

	if asOf == 0 {
		asOf = time.Now().UnixMilli()
	}
	return rows, asOf
}

// millisOf parses one timestamp candidate, treating unparseable values
// as absent.
func millisOf(n json.Number) int64 {
	ms, ok := utils.EpochMillis(n)
	if !ok {
		return 0
	}
	return ms
}
