package gex

import (
	"math"
	"time"

	"github.com/vovonacci/gexray/pkg/models"
)

const (
	// minCloses is the minimum daily-close history for a realized-vol
	// estimate.
	minCloses = 20
	// rrClamp bounds the daily risk-reversal for numerical safety.
	rrClamp = 0.2
	// skewMinDTE: the skew expiry must be at least this many days out to
	// avoid 0/1-day expiry noise.
	skewMinDTE = 2
)

var sqrt252 = math.Sqrt(252)

// RealizedVol computes the RiskMetrics EWMA daily volatility from
// consecutive closes with decay lambda, weighting the most recent return
// highest. Returns nil with fewer than 20 closes.
func RealizedVol(closes []float64, lambda float64) *float64 {
	if len(closes) < minCloses {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) == 0 {
		return nil
	}

	var sum, total float64
	w := 1.0
	for i := len(returns) - 1; i >= 0; i-- {
		sum += w * returns[i] * returns[i]
		total += w
		w *= lambda
	}

	sigma := math.Sqrt(sum / total)
	return &sigma
}

// SkewExpiry picks the expiry used for ATM implied vol and risk-reversal:
// the earliest expiry at least 2 days out, falling back to the earliest
// available. Empty string when the chain has no expiries.
func SkewExpiry(rows []models.OptionRow, now time.Time) string {
	var earliest, preferred string
	for _, r := range rows {
		if r.Expiry == "" {
			continue
		}
		if earliest == "" || r.Expiry < earliest {
			earliest = r.Expiry
		}
		dte, ok := wholeDaysToExpiry(r.Expiry, now)
		if !ok || dte < skewMinDTE {
			continue
		}
		if preferred == "" || r.Expiry < preferred {
			preferred = r.Expiry
		}
	}
	if preferred != "" {
		return preferred
	}
	return earliest
}

// ImpliedVol1D de-annualizes the at-the-money implied vol at the given
// expiry: the IV of the contract whose strike is nearest spot, calls
// preferred over puts. Nil when no contract at the expiry carries an IV.
func ImpliedVol1D(rows []models.OptionRow, spot float64, expiry string) *float64 {
	iv := nearestIV(rows, expiry, models.SideCall, spot)
	if iv == nil {
		iv = nearestIV(rows, expiry, models.SidePut, spot)
	}
	if iv == nil {
		return nil
	}
	daily := *iv / sqrt252
	return &daily
}

// RiskReversal measures the annualized implied-vol skew at the given
// expiry: IV(call, strike ~ spot*1.05) - IV(put, strike ~ spot*0.95),
// each by nearest-strike lookup. Nil when either side is missing.
func RiskReversal(rows []models.OptionRow, spot float64, expiry string) *float64 {
	callIV := nearestIV(rows, expiry, models.SideCall, spot*1.05)
	putIV := nearestIV(rows, expiry, models.SidePut, spot*0.95)
	if callIV == nil || putIV == nil {
		return nil
	}
	rr := *callIV - *putIV
	return &rr
}

// nearestIV finds the implied vol of the same-side contract at expiry
// whose strike is closest to target. Rows without an IV are skipped.
func nearestIV(rows []models.OptionRow, expiry string, side models.OptionSide, target float64) *float64 {
	var best *float64
	bestDist := math.MaxFloat64
	for _, r := range rows {
		if r.Expiry != expiry || r.Side != side || r.ImpliedVol <= 0 {
			continue
		}
		if d := math.Abs(r.Strike - target); d < bestDist {
			bestDist = d
			iv := r.ImpliedVol
			best = &iv
		}
	}
	return best
}

// VolInputs carries everything the band estimator consumes.
type VolInputs struct {
	Closes        []float64
	Rows          []models.OptionRow
	Spot          float64
	HVL           *float64
	GammaPositive bool
	Lambda        float64
	Now           time.Time
}

// Estimate builds the one-day expected-move bands.
//
// Realized and implied daily vols are blended by arithmetic mean (or
// whichever is available). The daily risk-reversal, clamped to +/-0.2,
// widens only the side it favors: sigmaUp = base*(1+0.5*max(0, rr)),
// sigmaDn = base*(1+0.5*max(0, -rr)). Bands anchor at spot always, and
// additionally at HVL in a negative-gamma regime; positive-gamma regimes
// are assumed mean-reverting around spot.
func Estimate(in VolInputs) models.Bands {
	bands := models.Bands{GammaPositive: in.GammaPositive}

	skewExpiry := SkewExpiry(in.Rows, in.Now)

	bands.Sigma.Realized = RealizedVol(in.Closes, in.Lambda)
	if skewExpiry != "" {
		bands.Sigma.Implied1D = ImpliedVol1D(in.Rows, in.Spot, skewExpiry)
		bands.Sigma.RiskReversal = RiskReversal(in.Rows, in.Spot, skewExpiry)
	}

	switch {
	case bands.Sigma.Realized != nil && bands.Sigma.Implied1D != nil:
		base := (*bands.Sigma.Realized + *bands.Sigma.Implied1D) / 2
		bands.Sigma.Base = &base
	case bands.Sigma.Realized != nil:
		bands.Sigma.Base = bands.Sigma.Realized
	case bands.Sigma.Implied1D != nil:
		bands.Sigma.Base = bands.Sigma.Implied1D
	}
	if bands.Sigma.Base == nil {
		return bands
	}

	rrDaily := 0.0
	if bands.Sigma.RiskReversal != nil {
		rrDaily = *bands.Sigma.RiskReversal / sqrt252
		if rrDaily > rrClamp {
			rrDaily = rrClamp
		} else if rrDaily < -rrClamp {
			rrDaily = -rrClamp
		}
	}

	up := *bands.Sigma.Base * (1 + 0.5*math.Max(0, rrDaily))
	dn := *bands.Sigma.Base * (1 + 0.5*math.Max(0, -rrDaily))
	bands.Sigma.Up = &up
	bands.Sigma.Dn = &dn

	spotBands := buildAnchorBands(in.Spot, up, dn)
	bands.Spot = &spotBands

	if !in.GammaPositive && in.HVL != nil {
		hvlBands := buildAnchorBands(*in.HVL, up, dn)
		bands.HVL = &hvlBands
	}
	return bands
}

// buildAnchorBands computes the 1/2/3-sigma intervals around an anchor:
// min = anchor*exp(-k*sigmaDn), max = anchor*exp(+k*sigmaUp).
func buildAnchorBands(anchor, sigmaUp, sigmaDn float64) models.AnchorBands {
	level := func(k float64) models.BandLevel {
		return models.BandLevel{
			Min: anchor * math.Exp(-k*sigmaDn),
			Max: anchor * math.Exp(k*sigmaUp),
		}
	}
	return models.AnchorBands{
		Anchor: anchor,
		One:    level(1),
		Two:    level(2),
		Three:  level(3),
	}
}
