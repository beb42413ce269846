package gex

import (
	"math"
	"testing"

	"github.com/vovonacci/gexray/pkg/models"
)

func TestRealizedVolConstantCloses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	sigma := RealizedVol(closes, 0.94)
	if sigma == nil {
		t.Fatal("expected realized vol for 20 closes")
	}
	if *sigma != 0 {
		t.Errorf("expected 0 vol for constant closes, got %v", *sigma)
	}
}

func TestRealizedVolConstantReturns(t *testing.T) {
	// Every log return equals r: the EWMA collapses to |r| regardless
	// of lambda.
	const r = 0.01
	closes := make([]float64, 40)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * math.Exp(r)
	}

	for _, lambda := range []float64{0.80, 0.94, 0.99} {
		sigma := RealizedVol(closes, lambda)
		if sigma == nil {
			t.Fatalf("expected realized vol for lambda %v", lambda)
		}
		if math.Abs(*sigma-r) > 1e-12 {
			t.Errorf("lambda %v: expected sigma ~ %v, got %v", lambda, r, *sigma)
		}
	}
}

func TestRealizedVolInsufficientHistory(t *testing.T) {
	closes := make([]float64, 19)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if sigma := RealizedVol(closes, 0.94); sigma != nil {
		t.Errorf("expected nil for <20 closes, got %v", *sigma)
	}
}

func TestSkewExpiry(t *testing.T) {
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-26", 100, 10, 0.002), // 0 DTE
		makeRow(models.SideCall, "2026-08-27", 100, 10, 0.002), // 1 DTE (floor 0)
		makeRow(models.SideCall, "2026-08-31", 100, 10, 0.002),
		makeRow(models.SideCall, "2026-09-18", 100, 10, 0.002),
	}
	// Earliest expiry at least 2 whole days out.
	if exp := SkewExpiry(rows, testNow); exp != "2026-08-31" {
		t.Errorf("expected skew expiry 2026-08-31, got %s", exp)
	}
}

func TestSkewExpiryFallback(t *testing.T) {
	// Only near-dated expiries: fall back to the earliest available.
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-27", 100, 10, 0.002),
		makeRow(models.SideCall, "2026-08-26", 100, 10, 0.002),
	}
	if exp := SkewExpiry(rows, testNow); exp != "2026-08-26" {
		t.Errorf("expected fallback to earliest, got %s", exp)
	}
	if exp := SkewExpiry(nil, testNow); exp != "" {
		t.Errorf("expected empty skew expiry for empty chain, got %s", exp)
	}
}

func rowWithIV(side models.OptionSide, expiry string, strike, iv float64) models.OptionRow {
	r := makeRow(side, expiry, strike, 10, 0.002)
	r.ImpliedVol = iv
	return r
}

func TestImpliedVol1D(t *testing.T) {
	rows := []models.OptionRow{
		rowWithIV(models.SideCall, "2026-09-18", 98, 0.18),
		rowWithIV(models.SideCall, "2026-09-18", 101, 0.15), // nearest call to spot
		rowWithIV(models.SidePut, "2026-09-18", 100, 0.25),  // closer, but calls preferred
	}
	iv := ImpliedVol1D(rows, 100, "2026-09-18")
	if iv == nil {
		t.Fatal("expected implied vol")
	}
	want := 0.15 / math.Sqrt(252)
	if math.Abs(*iv-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, *iv)
	}
}

func TestImpliedVol1DPutFallback(t *testing.T) {
	rows := []models.OptionRow{
		rowWithIV(models.SidePut, "2026-09-18", 99, 0.22),
	}
	iv := ImpliedVol1D(rows, 100, "2026-09-18")
	if iv == nil {
		t.Fatal("expected put-side fallback")
	}
	want := 0.22 / math.Sqrt(252)
	if math.Abs(*iv-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, *iv)
	}

	if iv := ImpliedVol1D(nil, 100, "2026-09-18"); iv != nil {
		t.Errorf("expected nil for empty chain, got %v", *iv)
	}
}

func TestRiskReversal(t *testing.T) {
	rows := []models.OptionRow{
		rowWithIV(models.SideCall, "2026-09-18", 105, 0.14), // ~ spot*1.05
		rowWithIV(models.SideCall, "2026-09-18", 120, 0.10),
		rowWithIV(models.SidePut, "2026-09-18", 95, 0.20), // ~ spot*0.95
		rowWithIV(models.SidePut, "2026-09-18", 80, 0.30),
	}
	rr := RiskReversal(rows, 100, "2026-09-18")
	if rr == nil {
		t.Fatal("expected risk reversal")
	}
	if math.Abs(*rr-(-0.06)) > 1e-12 {
		t.Errorf("expected -0.06, got %v", *rr)
	}
}

func TestRiskReversalMissingSide(t *testing.T) {
	rows := []models.OptionRow{
		rowWithIV(models.SideCall, "2026-09-18", 105, 0.14),
	}
	if rr := RiskReversal(rows, 100, "2026-09-18"); rr != nil {
		t.Errorf("expected nil with one side missing, got %v", *rr)
	}
}

func makeTrendingCloses(n int) []float64 {
	closes := make([]float64, n)
	closes[0] = 6400
	for i := 1; i < n; i++ {
		closes[i] = closes[i-1] * math.Exp(0.005*math.Sin(float64(i)))
	}
	return closes
}

func TestEstimateBands(t *testing.T) {
	rows := []models.OptionRow{
		rowWithIV(models.SideCall, "2026-09-18", 6450, 0.16),
		rowWithIV(models.SideCall, "2026-09-18", 6770, 0.13),
		rowWithIV(models.SidePut, "2026-09-18", 6130, 0.21),
	}

	bands := Estimate(VolInputs{
		Closes:        makeTrendingCloses(60),
		Rows:          rows,
		Spot:          6449,
		GammaPositive: true,
		Lambda:        0.94,
		Now:           testNow,
	})

	if bands.Sigma.Realized == nil || bands.Sigma.Implied1D == nil || bands.Sigma.Base == nil {
		t.Fatal("expected all sigma components with full inputs")
	}
	wantBase := (*bands.Sigma.Realized + *bands.Sigma.Implied1D) / 2
	if math.Abs(*bands.Sigma.Base-wantBase) > 1e-12 {
		t.Errorf("expected blend %v, got %v", wantBase, *bands.Sigma.Base)
	}

	if bands.Spot == nil {
		t.Fatal("expected spot-anchored bands")
	}
	if bands.HVL != nil {
		t.Error("expected no HVL bands in positive-gamma regime")
	}

	// Band monotonicity and nesting.
	levels := []models.BandLevel{bands.Spot.One, bands.Spot.Two, bands.Spot.Three}
	for k, lv := range levels {
		if lv.Min >= lv.Max {
			t.Errorf("band %d: min %v >= max %v", k+1, lv.Min, lv.Max)
		}
	}
	if levels[0].Min < levels[1].Min || levels[1].Min < levels[2].Min {
		t.Errorf("band minima not nested: %+v", levels)
	}
	if levels[0].Max > levels[1].Max || levels[1].Max > levels[2].Max {
		t.Errorf("band maxima not nested: %+v", levels)
	}
}

func TestEstimateSkewWidensOneSide(t *testing.T) {
	// Put skew (negative risk reversal) widens only the downside.
	rows := []models.OptionRow{
		rowWithIV(models.SideCall, "2026-09-18", 6450, 0.16),
		rowWithIV(models.SideCall, "2026-09-18", 6770, 0.13),
		rowWithIV(models.SidePut, "2026-09-18", 6130, 0.25),
	}
	bands := Estimate(VolInputs{
		Closes: makeTrendingCloses(60),
		Rows:   rows,
		Spot:   6449,
		Lambda: 0.94,
		Now:    testNow,
	})
	if bands.Sigma.Up == nil || bands.Sigma.Dn == nil {
		t.Fatal("expected directional sigmas")
	}
	if *bands.Sigma.Up != *bands.Sigma.Base {
		t.Errorf("negative skew must not widen the upside: up=%v base=%v", *bands.Sigma.Up, *bands.Sigma.Base)
	}
	if *bands.Sigma.Dn <= *bands.Sigma.Base {
		t.Errorf("negative skew should widen the downside: dn=%v base=%v", *bands.Sigma.Dn, *bands.Sigma.Base)
	}
}

func TestEstimateHVLAnchorNegativeGamma(t *testing.T) {
	hvl := 6380.0
	bands := Estimate(VolInputs{
		Closes:        makeTrendingCloses(60),
		Rows:          nil,
		Spot:          6449,
		HVL:           &hvl,
		GammaPositive: false,
		Lambda:        0.94,
		Now:           testNow,
	})
	if bands.HVL == nil {
		t.Fatal("expected HVL-anchored bands in negative-gamma regime")
	}
	if bands.HVL.Anchor != hvl {
		t.Errorf("expected anchor %v, got %v", hvl, bands.HVL.Anchor)
	}
}

func TestEstimateDegradesToNil(t *testing.T) {
	bands := Estimate(VolInputs{
		Closes: []float64{100, 101}, // too short
		Rows:   nil,
		Spot:   6449,
		Lambda: 0.94,
		Now:    testNow,
	})
	if bands.Sigma.Realized != nil || bands.Sigma.Implied1D != nil || bands.Sigma.Base != nil {
		t.Error("expected all sigma components nil with insufficient inputs")
	}
	if bands.Spot != nil {
		t.Error("expected no bands without a base sigma")
	}
}
