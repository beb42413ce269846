// Package engine orchestrates one analytics request: it fetches the
// option chain and close-price history concurrently, runs the gex
// pipeline, and assembles the display-ready snapshot.
package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vovonacci/gexray/internal/analysis/gex"
	"github.com/vovonacci/gexray/internal/config"
	"github.com/vovonacci/gexray/internal/datasource"
	"github.com/vovonacci/gexray/pkg/models"
)

// MarketData is the upstream data dependency. Satisfied by
// datasource.Polygon; stubbed in tests.
type MarketData interface {
	OptionsChain(ctx context.Context, ticker string) ([]models.RawOptionRecord, error)
	DailyCloses(ctx context.Context, ticker string, lookbackDays int) ([]float64, error)
}

// putTableSize is the row count of the nearest-expiry put-mass table.
const putTableSize = 10

// Engine computes GEX snapshots. Stateless between requests; everything
// is recomputed per call.
type Engine struct {
	cfg    *config.Config
	source MarketData
}

// New creates an engine over the given data source.
func New(cfg *config.Config, source MarketData) *Engine {
	return &Engine{cfg: cfg, source: source}
}

// Snapshot runs the full pipeline for one ticker. spotOverride > 0 wins
// over the configured spot. A failed chain or history fetch fails the
// whole computation — levels, HVL, and bands all need one consistent
// snapshot, so no partial results are returned. An empty chain is not an
// error: aggregates degrade to empty series and nil levels.
func (e *Engine) Snapshot(ctx context.Context, ticker string, spotOverride float64) (*models.GexSnapshot, error) {
	spot := e.cfg.ResolveSpot(spotOverride)
	now := time.Now()

	var (
		recs   []models.RawOptionRecord
		closes []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = e.source.OptionsChain(gctx, ticker)
		return err
	})
	g.Go(func() error {
		var err error
		closes, err = e.source.DailyCloses(gctx, ticker, e.cfg.Polygon.LookbackDays)
		if errors.Is(err, datasource.ErrNoData) {
			// Missing history degrades the realized-vol leg, it does
			// not abort the snapshot.
			closes = nil
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows, asOfMs := gex.Normalize(recs)
	gcfg := e.cfg.Gex

	// All-expirations aggregate.
	massAll := gex.Aggregate(rows, spot, gex.Filters{
		MaxDTEDays:      gcfg.All.MaxDTEDays,
		MinOpenInterest: gcfg.All.MinOI,
		SpotWindow:      gcfg.All.SpotWindow,
		BinStep:         gcfg.All.BinStep,
	}, now)

	// Zero-DTE aggregates: a tight display preset plus a wider-window,
	// unbinned pass for the flip-level curve so HVL is not overfit to a
	// handful of display strikes.
	zeroExpiry := gex.ZeroDTEExpiry(rows, now)
	var mass0, mass0Curve []models.StrikeMass
	if zeroExpiry != nil {
		mass0 = gex.Aggregate(rows, spot, gex.Filters{
			Expiry:          *zeroExpiry,
			MinOpenInterest: gcfg.ZeroDTE.MinOI,
			SpotWindow:      gcfg.ZeroDTE.SpotWindow,
			BinStep:         gcfg.ZeroDTE.BinStep,
		}, now)
		mass0Curve = gex.Aggregate(rows, spot, gex.Filters{
			Expiry:          *zeroExpiry,
			MinOpenInterest: gcfg.ZeroDTE.MinOI,
			SpotWindow:      gcfg.CurveSpotWindow0,
		}, now)
	}

	hvlAll, curveAll := gex.BuildCurve(massAll, gcfg.SmoothAll)
	hvl0, curve0 := gex.BuildCurve(mass0Curve, gcfg.SmoothZeroDTE)

	levels := models.LevelSet{
		CallResistance: gex.TopStrikeByCall(massAll, spot),
		PutSupport:     gex.TopStrikeByPut(massAll, spot),
		HVL:            hvlAll,
		ZeroDTE: models.ZeroDTELevels{
			Expiry:         zeroExpiry,
			CallResistance: gex.TopStrikeByCall(mass0, spot),
			PutSupport:     gex.TopStrikeByPut(mass0, spot),
			HVL:            hvl0,
		},
	}

	// Coarse gamma regime from the all-expirations net mass.
	net := 0.0
	for _, m := range massAll {
		net += m.Call - m.Put
	}
	gammaPositive := net >= 0

	var topPuts []models.StrikeMassRank
	if zeroExpiry != nil {
		topPuts = gex.TopPutMasses(rows, *zeroExpiry, spot, putTableSize)
	}

	bands := gex.Estimate(gex.VolInputs{
		Closes:        closes,
		Rows:          rows,
		Spot:          spot,
		HVL:           hvlAll,
		GammaPositive: gammaPositive,
		Lambda:        e.cfg.Vol.Lambda,
		Now:           now,
	})

	return &models.GexSnapshot{
		Ticker:        ticker,
		Spot:          spot,
		ZeroDTEExpiry: zeroExpiry,
		Levels:        levels,
		MassAll:       barSeries(massAll, curveAll, gcfg.BarQuantile),
		Mass0:         barSeries(mass0, curve0, gcfg.BarQuantile),
		TopPuts:       topPuts,
		AsOfMs:        asOfMs,
		Bands:         bands,
	}, nil
}

// barSeries formats one aggregate for display: squashed two-sided bars
// with the cumulative curve resampled at the bar strikes and rescaled
// onto the bar axis.
func barSeries(masses []models.StrikeMass, curve []models.CurvePoint, quantile float64) models.BarSeries {
	bars := gex.NormalizeBars(gex.ToBars(masses), quantile)

	strikes := make([]float64, len(bars))
	for i, b := range bars {
		strikes[i] = b.Strike
	}
	overlay := gex.ScaleCurve(gex.ResampleCurve(curve, strikes), gex.MaxBarMagnitude(bars))

	if bars == nil {
		bars = []models.Bar{}
	}
	return models.BarSeries{Bars: bars, Curve: overlay}
}
