package models

import "encoding/json"

// OptionSide distinguishes calls from puts.
type OptionSide string

const (
	SideCall OptionSide = "call"
	SidePut  OptionSide = "put"
)

// RawOptionRecord is one contract as returned by the market-data vendor,
// before validation. Timestamps are kept as json.Number because the vendor
// mixes nanosecond and millisecond epochs and some feeds emit them as
// strings wider than an int64. The normalizer is the only consumer.
type RawOptionRecord struct {
	Ticker       string      `json:"ticker"`
	Side         string      `json:"contract_type"`
	Expiry       string      `json:"expiration_date"` // ISO YYYY-MM-DD
	Strike       float64     `json:"strike_price"`
	OpenInterest *int64      `json:"open_interest"`
	Gamma        *float64    `json:"gamma"`
	ImpliedVol   *float64    `json:"implied_volatility"`
	QuoteTime    json.Number `json:"quote_time,omitempty"`
	TradeTime    json.Number `json:"trade_time,omitempty"`
	GreeksTime   json.Number `json:"greeks_time,omitempty"`
	DayBarTime   json.Number `json:"day_bar_time,omitempty"`
}

// OptionRow is one validated option contract observation. Produced only by
// the normalizer; every row is guaranteed to carry a finite non-zero gamma,
// so downstream code never re-checks field presence.
type OptionRow struct {
	InstrumentID string     `json:"instrument_id"`
	Side         OptionSide `json:"side"`
	Expiry       string     `json:"expiry"` // ISO YYYY-MM-DD
	Strike       float64    `json:"strike"`
	OpenInterest int64      `json:"open_interest"`
	Gamma        float64    `json:"gamma"`
	ImpliedVol   float64    `json:"implied_vol"` // annualized; 0 = unavailable
}

// StrikeMass is the aggregated gamma mass at one (possibly binned) strike.
// Both sides are magnitudes (>= 0); the put side is negated only at
// formatting time, never here.
type StrikeMass struct {
	Strike float64 `json:"strike"`
	Call   float64 `json:"call"`
	Put    float64 `json:"put"`
}

// ZeroDTELevels are the derived levels for the nearest-expiry aggregate.
type ZeroDTELevels struct {
	Expiry         *string  `json:"expiry"`
	CallResistance *float64 `json:"call_resistance"`
	PutSupport     *float64 `json:"put_support"`
	HVL            *float64 `json:"hvl"`
}

// LevelSet carries the derived price levels for one snapshot. Each field is
// nil when the underlying aggregate is empty.
type LevelSet struct {
	CallResistance *float64      `json:"call_resistance"`
	PutSupport     *float64      `json:"put_support"`
	HVL            *float64      `json:"hvl"`
	ZeroDTE        ZeroDTELevels `json:"zero_dte"`
}

// CurvePoint is one point of the cumulative net-gamma curve.
type CurvePoint struct {
	Strike float64 `json:"strike"`
	Value  float64 `json:"value"`
}

// Bar is a display-ready two-sided bar: call positive, put negative.
type Bar struct {
	Strike float64 `json:"strike"`
	Call   float64 `json:"call"`
	Put    float64 `json:"put"`
}

// BarSeries couples a bar series with the cumulative curve rescaled onto
// the bar axis for overlay plotting.
type BarSeries struct {
	Bars  []Bar        `json:"bars"`
	Curve []CurvePoint `json:"curve"`
}

// SigmaSet holds the one-day volatility components. Each field is nil when
// its inputs were insufficient.
type SigmaSet struct {
	Realized     *float64 `json:"realized"`
	Implied1D    *float64 `json:"implied_1d"`
	Base         *float64 `json:"base"`
	Up           *float64 `json:"up"`
	Dn           *float64 `json:"dn"`
	RiskReversal *float64 `json:"risk_reversal"` // annualized
}

// BandLevel is one asymmetric (min, max) price interval.
type BandLevel struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AnchorBands are the 1/2/3-sigma expected-move bands around one anchor.
type AnchorBands struct {
	Anchor float64   `json:"anchor"`
	One    BandLevel `json:"one"`
	Two    BandLevel `json:"two"`
	Three  BandLevel `json:"three"`
}

// Bands is the volatility-band block of a snapshot. HVL is populated only
// in a negative-gamma regime with a defined flip level.
type Bands struct {
	GammaPositive bool         `json:"gamma_positive"`
	Sigma         SigmaSet     `json:"sigma"`
	Spot          *AnchorBands `json:"spot"`
	HVL           *AnchorBands `json:"hvl,omitempty"`
}

// StrikeMassRank is one row of a per-expiry mass leaderboard.
type StrikeMassRank struct {
	Strike float64 `json:"strike"`
	Mass   float64 `json:"mass"`
}

// GexSnapshot is the complete analytics result for one request. It is
// recomputed end to end every time; nothing is persisted or incrementally
// updated.
type GexSnapshot struct {
	Ticker        string           `json:"ticker"`
	Spot          float64          `json:"spot"`
	ZeroDTEExpiry *string          `json:"zero_dte_expiry"`
	Levels        LevelSet         `json:"levels"`
	MassAll       BarSeries        `json:"mass_all"`
	Mass0         BarSeries        `json:"mass_0dte"`
	TopPuts       []StrikeMassRank `json:"top_puts,omitempty"`
	AsOfMs        int64            `json:"as_of_ms"`
	Bands         Bands            `json:"bands"`
}
