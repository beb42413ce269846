// Package datasource fetches market data from the Polygon.io REST API:
// the full option-chain snapshot (with vendor-supplied Greeks) and daily
// aggregate closes. Responses are decoded into loose RawOptionRecord
// values; all validation lives in the analysis normalizer.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vovonacci/gexray/internal/infra"
	"github.com/vovonacci/gexray/pkg/models"
)

// ErrNoData is returned when the vendor responds successfully but with an
// empty result set for a price-history request.
var ErrNoData = fmt.Errorf("no data returned by vendor")

// maxChainPages bounds next_url pagination so a vendor bug cannot spin
// the fetch forever.
const maxChainPages = 40

// Polygon is the Polygon.io market-data source.
type Polygon struct {
	apiKey  string
	baseURL string
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewPolygon creates a Polygon source. baseURL defaults to the production
// API when empty.
func NewPolygon(apiKey, baseURL string) *Polygon {
	if baseURL == "" {
		baseURL = "https://api.polygon.io"
	}
	return &Polygon{
		apiKey:  apiKey,
		baseURL: baseURL,
		cache:   infra.NewCache(time.Minute),
		limiter: infra.NewRateLimiter(5, time.Second),
	}
}

// --- Polygon v3 option-chain snapshot types ---

type polygonChainResponse struct {
	Results []polygonContract `json:"results"`
	Status  string            `json:"status"`
	NextURL string            `json:"next_url"`
}

type polygonContract struct {
	Details struct {
		Ticker         string  `json:"ticker"`
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
	} `json:"details"`
	Greeks *struct {
		Gamma *float64 `json:"gamma"`
	} `json:"greeks"`
	ImpliedVolatility *float64 `json:"implied_volatility"`
	OpenInterest      *int64   `json:"open_interest"`
	LastQuote         *struct {
		LastUpdated json.Number `json:"last_updated"` // ns
	} `json:"last_quote"`
	LastTrade *struct {
		SipTimestamp json.Number `json:"sip_timestamp"` // ns
	} `json:"last_trade"`
	Day *struct {
		LastUpdated json.Number `json:"last_updated"` // ns
	} `json:"day"`
}

// OptionsChain fetches the full option-chain snapshot for a ticker,
// following next_url pagination, and maps it to raw records. No filtering
// happens here: both aggregation presets must see the same snapshot.
func (p *Polygon) OptionsChain(ctx context.Context, ticker string) ([]models.RawOptionRecord, error) {
	cacheKey := "chain:" + ticker
	if cached, ok := p.cache.Get(cacheKey); ok {
		return cached.([]models.RawOptionRecord), nil
	}

	url := fmt.Sprintf(
		"%s/v3/snapshot/options/%s?limit=250&order=asc&sort=expiration_date",
		p.baseURL, ticker,
	)

	var recs []models.RawOptionRecord
	for page := 0; url != "" && page < maxChainPages; page++ {
		var resp polygonChainResponse
		if err := p.getJSON(ctx, url, &resp); err != nil {
			return nil, fmt.Errorf("polygon options chain %s: %w", ticker, err)
		}

		for _, c := range resp.Results {
			rec := models.RawOptionRecord{
				Ticker: c.Details.Ticker,
				Side:   c.Details.ContractType,
				Expiry: c.Details.ExpirationDate,
				Strike: c.Details.StrikePrice,
			}
			if c.Greeks != nil {
				rec.Gamma = c.Greeks.Gamma
			}
			rec.ImpliedVol = c.ImpliedVolatility
			rec.OpenInterest = c.OpenInterest
			if c.LastQuote != nil {
				rec.QuoteTime = c.LastQuote.LastUpdated
			}
			if c.LastTrade != nil {
				rec.TradeTime = c.LastTrade.SipTimestamp
			}
			if c.Day != nil {
				rec.DayBarTime = c.Day.LastUpdated
			}
			recs = append(recs, rec)
		}

		url = resp.NextURL
	}

	p.cache.Set(cacheKey, recs)
	return recs, nil
}

// --- Polygon v2 daily aggregates types ---

type polygonAggsResponse struct {
	Results []struct {
		Close float64 `json:"c"`
		Time  int64   `json:"t"` // ms
	} `json:"results"`
	Status string `json:"status"`
}

// DailyCloses fetches ordered daily closing prices for the lookback
// window ending today.
func (p *Polygon) DailyCloses(ctx context.Context, ticker string, lookbackDays int) ([]float64, error) {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}

	cacheKey := fmt.Sprintf("closes:%s:%d", ticker, lookbackDays)
	if cached, ok := p.cache.Get(cacheKey); ok {
		return cached.([]float64), nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -lookbackDays)
	url := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=%d",
		p.baseURL, ticker, from.Format("2006-01-02"), to.Format("2006-01-02"), lookbackDays+10,
	)

	var resp polygonAggsResponse
	if err := p.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("polygon daily closes %s: %w", ticker, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: daily closes for %s", ErrNoData, ticker)
	}

	closes := make([]float64, len(resp.Results))
	for i, bar := range resp.Results {
		closes[i] = bar.Close
	}

	p.cache.Set(cacheKey, closes)
	return closes, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
// Auth rides in the Authorization header so paginated next_url values
// work unmodified.
func (p *Polygon) getJSON(ctx context.Context, url string, dst any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	headers := map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
	body, status, err := infra.DoGet(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()

	if status >= 400 {
		b, _ := io.ReadAll(body)
		return fmt.Errorf("polygon HTTP %d: %s", status, string(b))
	}
	return json.NewDecoder(body).Decode(dst)
}
