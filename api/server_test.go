package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vovonacci/gexray/internal/config"
	"github.com/vovonacci/gexray/internal/engine"
	"github.com/vovonacci/gexray/pkg/models"
)

// stubSource serves canned vendor data to the engine under test.
type stubSource struct {
	recs     []models.RawOptionRecord
	closes   []float64
	chainErr error
}

func (s *stubSource) OptionsChain(ctx context.Context, ticker string) ([]models.RawOptionRecord, error) {
	return s.recs, s.chainErr
}

func (s *stubSource) DailyCloses(ctx context.Context, ticker string, lookbackDays int) ([]float64, error) {
	return s.closes, nil
}

func testServer(src *stubSource) *Server {
	cfg := &config.Config{
		Spot: config.SpotConfig{Default: 100},
		Gex: config.GexConfig{
			All:              config.PresetConfig{SpotWindow: 0.35, MinOI: 1, MaxDTEDays: 365, BinStep: 5},
			ZeroDTE:          config.PresetConfig{SpotWindow: 0.05, MinOI: 1, BinStep: 5},
			CurveSpotWindow0: 0.08,
			SmoothAll:        5,
			SmoothZeroDTE:    7,
			BarQuantile:      0.9,
		},
		Vol: config.VolConfig{Lambda: 0.94},
		API: config.APIConfig{CORSOrigins: []string{"http://localhost:3000"}},
	}
	return NewServer(cfg, engine.New(cfg, src))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func chainFixture() []models.RawOptionRecord {
	expiry := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	return []models.RawOptionRecord{
		{Ticker: "O:A", Side: "call", Expiry: expiry, Strike: 105, OpenInterest: ip(50), Gamma: fp(0.004), ImpliedVol: fp(0.16)},
		{Ticker: "O:B", Side: "put", Expiry: expiry, Strike: 95, OpenInterest: ip(80), Gamma: fp(0.003), ImpliedVol: fp(0.19)},
	}
}

func closesFixture() []float64 {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	return closes
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&stubSource{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
}

func TestGexEndpoint(t *testing.T) {
	srv := testServer(&stubSource{recs: chainFixture(), closes: closesFixture()})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gex/I:SPX", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var snap models.GexSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}

	if snap.Ticker != "I:SPX" {
		t.Errorf("expected ticker I:SPX, got %s", snap.Ticker)
	}
	if snap.Spot != 100 {
		t.Errorf("expected configured spot 100, got %v", snap.Spot)
	}
	if snap.Levels.CallResistance == nil {
		t.Error("expected call resistance with a populated chain")
	}
}

func TestGexEndpointSpotOverride(t *testing.T) {
	srv := testServer(&stubSource{recs: chainFixture(), closes: closesFixture()})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gex/I:SPX?spot=104", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var snap models.GexSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Spot != 104 {
		t.Errorf("expected override spot 104, got %v", snap.Spot)
	}
}

func TestGexEndpointBadSpot(t *testing.T) {
	srv := testServer(&stubSource{})
	for _, q := range []string{"spot=abc", "spot=-5", "spot=0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/gex/I:SPX?"+q, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestGexEndpointEmptyChain(t *testing.T) {
	// A valid fetch with zero rows is "no data", not an error.
	srv := testServer(&stubSource{closes: closesFixture()})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gex/I:SPX", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty chain, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success for empty chain, got %q", resp.Error)
	}
}

func TestGexEndpointUpstreamFailure(t *testing.T) {
	srv := testServer(&stubSource{chainErr: fmt.Errorf("rate limited")})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gex/I:SPX", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error == "" {
		t.Error("expected error envelope for upstream failure")
	}
}
