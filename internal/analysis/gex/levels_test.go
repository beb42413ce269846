package gex

import (
	"testing"
	"time"

	"github.com/vovonacci/gexray/pkg/models"
)

func TestTopStrikeByCall(t *testing.T) {
	masses := []models.StrikeMass{
		{Strike: 110, Call: 300, Put: 900},
		{Strike: 100, Call: 500, Put: 100},
		{Strike: 90, Call: 200, Put: 400},
	}

	cr := TopStrikeByCall(masses, 100)
	if cr == nil || *cr != 100 {
		t.Fatalf("expected call resistance 100, got %v", cr)
	}

	ps := TopStrikeByPut(masses, 100)
	if ps == nil || *ps != 110 {
		t.Fatalf("expected put support 110, got %v", ps)
	}
}

func TestTopStrikeEmpty(t *testing.T) {
	if TopStrikeByCall(nil, 100) != nil {
		t.Error("expected nil call resistance for empty input")
	}
	if TopStrikeByPut([]models.StrikeMass{}, 100) != nil {
		t.Error("expected nil put support for empty input")
	}
}

func TestTopStrikeTieBreak(t *testing.T) {
	// Equal masses: the strike closest to spot wins regardless of order.
	masses := []models.StrikeMass{
		{Strike: 120, Call: 500},
		{Strike: 101, Call: 500},
		{Strike: 80, Call: 500},
	}
	cr := TopStrikeByCall(masses, 100)
	if cr == nil || *cr != 101 {
		t.Fatalf("expected tie broken toward spot (101), got %v", cr)
	}
}

func TestTopStrikeMaximal(t *testing.T) {
	masses := []models.StrikeMass{
		{Strike: 95, Call: 10, Put: 50},
		{Strike: 100, Call: 70, Put: 20},
		{Strike: 105, Call: 30, Put: 60},
	}
	cr := TopStrikeByCall(masses, 100)
	if cr == nil {
		t.Fatal("expected non-nil call resistance")
	}
	var crMass float64
	for _, m := range masses {
		if m.Strike == *cr {
			crMass = m.Call
		}
	}
	for _, m := range masses {
		if m.Call > crMass {
			t.Errorf("strike %v has larger call mass than returned level", m.Strike)
		}
	}
}

func TestZeroDTEExpiry(t *testing.T) {
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-21", 100, 10, 0.002), // past
		makeRow(models.SideCall, "2026-08-28", 100, 10, 0.002),
		makeRow(models.SidePut, "2026-09-18", 100, 10, 0.002),
	}
	// 2026-08-26 14:00 UTC is 2026-08-26 10:00 in New York.
	exp := ZeroDTEExpiry(rows, testNow)
	if exp == nil || *exp != "2026-08-28" {
		t.Fatalf("expected 2026-08-28, got %v", exp)
	}
}

func TestZeroDTEExpirySameDay(t *testing.T) {
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-26", 100, 10, 0.002),
		makeRow(models.SideCall, "2026-09-18", 100, 10, 0.002),
	}
	exp := ZeroDTEExpiry(rows, testNow)
	if exp == nil || *exp != "2026-08-26" {
		t.Fatalf("expected today's expiry 2026-08-26, got %v", exp)
	}
}

func TestZeroDTEExpiryStale(t *testing.T) {
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-01", 100, 10, 0.002),
		makeRow(models.SideCall, "2026-08-14", 100, 10, 0.002),
	}
	if exp := ZeroDTEExpiry(rows, testNow); exp != nil {
		t.Fatalf("expected nil for all-past expiries, got %v", *exp)
	}
}

func TestZeroDTEExpiryNYBoundary(t *testing.T) {
	// 2026-08-27 01:00 UTC is still 2026-08-26 in New York, so the
	// 2026-08-26 expiry has not rolled off yet.
	lateUTC := time.Date(2026, 8, 27, 1, 0, 0, 0, time.UTC)
	rows := []models.OptionRow{
		makeRow(models.SideCall, "2026-08-26", 100, 10, 0.002),
	}
	exp := ZeroDTEExpiry(rows, lateUTC)
	if exp == nil || *exp != "2026-08-26" {
		t.Fatalf("expected 2026-08-26 before NY midnight, got %v", exp)
	}
}

func TestTopPutMasses(t *testing.T) {
	rows := []models.OptionRow{
		makeRow(models.SidePut, "2026-08-28", 90, 20, 0.002),
		makeRow(models.SidePut, "2026-08-28", 95, 5, 0.001),
		makeRow(models.SidePut, "2026-08-28", 90, 10, 0.001), // same strike, summed
		makeRow(models.SidePut, "2026-09-18", 90, 99, 0.009), // other expiry, ignored
		makeRow(models.SideCall, "2026-08-28", 90, 99, 0.009),
	}

	ranks := TopPutMasses(rows, "2026-08-28", 100, 10)
	if len(ranks) != 2 {
		t.Fatalf("expected 2 strikes, got %d", len(ranks))
	}
	if ranks[0].Strike != 90 {
		t.Errorf("expected strike 90 ranked first, got %v", ranks[0].Strike)
	}
	if ranks[0].Mass <= ranks[1].Mass {
		t.Errorf("expected descending mass order, got %+v", ranks)
	}

	limited := TopPutMasses(rows, "2026-08-28", 100, 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d rows", len(limited))
	}
}
