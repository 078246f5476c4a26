package pipeline

import (
	"testing"

	"github.com/rvellore/etfscope/pkg/models"
)

func TestTransform(t *testing.T) {
	snap := &models.ETFSnapshot{
		Symbol: "VTI",
		Holdings: []models.HoldingRecord{
			{Symbol: "AAPL", WeightPct: 0.0661, MarketValueUSD: 44.3e9},
			{Symbol: "MSFT", WeightPct: 0.0582, MarketValueUSD: 39.0e9},
			{Symbol: "ZERO"}, // missing base fields stay zero
		},
	}

	Transform(snap)

	if got, want := snap.Holdings[0].WeightBps, 661.0; got != want {
		t.Errorf("WeightBps = %v, want %v", got, want)
	}
	if got, want := snap.Holdings[0].MarketValueMillions, 44300.0; got != want {
		t.Errorf("MarketValueMillions = %v, want %v", got, want)
	}
	if snap.Holdings[2].WeightBps != 0 || snap.Holdings[2].MarketValueMillions != 0 {
		t.Errorf("zero base fields must derive to zero, got %+v", snap.Holdings[2])
	}
}

func TestTransformIdempotent(t *testing.T) {
	snap := &models.ETFSnapshot{
		Holdings: []models.HoldingRecord{
			{Symbol: "AAPL", WeightPct: 0.05, Shares: 1000, MarketValueUSD: 2.5e9},
		},
	}

	Transform(snap)
	once := snap.Holdings[0]

	Transform(snap)
	twice := snap.Holdings[0]

	if once != twice {
		t.Errorf("transform is not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
	if twice.WeightBps != 500 {
		t.Errorf("WeightBps = %v, want 500", twice.WeightBps)
	}
	if twice.MarketValueMillions != 2500 {
		t.Errorf("MarketValueMillions = %v, want 2500", twice.MarketValueMillions)
	}
}
