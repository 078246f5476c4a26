package pipeline

import "github.com/rvellore/etfscope/pkg/models"

// Transform enriches a snapshot's holdings with their derived fields:
// market value in millions and weight in basis points.
//
// It is pure and idempotent: derived fields are recomputed from the base
// fields on every call, so re-running it on an already-enriched snapshot
// yields the same values. A zero or missing base field produces a zero
// derived field; the base field itself is never touched.
func Transform(snap *models.ETFSnapshot) *models.ETFSnapshot {
	for i := range snap.Holdings {
		h := &snap.Holdings[i]

		h.MarketValueMillions = 0
		if h.MarketValueUSD != 0 {
			h.MarketValueMillions = h.MarketValueUSD / 1e6
		}

		h.WeightBps = 0
		if h.WeightPct != 0 {
			h.WeightBps = h.WeightPct * 10000
		}
	}
	return snap
}
