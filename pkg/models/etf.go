// Package models defines the shared data types exchanged between the
// scraper, the pipeline, the data lake, and the read-side API.
package models

import "time"

// HoldingRecord represents a single constituent of an ETF's portfolio.
//
// WeightPct is a fraction (0.0512 means 5.12%), not a percentage.
// Numeric fields that could not be parsed upstream are 0, never omitted:
// a bad number degrades the record, only a bad row drops it.
type HoldingRecord struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	WeightPct      float64 `json:"weight_pct"`
	Shares         float64 `json:"shares"`
	MarketValueUSD float64 `json:"market_value_usd"`

	// Derived fields, populated by the pipeline transform step.
	MarketValueMillions float64 `json:"market_value_millions"`
	WeightBps           float64 `json:"weight_bps"`
}

// QuoteSummary holds the quote banner of an ETF landing page, captured
// verbatim as strings. Extraction is best-effort: any subset of fields
// (including all of them) may be empty when the page layout has drifted.
type QuoteSummary struct {
	LastPrice   string `json:"last_price,omitempty"`
	Change      string `json:"change,omitempty"`
	Bid         string `json:"bid,omitempty"`
	BidSize     string `json:"bid_size,omitempty"`
	Ask         string `json:"ask,omitempty"`
	AskSize     string `json:"ask_size,omitempty"`
	Volume      string `json:"volume,omitempty"`
	VolumeLabel string `json:"volume_label,omitempty"`
	AsOf        string `json:"as_of,omitempty"`
	Title       string `json:"title,omitempty"`
}

// IsEmpty reports whether no summary field was captured.
func (q QuoteSummary) IsEmpty() bool {
	return q == QuoteSummary{}
}

// ETFSnapshot is one point-in-time capture of an ETF: its quote summary
// and its holdings in source order (descending weight).
type ETFSnapshot struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   QuoteSummary    `json:"summary"`
	Holdings  []HoldingRecord `json:"holdings"`
}

// PipelineRunResult aggregates the counters of one pipeline invocation.
type PipelineRunResult struct {
	Duration                  time.Duration `json:"-"`
	DurationSeconds           float64       `json:"duration_seconds"`
	SymbolsProcessed          int           `json:"symbols_processed"`
	SuccessfulExtractions     int           `json:"successful_extractions"`
	SuccessfulTransformations int           `json:"successful_transformations"`
}
