package pipeline

import "github.com/rvellore/etfscope/pkg/models"

// EventType identifies a pipeline lifecycle event.
type EventType string

// Pipeline event types, in rough lifecycle order per symbol.
const (
	EventExtractStarted   EventType = "extract_started"
	EventExtractSucceeded EventType = "extract_succeeded"
	EventExtractFailed    EventType = "extract_failed"
	EventSnapshotSaved    EventType = "snapshot_saved"
	EventRunFinished      EventType = "run_finished"
)

// Event is one structured pipeline occurrence. Stages report progress
// through events rather than a shared logger so consumers (the websocket
// feed, tests) can observe a run without scraping output streams.
type Event struct {
	Type     EventType                 `json:"type"`
	Symbol   string                    `json:"symbol,omitempty"`
	Area     string                    `json:"area,omitempty"`
	Holdings int                       `json:"holdings,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Result   *models.PipelineRunResult `json:"result,omitempty"`
}

// EventSink receives pipeline events. Implementations must be safe for
// concurrent calls and must not block; extraction workers emit directly.
type EventSink func(Event)
