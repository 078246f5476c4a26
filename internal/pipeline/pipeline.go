// Package pipeline orchestrates the ETL run: it fans the scraper out over
// a bounded worker pool, persists raw snapshots as they arrive, then
// transforms and persists the processed snapshots sequentially.
package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rvellore/etfscope/internal/lake"
	"github.com/rvellore/etfscope/pkg/models"
)

// DefaultWorkers is the worker pool size used when the configuration does
// not set one.
const DefaultWorkers = 3

// Extractor produces one snapshot per symbol. Implemented by
// scraper.Scraper; tests substitute their own.
type Extractor interface {
	Extract(ctx context.Context, symbol string) (*models.ETFSnapshot, error)
}

// Store persists a snapshot into an area of the data lake. Implemented by
// lake.Lake.
type Store interface {
	Save(symbol string, snap *models.ETFSnapshot, area string) error
}

// Pipeline runs the extract-transform-persist cycle over a batch of
// symbols. A pipeline run always completes: failed symbols are logged and
// omitted from the results, never allowed to abort the batch.
type Pipeline struct {
	extractor Extractor
	store     Store
	workers   int
	sink      EventSink
}

// Options holds the pipeline's tunables.
type Options struct {
	Workers int       // bounded pool size, DefaultWorkers when <= 0
	Sink    EventSink // optional structured event receiver
}

// New creates a pipeline over the given extractor and store.
func New(extractor Extractor, store Store, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Pipeline{
		extractor: extractor,
		store:     store,
		workers:   opts.Workers,
		sink:      opts.Sink,
	}
}

// Run executes one full pipeline pass over symbols and reports its
// counters. Extraction runs concurrently; the transform and processed
// writes run strictly after every extraction task has settled, and
// sequentially, since they are cheap next to the network-bound extract.
func (p *Pipeline) Run(ctx context.Context, symbols []string) models.PipelineRunResult {
	start := time.Now()
	log.WithField("symbols", len(symbols)).Info("starting pipeline run")

	snapshots := p.extract(ctx, symbols)

	transformed := 0
	for _, snap := range snapshots {
		Transform(snap)
		transformed++
		if err := p.store.Save(snap.Symbol, snap, lake.AreaProcessed); err != nil {
			log.WithFields(log.Fields{
				"symbol": snap.Symbol,
				"cause":  err.Error(),
			}).Error("failed to save processed snapshot")
			continue
		}
		p.emit(Event{Type: EventSnapshotSaved, Symbol: snap.Symbol, Area: lake.AreaProcessed})
	}

	result := models.PipelineRunResult{
		Duration:                  time.Since(start),
		DurationSeconds:           time.Since(start).Seconds(),
		SymbolsProcessed:          len(symbols),
		SuccessfulExtractions:     len(snapshots),
		SuccessfulTransformations: transformed,
	}

	log.WithFields(log.Fields{
		"symbols":     result.SymbolsProcessed,
		"extracted":   result.SuccessfulExtractions,
		"transformed": result.SuccessfulTransformations,
		"duration":    result.Duration.Round(time.Millisecond),
	}).Info("pipeline run finished")
	p.emit(Event{Type: EventRunFinished, Result: &result})

	return result
}

// extract dispatches one task per symbol into the bounded pool and
// collects successful snapshots as they complete, saving each raw
// snapshot on arrival. Tasks are independent; a failed symbol is logged
// and excluded without cancelling its siblings.
func (p *Pipeline) extract(ctx context.Context, symbols []string) []*models.ETFSnapshot {
	results := make(chan *models.ETFSnapshot, len(symbols))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, symbol := range symbols {
		g.Go(func() error {
			p.emit(Event{Type: EventExtractStarted, Symbol: symbol})

			snap, err := p.extractor.Extract(ctx, symbol)
			if err != nil {
				log.WithFields(log.Fields{
					"symbol": symbol,
					"cause":  err.Error(),
				}).Error("extraction failed")
				p.emit(Event{Type: EventExtractFailed, Symbol: symbol, Error: err.Error()})
				return nil // one bad symbol never aborts the batch
			}

			p.emit(Event{Type: EventExtractSucceeded, Symbol: symbol, Holdings: len(snap.Holdings)})
			results <- snap
			return nil
		})
	}

	go func() {
		g.Wait() //nolint:errcheck // workers never return errors
		close(results)
	}()

	var snapshots []*models.ETFSnapshot
	for snap := range results {
		if err := p.store.Save(snap.Symbol, snap, lake.AreaRaw); err != nil {
			log.WithFields(log.Fields{
				"symbol": snap.Symbol,
				"cause":  err.Error(),
			}).Error("failed to save raw snapshot")
		} else {
			p.emit(Event{Type: EventSnapshotSaved, Symbol: snap.Symbol, Area: lake.AreaRaw})
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// emit forwards an event to the sink, if one is attached.
func (p *Pipeline) emit(ev Event) {
	if p.sink != nil {
		p.sink(ev)
	}
}
