package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/stream"
)

// Publisher is the downstream the pipeline hands normalized events to.
// Implemented by *stream.Publisher.
type Publisher interface {
	Publish(ctx context.Context, events []canonical.Event) (stream.Result, error)
}

// IngestResult reports one connector's ingest pass.
type IngestResult struct {
	ConnectorID      string   `json:"connector_id"`
	RowsFetched      int      `json:"rows_fetched"`
	RowsSkipped      int      `json:"rows_skipped"`
	EventsPublished  int      `json:"events_published"`
	BatchesPublished int      `json:"batches_published"`
	Errors           []string `json:"errors,omitempty"`
}

// Pipeline drives connectors end to end: discover, fetch, normalize,
// publish. Connectors run in parallel; each one's failures stay its own.
type Pipeline struct {
	normalizer *Normalizer
	publisher  Publisher
	health     *HealthTracker
}

// NewPipeline wires an ingest pipeline.
func NewPipeline(normalizer *Normalizer, publisher Publisher, health *HealthTracker) *Pipeline {
	return &Pipeline{normalizer: normalizer, publisher: publisher, health: health}
}

// Run ingests every connector concurrently and returns one result per
// connector, in input order.
func (p *Pipeline) Run(ctx context.Context, connectors []Connector) []IngestResult {
	results := make([]IngestResult, len(connectors))
	var wg sync.WaitGroup
	for i, c := range connectors {
		wg.Add(1)
		go func(i int, c Connector) {
			defer wg.Done()
			results[i] = p.runOne(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return results
}

// runOne ingests one connector. A fetch error on a descriptor is recorded
// in connector health, but rows fetched before the failure are still
// normalized and published.
func (p *Pipeline) runOne(ctx context.Context, c Connector) IngestResult {
	result := IngestResult{ConnectorID: c.ID()}

	descriptors, err := c.Discover(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("discover: %v", err))
		p.health.RecordFailure(c.ID(), err)
		return result
	}

	var events []canonical.Event
	fetchFailed := false
	for _, d := range descriptors {
		rows, err := Drain(ctx, c, d)
		if err != nil {
			fetchFailed = true
			result.Errors = append(result.Errors, fmt.Sprintf("fetch %s: %v", d.SourceTable, err))
			p.health.RecordFailure(c.ID(), err)
		}
		result.RowsFetched += len(rows)
		if len(rows) == 0 {
			continue
		}

		normalized, err := p.normalizer.NormalizeRows(ctx, c, d, rows)
		result.RowsSkipped += normalized.Skipped
		events = append(events, normalized.Events...)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("normalize %s: %v", d.SourceTable, err))
		}
	}
	if !fetchFailed {
		p.health.RecordSuccess(c.ID())
	}

	published, err := p.publisher.Publish(ctx, events)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("publish: %v", err))
	}
	result.Errors = append(result.Errors, published.Errors...)
	result.EventsPublished = published.TotalRecords
	result.BatchesPublished = published.BatchesPublished

	slog.Info("connector ingest complete",
		"connector", c.ID(),
		"rows", result.RowsFetched,
		"skipped", result.RowsSkipped,
		"published", result.EventsPublished,
		"batches", result.BatchesPublished,
		"errors", len(result.Errors),
	)
	return result
}
