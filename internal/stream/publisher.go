// Package stream publishes canonical events onto bounded per-tenant
// streams with a durable audit trail behind them.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/canonical"
)

// DefaultBatchSize is how many events one publish batch carries.
const DefaultBatchSize = 200

// DefaultMaxStreamLength caps how many entries a stream key retains;
// older entries are trimmed. The audit log keeps everything.
const DefaultMaxStreamLength = 10000

// Backend is the persistence the publisher writes through.
// Implemented by *store.Store. AppendBatch must be transactional per call:
// either every event of the batch lands on the stream and the audit log,
// or none do.
type Backend interface {
	AppendBatch(ctx context.Context, key, batchID string, events []canonical.Event, maxLen int) error
}

// Result reports one Publish call's outcome. Errors holds one entry per
// failed batch; successful batches are unaffected by failed ones.
type Result struct {
	BatchesPublished int      `json:"batches_published"`
	TotalRecords     int      `json:"total_records"`
	BatchIDs         []string `json:"batch_ids"`
	Errors           []string `json:"errors,omitempty"`
}

// Publisher chunks validated canonical events into batches and appends
// them to tenant+source scoped stream keys.
type Publisher struct {
	backend   Backend
	batchSize int
	maxLen    int
	newID     func() string
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithBatchSize overrides the per-batch event count.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMaxStreamLength overrides the per-key retention cap.
func WithMaxStreamLength(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

// WithBatchIDFunc overrides batch id generation, for deterministic tests.
func WithBatchIDFunc(fn func() string) Option {
	return func(p *Publisher) { p.newID = fn }
}

// NewPublisher creates a publisher with the default batch size and
// stream cap.
func NewPublisher(backend Backend, opts ...Option) *Publisher {
	p := &Publisher{
		backend:   backend,
		batchSize: DefaultBatchSize,
		maxLen:    DefaultMaxStreamLength,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StreamKey builds the stream key a tenant+source pair publishes under.
func StreamKey(tenantID, sourceSystem string) string {
	return tenantID + ":" + sourceSystem
}

// Publish appends events to their streams in batches. Events are grouped
// by (tenant, source system) in first-seen order, each group is chunked to
// the batch size, and every chunk gets a fresh batch id. A batch failure
// is recorded and publishing continues with the next batch: batches are
// independent, all-or-nothing units.
func (p *Publisher) Publish(ctx context.Context, events []canonical.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}

	var keys []string
	groups := make(map[string][]canonical.Event)
	for _, ev := range events {
		key := StreamKey(ev.Meta.TenantID, ev.Source.System)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], ev)
	}

	var result Result
	for _, key := range keys {
		group := groups[key]
		for start := 0; start < len(group); start += p.batchSize {
			end := start + p.batchSize
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]
			batchID := p.newID()

			if err := p.backend.AppendBatch(ctx, key, batchID, batch, p.maxLen); err != nil {
				msg := fmt.Sprintf("batch %s (%d events): %v", batchID, len(batch), err)
				result.Errors = append(result.Errors, msg)
				slog.Error("publish batch failed",
					"stream", key,
					"batch", batchID,
					"events", len(batch),
					"error", err,
				)
				continue
			}

			result.BatchesPublished++
			result.TotalRecords += len(batch)
			result.BatchIDs = append(result.BatchIDs, batchID)
			slog.Debug("batch published",
				"stream", key,
				"batch", batchID,
				"events", len(batch),
			)
		}
	}
	return result, nil
}
