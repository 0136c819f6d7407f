package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/drift"
	"github.com/roach88/strata/internal/mapping"
)

// Normalizer turns raw source rows into validated canonical events:
// mapping apply, then registry validation, then the event envelope.
// Unknown fields are reported to the drift detector and ride along on the
// event as extras.
type Normalizer struct {
	mappings *mapping.Store
	registry *canonical.Registry
	detector *drift.Detector
	router   *drift.Router
	now      func() time.Time
	newTrace func() string
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithNormalizerClock overrides the emitted_at time source.
func WithNormalizerClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// WithTraceIDFunc overrides trace id generation, for deterministic tests.
func WithTraceIDFunc(fn func() string) NormalizerOption {
	return func(n *Normalizer) { n.newTrace = fn }
}

// NewNormalizer wires the normalization path. The detector and router may
// be nil, in which case unknown fields still land in extras but raise no
// drift observations.
func NewNormalizer(mappings *mapping.Store, registry *canonical.Registry, detector *drift.Detector, router *drift.Router, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		mappings: mappings,
		registry: registry,
		detector: detector,
		router:   router,
		now:      time.Now,
		newTrace: uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RowResult reports one NormalizeRows pass.
type RowResult struct {
	Events  []canonical.Event
	Skipped int
}

// NormalizeRows normalizes a fetched collection for one connector. A row
// that fails schema validation is skipped and logged; it never aborts the
// rest of the batch. Unknown fields across the batch raise one drift
// observation per descriptor.
func (n *Normalizer) NormalizeRows(ctx context.Context, c Connector, d Descriptor, rows []RawRow) (RowResult, error) {
	system := d.System
	if system == "" {
		system = c.System()
	}
	scope := mapping.Scope{
		TenantID:    c.TenantID(),
		ConnectorID: c.ID(),
		SourceTable: d.SourceTable,
		Entity:      d.Entity,
	}

	var result RowResult
	unknownSample := make(map[string]any)

	for _, row := range rows {
		applied, err := n.mappings.Apply(ctx, scope, row)
		if err != nil {
			return result, fmt.Errorf("normalize %s/%s: %w", c.ID(), d.SourceTable, err)
		}
		for _, field := range applied.Unknown {
			if _, seen := unknownSample[field]; !seen {
				unknownSample[field] = applied.Extras[field]
			}
		}

		if err := n.registry.Validate(d.Entity, applied.Fields); err != nil {
			result.Skipped++
			var verr *canonical.ValidationError
			if errors.As(err, &verr) {
				slog.Warn("row failed schema validation, skipping",
					"connector", c.ID(),
					"table", d.SourceTable,
					"entity", string(d.Entity),
					"fields", verr.Fields,
				)
			} else {
				slog.Warn("row failed schema validation, skipping",
					"connector", c.ID(),
					"table", d.SourceTable,
					"entity", string(d.Entity),
					"error", err,
				)
			}
			continue
		}

		result.Events = append(result.Events, canonical.Event{
			Meta: canonical.Meta{
				SchemaVersion: canonical.SchemaVersion,
				TenantID:      c.TenantID(),
				TraceID:       n.newTrace(),
				EmittedAt:     n.now(),
			},
			Source: canonical.Source{
				System:       system,
				ConnectionID: c.ID(),
			},
			Entity:        d.Entity,
			Op:            canonical.OpUpsert,
			Data:          applied.Fields,
			Extras:        applied.Extras,
			UnknownFields: applied.Unknown,
		})
	}

	if len(unknownSample) > 0 && n.detector != nil {
		if err := n.observeDrift(ctx, c, d, unknownSample); err != nil {
			// Drift bookkeeping failure must not cost the batch its events.
			slog.Error("drift observation failed",
				"connector", c.ID(),
				"table", d.SourceTable,
				"error", err,
			)
		}
	}

	return result, nil
}

func (n *Normalizer) observeDrift(ctx context.Context, c Connector, d Descriptor, sample map[string]any) error {
	fields := make([]string, 0, len(sample))
	for field := range sample {
		fields = append(fields, field)
	}

	proposals, err := n.detector.Observe(ctx, drift.Observation{
		TenantID:      c.TenantID(),
		ConnectorID:   c.ID(),
		ConnectionID:  c.ID(),
		SourceTable:   d.SourceTable,
		Entity:        d.Entity,
		UnknownFields: fields,
		Sample:        sample,
	})
	if err != nil {
		return err
	}
	if n.router == nil {
		return nil
	}
	for _, p := range proposals {
		if _, err := n.router.Route(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
