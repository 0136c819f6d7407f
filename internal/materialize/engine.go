// Package materialize projects the canonical event log into queryable
// per-entity tables.
package materialize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/strata/internal/canonical"
)

// Backend is the persistence the materializer reads from and writes to.
// Implemented by *store.Store.
type Backend interface {
	RecentEvents(ctx context.Context, tenantID string, limit int) ([]canonical.Event, error)
	UpsertEntity(ctx context.Context, ev canonical.Event) error
}

// Stats reports one materialization pass, broken out per entity kind.
type Stats struct {
	AccountsProcessed       int `json:"accounts_processed"`
	OpportunitiesProcessed  int `json:"opportunities_processed"`
	ContactsProcessed       int `json:"contacts_processed"`
	CloudResourcesProcessed int `json:"cloud_resources_processed"`
	CostRecordsProcessed    int `json:"cost_records_processed"`
	Skipped                 int `json:"skipped"`
	Errors                  int `json:"errors"`
}

// Total sums the per-kind processed counts.
func (s Stats) Total() int {
	return s.AccountsProcessed + s.OpportunitiesProcessed + s.ContactsProcessed +
		s.CloudResourcesProcessed + s.CostRecordsProcessed
}

func (s *Stats) count(kind canonical.Kind) {
	switch kind {
	case canonical.KindAccount:
		s.AccountsProcessed++
	case canonical.KindOpportunity:
		s.OpportunitiesProcessed++
	case canonical.KindContact:
		s.ContactsProcessed++
	case canonical.KindCloudResource:
		s.CloudResourcesProcessed++
	case canonical.KindCostRecord:
		s.CostRecordsProcessed++
	}
}

// Engine replays persisted canonical events into materialized entity rows.
// The projection is idempotent: rows are keyed (tenant, entity id, source
// system), so replaying the same events converges on the same table state.
type Engine struct {
	backend Backend
}

// NewEngine creates a materializer over the given backend.
func NewEngine(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// Process materializes up to limit of the tenant's most recent events.
// Delete ops and envelope-invalid events are skipped; a failed upsert is
// counted and logged but does not stop the pass.
func (e *Engine) Process(ctx context.Context, tenantID string, limit int) (Stats, error) {
	events, err := e.backend.RecentEvents(ctx, tenantID, limit)
	if err != nil {
		return Stats{}, fmt.Errorf("materialize: load events: %w", err)
	}

	var stats Stats
	for _, ev := range events {
		if ev.Op != canonical.OpUpsert {
			stats.Skipped++
			slog.Debug("skipping non-upsert event",
				"tenant", tenantID,
				"entity", string(ev.Entity),
				"op", string(ev.Op),
			)
			continue
		}
		if err := ev.Validate(); err != nil {
			stats.Skipped++
			slog.Warn("skipping invalid event",
				"tenant", tenantID,
				"entity", string(ev.Entity),
				"error", err,
			)
			continue
		}

		if err := e.backend.UpsertEntity(ctx, ev); err != nil {
			stats.Errors++
			slog.Error("entity upsert failed",
				"tenant", tenantID,
				"entity", string(ev.Entity),
				"source", ev.Source.System,
				"error", err,
			)
			continue
		}
		stats.count(ev.Entity)
	}

	slog.Info("materialization pass complete",
		"tenant", tenantID,
		"events", len(events),
		"materialized", stats.Total(),
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return stats, nil
}
