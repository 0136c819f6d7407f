package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/unify"
)

// entityTables maps entity kinds to their materialized tables and columns.
// Column names match the canonical field names, so the upsert can be built
// from the payload without per-kind branching. Identifiers come from this
// static catalog only - never from input.
var entityTables = map[canonical.Kind]struct {
	table   string
	columns []string
}{
	canonical.KindAccount:       {"materialized_accounts", []string{"name", "industry", "website", "employees", "annual_revenue"}},
	canonical.KindOpportunity:   {"materialized_opportunities", []string{"name", "account_id", "stage", "amount", "probability", "close_date"}},
	canonical.KindContact:       {"materialized_contacts", []string{"first_name", "last_name", "email", "phone", "title", "account_id"}},
	canonical.KindCloudResource: {"materialized_cloud_resources", []string{"name", "resource_type", "provider", "region", "status", "monthly_cost"}},
	canonical.KindCostRecord:    {"materialized_cost_records", []string{"service", "amount", "currency", "period_start", "period_end"}},
}

// UpsertEntity idempotently projects one canonical upsert event into its
// materialized table, keyed (tenant, entity_id, source_system).
//
// Field semantics are last-write-wins per field: canonical fields present
// on the event overwrite the stored value (including explicit nulls);
// absent fields keep their stored value. Extras are replaced wholesale.
// synced_at is bumped on every application, so replaying the same event
// yields exactly one row.
func (s *Store) UpsertEntity(ctx context.Context, ev canonical.Event) error {
	spec, ok := entityTables[ev.Entity]
	if !ok {
		return fmt.Errorf("upsert entity: unknown kind %q", ev.Entity)
	}

	entityID, err := ev.EntityID()
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	extras := ev.Extras
	if extras == nil {
		extras = map[string]any{}
	}
	extrasJSON, err := json.Marshal(extras)
	if err != nil {
		return fmt.Errorf("upsert entity: marshal extras: %w", err)
	}

	cols := []string{"tenant_id", "entity_id", "source_system"}
	args := []any{ev.Meta.TenantID, entityID, ev.Source.System}
	var updates []string

	for _, col := range spec.columns {
		value, present := ev.Data[col]
		if !present {
			continue
		}
		cols = append(cols, col)
		args = append(args, value)
		updates = append(updates, col+" = excluded."+col)
	}

	cols = append(cols, "extras", "synced_at")
	args = append(args, string(extrasJSON), fmtTime(time.Now()))
	updates = append(updates,
		"extras = excluded.extras",
		"synced_at = excluded.synced_at",
	)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT(tenant_id, entity_id, source_system) DO UPDATE SET %s
	`, spec.table, strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert entity: %s: %w", spec.table, err)
	}
	return nil
}

// CountEntities returns the materialized row count for a kind and tenant.
func (s *Store) CountEntities(ctx context.Context, kind canonical.Kind, tenantID string) (int, error) {
	spec, ok := entityTables[kind]
	if !ok {
		return 0, fmt.Errorf("count entities: unknown kind %q", kind)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = ?`, spec.table),
		tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// ContactRecords returns the tenant's materialized contacts that carry a
// non-empty email, as the unifier consumes them. Rows come back in
// (source_system, entity_id) order for deterministic grouping.
func (s *Store) ContactRecords(ctx context.Context, tenantID string) ([]unify.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_system, entity_id,
		       COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, '')
		FROM materialized_contacts
		WHERE tenant_id = ? AND email IS NOT NULL AND email != ''
		ORDER BY source_system ASC, entity_id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("contact records: %w", err)
	}
	defer rows.Close()

	var records []unify.SourceRecord
	for rows.Next() {
		var r unify.SourceRecord
		if err := rows.Scan(&r.SourceSystem, &r.SourceContactID, &r.Email, &r.FirstName, &r.LastName); err != nil {
			return nil, fmt.Errorf("contact records: scan: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact records: %w", err)
	}
	return records, nil
}
