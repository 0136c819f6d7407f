package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/strata/internal/mapping"
)

// timeLayout is the canonical timestamp encoding for TEXT columns.
const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const mappingColumns = `id, tenant_id, connector_id, source_table, source_field,
	canonical_entity, canonical_field, confidence, mapping_type, transform_rule,
	version, status, created_at, updated_at`

func scanMapping(row interface{ Scan(...any) error }) (mapping.FieldMapping, error) {
	var m mapping.FieldMapping
	var createdAt, updatedAt string
	err := row.Scan(
		&m.ID, &m.TenantID, &m.ConnectorID, &m.SourceTable, &m.SourceField,
		&m.CanonicalEntity, &m.CanonicalField, &m.Confidence, &m.MappingType,
		&m.TransformRule, &m.Version, &m.Status, &createdAt, &updatedAt,
	)
	if err != nil {
		return mapping.FieldMapping{}, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return m, nil
}

// ActiveMappings returns all active mappings for a connector in
// registration order (ascending id) so the first-registered-wins tie break
// is deterministic.
func (s *Store) ActiveMappings(ctx context.Context, tenantID, connectorID string) ([]mapping.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM field_mappings
		WHERE tenant_id = ? AND connector_id = ? AND status = 'active'
		ORDER BY id ASC
	`, tenantID, connectorID)
	if err != nil {
		return nil, fmt.Errorf("active mappings: %w", err)
	}
	defer rows.Close()

	var result []mapping.FieldMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("active mappings: scan: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active mappings: %w", err)
	}
	return result, nil
}

// GetMapping returns the active mapping for a key.
// Returns mapping.ErrNotFound when no active row exists.
func (s *Store) GetMapping(ctx context.Context, key mapping.Key) (mapping.FieldMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM field_mappings
		WHERE tenant_id = ? AND connector_id = ? AND source_table = ?
		  AND source_field = ? AND status = 'active'
		ORDER BY id ASC
		LIMIT 1
	`, key.TenantID, key.ConnectorID, key.SourceTable, key.SourceField)

	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.FieldMapping{}, mapping.ErrNotFound
	}
	if err != nil {
		return mapping.FieldMapping{}, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

// UpsertMapping writes a mapping row. An existing active row for the same
// key is updated in place with its version incremented; otherwise a new
// row is inserted at version 1. Returns the stored row and whether it was
// created. The insert-or-update runs in one transaction so a concurrent
// writer cannot produce two active rows for a key (the partial unique
// index backstops the race; a violation there means "lost the race", and
// the caller's retry will take the update path).
func (s *Store) UpsertMapping(ctx context.Context, m mapping.FieldMapping) (mapping.FieldMapping, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := fmtTime(time.Now())

	row := tx.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM field_mappings
		WHERE tenant_id = ? AND connector_id = ? AND source_table = ?
		  AND source_field = ? AND status = 'active'
		ORDER BY id ASC
		LIMIT 1
	`, m.TenantID, m.ConnectorID, m.SourceTable, m.SourceField)

	existing, err := scanMapping(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO field_mappings
			(tenant_id, connector_id, source_table, source_field,
			 canonical_entity, canonical_field, confidence, mapping_type,
			 transform_rule, version, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		`,
			m.TenantID, m.ConnectorID, m.SourceTable, m.SourceField,
			string(m.CanonicalEntity), m.CanonicalField, m.Confidence,
			string(m.MappingType), m.TransformRule, string(m.Status), now, now,
		)
		if err != nil {
			return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: last insert id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: commit: %w", err)
		}
		m.ID = id
		m.Version = 1
		m.CreatedAt = parseTime(now)
		m.UpdatedAt = parseTime(now)
		return m, true, nil

	case err != nil:
		return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: select existing: %w", err)
	}

	// Update in place, version increment - never a blind overwrite.
	_, err = tx.ExecContext(ctx, `
		UPDATE field_mappings
		SET canonical_entity = ?, canonical_field = ?, confidence = ?,
		    mapping_type = ?, transform_rule = ?, status = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ?
	`,
		string(m.CanonicalEntity), m.CanonicalField, m.Confidence,
		string(m.MappingType), m.TransformRule, string(m.Status), now, existing.ID,
	)
	if err != nil {
		return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return mapping.FieldMapping{}, false, fmt.Errorf("upsert mapping: commit: %w", err)
	}

	m.ID = existing.ID
	m.Version = existing.Version + 1
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = parseTime(now)
	return m, false, nil
}

// ListMappings pages through a connector's mappings (any status) and
// returns the total row count alongside the page.
func (s *Store) ListMappings(ctx context.Context, tenantID, connectorID string, limit, offset int) (int, []mapping.FieldMapping, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM field_mappings
		WHERE tenant_id = ? AND connector_id = ?
	`, tenantID, connectorID).Scan(&total)
	if err != nil {
		return 0, nil, fmt.Errorf("list mappings: count: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM field_mappings
		WHERE tenant_id = ? AND connector_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, tenantID, connectorID, limit, offset)
	if err != nil {
		return 0, nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var result []mapping.FieldMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("list mappings: scan: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("list mappings: %w", err)
	}
	return total, result, nil
}
