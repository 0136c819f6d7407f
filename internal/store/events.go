package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/strata/internal/canonical"
)

// streamMessage is the wire shape appended to the stream, one per event.
type streamMessage struct {
	BatchID   string          `json:"batch_id"`
	Entity    string          `json:"entity"`
	Event     canonical.Event `json:"event"`
	Timestamp string          `json:"timestamp"`
}

// AppendBatch writes one publish batch: every event goes to the bounded
// stream under key and to the durable canonical audit log, in a single
// transaction. The batch either fully lands or not at all - a failure
// rolls back every row of this batch and only this batch.
//
// After the inserts the stream is trimmed to maxLen entries per key,
// oldest first. Trimming is approximate in the sense that readers may
// briefly observe more than maxLen entries between batches; within this
// transaction the cap holds.
func (s *Store) AppendBatch(ctx context.Context, key, batchID string, events []canonical.Event, maxLen int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := fmtTime(time.Now())

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stream_batches (batch_id, stream_key, event_count, published_at)
		VALUES (?, ?, ?, ?)
	`, batchID, key, len(events), now); err != nil {
		return fmt.Errorf("append batch: batch row: %w", err)
	}

	for i, ev := range events {
		msg := streamMessage{
			BatchID:   batchID,
			Entity:    string(ev.Entity),
			Event:     ev,
			Timestamp: now,
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("append batch: marshal entry %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stream_entries (stream_key, batch_id, entity, payload, appended_at)
			VALUES (?, ?, ?, ?, ?)
		`, key, batchID, string(ev.Entity), string(payload), now); err != nil {
			return fmt.Errorf("append batch: stream entry %d: %w", i, err)
		}

		if err := insertAuditEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("append batch: audit entry %d: %w", i, err)
		}
	}

	if maxLen > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM stream_entries
			WHERE stream_key = ?
			  AND id NOT IN (
				SELECT id FROM stream_entries
				WHERE stream_key = ?
				ORDER BY id DESC
				LIMIT ?
			  )
		`, key, key, maxLen); err != nil {
			return fmt.Errorf("append batch: trim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append batch: commit: %w", err)
	}
	return nil
}

// insertAuditEvent appends one event to the durable audit log within the
// batch transaction.
func insertAuditEvent(ctx context.Context, tx *sql.Tx, ev canonical.Event) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	extras := ev.Extras
	if extras == nil {
		extras = map[string]any{}
	}
	extrasJSON, err := json.Marshal(extras)
	if err != nil {
		return fmt.Errorf("marshal extras: %w", err)
	}
	unknown := ev.UnknownFields
	if unknown == nil {
		unknown = []string{}
	}
	unknownJSON, err := json.Marshal(unknown)
	if err != nil {
		return fmt.Errorf("marshal unknown fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO canonical_events
		(tenant_id, trace_id, schema_version, source_system, connection_id,
		 source_schema_version, entity, op, data, extras, unknown_fields, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Meta.TenantID, ev.Meta.TraceID, ev.Meta.SchemaVersion,
		ev.Source.System, ev.Source.ConnectionID, ev.Source.SchemaVersion,
		string(ev.Entity), string(ev.Op), string(dataJSON), string(extrasJSON),
		string(unknownJSON), fmtTime(ev.Meta.EmittedAt),
	)
	return err
}

// StreamLength returns the number of entries currently held for a key.
func (s *Store) StreamLength(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stream_entries WHERE stream_key = ?
	`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("stream length: %w", err)
	}
	return n, nil
}

// StreamBatchIDs returns the batch ids recorded for a key in publish
// order. Batch metadata survives stream trimming.
func (s *Store) StreamBatchIDs(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id FROM stream_batches
		WHERE stream_key = ?
		ORDER BY rowid
	`, key)
	if err != nil {
		return nil, fmt.Errorf("stream batch ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("stream batch ids: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecentEvents reads the most recent persisted canonical events for a
// tenant, newest first, from the durable audit log.
func (s *Store) RecentEvents(ctx context.Context, tenantID string, limit int) ([]canonical.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, trace_id, schema_version, source_system, connection_id,
		       source_schema_version, entity, op, data, extras, unknown_fields, emitted_at
		FROM canonical_events
		WHERE tenant_id = ?
		ORDER BY emitted_at DESC, id DESC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []canonical.Event
	for rows.Next() {
		var ev canonical.Event
		var dataJSON, extrasJSON, unknownJSON, emittedAt string
		err := rows.Scan(
			&ev.Meta.TenantID, &ev.Meta.TraceID, &ev.Meta.SchemaVersion,
			&ev.Source.System, &ev.Source.ConnectionID, &ev.Source.SchemaVersion,
			&ev.Entity, &ev.Op, &dataJSON, &extrasJSON, &unknownJSON, &emittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("recent events: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
			return nil, fmt.Errorf("recent events: decode data: %w", err)
		}
		if err := json.Unmarshal([]byte(extrasJSON), &ev.Extras); err != nil {
			return nil, fmt.Errorf("recent events: decode extras: %w", err)
		}
		if err := json.Unmarshal([]byte(unknownJSON), &ev.UnknownFields); err != nil {
			return nil, fmt.Errorf("recent events: decode unknown fields: %w", err)
		}
		ev.Meta.EmittedAt = parseTime(emittedAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}
