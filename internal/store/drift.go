package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/strata/internal/drift"
)

// CreateDriftWithProposal records a drift event and its repair proposal in
// one transaction. The proposal table's unique field-key index makes
// repeated observation of the same unresolved source field a no-op:
// returns false when a proposal for that field is already on file.
func (s *Store) CreateDriftWithProposal(ctx context.Context, ev drift.Event, p drift.Proposal) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("create drift: begin tx: %w", err)
	}
	defer tx.Rollback()

	alternatives, err := json.Marshal(emptyIfNilSlice(p.Alternatives))
	if err != nil {
		return false, fmt.Errorf("create drift: marshal alternatives: %w", err)
	}

	now := fmtTime(time.Now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO mapping_proposals
		(id, tenant_id, connector_id, source_table, source_field,
		 canonical_entity, canonical_field, confidence, reasoning,
		 alternatives, action, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, connector_id, source_table, source_field) DO NOTHING
	`,
		p.ID, p.TenantID, p.ConnectorID, p.SourceTable, p.SourceField,
		string(p.CanonicalEntity), p.CanonicalField, p.Confidence, p.Reasoning,
		string(alternatives), string(p.Action), string(p.Origin), now,
	)
	if err != nil {
		return false, fmt.Errorf("create drift: insert proposal: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create drift: rows affected: %w", err)
	}
	if affected == 0 {
		// Field already has a pending proposal; nothing new to record.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("create drift: commit (existing): %w", err)
		}
		return false, nil
	}

	oldSchema, err := json.Marshal(emptyIfNilMap(ev.OldSchema))
	if err != nil {
		return false, fmt.Errorf("create drift: marshal old schema: %w", err)
	}
	newSchema, err := json.Marshal(emptyIfNilMap(ev.NewSchema))
	if err != nil {
		return false, fmt.Errorf("create drift: marshal new schema: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO drift_events
		(id, tenant_id, connection_id, event_type, old_schema, new_schema,
		 confidence, status, repair_proposal_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.TenantID, ev.ConnectionID, ev.EventType, string(oldSchema),
		string(newSchema), ev.Confidence, string(ev.Status), ev.RepairProposalID,
		now, now,
	); err != nil {
		return false, fmt.Errorf("create drift: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("create drift: commit: %w", err)
	}
	return true, nil
}

const proposalColumns = `id, tenant_id, connector_id, source_table, source_field,
	canonical_entity, canonical_field, confidence, reasoning, alternatives,
	action, origin, created_at`

func scanProposal(row interface{ Scan(...any) error }) (drift.Proposal, error) {
	var p drift.Proposal
	var alternatives, createdAt string
	err := row.Scan(
		&p.ID, &p.TenantID, &p.ConnectorID, &p.SourceTable, &p.SourceField,
		&p.CanonicalEntity, &p.CanonicalField, &p.Confidence, &p.Reasoning,
		&alternatives, &p.Action, &p.Origin, &createdAt,
	)
	if err != nil {
		return drift.Proposal{}, err
	}
	if err := json.Unmarshal([]byte(alternatives), &p.Alternatives); err != nil {
		return drift.Proposal{}, fmt.Errorf("decode alternatives: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// GetProposal returns a proposal by id. Returns drift.ErrNotFound when
// absent.
func (s *Store) GetProposal(ctx context.Context, id string) (drift.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+proposalColumns+` FROM mapping_proposals WHERE id = ?
	`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Proposal{}, drift.ErrNotFound
	}
	if err != nil {
		return drift.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

const driftColumns = `id, tenant_id, connection_id, event_type, old_schema,
	new_schema, confidence, status, repair_proposal_id, created_at, updated_at`

func scanDriftEvent(row interface{ Scan(...any) error }) (drift.Event, error) {
	var ev drift.Event
	var oldSchema, newSchema, createdAt, updatedAt string
	err := row.Scan(
		&ev.ID, &ev.TenantID, &ev.ConnectionID, &ev.EventType, &oldSchema,
		&newSchema, &ev.Confidence, &ev.Status, &ev.RepairProposalID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return drift.Event{}, err
	}
	if err := json.Unmarshal([]byte(oldSchema), &ev.OldSchema); err != nil {
		return drift.Event{}, fmt.Errorf("decode old schema: %w", err)
	}
	if err := json.Unmarshal([]byte(newSchema), &ev.NewSchema); err != nil {
		return drift.Event{}, fmt.Errorf("decode new schema: %w", err)
	}
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)
	return ev, nil
}

// GetDriftEvent returns a drift event by id. Returns drift.ErrNotFound
// when absent.
func (s *Store) GetDriftEvent(ctx context.Context, id string) (drift.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+driftColumns+` FROM drift_events WHERE id = ?
	`, id)
	ev, err := scanDriftEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Event{}, drift.ErrNotFound
	}
	if err != nil {
		return drift.Event{}, fmt.Errorf("get drift event: %w", err)
	}
	return ev, nil
}

// DriftEventByProposal returns the drift event linked to a proposal.
func (s *Store) DriftEventByProposal(ctx context.Context, proposalID string) (drift.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+driftColumns+` FROM drift_events WHERE repair_proposal_id = ?
	`, proposalID)
	ev, err := scanDriftEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Event{}, drift.ErrNotFound
	}
	if err != nil {
		return drift.Event{}, fmt.Errorf("drift event by proposal: %w", err)
	}
	return ev, nil
}

// UpdateDriftStatus moves a drift event to a new status and bumps
// updated_at.
func (s *Store) UpdateDriftStatus(ctx context.Context, id string, status drift.EventStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE drift_events SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update drift status: %w", err)
	}
	return nil
}

// ListDriftEvents returns a tenant's drift events, newest first,
// optionally filtered by status.
func (s *Store) ListDriftEvents(ctx context.Context, tenantID string, status drift.EventStatus, limit int) ([]drift.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + driftColumns + ` FROM drift_events WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drift events: %w", err)
	}
	defer rows.Close()

	var events []drift.Event
	for rows.Next() {
		ev, err := scanDriftEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list drift events: scan: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CreateWorkflow records an approval workflow for a review-band proposal.
// Idempotent per proposal via the UNIQUE constraint on proposal_id.
func (s *Store) CreateWorkflow(ctx context.Context, wf drift.Workflow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_workflows (id, proposal_id, assigned_to, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(proposal_id) DO NOTHING
	`, wf.ID, wf.ProposalID, wf.AssignedTo, string(wf.Status), fmtTime(wf.CreatedAt), fmtTime(wf.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

const workflowColumns = `id, proposal_id, assigned_to, status, created_at, expires_at`

func scanWorkflow(row interface{ Scan(...any) error }) (drift.Workflow, error) {
	var wf drift.Workflow
	var createdAt, expiresAt string
	err := row.Scan(&wf.ID, &wf.ProposalID, &wf.AssignedTo, &wf.Status, &createdAt, &expiresAt)
	if err != nil {
		return drift.Workflow{}, err
	}
	wf.CreatedAt = parseTime(createdAt)
	wf.ExpiresAt = parseTime(expiresAt)
	return wf, nil
}

// GetWorkflow returns a workflow by id. Returns drift.ErrNotFound when
// absent.
func (s *Store) GetWorkflow(ctx context.Context, id string) (drift.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows WHERE id = ?
	`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Workflow{}, drift.ErrNotFound
	}
	if err != nil {
		return drift.Workflow{}, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// WorkflowByProposal returns the workflow created for a proposal.
func (s *Store) WorkflowByProposal(ctx context.Context, proposalID string) (drift.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows WHERE proposal_id = ?
	`, proposalID)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drift.Workflow{}, drift.ErrNotFound
	}
	if err != nil {
		return drift.Workflow{}, fmt.Errorf("workflow by proposal: %w", err)
	}
	return wf, nil
}

// UpdateWorkflowStatus moves a workflow out of pending. Only pending rows
// transition; a decided workflow stays decided.
func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, status drift.WorkflowStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE approval_workflows SET status = ? WHERE id = ? AND status = 'pending'
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	return nil
}

// ExpiredPendingWorkflows returns every pending workflow whose expiry has
// passed as of the given instant.
func (s *Store) ExpiredPendingWorkflows(ctx context.Context, asOf time.Time) ([]drift.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM approval_workflows
		WHERE status = 'pending' AND expires_at <= ?
		ORDER BY expires_at ASC
	`, fmtTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("expired workflows: %w", err)
	}
	defer rows.Close()

	var result []drift.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("expired workflows: scan: %w", err)
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

func emptyIfNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
