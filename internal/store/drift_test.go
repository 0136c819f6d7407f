package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/drift"
)

func sampleProposal(id, field string) drift.Proposal {
	return drift.Proposal{
		ID:              id,
		TenantID:        "acme",
		ConnectorID:     "crm-prod",
		SourceTable:     "contacts",
		SourceField:     field,
		CanonicalEntity: canonical.KindContact,
		CanonicalField:  "email",
		Confidence:      0.9,
		Reasoning:       "name alias",
		Alternatives:    []string{"phone"},
		Action:          drift.ActionAutoApply,
		Origin:          drift.OriginHeuristic,
	}
}

func sampleDriftEvent(id, proposalID string) drift.Event {
	return drift.Event{
		ID:               id,
		TenantID:         "acme",
		ConnectionID:     "crm-prod",
		EventType:        drift.EventTypeUnmappedField,
		NewSchema:        map[string]any{"mail_addr": "string"},
		Confidence:       0.9,
		Status:           drift.StatusDetected,
		RepairProposalID: proposalID,
	}
}

func TestCreateDriftWithProposal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-1", "p-1"), sampleProposal("p-1", "mail_addr"))
	if err != nil {
		t.Fatalf("CreateDriftWithProposal: %v", err)
	}
	if !created {
		t.Fatal("first observation should create")
	}

	p, err := s.GetProposal(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if p.CanonicalField != "email" || p.Origin != drift.OriginHeuristic {
		t.Errorf("proposal round trip: %+v", p)
	}
	if len(p.Alternatives) != 1 || p.Alternatives[0] != "phone" {
		t.Errorf("alternatives round trip: %v", p.Alternatives)
	}

	ev, err := s.DriftEventByProposal(ctx, "p-1")
	if err != nil {
		t.Fatalf("DriftEventByProposal: %v", err)
	}
	if ev.ID != "ev-1" || ev.Status != drift.StatusDetected {
		t.Errorf("event round trip: %+v", ev)
	}
	if ev.NewSchema["mail_addr"] != "string" {
		t.Errorf("new schema round trip: %v", ev.NewSchema)
	}
}

func TestCreateDriftWithProposalDedupesByField(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-1", "p-1"), sampleProposal("p-1", "mail_addr"))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first observation should create")
	}

	// Same source field observed again under fresh ids.
	created, err = s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-2", "p-2"), sampleProposal("p-2", "mail_addr"))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("repeat observation must be a no-op")
	}

	if _, err := s.GetProposal(ctx, "p-2"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("duplicate proposal err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetDriftEvent(ctx, "ev-2"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("duplicate event err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDriftStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-1", "p-1"), sampleProposal("p-1", "mail_addr")); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateDriftStatus(ctx, "ev-1", drift.StatusAutoRepaired); err != nil {
		t.Fatalf("UpdateDriftStatus: %v", err)
	}

	ev, err := s.GetDriftEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Status != drift.StatusAutoRepaired {
		t.Errorf("status = %s, want auto_repaired", ev.Status)
	}
}

func TestListDriftEventsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-1", "p-1"), sampleProposal("p-1", "field_a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDriftWithProposal(ctx,
		sampleDriftEvent("ev-2", "p-2"), sampleProposal("p-2", "field_b")); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateDriftStatus(ctx, "ev-1", drift.StatusRejectedLowConfidence); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListDriftEvents(ctx, "acme", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered len = %d, want 2", len(all))
	}

	detected, err := s.ListDriftEvents(ctx, "acme", drift.StatusDetected, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(detected) != 1 || detected[0].ID != "ev-2" {
		t.Errorf("filtered = %+v, want just ev-2", detected)
	}

	other, err := s.ListDriftEvents(ctx, "globex", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("foreign tenant sees %d events", len(other))
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	wf := drift.Workflow{
		ID:         "wf-1",
		ProposalID: "p-1",
		Status:     drift.WorkflowPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(drift.ApprovalWindow),
	}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	// A second workflow for the same proposal is silently dropped.
	dup := wf
	dup.ID = "wf-2"
	if err := s.CreateWorkflow(ctx, dup); err != nil {
		t.Fatalf("duplicate CreateWorkflow: %v", err)
	}
	got, err := s.WorkflowByProposal(ctx, "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "wf-1" {
		t.Errorf("WorkflowByProposal = %s, want original wf-1", got.ID)
	}
	if !got.ExpiresAt.Equal(wf.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, wf.ExpiresAt)
	}

	if err := s.UpdateWorkflowStatus(ctx, "wf-1", drift.WorkflowApproved); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != drift.WorkflowApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}

	// Decided workflows never transition again.
	if err := s.UpdateWorkflowStatus(ctx, "wf-1", drift.WorkflowRejected); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != drift.WorkflowApproved {
		t.Errorf("decided workflow changed to %s", got.Status)
	}
}

func TestExpiredPendingWorkflows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id, proposal string, expires time.Time) drift.Workflow {
		return drift.Workflow{
			ID:         id,
			ProposalID: proposal,
			Status:     drift.WorkflowPending,
			CreatedAt:  base,
			ExpiresAt:  expires,
		}
	}

	if err := s.CreateWorkflow(ctx, mk("wf-old", "p-1", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateWorkflow(ctx, mk("wf-new", "p-2", base.Add(48*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateWorkflow(ctx, mk("wf-done", "p-3", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateWorkflowStatus(ctx, "wf-done", drift.WorkflowRejected); err != nil {
		t.Fatal(err)
	}

	expired, err := s.ExpiredPendingWorkflows(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ExpiredPendingWorkflows: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "wf-old" {
		t.Errorf("expired = %+v, want just wf-old", expired)
	}
}
