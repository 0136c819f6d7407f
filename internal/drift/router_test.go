package drift_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/drift"
	"github.com/roach88/strata/internal/mapping"
	"github.com/roach88/strata/internal/store"
	"github.com/roach88/strata/internal/testutil"
)

type fixture struct {
	store    *store.Store
	mappings *mapping.Store
	detector *drift.Detector
	router   *drift.Router
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "strata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mappings := mapping.NewStore(s, mapping.NewCache(time.Minute))
	return &fixture{
		store:    s,
		mappings: mappings,
		detector: drift.NewDetector(s, drift.WithDetectorClock(clock.Now)),
		router:   drift.NewRouter(s, mappings, drift.WithRouterClock(clock.Now)),
		clock:    clock,
	}
}

// seedProposal stores a drift event plus proposal at a chosen confidence,
// sidestepping the detector's scoring.
func (f *fixture) seedProposal(t *testing.T, field string, confidence float64) drift.Proposal {
	t.Helper()
	p := drift.Proposal{
		ID:              "p-" + field,
		TenantID:        "acme",
		ConnectorID:     "crm-prod",
		SourceTable:     "contacts",
		SourceField:     field,
		CanonicalEntity: canonical.KindContact,
		CanonicalField:  "email",
		Confidence:      confidence,
		Action:          drift.DefaultThresholds.Route(confidence),
		Origin:          drift.OriginHeuristic,
		CreatedAt:       f.clock.Now(),
	}
	ev := drift.Event{
		ID:               "ev-" + field,
		TenantID:         "acme",
		ConnectionID:     "crm-prod",
		EventType:        drift.EventTypeUnmappedField,
		NewSchema:        map[string]any{field: "string"},
		Confidence:       confidence,
		Status:           drift.StatusDetected,
		RepairProposalID: p.ID,
	}
	created, err := f.store.CreateDriftWithProposal(context.Background(), ev, p)
	require.NoError(t, err)
	require.True(t, created)
	return p
}

func (f *fixture) mappingFor(field string) (mapping.FieldMapping, error) {
	return f.mappings.Get(context.Background(), mapping.Key{
		TenantID:    "acme",
		ConnectorID: "crm-prod",
		SourceTable: "contacts",
		SourceField: field,
	})
}

func TestObserveCreatesAndDedupes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	obs := drift.Observation{
		TenantID:      "acme",
		ConnectorID:   "crm-prod",
		ConnectionID:  "crm-prod",
		SourceTable:   "contacts",
		Entity:        canonical.KindContact,
		UnknownFields: []string{"mail_addr", "shoe_size"},
		Sample:        map[string]any{"mail_addr": "sam@acme.com", "shoe_size": float64(44)},
	}

	proposals, err := f.detector.Observe(ctx, obs)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, "mail_addr", proposals[0].SourceField, "fields processed in sorted order")

	// Replaying the same rows stacks nothing.
	again, err := f.detector.Observe(ctx, obs)
	require.NoError(t, err)
	assert.Empty(t, again)

	ev, err := f.store.DriftEventByProposal(ctx, proposals[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "number", ev.NewSchema["shoe_size"], "sampled value type recorded")
}

func TestRouteAutoApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.85)

	status, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusAutoRepaired, status)

	m, err := f.mappingFor("mail_addr")
	require.NoError(t, err, "auto-apply must write the mapping")
	assert.Equal(t, "email", m.CanonicalField)
	assert.Equal(t, mapping.StatusActive, m.Status)

	ev, err := f.store.DriftEventByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusAutoRepaired, ev.Status)
}

func TestRouteReviewBand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.6)

	status, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusRequiresApproval, status)

	_, err = f.mappingFor("mail_addr")
	assert.ErrorIs(t, err, mapping.ErrNotFound, "review band must not write the mapping")

	wf, err := f.store.WorkflowByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.WorkflowPending, wf.Status)
	assert.Equal(t, wf.CreatedAt.Add(drift.ApprovalWindow), wf.ExpiresAt)
}

func TestRouteRejectBand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "zzz", 0.59)

	status, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusRejectedLowConfidence, status)

	_, err = f.mappingFor("zzz")
	assert.ErrorIs(t, err, mapping.ErrNotFound)
	_, err = f.store.WorkflowByProposal(ctx, p.ID)
	assert.ErrorIs(t, err, drift.ErrNotFound, "reject band opens no workflow")
}

func TestDecideApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.7)

	_, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	wf, err := f.store.WorkflowByProposal(ctx, p.ID)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.router.Decide(ctx, wf.ID, true, "reviewer@acme.com"))

	m, err := f.mappingFor("mail_addr")
	require.NoError(t, err)
	assert.Equal(t, "email", m.CanonicalField)

	ev, err := f.store.DriftEventByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusAutoRepaired, ev.Status)

	err = f.router.Decide(ctx, wf.ID, false, "reviewer@acme.com")
	assert.ErrorIs(t, err, drift.ErrAlreadyDecided)
}

func TestDecideReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.7)

	_, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	wf, err := f.store.WorkflowByProposal(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.router.Decide(ctx, wf.ID, false, "reviewer@acme.com"))

	_, err = f.mappingFor("mail_addr")
	assert.ErrorIs(t, err, mapping.ErrNotFound)

	ev, err := f.store.DriftEventByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusRejectedManual, ev.Status)
}

func TestDecideAfterExpiryRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.7)

	_, err := f.router.Route(ctx, p)
	require.NoError(t, err)
	wf, err := f.store.WorkflowByProposal(ctx, p.ID)
	require.NoError(t, err)

	f.clock.Advance(drift.ApprovalWindow)
	err = f.router.Decide(ctx, wf.ID, true, "reviewer@acme.com")
	assert.ErrorIs(t, err, drift.ErrWorkflowExpired)

	_, err = f.mappingFor("mail_addr")
	assert.ErrorIs(t, err, mapping.ErrNotFound, "late approval must not write")
}

func TestSweepRejectsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProposal(t, "mail_addr", 0.7)

	_, err := f.router.Route(ctx, p)
	require.NoError(t, err)

	// Still inside the window: nothing to close.
	closed, err := f.router.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)

	f.clock.Advance(drift.ApprovalWindow + time.Minute)
	closed, err = f.router.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	wf, err := f.store.WorkflowByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.WorkflowRejected, wf.Status)

	ev, err := f.store.DriftEventByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.StatusRejectedLowConfidence, ev.Status)

	_, err = f.mappingFor("mail_addr")
	assert.ErrorIs(t, err, mapping.ErrNotFound, "fail-safe path never writes the mapping")

	// Sweep is idempotent.
	closed, err = f.router.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}
