package drift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/mapping"
)

// ErrAlreadyDecided is returned when a decision arrives for a workflow
// that is no longer pending.
var ErrAlreadyDecided = errors.New("workflow already decided")

// ErrWorkflowExpired is returned when a decision arrives after the
// workflow's review window has closed.
var ErrWorkflowExpired = errors.New("workflow review window expired")

// routerActor is the system identity auto-applied mappings are written
// under. It carries the administrative capability the mapping store
// demands for writes.
var routerActor = mapping.Actor{ID: "drift-router", Admin: true}

// Router moves proposals through the confidence bands: auto-apply writes
// the mapping, review opens a time-boxed approval workflow, reject closes
// the drift event. It also carries the human decision and expiry paths.
type Router struct {
	backend    Backend
	mappings   *mapping.Store
	thresholds Thresholds
	now        func() time.Time
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterClock overrides the router's time source.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithRouterThresholds overrides the confidence cut points.
func WithRouterThresholds(t Thresholds) RouterOption {
	return func(r *Router) { r.thresholds = t }
}

// NewRouter creates a router writing approved mappings through the given
// mapping store.
func NewRouter(backend Backend, mappings *mapping.Store, opts ...RouterOption) *Router {
	r := &Router{
		backend:    backend,
		mappings:   mappings,
		thresholds: DefaultThresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route dispatches one freshly created proposal by its confidence band and
// returns the drift event's resulting status.
func (r *Router) Route(ctx context.Context, p Proposal) (EventStatus, error) {
	ev, err := r.backend.DriftEventByProposal(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("route proposal %s: %w", p.ID, err)
	}

	switch r.thresholds.Route(p.Confidence) {
	case ActionAutoApply:
		if err := r.applyProposal(ctx, p); err != nil {
			return "", fmt.Errorf("route proposal %s: auto-apply: %w", p.ID, err)
		}
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusAutoRepaired); err != nil {
			return "", fmt.Errorf("route proposal %s: %w", p.ID, err)
		}
		slog.Info("drift auto-repaired",
			"tenant", p.TenantID,
			"source_field", p.SourceField,
			"canonical_field", p.CanonicalField,
			"confidence", p.Confidence,
		)
		return StatusAutoRepaired, nil

	case ActionReview:
		now := r.now()
		wf := Workflow{
			ID:         uuid.NewString(),
			ProposalID: p.ID,
			Status:     WorkflowPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ApprovalWindow),
		}
		if err := r.backend.CreateWorkflow(ctx, wf); err != nil {
			return "", fmt.Errorf("route proposal %s: open workflow: %w", p.ID, err)
		}
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusRequiresApproval); err != nil {
			return "", fmt.Errorf("route proposal %s: %w", p.ID, err)
		}
		slog.Info("drift queued for review",
			"tenant", p.TenantID,
			"source_field", p.SourceField,
			"candidate", p.CanonicalField,
			"confidence", p.Confidence,
			"expires_at", wf.ExpiresAt,
		)
		return StatusRequiresApproval, nil

	default:
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusRejectedLowConfidence); err != nil {
			return "", fmt.Errorf("route proposal %s: %w", p.ID, err)
		}
		slog.Info("drift rejected, low confidence",
			"tenant", p.TenantID,
			"source_field", p.SourceField,
			"confidence", p.Confidence,
		)
		return StatusRejectedLowConfidence, nil
	}
}

// Decide records a human decision on a pending workflow. Approval writes
// the proposed mapping and marks the drift repaired; rejection closes it
// as manually rejected. Decisions after expiry are refused; the sweep owns
// that transition.
func (r *Router) Decide(ctx context.Context, workflowID string, approve bool, decidedBy string) error {
	wf, err := r.backend.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("decide workflow %s: %w", workflowID, err)
	}
	if wf.Status != WorkflowPending {
		return fmt.Errorf("decide workflow %s: %w", workflowID, ErrAlreadyDecided)
	}
	if !r.now().Before(wf.ExpiresAt) {
		return fmt.Errorf("decide workflow %s: %w", workflowID, ErrWorkflowExpired)
	}

	p, err := r.backend.GetProposal(ctx, wf.ProposalID)
	if err != nil {
		return fmt.Errorf("decide workflow %s: load proposal: %w", workflowID, err)
	}
	ev, err := r.backend.DriftEventByProposal(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("decide workflow %s: load drift event: %w", workflowID, err)
	}

	if approve {
		if err := r.applyProposal(ctx, p); err != nil {
			return fmt.Errorf("decide workflow %s: apply: %w", workflowID, err)
		}
		if err := r.backend.UpdateWorkflowStatus(ctx, wf.ID, WorkflowApproved); err != nil {
			return fmt.Errorf("decide workflow %s: %w", workflowID, err)
		}
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusAutoRepaired); err != nil {
			return fmt.Errorf("decide workflow %s: %w", workflowID, err)
		}
	} else {
		if err := r.backend.UpdateWorkflowStatus(ctx, wf.ID, WorkflowRejected); err != nil {
			return fmt.Errorf("decide workflow %s: %w", workflowID, err)
		}
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusRejectedManual); err != nil {
			return fmt.Errorf("decide workflow %s: %w", workflowID, err)
		}
	}

	slog.Info("drift review decided",
		"workflow", wf.ID,
		"tenant", p.TenantID,
		"source_field", p.SourceField,
		"approved", approve,
		"decided_by", decidedBy,
	)
	return nil
}

// Sweep closes every pending workflow whose review window has passed.
// Expiry is the fail-safe path: no decision means reject, the mapping is
// never written. Returns the number of workflows closed.
func (r *Router) Sweep(ctx context.Context) (int, error) {
	expired, err := r.backend.ExpiredPendingWorkflows(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("sweep workflows: %w", err)
	}

	closed := 0
	for _, wf := range expired {
		if err := r.backend.UpdateWorkflowStatus(ctx, wf.ID, WorkflowRejected); err != nil {
			return closed, fmt.Errorf("sweep workflows: %s: %w", wf.ID, err)
		}
		ev, err := r.backend.DriftEventByProposal(ctx, wf.ProposalID)
		if err != nil {
			return closed, fmt.Errorf("sweep workflows: %s: %w", wf.ID, err)
		}
		if err := r.backend.UpdateDriftStatus(ctx, ev.ID, StatusRejectedLowConfidence); err != nil {
			return closed, fmt.Errorf("sweep workflows: %s: %w", wf.ID, err)
		}
		slog.Info("drift review expired, rejecting",
			"workflow", wf.ID,
			"proposal", wf.ProposalID,
			"expired_at", wf.ExpiresAt,
		)
		closed++
	}
	return closed, nil
}

// applyProposal writes the proposal's mapping as an active row through the
// mapping store so cache eviction and versioning follow the normal write
// path.
func (r *Router) applyProposal(ctx context.Context, p Proposal) error {
	_, _, err := r.mappings.Write(ctx, routerActor, mapping.FieldMapping{
		TenantID:        p.TenantID,
		ConnectorID:     p.ConnectorID,
		SourceTable:     p.SourceTable,
		SourceField:     p.SourceField,
		CanonicalEntity: p.CanonicalEntity,
		CanonicalField:  p.CanonicalField,
		Confidence:      p.Confidence,
		MappingType:     mapping.TypeDirect,
		Status:          mapping.StatusActive,
	})
	return err
}
