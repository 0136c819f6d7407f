package drift

import (
	"errors"
	"time"

	"github.com/roach88/strata/internal/canonical"
)

// ErrNotFound is returned for unknown drift events, proposals or workflows.
var ErrNotFound = errors.New("drift record not found")

// ApprovalWindow is how long a review-band proposal waits for a human
// decision before the fail-safe reject.
const ApprovalWindow = 7 * 24 * time.Hour

// ProposalAction is the routing decision attached to a proposal.
type ProposalAction string

const (
	ActionAutoApply ProposalAction = "auto_apply"
	ActionReview    ProposalAction = "review"
	ActionReject    ProposalAction = "reject"
)

// ProposalOrigin records how a proposal was produced.
type ProposalOrigin string

const (
	OriginHeuristic  ProposalOrigin = "heuristic"
	OriginSimilarity ProposalOrigin = "similarity"
	OriginManual     ProposalOrigin = "manual"
)

// Proposal is a candidate field mapping. Immutable once created.
type Proposal struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	ConnectorID     string         `json:"connector_id"`
	SourceTable     string         `json:"source_table"`
	SourceField     string         `json:"source_field"`
	CanonicalEntity canonical.Kind `json:"canonical_entity"`
	CanonicalField  string         `json:"canonical_field"`
	Confidence      float64        `json:"confidence"`
	Reasoning       string         `json:"reasoning"`
	Alternatives    []string       `json:"alternatives,omitempty"`
	Action          ProposalAction `json:"action"`
	Origin          ProposalOrigin `json:"origin"`
	CreatedAt       time.Time      `json:"created_at"`
}

// EventStatus is a drift event's lifecycle state. Detected is the only
// non-terminal status; the other four are terminal.
type EventStatus string

const (
	StatusDetected              EventStatus = "detected"
	StatusAutoRepaired          EventStatus = "auto_repaired"
	StatusRequiresApproval      EventStatus = "requires_approval"
	StatusRejectedLowConfidence EventStatus = "rejected_low_confidence"
	StatusRejectedManual        EventStatus = "rejected_manual"
)

// Terminal reports whether a status ends the drift event's lifecycle.
// requires_approval still awaits a decision or expiry.
func (s EventStatus) Terminal() bool {
	switch s {
	case StatusAutoRepaired, StatusRejectedLowConfidence, StatusRejectedManual:
		return true
	}
	return false
}

// Event records one observed schema drift occurrence.
type Event struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	ConnectionID     string         `json:"connection_id"`
	EventType        string         `json:"event_type"`
	OldSchema        map[string]any `json:"old_schema,omitempty"`
	NewSchema        map[string]any `json:"new_schema,omitempty"`
	Confidence       float64        `json:"confidence"`
	Status           EventStatus    `json:"status"`
	RepairProposalID string         `json:"repair_proposal_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Drift event types.
const (
	EventTypeUnmappedField = "unmapped_field"
	EventTypeTypeChange    = "type_change"
)

// WorkflowStatus is an approval workflow's state.
type WorkflowStatus string

const (
	WorkflowPending  WorkflowStatus = "pending"
	WorkflowApproved WorkflowStatus = "approved"
	WorkflowRejected WorkflowStatus = "rejected"
)

// Workflow is the time-boxed human review record for a review-band
// proposal. Expiry without a decision defaults to reject.
type Workflow struct {
	ID         string         `json:"id"`
	ProposalID string         `json:"proposal_id"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	Status     WorkflowStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// Thresholds are the confidence cut points. Both comparisons are inclusive
// at the boundary and defined only here so every call site routes
// identically: auto-apply at >= AutoApply, review at >= Review, reject
// below Review.
type Thresholds struct {
	AutoApply float64
	Review    float64
}

// DefaultThresholds mirror the reference configuration.
var DefaultThresholds = Thresholds{AutoApply: 0.85, Review: 0.6}

// Route maps a confidence score to the action band.
func (t Thresholds) Route(confidence float64) ProposalAction {
	switch {
	case confidence >= t.AutoApply:
		return ActionAutoApply
	case confidence >= t.Review:
		return ActionReview
	default:
		return ActionReject
	}
}
