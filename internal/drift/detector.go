package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/canonical"
)

// Backend is the persistence the detector and router sit in front of.
// Implemented by *store.Store.
type Backend interface {
	CreateDriftWithProposal(ctx context.Context, ev Event, p Proposal) (bool, error)
	GetProposal(ctx context.Context, id string) (Proposal, error)
	DriftEventByProposal(ctx context.Context, proposalID string) (Event, error)
	UpdateDriftStatus(ctx context.Context, id string, status EventStatus) error
	CreateWorkflow(ctx context.Context, wf Workflow) error
	GetWorkflow(ctx context.Context, id string) (Workflow, error)
	WorkflowByProposal(ctx context.Context, proposalID string) (Workflow, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status WorkflowStatus) error
	ExpiredPendingWorkflows(ctx context.Context, asOf time.Time) ([]Workflow, error)
}

// Observation is one normalization pass's report of source fields that no
// active mapping covered.
type Observation struct {
	TenantID      string
	ConnectorID   string
	ConnectionID  string
	SourceTable   string
	Entity        canonical.Kind
	UnknownFields []string
	// Sample holds the raw values seen for the unknown fields, used to
	// record the observed type in the drift event's new schema.
	Sample map[string]any
}

// Detector turns unmapped source fields into mapping proposals, scored
// against the canonical field catalog.
type Detector struct {
	backend    Backend
	thresholds Thresholds
	now        func() time.Time
}

// DetectorOption customizes a Detector.
type DetectorOption func(*Detector)

// WithDetectorClock overrides the detector's time source.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// WithDetectorThresholds overrides the confidence cut points.
func WithDetectorThresholds(t Thresholds) DetectorOption {
	return func(d *Detector) { d.thresholds = t }
}

// NewDetector creates a detector over the given backend.
func NewDetector(backend Backend, opts ...DetectorOption) *Detector {
	d := &Detector{
		backend:    backend,
		thresholds: DefaultThresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe records one drift event plus repair proposal per unknown field.
// A field that already has a proposal on file is skipped, so replaying the
// same rows does not stack duplicates. Returns only the newly created
// proposals; the caller routes them.
func (d *Detector) Observe(ctx context.Context, obs Observation) ([]Proposal, error) {
	fields := append([]string(nil), obs.UnknownFields...)
	sort.Strings(fields)

	var created []Proposal
	for _, field := range fields {
		match := scoreField(obs.Entity, field)

		p := Proposal{
			ID:              uuid.NewString(),
			TenantID:        obs.TenantID,
			ConnectorID:     obs.ConnectorID,
			SourceTable:     obs.SourceTable,
			SourceField:     field,
			CanonicalEntity: obs.Entity,
			CanonicalField:  match.field,
			Confidence:      match.confidence,
			Reasoning:       match.reasoning,
			Alternatives:    match.alternatives,
			Action:          d.thresholds.Route(match.confidence),
			Origin:          match.origin,
			CreatedAt:       d.now(),
		}
		ev := Event{
			ID:               uuid.NewString(),
			TenantID:         obs.TenantID,
			ConnectionID:     obs.ConnectionID,
			EventType:        EventTypeUnmappedField,
			OldSchema:        map[string]any{},
			NewSchema:        map[string]any{field: observedType(obs.Sample[field])},
			Confidence:       match.confidence,
			Status:           StatusDetected,
			RepairProposalID: p.ID,
			CreatedAt:        p.CreatedAt,
			UpdatedAt:        p.CreatedAt,
		}

		inserted, err := d.backend.CreateDriftWithProposal(ctx, ev, p)
		if err != nil {
			return created, fmt.Errorf("observe drift: field %q: %w", field, err)
		}
		if !inserted {
			continue
		}

		slog.Info("schema drift detected",
			"tenant", obs.TenantID,
			"connector", obs.ConnectorID,
			"table", obs.SourceTable,
			"source_field", field,
			"candidate", match.field,
			"confidence", match.confidence,
			"action", string(p.Action),
		)
		created = append(created, p)
	}
	return created, nil
}

// observedType names the JSON-ish type of a sampled value for the drift
// event's new-schema record.
func observedType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}

// fieldMatch is one scored candidate for an unmapped source field.
type fieldMatch struct {
	field        string
	confidence   float64
	reasoning    string
	alternatives []string
	origin       ProposalOrigin
}

// detectorAliases are renames seen often enough in the wild to treat as
// near-certain. Keyed by entity kind, then normalized source field.
var detectorAliases = map[canonical.Kind]map[string]string{
	canonical.KindAccount: {
		"company":        "name",
		"company_name":   "name",
		"org_name":       "name",
		"sector":         "industry",
		"vertical":       "industry",
		"url":            "website",
		"homepage":       "website",
		"headcount":      "employees",
		"staff_count":    "employees",
		"yearly_revenue": "annual_revenue",
		"arr":            "annual_revenue",
	},
	canonical.KindOpportunity: {
		"deal_name":      "name",
		"deal_value":     "amount",
		"deal_amount":    "amount",
		"value":          "amount",
		"pipeline":       "stage",
		"deal_stage":     "stage",
		"expected_close": "close_date",
		"closing_date":   "close_date",
	},
	canonical.KindContact: {
		"mail":          "email",
		"email_address": "email",
		"given_name":    "first_name",
		"surname":       "last_name",
		"family_name":   "last_name",
		"mobile":        "phone",
		"telephone":     "phone",
		"role":          "title",
		"position":      "title",
	},
	canonical.KindCloudResource: {
		"instance_type": "resource_type",
		"sku":           "resource_type",
		"zone":          "region",
		"location":      "region",
		"state":         "status",
		"vendor":        "provider",
	},
	canonical.KindCostRecord: {
		"cost":          "amount",
		"charge":        "amount",
		"service_name":  "service",
		"currency_code": "currency",
		"billing_start": "period_start",
		"billing_end":   "period_end",
	},
}

// scoreField scores an unmapped source field against the canonical catalog
// for the entity kind. The ladder runs strongest signal first: a known
// alias, then case-normalized equality, then substring containment, then
// token overlap. No signal at all bottoms out at a low-confidence guess of
// the lexically closest field.
func scoreField(kind canonical.Kind, sourceField string) fieldMatch {
	normalized := normalizeFieldName(sourceField)
	catalog := canonical.Fields(kind)

	if target, ok := detectorAliases[kind][normalized]; ok {
		return fieldMatch{
			field:      target,
			confidence: 0.9,
			reasoning:  fmt.Sprintf("%q is a known alias of %q", sourceField, target),
			origin:     OriginHeuristic,
		}
	}

	for _, f := range catalog {
		if normalized == f {
			return fieldMatch{
				field:      f,
				confidence: 0.95,
				reasoning:  fmt.Sprintf("%q equals canonical field %q after normalization", sourceField, f),
				origin:     OriginHeuristic,
			}
		}
	}

	best := fieldMatch{confidence: -1}
	var alternatives []string
	for _, f := range catalog {
		score, why := similarity(normalized, f)
		if score <= 0 {
			continue
		}
		if score > best.confidence {
			if best.field != "" {
				alternatives = append(alternatives, best.field)
			}
			best = fieldMatch{field: f, confidence: score, reasoning: why, origin: OriginSimilarity}
		} else {
			alternatives = append(alternatives, f)
		}
	}

	if best.confidence < 0 {
		// Nothing resembles this field. Propose the first catalog field as
		// a placeholder target so the proposal row is well formed; the
		// confidence keeps it in the reject band.
		return fieldMatch{
			field:      catalog[0],
			confidence: 0.2,
			reasoning:  fmt.Sprintf("no canonical field of %s resembles %q", kind, sourceField),
			origin:     OriginSimilarity,
		}
	}

	sort.Strings(alternatives)
	best.alternatives = alternatives
	return best
}

// similarity scores two normalized field names in (0, 0.85]. Containment
// of the full shorter name in the longer scores by length ratio; otherwise
// shared underscore tokens score by overlap. Zero means no resemblance.
func similarity(source, canonicalField string) (float64, string) {
	shorter, longer := source, canonicalField
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= 3 && strings.Contains(longer, shorter) {
		ratio := float64(len(shorter)) / float64(len(longer))
		return 0.5 + 0.35*ratio,
			fmt.Sprintf("%q contains %q (length ratio %.2f)", longer, shorter, ratio)
	}

	srcTokens := strings.Split(source, "_")
	dstTokens := strings.Split(canonicalField, "_")
	shared := 0
	for _, st := range srcTokens {
		for _, dt := range dstTokens {
			if st != "" && st == dt {
				shared++
				break
			}
		}
	}
	if shared == 0 {
		return 0, ""
	}
	total := len(srcTokens) + len(dstTokens) - shared
	overlap := float64(shared) / float64(total)
	return 0.3 + 0.4*overlap,
		fmt.Sprintf("%d shared token(s) between %q and %q", shared, source, canonicalField)
}

// normalizeFieldName lowercases and collapses separators so camelCase,
// kebab-case and spaced headers compare against the snake_case catalog.
func normalizeFieldName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	prevLower := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			prevLower = false
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
