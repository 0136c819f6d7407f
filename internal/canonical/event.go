package canonical

import (
	"fmt"
	"time"
)

// SchemaVersion is the canonical envelope version stamped into event meta.
const SchemaVersion = "1"

// Op is the operation an event carries.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Meta is the tenant-scoped envelope metadata.
type Meta struct {
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	TraceID       string    `json:"trace_id"`
	EmittedAt     time.Time `json:"emitted_at"`
}

// Source identifies the upstream system an event was normalized from.
type Source struct {
	System        string `json:"system"`
	ConnectionID  string `json:"connection_id"`
	SchemaVersion string `json:"schema_version,omitempty"`
}

// Event is the canonical event envelope. Events are immutable once
// published; corrections are new events, never in-place mutations.
//
// Data holds the normalized canonical fields for the tagged entity kind.
// UnknownFields lists, in sorted source order, every source field name that
// had no active mapping; Extras carries those fields' raw values verbatim.
type Event struct {
	Meta          Meta           `json:"meta"`
	Source        Source         `json:"source"`
	Entity        Kind           `json:"entity"`
	Op            Op             `json:"op"`
	Data          map[string]any `json:"data"`
	Extras        map[string]any `json:"extras,omitempty"`
	UnknownFields []string       `json:"unknown_fields,omitempty"`
}

// Validate checks envelope invariants that hold regardless of payload shape.
// Payload shape itself is the registry's job.
func (e *Event) Validate() error {
	if _, err := ParseKind(string(e.Entity)); err != nil {
		return fmt.Errorf("event entity: %w", err)
	}
	if e.Op != OpUpsert && e.Op != OpDelete {
		return fmt.Errorf("event op: unknown op %q", e.Op)
	}
	if e.Meta.TenantID == "" {
		return fmt.Errorf("event meta: tenant_id is required")
	}
	if e.Meta.TraceID == "" {
		return fmt.Errorf("event meta: trace_id is required")
	}
	if e.Source.System == "" {
		return fmt.Errorf("event source: system is required")
	}
	if e.Op == OpUpsert && e.Data == nil {
		return fmt.Errorf("event data: upsert requires a payload")
	}
	if len(e.UnknownFields) != len(e.Extras) {
		return fmt.Errorf("event extras: %d unknown fields but %d extras values",
			len(e.UnknownFields), len(e.Extras))
	}
	return nil
}

// EntityID extracts the payload's id field.
// Every canonical shape requires id, so a missing or empty id means the
// payload never passed registry validation.
func (e *Event) EntityID() (string, error) {
	id, ok := e.Data["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("event data: missing entity id")
	}
	return id, nil
}
