package mapping

import (
	"errors"
	"strings"
	"time"

	"github.com/roach88/strata/internal/canonical"
)

// Status of a mapping row. Only active rows participate in lookups.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// Type distinguishes pass-through mappings from ones with a transform rule.
type Type string

const (
	TypeDirect    Type = "direct"
	TypeTransform Type = "transform"
)

// Sentinel errors shared by the store and its backends.
var (
	ErrNotFound     = errors.New("mapping not found")
	ErrUnauthorized = errors.New("mapping write requires administrative capability")
)

// Key identifies the unique active mapping for one source field.
type Key struct {
	TenantID    string
	ConnectorID string
	SourceTable string
	SourceField string
}

// Scope is the normalization context a connector applies a row under.
type Scope struct {
	TenantID    string
	ConnectorID string
	SourceTable string
	Entity      canonical.Kind
}

// Key returns the lookup key for a source field within this scope.
func (s Scope) Key(sourceField string) Key {
	return Key{
		TenantID:    s.TenantID,
		ConnectorID: s.ConnectorID,
		SourceTable: s.SourceTable,
		SourceField: s.SourceField(sourceField),
	}
}

// SourceField normalizes a raw field name for lookup. Lookups are exact
// apart from surrounding whitespace.
func (s Scope) SourceField(name string) string {
	return strings.TrimSpace(name)
}

// FieldMapping is one source field to canonical field rule.
// Version increases monotonically on every in-place update; rows are never
// blindly overwritten.
type FieldMapping struct {
	ID              int64          `json:"id"`
	TenantID        string         `json:"tenant_id"`
	ConnectorID     string         `json:"connector_id"`
	SourceTable     string         `json:"source_table"`
	SourceField     string         `json:"source_field"`
	CanonicalEntity canonical.Kind `json:"canonical_entity"`
	CanonicalField  string         `json:"canonical_field"`
	Confidence      float64        `json:"confidence"`
	MappingType     Type           `json:"mapping_type"`
	TransformRule   string         `json:"transform_rule,omitempty"`
	Version         int            `json:"version"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Key returns the mapping's unique active key.
func (m FieldMapping) Key() Key {
	return Key{
		TenantID:    m.TenantID,
		ConnectorID: m.ConnectorID,
		SourceTable: m.SourceTable,
		SourceField: m.SourceField,
	}
}

// Actor carries the capability attached to a mapping write.
type Actor struct {
	ID    string
	Admin bool
}
