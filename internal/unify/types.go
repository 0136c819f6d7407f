package unify

import (
	"errors"
	"time"
)

// ErrNotFound is returned for unknown unified contacts or links.
var ErrNotFound = errors.New("unified record not found")

// Contact is one logical person per (tenant, normalized email).
type Contact struct {
	UnifiedID string    `json:"unified_id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Link ties one source-system contact record to its unified identity.
// Unique per (tenant, source_system, source_contact_id); re-linking an
// existing source record to a different unified id is an identity merge.
type Link struct {
	ID              int64     `json:"id"`
	TenantID        string    `json:"tenant_id"`
	UnifiedID       string    `json:"unified_id"`
	SourceSystem    string    `json:"source_system"`
	SourceContactID string    `json:"source_contact_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// SourceRecord is a materialized contact row as the unifier consumes it.
type SourceRecord struct {
	SourceSystem    string
	SourceContactID string
	Email           string
	FirstName       string
	LastName        string
}

// Result reports what one unifier run created. A second run over an
// unchanged input set must report all zeros.
type Result struct {
	UnifiedContactsCreated int `json:"unified_contacts_created"`
	LinksCreated           int `json:"links_created"`
}
