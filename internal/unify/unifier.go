package unify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Backend is the persistence the unifier runs against.
// Implemented by *store.Store.
type Backend interface {
	ContactRecords(ctx context.Context, tenantID string) ([]SourceRecord, error)
	EnsureUnifiedContact(ctx context.Context, c Contact) (Contact, bool, error)
	EnsureLink(ctx context.Context, l Link) (bool, bool, error)
}

// Unifier merges a tenant's materialized contacts into unified identities
// keyed by normalized email.
type Unifier struct {
	backend Backend
	newID   func() string
}

// Option customizes a Unifier.
type Option func(*Unifier)

// WithIDFunc overrides unified id generation, for deterministic tests.
func WithIDFunc(fn func() string) Option {
	return func(u *Unifier) { u.newID = fn }
}

// NewUnifier creates a unifier over the given backend.
func NewUnifier(backend Backend, opts ...Option) *Unifier {
	u := &Unifier{backend: backend, newID: uuid.NewString}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unify groups the tenant's contacts by normalized email, find-or-creates
// one unified contact per group, and links every source record to it.
//
// The pass is idempotent: contacts and links that already exist are left
// in place and not counted, so a second run over unchanged input reports
// all zeros. The unified contact's name fields are seeded from the first
// record of the group (records arrive in deterministic source order) and
// never overwritten afterwards.
func (u *Unifier) Unify(ctx context.Context, tenantID string) (Result, error) {
	records, err := u.backend.ContactRecords(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("unify contacts: %w", err)
	}

	var emails []string
	groups := make(map[string][]SourceRecord)
	for _, r := range records {
		email := NormalizeEmail(r.Email)
		if email == "" {
			continue
		}
		if _, seen := groups[email]; !seen {
			emails = append(emails, email)
		}
		groups[email] = append(groups[email], r)
	}

	var result Result
	for _, email := range emails {
		group := groups[email]
		seed := group[0]

		contact, created, err := u.backend.EnsureUnifiedContact(ctx, Contact{
			UnifiedID: u.newID(),
			TenantID:  tenantID,
			Email:     email,
			FirstName: cleanName(seed.FirstName),
			LastName:  cleanName(seed.LastName),
		})
		if err != nil {
			return result, fmt.Errorf("unify contacts: %s: %w", email, err)
		}
		if created {
			result.UnifiedContactsCreated++
		}

		for _, r := range group {
			linkCreated, repointed, err := u.backend.EnsureLink(ctx, Link{
				TenantID:        tenantID,
				UnifiedID:       contact.UnifiedID,
				SourceSystem:    r.SourceSystem,
				SourceContactID: r.SourceContactID,
			})
			if err != nil {
				return result, fmt.Errorf("unify contacts: link %s/%s: %w",
					r.SourceSystem, r.SourceContactID, err)
			}
			if linkCreated {
				result.LinksCreated++
			}
			if repointed {
				slog.Info("contact link repointed",
					"tenant", tenantID,
					"source", r.SourceSystem,
					"source_contact", r.SourceContactID,
					"unified", contact.UnifiedID,
				)
			}
		}
	}

	slog.Info("unification pass complete",
		"tenant", tenantID,
		"records", len(records),
		"identities", len(emails),
		"contacts_created", result.UnifiedContactsCreated,
		"links_created", result.LinksCreated,
	)
	return result, nil
}

// NormalizeEmail lowercases and trims an email address. Two source records
// unify exactly when their normalized emails are equal; no plus-tag or
// dot stripping.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var nameStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// cleanName trims a seed name and strips combining diacritics so the
// unified record carries a search-friendly form. The source records keep
// their original spelling in the materialized tables.
func cleanName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	stripped, _, err := transform.String(nameStripper, trimmed)
	if err != nil {
		return trimmed
	}
	return stripped
}
