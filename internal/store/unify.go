package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/strata/internal/unify"
)

// FindUnifiedContact looks up the unified contact for a normalized email.
// Returns unify.ErrNotFound when none exists.
func (s *Store) FindUnifiedContact(ctx context.Context, tenantID, email string) (unify.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT unified_id, tenant_id, email, first_name, last_name, created_at
		FROM unified_contacts
		WHERE tenant_id = ? AND email = ?
	`, tenantID, email)

	var c unify.Contact
	var createdAt string
	err := row.Scan(&c.UnifiedID, &c.TenantID, &c.Email, &c.FirstName, &c.LastName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return unify.Contact{}, unify.ErrNotFound
	}
	if err != nil {
		return unify.Contact{}, fmt.Errorf("find unified contact: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// EnsureUnifiedContact inserts the unified contact if the (tenant, email)
// slot is free, otherwise returns the existing row. A concurrent insert
// losing the unique-constraint race is treated as "already exists":
// ON CONFLICT DO NOTHING, then re-read.
func (s *Store) EnsureUnifiedContact(ctx context.Context, c unify.Contact) (unify.Contact, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO unified_contacts (unified_id, tenant_id, email, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, email) DO NOTHING
	`, c.UnifiedID, c.TenantID, c.Email, c.FirstName, c.LastName, fmtTime(time.Now()))
	if err != nil {
		return unify.Contact{}, false, fmt.Errorf("ensure unified contact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return unify.Contact{}, false, fmt.Errorf("ensure unified contact: rows affected: %w", err)
	}
	if affected > 0 {
		stored, err := s.FindUnifiedContact(ctx, c.TenantID, c.Email)
		if err != nil {
			return unify.Contact{}, false, fmt.Errorf("ensure unified contact: re-read: %w", err)
		}
		return stored, true, nil
	}

	existing, err := s.FindUnifiedContact(ctx, c.TenantID, c.Email)
	if err != nil {
		return unify.Contact{}, false, fmt.Errorf("ensure unified contact: read existing: %w", err)
	}
	return existing, false, nil
}

// FindLink looks up the link for a source contact record.
// Returns unify.ErrNotFound when none exists.
func (s *Store) FindLink(ctx context.Context, tenantID, sourceSystem, sourceContactID string) (unify.Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, unified_id, source_system, source_contact_id, created_at
		FROM unified_contact_links
		WHERE tenant_id = ? AND source_system = ? AND source_contact_id = ?
	`, tenantID, sourceSystem, sourceContactID)

	var l unify.Link
	var createdAt string
	err := row.Scan(&l.ID, &l.TenantID, &l.UnifiedID, &l.SourceSystem, &l.SourceContactID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return unify.Link{}, unify.ErrNotFound
	}
	if err != nil {
		return unify.Link{}, fmt.Errorf("find link: %w", err)
	}
	l.CreatedAt = parseTime(createdAt)
	return l, nil
}

// EnsureLink find-or-creates the link for a source contact record and
// repoints it when it references a different unified id (identity merge).
// Returns (created, repointed). Constraint races follow the same
// "already exists, re-read and continue" rule as EnsureUnifiedContact.
func (s *Store) EnsureLink(ctx context.Context, l unify.Link) (bool, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO unified_contact_links
		(tenant_id, unified_id, source_system, source_contact_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, source_system, source_contact_id) DO NOTHING
	`, l.TenantID, l.UnifiedID, l.SourceSystem, l.SourceContactID, fmtTime(time.Now()))
	if err != nil {
		return false, false, fmt.Errorf("ensure link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("ensure link: rows affected: %w", err)
	}
	if affected > 0 {
		return true, false, nil
	}

	existing, err := s.FindLink(ctx, l.TenantID, l.SourceSystem, l.SourceContactID)
	if err != nil {
		return false, false, fmt.Errorf("ensure link: read existing: %w", err)
	}
	if existing.UnifiedID == l.UnifiedID {
		return false, false, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE unified_contact_links SET unified_id = ? WHERE id = ?
	`, l.UnifiedID, existing.ID); err != nil {
		return false, false, fmt.Errorf("ensure link: repoint: %w", err)
	}
	return false, true, nil
}
