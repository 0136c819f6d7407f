package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/strata/internal/canonical"
)

// Typed readers over the materialized tables. Nullable columns scan
// through sql.Null wrappers into the record's pointer fields.

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func decodeExtras(raw string) (map[string]any, error) {
	var extras map[string]any
	if err := json.Unmarshal([]byte(raw), &extras); err != nil {
		return nil, fmt.Errorf("decode extras: %w", err)
	}
	return extras, nil
}

// Accounts returns a tenant's materialized accounts in (source, id) order.
func (s *Store) Accounts(ctx context.Context, tenantID string, limit int) ([]canonical.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, entity_id, source_system, name, industry, website,
		       employees, annual_revenue, extras, synced_at
		FROM materialized_accounts
		WHERE tenant_id = ?
		ORDER BY source_system ASC, entity_id ASC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	defer rows.Close()

	var result []canonical.Account
	for rows.Next() {
		var a canonical.Account
		var name, industry, website sql.NullString
		var employees sql.NullInt64
		var revenue sql.NullFloat64
		var extras, syncedAt string
		err := rows.Scan(&a.TenantID, &a.EntityID, &a.SourceSystem,
			&name, &industry, &website, &employees, &revenue, &extras, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("accounts: scan: %w", err)
		}
		a.Name = strPtr(name)
		a.Industry = strPtr(industry)
		a.Website = strPtr(website)
		a.Employees = intPtr(employees)
		a.AnnualRevenue = floatPtr(revenue)
		if a.Extras, err = decodeExtras(extras); err != nil {
			return nil, fmt.Errorf("accounts: %w", err)
		}
		a.SyncedAt = parseTime(syncedAt)
		result = append(result, a)
	}
	return result, rows.Err()
}

// Opportunities returns a tenant's materialized opportunities in
// (source, id) order.
func (s *Store) Opportunities(ctx context.Context, tenantID string, limit int) ([]canonical.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, entity_id, source_system, name, account_id, stage,
		       amount, probability, close_date, extras, synced_at
		FROM materialized_opportunities
		WHERE tenant_id = ?
		ORDER BY source_system ASC, entity_id ASC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("opportunities: %w", err)
	}
	defer rows.Close()

	var result []canonical.Opportunity
	for rows.Next() {
		var o canonical.Opportunity
		var name, accountID, stage, closeDate sql.NullString
		var amount, probability sql.NullFloat64
		var extras, syncedAt string
		err := rows.Scan(&o.TenantID, &o.EntityID, &o.SourceSystem,
			&name, &accountID, &stage, &amount, &probability, &closeDate,
			&extras, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("opportunities: scan: %w", err)
		}
		o.Name = strPtr(name)
		o.AccountID = strPtr(accountID)
		o.Stage = strPtr(stage)
		o.Amount = floatPtr(amount)
		o.Probability = floatPtr(probability)
		o.CloseDate = strPtr(closeDate)
		if o.Extras, err = decodeExtras(extras); err != nil {
			return nil, fmt.Errorf("opportunities: %w", err)
		}
		o.SyncedAt = parseTime(syncedAt)
		result = append(result, o)
	}
	return result, rows.Err()
}

// Contacts returns a tenant's materialized contacts in (source, id) order.
func (s *Store) Contacts(ctx context.Context, tenantID string, limit int) ([]canonical.Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, entity_id, source_system, first_name, last_name,
		       email, phone, title, account_id, extras, synced_at
		FROM materialized_contacts
		WHERE tenant_id = ?
		ORDER BY source_system ASC, entity_id ASC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	defer rows.Close()

	var result []canonical.Contact
	for rows.Next() {
		var c canonical.Contact
		var firstName, lastName, email, phone, title, accountID sql.NullString
		var extras, syncedAt string
		err := rows.Scan(&c.TenantID, &c.EntityID, &c.SourceSystem,
			&firstName, &lastName, &email, &phone, &title, &accountID,
			&extras, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("contacts: scan: %w", err)
		}
		c.FirstName = strPtr(firstName)
		c.LastName = strPtr(lastName)
		c.Email = strPtr(email)
		c.Phone = strPtr(phone)
		c.Title = strPtr(title)
		c.AccountID = strPtr(accountID)
		if c.Extras, err = decodeExtras(extras); err != nil {
			return nil, fmt.Errorf("contacts: %w", err)
		}
		c.SyncedAt = parseTime(syncedAt)
		result = append(result, c)
	}
	return result, rows.Err()
}
