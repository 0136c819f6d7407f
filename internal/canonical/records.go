package canonical

import "time"

// Typed views over the materialized entity tables. Optional canonical
// fields are pointers: nil means the source never supplied the field or a
// coercion nulled it.

// Account is a materialized account row.
type Account struct {
	TenantID      string         `json:"tenant_id"`
	EntityID      string         `json:"entity_id"`
	SourceSystem  string         `json:"source_system"`
	Name          *string        `json:"name,omitempty"`
	Industry      *string        `json:"industry,omitempty"`
	Website       *string        `json:"website,omitempty"`
	Employees     *int64         `json:"employees,omitempty"`
	AnnualRevenue *float64       `json:"annual_revenue,omitempty"`
	Extras        map[string]any `json:"extras,omitempty"`
	SyncedAt      time.Time      `json:"synced_at"`
}

// Opportunity is a materialized opportunity row.
type Opportunity struct {
	TenantID     string         `json:"tenant_id"`
	EntityID     string         `json:"entity_id"`
	SourceSystem string         `json:"source_system"`
	Name         *string        `json:"name,omitempty"`
	AccountID    *string        `json:"account_id,omitempty"`
	Stage        *string        `json:"stage,omitempty"`
	Amount       *float64       `json:"amount,omitempty"`
	Probability  *float64       `json:"probability,omitempty"`
	CloseDate    *string        `json:"close_date,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
	SyncedAt     time.Time      `json:"synced_at"`
}

// Contact is a materialized contact row.
type Contact struct {
	TenantID     string         `json:"tenant_id"`
	EntityID     string         `json:"entity_id"`
	SourceSystem string         `json:"source_system"`
	FirstName    *string        `json:"first_name,omitempty"`
	LastName     *string        `json:"last_name,omitempty"`
	Email        *string        `json:"email,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Title        *string        `json:"title,omitempty"`
	AccountID    *string        `json:"account_id,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
	SyncedAt     time.Time      `json:"synced_at"`
}

// CloudResource is a materialized cloud resource row.
type CloudResource struct {
	TenantID     string         `json:"tenant_id"`
	EntityID     string         `json:"entity_id"`
	SourceSystem string         `json:"source_system"`
	Name         *string        `json:"name,omitempty"`
	ResourceType *string        `json:"resource_type,omitempty"`
	Provider     *string        `json:"provider,omitempty"`
	Region       *string        `json:"region,omitempty"`
	Status       *string        `json:"status,omitempty"`
	MonthlyCost  *float64       `json:"monthly_cost,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
	SyncedAt     time.Time      `json:"synced_at"`
}

// CostRecord is a materialized cost record row.
type CostRecord struct {
	TenantID     string         `json:"tenant_id"`
	EntityID     string         `json:"entity_id"`
	SourceSystem string         `json:"source_system"`
	Service      *string        `json:"service,omitempty"`
	Amount       *float64       `json:"amount,omitempty"`
	Currency     *string        `json:"currency,omitempty"`
	PeriodStart  *string        `json:"period_start,omitempty"`
	PeriodEnd    *string        `json:"period_end,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
	SyncedAt     time.Time      `json:"synced_at"`
}
