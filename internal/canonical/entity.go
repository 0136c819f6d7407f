package canonical

import "fmt"

// Kind identifies a canonical entity shape.
type Kind string

const (
	KindAccount       Kind = "account"
	KindOpportunity   Kind = "opportunity"
	KindContact       Kind = "contact"
	KindCloudResource Kind = "cloud_resource"
	KindCostRecord    Kind = "cost_record"
)

// Kinds lists all canonical entity kinds in a stable order.
var Kinds = []Kind{
	KindAccount,
	KindOpportunity,
	KindContact,
	KindCloudResource,
	KindCostRecord,
}

// ParseKind validates an entity tag.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindAccount, KindOpportunity, KindContact, KindCloudResource, KindCostRecord:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind: %q", s)
}

// kindFields catalogs the canonical field names per kind. The drift
// detector scores proposals against this catalog and the store maps these
// names onto materialized columns.
var kindFields = map[Kind][]string{
	KindAccount:       {"id", "name", "industry", "website", "employees", "annual_revenue"},
	KindOpportunity:   {"id", "name", "account_id", "stage", "amount", "probability", "close_date"},
	KindContact:       {"id", "first_name", "last_name", "email", "phone", "title", "account_id"},
	KindCloudResource: {"id", "name", "resource_type", "provider", "region", "status", "monthly_cost"},
	KindCostRecord:    {"id", "service", "amount", "currency", "period_start", "period_end"},
}

// Fields returns the canonical field names for a kind, or nil for an
// unknown kind. The returned slice must not be mutated.
func Fields(kind Kind) []string {
	return kindFields[kind]
}
