package mapping

import (
	"context"
	"log/slog"
)

// ResolveFunc is one link in the fallback chain. It reports whether it
// could produce a mapping for the source field.
type ResolveFunc func(ctx context.Context, scope Scope, sourceField string) (FieldMapping, bool, error)

type resolverLink struct {
	name string
	fn   ResolveFunc
}

// Resolver is an explicit ordered chain-of-responsibility for mapping
// lookups: registry first, then the static seed table, then a miss that the
// caller routes to extras. Each satisfied lookup logs which strategy
// answered so behavior stays traceable.
type Resolver struct {
	links []resolverLink
}

// NewResolver creates an empty chain. Links are tried in append order.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Append adds a named link to the end of the chain.
func (r *Resolver) Append(name string, fn ResolveFunc) {
	r.links = append(r.links, resolverLink{name: name, fn: fn})
}

// Resolve walks the chain. Returns the mapping, the name of the strategy
// that satisfied the lookup, and whether any link matched. A link error
// aborts the walk; a clean miss moves to the next link.
func (r *Resolver) Resolve(ctx context.Context, scope Scope, sourceField string) (FieldMapping, string, bool, error) {
	for _, link := range r.links {
		m, ok, err := link.fn(ctx, scope, sourceField)
		if err != nil {
			return FieldMapping{}, link.name, false, err
		}
		if ok {
			slog.Debug("mapping resolved",
				"strategy", link.name,
				"tenant", scope.TenantID,
				"connector", scope.ConnectorID,
				"table", scope.SourceTable,
				"source_field", sourceField,
				"canonical_field", m.CanonicalField,
			)
			return m, link.name, true, nil
		}
	}
	return FieldMapping{}, "", false, nil
}

// seedAliases is the legacy static fallback: well-known source column
// aliases per entity kind. Seeds answer lookups but are never persisted;
// a field satisfied by a seed does not raise drift.
var seedAliases = map[string]map[string]string{
	"contact": {
		"email_address": "email",
		"mail":          "email",
		"firstname":     "first_name",
		"lastname":      "last_name",
		"phone_number":  "phone",
		"job_title":     "title",
	},
	"account": {
		"company_name":   "name",
		"account_name":   "name",
		"num_employees":  "employees",
		"employee_count": "employees",
		"web_site":       "website",
	},
	"opportunity": {
		"opportunity_name": "name",
		"deal_stage":       "stage",
		"win_probability":  "probability",
	},
	"cloud_resource": {
		"instance_type": "resource_type",
		"zone":          "region",
	},
	"cost_record": {
		"service_name": "service",
		"cost":         "amount",
	},
}

// seedResolve is the static-seed chain link.
func seedResolve(_ context.Context, scope Scope, sourceField string) (FieldMapping, bool, error) {
	aliases, ok := seedAliases[string(scope.Entity)]
	if !ok {
		return FieldMapping{}, false, nil
	}
	target, ok := aliases[scope.SourceField(sourceField)]
	if !ok {
		return FieldMapping{}, false, nil
	}
	return FieldMapping{
		TenantID:        scope.TenantID,
		ConnectorID:     scope.ConnectorID,
		SourceTable:     scope.SourceTable,
		SourceField:     scope.SourceField(sourceField),
		CanonicalEntity: scope.Entity,
		CanonicalField:  target,
		Confidence:      1.0,
		MappingType:     TypeDirect,
		Status:          StatusActive,
	}, true, nil
}
