package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/strata/internal/canonical"
)

// Backend is the persistence the mapping store sits in front of.
// Implemented by *store.Store. ActiveMappings must return rows in
// registration order (ascending id) so the first-registered-wins tie break
// stays deterministic.
type Backend interface {
	ActiveMappings(ctx context.Context, tenantID, connectorID string) ([]FieldMapping, error)
	GetMapping(ctx context.Context, key Key) (FieldMapping, error)
	UpsertMapping(ctx context.Context, m FieldMapping) (FieldMapping, bool, error)
	ListMappings(ctx context.Context, tenantID, connectorID string, limit, offset int) (int, []FieldMapping, error)
}

// ApplyResult is the outcome of normalizing one source row.
type ApplyResult struct {
	// Fields holds coerced canonical fields keyed by canonical field name.
	Fields map[string]any
	// Extras holds unmapped source fields verbatim. Never coerced.
	Extras map[string]any
	// Unknown lists unmapped source field names in deterministic order.
	Unknown []string
}

// Store is the writer-of-record for field mappings: a read-through cache in
// front of the backend plus the Apply normalization path. All mutation goes
// through Write so the cache is evicted in the same logical operation.
type Store struct {
	backend  Backend
	cache    *Cache
	resolver *Resolver
}

// NewStore wires the store with its cache and the default fallback chain:
// registry lookup, then static seeds.
func NewStore(backend Backend, cache *Cache) *Store {
	s := &Store{backend: backend, cache: cache, resolver: NewResolver()}
	s.resolver.Append("registry", s.registryResolve)
	s.resolver.Append("seed", seedResolve)
	return s
}

// Apply normalizes a raw source row under the given scope.
//
// For every source field, the active mapping is looked up through an index
// keyed by source field (O(1), never a scan over canonical fields). A
// mapped value gets its transform rule applied, then name-convention
// coercion. An unmapped field lands verbatim in Extras and Unknown - never
// dropped. Row keys are walked in sorted order so Unknown is deterministic.
func (s *Store) Apply(ctx context.Context, scope Scope, sourceRow map[string]any) (ApplyResult, error) {
	index, err := s.sourceFieldIndex(ctx, scope)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply mappings: %w", err)
	}

	result := ApplyResult{
		Fields: make(map[string]any),
		Extras: make(map[string]any),
	}

	keys := make([]string, 0, len(sourceRow))
	for k := range sourceRow {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := sourceRow[key]
		lookup := scope.SourceField(key)

		m, ok := index[lookup]
		if !ok {
			// Not in the registry index - walk the remaining fallback
			// links (seeds) before declaring the field unknown.
			resolved, _, found, rerr := s.resolver.Resolve(ctx, scope, key)
			if rerr != nil {
				return ApplyResult{}, fmt.Errorf("apply mappings: resolve %q: %w", key, rerr)
			}
			if !found {
				result.Extras[key] = value
				result.Unknown = append(result.Unknown, key)
				continue
			}
			m = resolved
		}

		out := value
		if m.MappingType == TypeTransform && m.TransformRule != "" {
			out = applyTransform(m.TransformRule, out)
		}
		result.Fields[m.CanonicalField] = Coerce(m.CanonicalField, out)
	}

	return result, nil
}

// Get returns the active mapping for key, read through the cache.
// Returns ErrNotFound on a miss; misses are negatively cached.
func (s *Store) Get(ctx context.Context, key Key) (FieldMapping, error) {
	if m, miss, ok := s.cache.GetKey(key); ok {
		if miss {
			return FieldMapping{}, ErrNotFound
		}
		return m, nil
	}

	m, err := s.backend.GetMapping(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.cache.PutMiss(key)
		return FieldMapping{}, ErrNotFound
	}
	if err != nil {
		return FieldMapping{}, fmt.Errorf("get mapping: %w", err)
	}

	s.cache.PutKey(m)
	return m, nil
}

// List pages through a connector's mappings, active and deprecated.
// Reads go straight to the backend; only the active set used by Apply is
// cached.
func (s *Store) List(ctx context.Context, tenantID, connectorID string, limit, offset int) (int, []FieldMapping, error) {
	return s.backend.ListMappings(ctx, tenantID, connectorID, limit, offset)
}

// Write persists a mapping and synchronously evicts its cache entries
// before returning. Requires the administrative capability; rejected writes
// have no effect. Updates bump the stored version rather than overwriting
// blindly.
func (s *Store) Write(ctx context.Context, actor Actor, m FieldMapping) (FieldMapping, bool, error) {
	if !actor.Admin {
		return FieldMapping{}, false, ErrUnauthorized
	}
	if err := validateMapping(&m); err != nil {
		return FieldMapping{}, false, err
	}

	written, created, err := s.backend.UpsertMapping(ctx, m)
	if err != nil {
		return FieldMapping{}, false, fmt.Errorf("write mapping: %w", err)
	}

	// Same logical operation as the write: single-key staleness window is
	// zero, the connector list refills on the next Apply.
	s.cache.Invalidate(written.Key())

	slog.Info("mapping written",
		"tenant", written.TenantID,
		"connector", written.ConnectorID,
		"table", written.SourceTable,
		"source_field", written.SourceField,
		"canonical", string(written.CanonicalEntity)+"."+written.CanonicalField,
		"version", written.Version,
		"created", created,
		"actor", actor.ID,
	)
	return written, created, nil
}

// registryResolve is the first chain link: the cached active set.
func (s *Store) registryResolve(ctx context.Context, scope Scope, sourceField string) (FieldMapping, bool, error) {
	index, err := s.sourceFieldIndex(ctx, scope)
	if err != nil {
		return FieldMapping{}, false, err
	}
	m, ok := index[scope.SourceField(sourceField)]
	return m, ok, nil
}

// sourceFieldIndex builds the per-scope source-field index from the cached
// active set. When a source field is registered under more than one target
// (legacy data predating the unique index), the first registered row wins.
func (s *Store) sourceFieldIndex(ctx context.Context, scope Scope) (map[string]FieldMapping, error) {
	mappings, ok := s.cache.GetList(scope.TenantID, scope.ConnectorID)
	if !ok {
		var err error
		mappings, err = s.backend.ActiveMappings(ctx, scope.TenantID, scope.ConnectorID)
		if err != nil {
			return nil, fmt.Errorf("load active mappings: %w", err)
		}
		s.cache.PutList(scope.TenantID, scope.ConnectorID, mappings)
	}

	index := make(map[string]FieldMapping, len(mappings))
	for _, m := range mappings {
		if m.SourceTable != scope.SourceTable || m.CanonicalEntity != scope.Entity {
			continue
		}
		if _, exists := index[m.SourceField]; exists {
			continue // first registered wins
		}
		index[m.SourceField] = m
	}
	return index, nil
}

// validateMapping enforces the invariants a row must satisfy before it can
// become the active mapping for its key.
func validateMapping(m *FieldMapping) error {
	if m.TenantID == "" || m.ConnectorID == "" || m.SourceTable == "" || m.SourceField == "" {
		return fmt.Errorf("mapping key: tenant, connector, table and source field are required")
	}
	kind, err := canonical.ParseKind(string(m.CanonicalEntity))
	if err != nil {
		return fmt.Errorf("mapping target: %w", err)
	}
	if !fieldInCatalog(kind, m.CanonicalField) {
		return fmt.Errorf("mapping target: %s has no canonical field %q", kind, m.CanonicalField)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mapping confidence: %v outside [0,1]", m.Confidence)
	}
	if m.MappingType == "" {
		m.MappingType = TypeDirect
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	return nil
}

func fieldInCatalog(kind canonical.Kind, field string) bool {
	for _, f := range canonical.Fields(kind) {
		if f == field {
			return true
		}
	}
	return false
}

// applyTransform evaluates the small transform rule language attached to
// mapping_type=transform rows. Unknown rules pass the value through with a
// warning rather than failing the row.
func applyTransform(rule string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch {
	case rule == "lower":
		return strings.ToLower(s)
	case rule == "upper":
		return strings.ToUpper(s)
	case rule == "trim":
		return strings.TrimSpace(s)
	case strings.HasPrefix(rule, "prefix:"):
		return strings.TrimPrefix(rule, "prefix:") + s
	case strings.HasPrefix(rule, "strip_prefix:"):
		return strings.TrimPrefix(s, strings.TrimPrefix(rule, "strip_prefix:"))
	default:
		slog.Warn("unknown transform rule", "rule", rule)
		return value
	}
}
