package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/mapping"
)

func sampleMapping() mapping.FieldMapping {
	return mapping.FieldMapping{
		TenantID:        "acme",
		ConnectorID:     "crm-prod",
		SourceTable:     "contacts",
		SourceField:     "email_address",
		CanonicalEntity: canonical.KindContact,
		CanonicalField:  "email",
		Confidence:      0.95,
		MappingType:     mapping.TypeDirect,
		Status:          mapping.StatusActive,
	}
}

func TestUpsertMappingInsertThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	written, created, err := s.UpsertMapping(ctx, sampleMapping())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Fatal("first write should create")
	}
	if written.Version != 1 {
		t.Errorf("Version = %d, want 1", written.Version)
	}

	update := sampleMapping()
	update.CanonicalField = "phone"
	written, created, err = s.UpsertMapping(ctx, update)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if created {
		t.Fatal("second write should update in place")
	}
	if written.Version != 2 {
		t.Errorf("Version = %d, want 2", written.Version)
	}

	stored, err := s.GetMapping(ctx, update.Key())
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if stored.CanonicalField != "phone" {
		t.Errorf("CanonicalField = %q, want phone", stored.CanonicalField)
	}
	if stored.Version != 2 {
		t.Errorf("stored Version = %d, want 2", stored.Version)
	}
}

func TestGetMappingNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMapping(context.Background(), mapping.Key{
		TenantID: "acme", ConnectorID: "crm-prod",
		SourceTable: "contacts", SourceField: "nope",
	})
	if !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestActiveMappingsFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := sampleMapping()
	if _, _, err := s.UpsertMapping(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := sampleMapping()
	second.SourceField = "phone_number"
	second.CanonicalField = "phone"
	if _, _, err := s.UpsertMapping(ctx, second); err != nil {
		t.Fatal(err)
	}

	deprecated := sampleMapping()
	deprecated.SourceField = "old_field"
	deprecated.Status = mapping.StatusDeprecated
	if _, _, err := s.UpsertMapping(ctx, deprecated); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveMappings(ctx, "acme", "crm-prod")
	if err != nil {
		t.Fatalf("ActiveMappings: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2 (deprecated excluded)", len(active))
	}
	if active[0].SourceField != "email_address" || active[1].SourceField != "phone_number" {
		t.Errorf("order = %s, %s; want registration order",
			active[0].SourceField, active[1].SourceField)
	}
}

func TestListMappingsPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fields := []string{"a", "b", "c"}
	for _, f := range fields {
		m := sampleMapping()
		m.SourceField = f
		if _, _, err := s.UpsertMapping(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	total, page, err := s.ListMappings(ctx, "acme", "crm-prod", 2, 1)
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d, want 2", len(page))
	}
	if page[0].SourceField != "b" {
		t.Errorf("page starts at %q, want b", page[0].SourceField)
	}
}
