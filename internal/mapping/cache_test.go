package mapping

import (
	"testing"
	"time"
)

func testKey() Key {
	return Key{
		TenantID:    "acme",
		ConnectorID: "crm-prod",
		SourceTable: "contacts",
		SourceField: "email_address",
	}
}

func testMapping() FieldMapping {
	return FieldMapping{
		TenantID:        "acme",
		ConnectorID:     "crm-prod",
		SourceTable:     "contacts",
		SourceField:     "email_address",
		CanonicalEntity: "contact",
		CanonicalField:  "email",
		Confidence:      1.0,
		MappingType:     TypeDirect,
		Status:          StatusActive,
	}
}

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(time.Minute)

	if _, _, ok := c.GetKey(testKey()); ok {
		t.Fatal("empty cache reported a hit")
	}

	c.PutKey(testMapping())
	m, miss, ok := c.GetKey(testKey())
	if !ok || miss {
		t.Fatalf("ok=%v miss=%v, want hit", ok, miss)
	}
	if m.CanonicalField != "email" {
		t.Errorf("CanonicalField = %q", m.CanonicalField)
	}
}

func TestCacheNegativeEntry(t *testing.T) {
	c := NewCache(time.Minute)
	c.PutMiss(testKey())

	_, miss, ok := c.GetKey(testKey())
	if !ok || !miss {
		t.Fatalf("ok=%v miss=%v, want cached negative entry", ok, miss)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(300 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.PutKey(testMapping())
	c.PutList("acme", "crm-prod", []FieldMapping{testMapping()})

	now = now.Add(299 * time.Second)
	if _, _, ok := c.GetKey(testKey()); !ok {
		t.Fatal("entry expired before TTL")
	}

	now = now.Add(2 * time.Second)
	if _, _, ok := c.GetKey(testKey()); ok {
		t.Fatal("entry survived past TTL")
	}
	if _, ok := c.GetList("acme", "crm-prod"); ok {
		t.Fatal("list survived past TTL")
	}
}

func TestCacheInvalidateEvictsKeyAndList(t *testing.T) {
	c := NewCache(time.Minute)
	c.PutKey(testMapping())
	c.PutList("acme", "crm-prod", []FieldMapping{testMapping()})

	c.Invalidate(testKey())

	if _, _, ok := c.GetKey(testKey()); ok {
		t.Fatal("key survived invalidation")
	}
	if _, ok := c.GetList("acme", "crm-prod"); ok {
		t.Fatal("connector list survived invalidation")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}
