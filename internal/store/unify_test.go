package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/strata/internal/unify"
)

func TestEnsureUnifiedContact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := unify.Contact{
		UnifiedID: "u-1",
		TenantID:  "acme",
		Email:     "sam@acme.com",
		FirstName: "Sam",
		LastName:  "Rivera",
	}

	stored, created, err := s.EnsureUnifiedContact(ctx, c)
	if err != nil {
		t.Fatalf("EnsureUnifiedContact: %v", err)
	}
	if !created {
		t.Fatal("first ensure should create")
	}
	if stored.UnifiedID != "u-1" || stored.CreatedAt.IsZero() {
		t.Errorf("stored = %+v", stored)
	}

	// Same slot, different candidate id: the existing row wins.
	dup := c
	dup.UnifiedID = "u-2"
	stored, created, err = s.EnsureUnifiedContact(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second ensure must not create")
	}
	if stored.UnifiedID != "u-1" {
		t.Errorf("UnifiedID = %s, want the first insert's u-1", stored.UnifiedID)
	}
}

func TestFindUnifiedContactNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FindUnifiedContact(context.Background(), "acme", "nobody@acme.com")
	if !errors.Is(err, unify.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEnsureLink(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := unify.Link{
		TenantID:        "acme",
		UnifiedID:       "u-1",
		SourceSystem:    "crm",
		SourceContactID: "c-1",
	}

	created, repointed, err := s.EnsureLink(ctx, l)
	if err != nil {
		t.Fatalf("EnsureLink: %v", err)
	}
	if !created || repointed {
		t.Errorf("first ensure: created=%v repointed=%v", created, repointed)
	}

	// Replay with the same unified id is a full no-op.
	created, repointed, err = s.EnsureLink(ctx, l)
	if err != nil {
		t.Fatal(err)
	}
	if created || repointed {
		t.Errorf("replay: created=%v repointed=%v", created, repointed)
	}

	// Same source record now belongs to a different unified contact.
	moved := l
	moved.UnifiedID = "u-2"
	created, repointed, err = s.EnsureLink(ctx, moved)
	if err != nil {
		t.Fatal(err)
	}
	if created || !repointed {
		t.Errorf("merge: created=%v repointed=%v", created, repointed)
	}

	got, err := s.FindLink(ctx, "acme", "crm", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UnifiedID != "u-2" {
		t.Errorf("UnifiedID = %s, want repointed u-2", got.UnifiedID)
	}
}
