package store

import (
	"errors"
	"testing"
)

func TestIdentityCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	s := NewIdentityStore(db)

	identity, err := s.Create("mom@example.com", "hash1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if identity.ID == 0 {
		t.Error("expected non-zero id")
	}

	got, err := s.GetByEmail("mom@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got == nil || got.ID != identity.ID {
		t.Errorf("GetByEmail returned %+v, want id %d", got, identity.ID)
	}
}

func TestIdentityEmailCollision(t *testing.T) {
	db := setupTestDB(t)
	s := NewIdentityStore(db)

	if _, err := s.Create("mom@example.com", "hash1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := s.Create("mom@example.com", "hash2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	// Email comparison is case-insensitive.
	_, err = s.Create("MOM@example.com", "hash2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken for different case, got %v", err)
	}
}

func TestIdentityUpdatePassword(t *testing.T) {
	db := setupTestDB(t)
	s := NewIdentityStore(db)

	identity, err := s.Create("mom@example.com", "old")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.UpdatePassword(identity.ID, "new"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	hash, err := s.PasswordHash(identity.ID)
	if err != nil {
		t.Fatalf("PasswordHash failed: %v", err)
	}
	if hash != "new" {
		t.Errorf("hash = %q, want %q", hash, "new")
	}
}

func TestIdentityDelete(t *testing.T) {
	db := setupTestDB(t)
	s := NewIdentityStore(db)

	identity, err := s.Create("mom@example.com", "hash")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(identity.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := s.GetByID(identity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
