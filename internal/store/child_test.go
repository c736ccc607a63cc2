package store

import (
	"reflect"
	"testing"

	"github.com/emiller/starjar/internal/model"
)

func TestChildHobbiesRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")

	identity, err := NewIdentityStore(db).Create("kid@example.com", "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	profile, err := NewProfileStore(db).Create(identity.ID, model.RoleChild, "Kid", "", nil, "", &parent.ID)
	if err != nil {
		t.Fatalf("create child profile: %v", err)
	}

	s := NewChildStore(db)
	child, err := s.Create(parent.ID, profile.ID, "Kid", "kid@example.com", []string{"lego", "soccer"}, "secret123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.GetByID(child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !reflect.DeepEqual(got.Hobbies, []string{"lego", "soccer"}) {
		t.Errorf("hobbies = %v, want [lego soccer]", got.Hobbies)
	}
}

func TestChildNoHobbiesStaysEmpty(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")
	_, child := createChild(t, db, parent.ID, "kid@example.com")

	if len(child.Hobbies) != 0 {
		t.Errorf("hobbies = %v, want none", child.Hobbies)
	}
}

func TestChildRoster(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")
	profileA, childA := createChild(t, db, parent.ID, "a@example.com")
	_, childB := createChild(t, db, parent.ID, "b@example.com")

	s := NewChildStore(db)
	children, err := s.ListByParent(parent.ID)
	if err != nil {
		t.Fatalf("ListByParent failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}

	got, err := s.GetByProfileID(profileA.ID)
	if err != nil {
		t.Fatalf("GetByProfileID failed: %v", err)
	}
	if got == nil || got.ID != childA.ID {
		t.Errorf("GetByProfileID returned %+v, want id %d", got, childA.ID)
	}

	other := createParent(t, db, "dad@example.com")
	others, err := s.ListByParent(other.ID)
	if err != nil {
		t.Fatalf("ListByParent failed: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("got %d children for other parent, want 0", len(others))
	}
	_ = childB
}

func TestChildClearInitialPassword(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")
	_, child := createChild(t, db, parent.ID, "kid@example.com")

	if child.InitialPassword == "" {
		t.Fatal("expected initial password to be set")
	}

	s := NewChildStore(db)
	if err := s.ClearInitialPassword(child.ID); err != nil {
		t.Fatalf("ClearInitialPassword failed: %v", err)
	}
	got, err := s.GetByID(child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.InitialPassword != "" {
		t.Errorf("initial password = %q, want empty", got.InitialPassword)
	}
}

func TestChildDelete(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")
	_, child := createChild(t, db, parent.ID, "kid@example.com")

	s := NewChildStore(db)
	if err := s.Delete(child.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := s.GetByID(child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
