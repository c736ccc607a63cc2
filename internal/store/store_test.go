package store

import (
	"database/sql"
	"testing"

	"github.com/emiller/starjar/internal/database"
	"github.com/emiller/starjar/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createParent inserts an identity plus a parent profile and returns the
// profile.
func createParent(t *testing.T, db *sql.DB, email string) *model.Profile {
	t.Helper()
	identity, err := NewIdentityStore(db).Create(email, "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	profile, err := NewProfileStore(db).Create(identity.ID, model.RoleParent, "Parent", "", nil, "", nil)
	if err != nil {
		t.Fatalf("create parent profile: %v", err)
	}
	return profile
}

// createChild inserts an identity, a child profile under parentID, and the
// parent's roster entry. Returns the profile and roster entry.
func createChild(t *testing.T, db *sql.DB, parentID int64, email string) (*model.Profile, *model.Child) {
	t.Helper()
	identity, err := NewIdentityStore(db).Create(email, "hash")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	profile, err := NewProfileStore(db).Create(identity.ID, model.RoleChild, "Kid", "", nil, "", &parentID)
	if err != nil {
		t.Fatalf("create child profile: %v", err)
	}
	child, err := NewChildStore(db).Create(parentID, profile.ID, "Kid", email, nil, "secret123")
	if err != nil {
		t.Fatalf("create roster entry: %v", err)
	}
	return profile, child
}
