package store

import "testing"

func TestAnnouncementSetAndCurrent(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")

	s := NewAnnouncementStore(db)
	none, err := s.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no announcement, got %+v", none)
	}

	a, err := s.Set("Heads up", "Chores pause this weekend.", true, parent.ID)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if a.Title != "Heads up" || !a.Active || a.UpdatedBy != parent.ID {
		t.Errorf("announcement = %+v", a)
	}
}

func TestAnnouncementSetReplacesSingleRow(t *testing.T) {
	db := setupTestDB(t)
	parent := createParent(t, db, "mom@example.com")

	s := NewAnnouncementStore(db)
	if _, err := s.Set("First", "First content here.", true, parent.ID); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	replaced, err := s.Set("Second", "Second content here.", false, parent.ID)
	if err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	if replaced.Title != "Second" || replaced.Active {
		t.Errorf("announcement = %+v, want the replacement, inactive", replaced)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM announcements`).Scan(&count); err != nil {
		t.Fatalf("count announcements: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d rows, want 1", count)
	}
}
