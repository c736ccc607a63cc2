package store

import (
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

// AnnouncementStore manages the single current announcement. The table is
// pinned to one row; Set replaces it in place.
type AnnouncementStore struct {
	db *sql.DB
}

func NewAnnouncementStore(db *sql.DB) *AnnouncementStore {
	return &AnnouncementStore{db: db}
}

func scanAnnouncement(scanner interface{ Scan(...any) error }) (*model.Announcement, error) {
	var a model.Announcement
	err := scanner.Scan(&a.ID, &a.Title, &a.Content, &a.Active, &a.UpdatedBy, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const announcementCols = `id, title, content, active, updated_by, updated_at`

// Set creates or replaces the current announcement.
func (s *AnnouncementStore) Set(title, content string, active bool, updatedBy int64) (*model.Announcement, error) {
	_, err := s.db.Exec(
		`INSERT INTO announcements (id, title, content, active, updated_by, updated_at)
		 VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   active = excluded.active,
		   updated_by = excluded.updated_by,
		   updated_at = CURRENT_TIMESTAMP`,
		title, content, active, updatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("set announcement: %w", err)
	}
	return s.Current()
}

// Current returns the announcement regardless of its active flag, or nil
// when none has ever been set.
func (s *AnnouncementStore) Current() (*model.Announcement, error) {
	row := s.db.QueryRow(`SELECT ` + announcementCols + ` FROM announcements WHERE id = 1`)
	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	return a, nil
}
