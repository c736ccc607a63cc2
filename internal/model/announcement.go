package model

import "time"

// Announcement is the single site-wide notice shown to every signed-in user
// while Active is set. There is at most one; updating replaces it.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Active    bool      `json:"active"`
	UpdatedBy int64     `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
