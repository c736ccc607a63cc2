package model

import "time"

// Child is a parent-owned roster entry mirroring a child profile's name and
// points so the parent dashboard lists children without a join. The mirror is
// updated in the same transaction as the profile by the points workflow.
type Child struct {
	ID              int64     `json:"id"`
	ParentID        int64     `json:"parent_id"`
	ProfileID       int64     `json:"profile_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Hobbies         []string  `json:"hobbies"`
	Points          int       `json:"points"`
	InitialPassword string    `json:"initial_password,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
