package model

import "time"

type Task struct {
	ID              int64     `json:"id"`
	ParentID        int64     `json:"parent_id"`
	Description     string    `json:"description"`
	Points          int       `json:"points"`
	Status          string    `json:"status"`
	CompletionNotes string    `json:"completion_notes"`
	Feedback        string    `json:"feedback"`
	AssigneeIDs     []int64   `json:"assignee_ids"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
