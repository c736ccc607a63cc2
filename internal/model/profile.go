package model

import "time"

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// Identity is an authentication record. It is created separately from the
// profile so a failed provisioning attempt can be cleaned up without
// touching any profile data.
type Identity struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the canonical per-user record. Points are meaningful only for
// child profiles and are mutated exclusively by the points workflow.
type Profile struct {
	ID         int64     `json:"id"`
	IdentityID int64     `json:"identity_id"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	Gender     string    `json:"gender"`
	Age        *int      `json:"age"`
	Phone      string    `json:"phone"`
	Points     int       `json:"points"`
	ParentID   *int64    `json:"parent_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Profile) IsParent() bool { return p.Role == RoleParent }

func (p *Profile) IsChild() bool { return p.Role == RoleChild }
