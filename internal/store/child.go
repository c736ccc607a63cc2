package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/emiller/starjar/internal/model"
)

// ChildStore manages the parent-owned roster of child entries. Each entry
// mirrors the child profile's name and points; the points workflow keeps the
// mirror in lockstep with the profile.
type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var hobbies string
	err := scanner.Scan(
		&c.ID, &c.ParentID, &c.ProfileID, &c.Name, &c.Email, &hobbies,
		&c.Points, &c.InitialPassword, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Hobbies = splitHobbies(hobbies)
	return &c, nil
}

const childCols = `id, parent_id, profile_id, name, email, hobbies, points, initial_password, created_at`

// Hobbies are stored as a comma-joined string; the column is display-only
// and never queried by individual hobby.
func joinHobbies(hobbies []string) string {
	return strings.Join(hobbies, ",")
}

func splitHobbies(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (s *ChildStore) Create(parentID, profileID int64, name, email string, hobbies []string, initialPassword string) (*model.Child, error) {
	result, err := s.db.Exec(
		`INSERT INTO children (parent_id, profile_id, name, email, hobbies, initial_password) VALUES (?, ?, ?, ?, ?, ?)`,
		parentID, profileID, name, email, joinHobbies(hobbies), initialPassword,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id int64) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (s *ChildStore) GetByProfileID(profileID int64) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE profile_id = ?`, profileID)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child by profile: %w", err)
	}
	return c, nil
}

func (s *ChildStore) ListByParent(parentID int64) ([]model.Child, error) {
	rows, err := s.db.Query(
		`SELECT `+childCols+` FROM children WHERE parent_id = ? ORDER BY name ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

// ClearInitialPassword blanks the one-time generated secret once the parent
// has acknowledged it.
func (s *ChildStore) ClearInitialPassword(id int64) error {
	_, err := s.db.Exec(`UPDATE children SET initial_password = '' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear initial password: %w", err)
	}
	return nil
}

func (s *ChildStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM children WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}
