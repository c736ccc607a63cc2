package store

import (
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var age sql.NullInt64
	var parentID sql.NullInt64

	err := scanner.Scan(
		&p.ID, &p.IdentityID, &p.Role, &p.Name, &p.Gender, &age,
		&p.Phone, &p.Points, &parentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if age.Valid {
		a := int(age.Int64)
		p.Age = &a
	}
	if parentID.Valid {
		p.ParentID = &parentID.Int64
	}
	return &p, nil
}

const profileCols = `id, identity_id, role, name, gender, age, phone, points, parent_id, created_at, updated_at`

func (s *ProfileStore) Create(identityID int64, role, name, gender string, age *int, phone string, parentID *int64) (*model.Profile, error) {
	var a sql.NullInt64
	if age != nil {
		a = sql.NullInt64{Int64: int64(*age), Valid: true}
	}
	var pID sql.NullInt64
	if parentID != nil {
		pID = sql.NullInt64{Int64: *parentID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO profiles (identity_id, role, name, gender, age, phone, parent_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identityID, role, name, gender, a, phone, pID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByIdentityID(identityID int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE identity_id = ?`, identityID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by identity: %w", err)
	}
	return p, nil
}

// UpdateDisplay updates display attributes only. Points are excluded on
// purpose: only the points workflow may mutate balances.
func (s *ProfileStore) UpdateDisplay(id int64, name, gender string, age *int, phone string) (*model.Profile, error) {
	var a sql.NullInt64
	if age != nil {
		a = sql.NullInt64{Int64: int64(*age), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE profiles SET name = ?, gender = ?, age = ?, phone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, gender, a, phone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
