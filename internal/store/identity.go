package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/emiller/starjar/internal/model"
)

// ErrEmailTaken is returned by IdentityStore.Create when the email is
// already registered. Callers surface it as a distinct, user-actionable
// error so the parent can pick a different identifier.
var ErrEmailTaken = errors.New("email already in use")

type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func scanIdentity(scanner interface{ Scan(...any) error }) (*model.Identity, error) {
	var i model.Identity
	err := scanner.Scan(&i.ID, &i.Email, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const identityCols = `id, email, created_at`

func (s *IdentityStore) Create(email, passwordHash string) (*model.Identity, error) {
	result, err := s.db.Exec(
		`INSERT INTO identities (email, password_hash) VALUES (?, ?)`,
		email, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *IdentityStore) GetByID(id int64) (*model.Identity, error) {
	row := s.db.QueryRow(`SELECT `+identityCols+` FROM identities WHERE id = ?`, id)
	i, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return i, nil
}

func (s *IdentityStore) GetByEmail(email string) (*model.Identity, error) {
	row := s.db.QueryRow(`SELECT `+identityCols+` FROM identities WHERE email = ?`, email)
	i, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by email: %w", err)
	}
	return i, nil
}

func (s *IdentityStore) PasswordHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM identities WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("identity not found")
	}
	if err != nil {
		return "", fmt.Errorf("query password hash: %w", err)
	}
	return hash, nil
}

func (s *IdentityStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE identities SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes an identity. Used to clean up after a failed provisioning
// attempt so no orphaned login is left behind.
func (s *IdentityStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}
