package store

import (
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	err := scanner.Scan(&b.ID, &b.ObjectKey, &b.SizeBytes, &b.TriggeredBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const backupCols = `id, object_key, size_bytes, triggered_by, created_at`

func (s *BackupStore) Create(objectKey string, sizeBytes int64, triggeredBy string) (*model.Backup, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (object_key, size_bytes, triggered_by) VALUES (?, ?, ?)`,
		objectKey, sizeBytes, triggeredBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	return scanBackup(row)
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) Latest() (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT ` + backupCols + ` FROM backups ORDER BY created_at DESC, id DESC LIMIT 1`)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest backup: %w", err)
	}
	return b, nil
}
