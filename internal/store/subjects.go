package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
)

// CreateSubject inserts a new subject. The name must be unique.
func (db *DB) CreateSubject(name, notes string) (*models.Subject, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.ErrInvalidIdentity
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO subjects (name, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, name, notes, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: create subject: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create subject id: %w", err)
	}
	return db.GetSubject(id)
}

// GetSubject returns the subject with the given id.
func (db *DB) GetSubject(id int64) (*models.Subject, error) {
	var s models.Subject
	err := db.conn.QueryRow(`
		SELECT id, name, notes, created_at, updated_at FROM subjects WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get subject: %w", err)
	}
	return &s, nil
}

// ListSubjects returns all subjects in insertion order.
func (db *DB) ListSubjects() ([]models.Subject, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, notes, created_at, updated_at FROM subjects ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSubject replaces a subject's name and notes.
func (db *DB) UpdateSubject(id int64, name, notes string) (*models.Subject, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.ErrInvalidIdentity
	}
	res, err := db.conn.Exec(`
		UPDATE subjects SET name = ?, notes = ?, updated_at = ? WHERE id = ?
	`, name, notes, time.Now().UTC(), id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: update subject: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, apperr.ErrNotFound
	}
	return db.GetSubject(id)
}

// DeleteSubject removes a subject; its artifacts cascade.
func (db *DB) DeleteSubject(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete subject: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	db.invalidateSubject(id)
	return nil
}
