package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
)

const artifactColumns = `id, subject_id, filename, kind, rel_path, annotation,
	checksum, status, extracted_text, processed_at, error_detail, uploaded_at`

func scanArtifact(row interface{ Scan(...any) error }) (*models.Artifact, error) {
	var (
		a         models.Artifact
		text      sql.NullString
		processed sql.NullTime
		detail    sql.NullString
	)
	err := row.Scan(&a.ID, &a.SubjectID, &a.Filename, &a.Kind, &a.RelPath,
		&a.Annotation, &a.Checksum, &a.Status, &text, &processed, &detail, &a.UploadedAt)
	if err != nil {
		return nil, err
	}
	if text.Valid {
		a.ExtractedText = &text.String
	}
	if processed.Valid {
		t := processed.Time
		a.ProcessedAt = &t
	}
	if detail.Valid {
		a.ErrorDetail = &detail.String
	}
	return &a, nil
}

// InsertArtifact persists a new artifact row with pending status and
// returns the stored record.
func (db *DB) InsertArtifact(a *models.Artifact) (*models.Artifact, error) {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO artifacts (subject_id, filename, kind, rel_path, annotation, checksum, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SubjectID, a.Filename, a.Kind, a.RelPath, a.Annotation, a.Checksum, models.StatusPending, a.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: insert artifact id: %w", err)
	}
	db.invalidateSubject(a.SubjectID)
	return db.GetArtifact(a.SubjectID, id)
}

// GetArtifact returns the artifact with the given id, scoped to its
// owning subject. An artifact of another subject is ErrNotFound.
func (db *DB) GetArtifact(subjectID, artifactID int64) (*models.Artifact, error) {
	row := db.conn.QueryRow(`
		SELECT `+artifactColumns+` FROM artifacts WHERE id = ? AND subject_id = ?
	`, artifactID, subjectID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns a subject's artifacts in store order (primary
// key). Served from the read cache when warm; mutations and
// InvalidateCache drop it.
func (db *DB) ListArtifacts(subjectID int64) ([]models.Artifact, error) {
	db.mu.RLock()
	cached, ok := db.lists[subjectID]
	db.mu.RUnlock()
	if ok {
		out := make([]models.Artifact, len(cached))
		copy(out, cached)
		return out, nil
	}

	rows, err := db.conn.Query(`
		SELECT `+artifactColumns+` FROM artifacts WHERE subject_id = ? ORDER BY id
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("store: list artifacts: %w", err)
	}
	defer rows.Close()

	var out []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	snapshot := make([]models.Artifact, len(out))
	copy(snapshot, out)
	db.lists[subjectID] = snapshot
	db.mu.Unlock()
	return out, nil
}

// UpdateArtifactStatus transitions an artifact's status without touching
// its result fields.
func (db *DB) UpdateArtifactStatus(subjectID, artifactID int64, status models.Status) error {
	res, err := db.conn.Exec(`
		UPDATE artifacts SET status = ? WHERE id = ? AND subject_id = ?
	`, status, artifactID, subjectID)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	db.invalidateSubject(subjectID)
	return nil
}

// UpdateArtifactOutcome records a terminal processing result: status plus
// extracted text, processed time, and error detail (each nullable).
func (db *DB) UpdateArtifactOutcome(subjectID, artifactID int64, status models.Status,
	text *string, processedAt *time.Time, errorDetail *string) error {
	res, err := db.conn.Exec(`
		UPDATE artifacts SET status = ?, extracted_text = ?, processed_at = ?, error_detail = ?
		WHERE id = ? AND subject_id = ?
	`, status, nullString(text), nullTime(processedAt), nullString(errorDetail), artifactID, subjectID)
	if err != nil {
		return fmt.Errorf("store: update outcome: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	db.invalidateSubject(subjectID)
	return nil
}

// DeleteArtifact removes an artifact row.
func (db *DB) DeleteArtifact(subjectID, artifactID int64) error {
	res, err := db.conn.Exec(`
		DELETE FROM artifacts WHERE id = ? AND subject_id = ?
	`, artifactID, subjectID)
	if err != nil {
		return fmt.Errorf("store: delete artifact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	db.invalidateSubject(subjectID)
	return nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
