package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
	"github.com/starford/casevault/internal/storage"
)

// dirPrefix marks subject directories inside the snapshot area.
const dirPrefix = "CR_"

// Store is the slice of the transactional store the engine reads from.
type Store interface {
	GetSubject(id int64) (*models.Subject, error)
	ListArtifacts(subjectID int64) ([]models.Artifact, error)
	// InvalidateCache forces the next read to observe committed state.
	// Rebuild calls it so a just-committed artifact change is visible
	// even when the caller reuses a session with cached rows.
	InvalidateCache()
}

// Engine owns every read and write of descriptor files. The snapshot
// area for a subject is mutated only through it, and only via the
// provider's atomic write path.
type Engine struct {
	area   storage.Provider
	logger *slog.Logger

	mu         sync.Mutex
	selfWrites map[string]selfWrite
}

// selfWriteTTL bounds how long an unconsumed self-write record lives.
// The watcher normally consumes it within milliseconds.
const selfWriteTTL = 3 * time.Second

type selfWrite struct {
	kind string // "updated" or "deleted"
	at   time.Time
}

// NewEngine creates an engine over the given snapshot area.
func NewEngine(area storage.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{area: area, logger: logger, selfWrites: make(map[string]selfWrite)}
}

// markSelfWrite records that the engine itself just changed loc, so the
// watcher can tell the change apart from an out-of-band edit.
func (e *Engine) markSelfWrite(loc, kind string) {
	now := time.Now()
	e.mu.Lock()
	for p, sw := range e.selfWrites {
		if now.Sub(sw.at) > selfWriteTTL {
			delete(e.selfWrites, p)
		}
	}
	e.selfWrites[loc] = selfWrite{kind: kind, at: now}
	e.mu.Unlock()
}

// consumeSelfWrite reports whether a recent engine change of the same
// kind explains an observed event at loc, consuming the record.
func (e *Engine) consumeSelfWrite(loc, kind string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	sw, ok := e.selfWrites[loc]
	if !ok || sw.kind != kind {
		return false
	}
	delete(e.selfWrites, loc)
	return time.Since(sw.at) <= selfWriteTTL
}

// SubjectDir derives the subject's directory name from its display name.
// Only path separators are replaced; every other character is kept.
func SubjectDir(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperr.ErrInvalidIdentity
	}
	safe := strings.ReplaceAll(name, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	return dirPrefix + safe, nil
}

// Locate returns the descriptor path for a subject, relative to the
// snapshot-area root.
func (e *Engine) Locate(subjectID int64, subjectName string) (string, error) {
	dir, err := SubjectDir(subjectName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DescriptorFilename), nil
}

// Read returns the on-disk descriptor, or (nil, nil) when none exists.
// An existing file that cannot be parsed is apperr.ErrCorrupt; any other
// read failure propagates as an I/O error.
func (e *Engine) Read(subjectID int64, subjectName string) (*Descriptor, error) {
	loc, err := e.Locate(subjectID, subjectName)
	if err != nil {
		return nil, err
	}
	if !e.area.Exists(loc) {
		e.logger.Debug("snapshot: descriptor absent", slog.String("path", loc))
		return nil, nil
	}
	data, err := e.area.Read(loc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read descriptor: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		e.logger.Error("snapshot: descriptor corrupt",
			slog.Int64("subject_id", subjectID),
			slog.String("path", loc),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrCorrupt, loc, err)
	}
	return &d, nil
}

// Rebuild reconstructs the descriptor from the store of record and
// persists it atomically, overwriting any corruption. The store cache is
// invalidated first so the rebuild observes a fresh view.
func (e *Engine) Rebuild(subjectID int64, subjectName string, st Store) (*Descriptor, error) {
	loc, err := e.Locate(subjectID, subjectName)
	if err != nil {
		return nil, err
	}

	st.InvalidateCache()

	var notes string
	subject, err := st.GetSubject(subjectID)
	if err != nil {
		// Notes are best-effort; the inventory is still rebuilt.
		e.logger.Warn("snapshot: subject notes unavailable",
			slog.Int64("subject_id", subjectID),
			slog.String("error", err.Error()))
	} else {
		notes = subject.Notes
	}

	artifacts, err := st.ListArtifacts(subjectID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list artifacts: %w", err)
	}

	entries := make([]FileEntry, 0, len(artifacts))
	for _, a := range artifacts {
		entries = append(entries, FileEntry{
			FileID:     a.ID,
			Filename:   a.Filename,
			Kind:       a.Kind,
			UploadedAt: a.UploadedAt,
			Annotation: a.Annotation,
			Status:     a.Status,
		})
	}

	now := time.Now().UTC()
	createdAt := now
	if prev, readErr := e.Read(subjectID, subjectName); readErr == nil && prev != nil {
		createdAt = prev.CreatedAt
	}

	d := &Descriptor{
		Version:     Version,
		SubjectID:   subjectID,
		SubjectName: subjectName,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
		Notes:       notes,
		Files:       entries,
	}

	if err := e.Write(subjectID, subjectName, d); err != nil {
		return nil, err
	}
	e.logger.Info("snapshot: rebuilt",
		slog.Int64("subject_id", subjectID),
		slog.String("path", loc),
		slog.Int("files", len(entries)))
	return d, nil
}

// Write validates the descriptor and persists it with the atomic
// write-temp-then-rename discipline. On validation failure nothing
// touches the disk.
func (e *Engine) Write(subjectID int64, subjectName string, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Version != "" && d.Version != Version {
		e.logger.Warn("snapshot: descriptor version mismatch",
			slog.Int64("subject_id", subjectID),
			slog.String("want", Version),
			slog.String("got", d.Version))
	}

	loc, err := e.Locate(subjectID, subjectName)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("snapshot: encode descriptor: %w", err)
	}
	if err := e.area.Write(loc, buf.Bytes()); err != nil {
		return fmt.Errorf("snapshot: write descriptor: %w", err)
	}
	e.markSelfWrite(loc, "updated")
	return nil
}

// Delete removes the descriptor file. A missing file is a no-op.
func (e *Engine) Delete(subjectID int64, subjectName string) error {
	loc, err := e.Locate(subjectID, subjectName)
	if err != nil {
		return err
	}
	if !e.area.Exists(loc) {
		e.logger.Debug("snapshot: nothing to delete", slog.String("path", loc))
		return nil
	}
	if err := e.area.Delete(loc); err != nil {
		return fmt.Errorf("snapshot: delete descriptor: %w", err)
	}
	e.markSelfWrite(loc, "deleted")
	return nil
}

// ResponseView is the read path for external callers: the on-disk
// descriptor when present, otherwise a fresh rebuild. A missing file is
// never an error here.
func (e *Engine) ResponseView(subjectID int64, subjectName string, st Store) (*Descriptor, error) {
	d, err := e.Read(subjectID, subjectName)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return e.Rebuild(subjectID, subjectName, st)
	}
	return d, nil
}
