// Package caseservice coordinates the store of record, the snapshot
// area, and the transformation boundary for subject and artifact
// operations.
package caseservice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/casevault/internal/checksum"
	"github.com/starford/casevault/internal/models"
	"github.com/starford/casevault/internal/snapshot"
	"github.com/starford/casevault/internal/storage"
	"github.com/starford/casevault/internal/store"
	"github.com/starford/casevault/internal/transform"
)

// EventFunc receives lifecycle events for broadcast (SSE). kind is a
// dotted event name; data is the JSON payload.
type EventFunc func(kind string, data map[string]any)

// Service is the application core: subject CRUD, artifact uploads, and
// the processing lifecycle. Snapshot rebuilds triggered as side effects
// of a mutation are best-effort and never overturn the primary outcome.
type Service struct {
	db          *store.DB
	area        storage.Provider
	engine      *snapshot.Engine
	transformer transform.Transformer
	logger      *slog.Logger
	notify      EventFunc

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-artifact processing serialization
}

// NewService creates the case service.
func NewService(db *store.DB, area storage.Provider, engine *snapshot.Engine,
	transformer transform.Transformer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		area:        area,
		engine:      engine,
		transformer: transformer,
		logger:      logger,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// SetNotifier installs the event callback. Nil disables notifications.
func (s *Service) SetNotifier(fn EventFunc) {
	s.notify = fn
}

func (s *Service) publish(kind string, data map[string]any) {
	if s.notify != nil {
		s.notify(kind, data)
	}
}

// syncSnapshot rebuilds a subject's descriptor as a best-effort side
// effect. Failures are logged and never propagate to the caller.
func (s *Service) syncSnapshot(subjectID int64, subjectName string) {
	if _, err := s.engine.Rebuild(subjectID, subjectName, s.db); err != nil {
		s.logger.Error("caseservice: snapshot rebuild failed",
			slog.Int64("subject_id", subjectID),
			slog.String("error", err.Error()))
	}
}

// CreateSubject creates a subject and runs its first snapshot sync.
func (s *Service) CreateSubject(_ context.Context, name, notes string) (*models.Subject, error) {
	subject, err := s.db.CreateSubject(name, notes)
	if err != nil {
		return nil, err
	}
	s.syncSnapshot(subject.ID, subject.Name)
	s.publish("subject.created", map[string]any{"id": subject.ID, "name": subject.Name})
	return subject, nil
}

// GetSubject returns one subject.
func (s *Service) GetSubject(_ context.Context, id int64) (*models.Subject, error) {
	return s.db.GetSubject(id)
}

// ListSubjects returns all subjects.
func (s *Service) ListSubjects(_ context.Context) ([]models.Subject, error) {
	return s.db.ListSubjects()
}

// UpdateSubject replaces a subject's name and notes. A rename moves the
// snapshot to the directory derived from the new name and drops the old
// descriptor.
func (s *Service) UpdateSubject(_ context.Context, id int64, name, notes string) (*models.Subject, error) {
	prev, err := s.db.GetSubject(id)
	if err != nil {
		return nil, err
	}
	subject, err := s.db.UpdateSubject(id, name, notes)
	if err != nil {
		return nil, err
	}
	if prev.Name != subject.Name {
		if err := s.engine.Delete(id, prev.Name); err != nil {
			s.logger.Warn("caseservice: stale descriptor cleanup failed",
				slog.Int64("subject_id", id),
				slog.String("error", err.Error()))
		}
	}
	s.syncSnapshot(subject.ID, subject.Name)
	s.publish("subject.updated", map[string]any{"id": subject.ID, "name": subject.Name})
	return subject, nil
}

// DeleteSubject removes the subject, its artifacts, and its snapshot
// area. Row removal is authoritative; byte removal is best-effort.
func (s *Service) DeleteSubject(_ context.Context, id int64) error {
	subject, err := s.db.GetSubject(id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteSubject(id); err != nil {
		return err
	}
	dir, dirErr := snapshot.SubjectDir(subject.Name)
	if dirErr == nil {
		if err := s.area.RemoveTree(dir); err != nil {
			s.logger.Warn("caseservice: snapshot area removal failed",
				slog.Int64("subject_id", id),
				slog.String("error", err.Error()))
		}
	}
	s.publish("subject.deleted", map[string]any{"id": id, "name": subject.Name})
	return nil
}

// UploadArtifact stores the uploaded bytes inside the subject's area,
// inserts the pending row, and resyncs the snapshot.
func (s *Service) UploadArtifact(_ context.Context, subjectID int64, filename string,
	kind models.Kind, annotation string, data []byte) (*models.Artifact, error) {
	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("caseservice: unsupported kind %q", kind)
	}
	safe, err := sanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	dir, err := snapshot.SubjectDir(subject.Name)
	if err != nil {
		return nil, err
	}
	relPath := filepath.Join(dir, safe)
	if err := s.area.Write(relPath, data); err != nil {
		return nil, err
	}
	artifact, err := s.db.InsertArtifact(&models.Artifact{
		SubjectID:  subjectID,
		Filename:   safe,
		Kind:       kind,
		RelPath:    relPath,
		Annotation: annotation,
		Checksum:   checksum.Sum(data),
	})
	if err != nil {
		// Row insert failed: the orphaned bytes are removed so disk and
		// store stay aligned.
		if delErr := s.area.Delete(relPath); delErr != nil {
			s.logger.Warn("caseservice: orphan cleanup failed",
				slog.String("path", relPath),
				slog.String("error", delErr.Error()))
		}
		return nil, err
	}
	s.syncSnapshot(subjectID, subject.Name)
	s.publish("artifact.created", map[string]any{
		"subject_id": subjectID, "artifact_id": artifact.ID, "filename": artifact.Filename,
	})
	return artifact, nil
}

// GetArtifact returns one artifact scoped to its subject.
func (s *Service) GetArtifact(_ context.Context, subjectID, artifactID int64) (*models.Artifact, error) {
	return s.db.GetArtifact(subjectID, artifactID)
}

// ListArtifacts returns a subject's artifacts in store order.
func (s *Service) ListArtifacts(_ context.Context, subjectID int64) ([]models.Artifact, error) {
	if _, err := s.db.GetSubject(subjectID); err != nil {
		return nil, err
	}
	return s.db.ListArtifacts(subjectID)
}

// DeleteArtifact removes the row authoritatively and the bytes
// best-effort, then resyncs the snapshot.
func (s *Service) DeleteArtifact(_ context.Context, subjectID, artifactID int64) error {
	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return err
	}
	artifact, err := s.db.GetArtifact(subjectID, artifactID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteArtifact(subjectID, artifactID); err != nil {
		return err
	}
	if s.area.Exists(artifact.RelPath) {
		if err := s.area.Delete(artifact.RelPath); err != nil {
			s.logger.Warn("caseservice: artifact bytes removal failed",
				slog.String("path", artifact.RelPath),
				slog.String("error", err.Error()))
		}
	}
	s.syncSnapshot(subjectID, subject.Name)
	s.publish("artifact.deleted", map[string]any{
		"subject_id": subjectID, "artifact_id": artifactID,
	})
	return nil
}

// Snapshot returns the subject's descriptor, rebuilding it when absent.
func (s *Service) Snapshot(_ context.Context, subjectID int64) (*snapshot.Descriptor, error) {
	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return nil, err
	}
	return s.engine.ResponseView(subjectID, subject.Name, s.db)
}

// RebuildSnapshot forces a descriptor recompute from the store.
func (s *Service) RebuildSnapshot(_ context.Context, subjectID int64) (*snapshot.Descriptor, error) {
	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return nil, err
	}
	return s.engine.Rebuild(subjectID, subject.Name, s.db)
}

// DeleteSnapshot removes the subject's descriptor file.
func (s *Service) DeleteSnapshot(_ context.Context, subjectID int64) error {
	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return err
	}
	return s.engine.Delete(subjectID, subject.Name)
}

// sanitizeFilename strips any path components and rejects traversal.
func sanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("caseservice: filename is required")
	}
	cleaned := filepath.Base(filepath.Clean(name))
	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("caseservice: invalid filename: %s", name)
	}
	return cleaned, nil
}
