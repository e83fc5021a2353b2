package caseservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
)

// artifactLock returns the mutex serializing processing for one
// artifact. Locks are never removed; the set stays small (one entry per
// artifact ever processed in this process).
func (s *Service) artifactLock(artifactID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[artifactID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[artifactID] = l
	}
	return l
}

// Process drives one artifact through the processing lifecycle: claim
// it (status processing, persisted immediately so the transition is
// observable mid-flight), run the kind-appropriate transformation with
// its internal retries, and persist the terminal outcome. The snapshot
// rebuild afterwards is best-effort either way.
//
// Concurrent calls for the same artifact are serialized; calls for
// different artifacts run independently. A failed or completed artifact
// may be processed again, overwriting the prior result.
func (s *Service) Process(ctx context.Context, subjectID, artifactID int64) (*models.Artifact, error) {
	lock := s.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	subject, err := s.db.GetSubject(subjectID)
	if err != nil {
		return nil, err
	}
	artifact, err := s.db.GetArtifact(subjectID, artifactID)
	if err != nil {
		return nil, err
	}

	if err := s.db.UpdateArtifactStatus(subjectID, artifactID, models.StatusProcessing); err != nil {
		return nil, err
	}
	s.publish("artifact.status", map[string]any{
		"subject_id": subjectID, "artifact_id": artifactID, "status": models.StatusProcessing,
	})
	s.logger.Info("process: started",
		slog.Int64("subject_id", subjectID),
		slog.Int64("artifact_id", artifactID),
		slog.String("kind", string(artifact.Kind)))

	absPath, err := s.area.Abs(artifact.RelPath)
	if err != nil {
		return nil, s.fail(subjectID, artifactID, subject.Name, err.Error(), err)
	}
	if !s.area.Exists(artifact.RelPath) {
		msg := fmt.Sprintf("file not found on disk: %s", absPath)
		return nil, s.fail(subjectID, artifactID, subject.Name, msg,
			fmt.Errorf("%w: %s", apperr.ErrArtifactMissing, absPath))
	}

	var text string
	switch artifact.Kind {
	case models.KindAudio:
		text, err = s.transformer.TranscribeAudio(ctx, absPath)
	case models.KindImage:
		text, err = s.transformer.ExtractText(ctx, absPath)
	case models.KindText:
		text, err = s.transformer.CleanText(ctx, absPath)
	default:
		err = fmt.Errorf("unsupported artifact kind: %s", artifact.Kind)
	}
	if err != nil {
		return nil, s.fail(subjectID, artifactID, subject.Name, err.Error(),
			fmt.Errorf("%w: %v", apperr.ErrTransformFailed, err))
	}

	now := time.Now().UTC()
	if err := s.db.UpdateArtifactOutcome(subjectID, artifactID,
		models.StatusCompleted, &text, &now, nil); err != nil {
		return nil, err
	}
	s.logger.Info("process: completed",
		slog.Int64("artifact_id", artifactID),
		slog.Int("chars", len(text)))

	s.syncSnapshot(subjectID, subject.Name)
	s.publish("artifact.status", map[string]any{
		"subject_id": subjectID, "artifact_id": artifactID, "status": models.StatusCompleted,
	})
	return s.db.GetArtifact(subjectID, artifactID)
}

// fail records a terminal failed outcome with the message kept verbatim
// as the artifact's error detail, resyncs the snapshot, and returns the
// taxonomy error for the caller.
func (s *Service) fail(subjectID, artifactID int64, subjectName, detail string, cause error) error {
	if err := s.db.UpdateArtifactOutcome(subjectID, artifactID,
		models.StatusFailed, nil, nil, &detail); err != nil {
		s.logger.Error("process: failed-status persist failed",
			slog.Int64("artifact_id", artifactID),
			slog.String("error", err.Error()))
	}
	s.logger.Error("process: failed",
		slog.Int64("subject_id", subjectID),
		slog.Int64("artifact_id", artifactID),
		slog.String("detail", detail))

	s.syncSnapshot(subjectID, subjectName)
	s.publish("artifact.status", map[string]any{
		"subject_id": subjectID, "artifact_id": artifactID, "status": models.StatusFailed,
	})
	return cause
}
