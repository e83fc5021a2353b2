package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casevault/internal/models"
	"github.com/starford/casevault/internal/snapshot"
)

// CreateSubjectRequest is the request body for creating a subject.
type CreateSubjectRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// Validate checks the create request at the boundary.
func (r CreateSubjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// UpdateSubjectRequest is the request body for updating a subject.
type UpdateSubjectRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// Validate checks the update request at the boundary.
func (r UpdateSubjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// SubjectResponse is the subject payload (aliased from the domain layer).
type SubjectResponse = models.Subject

// ArtifactResponse is the artifact payload (aliased from the domain layer).
type ArtifactResponse = models.Artifact

// SubjectListResponse wraps subject listings.
type SubjectListResponse struct {
	Subjects []models.Subject `json:"subjects"`
	Total    int              `json:"total"`
}

// ArtifactListResponse wraps a subject's artifact listing.
type ArtifactListResponse struct {
	Artifacts []models.Artifact `json:"artifacts"`
	Total     int               `json:"total"`
}

// SnapshotResponse is the descriptor payload.
type SnapshotResponse = snapshot.Descriptor

// ArtifactStatus is one artifact's entry in the processing-status view.
type ArtifactStatus struct {
	ArtifactID  int64         `json:"artifact_id"`
	Filename    string        `json:"filename"`
	Kind        models.Kind   `json:"kind"`
	Status      models.Status `json:"status"`
	UploadedAt  time.Time     `json:"uploaded_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	Error       *string       `json:"error,omitempty"`
}

// ProcessingStatusResponse reports processing state for every artifact
// of a subject.
type ProcessingStatusResponse struct {
	SubjectID int64            `json:"subject_id"`
	Files     []ArtifactStatus `json:"files"`
}
