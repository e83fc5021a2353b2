// Package models defines the domain types for Casevault.
package models

import "time"

// Kind classifies an uploaded artifact by its declared content type.
type Kind string

// Artifact kinds.
const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Valid reports whether k is one of the declared artifact kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAudio, KindImage, KindText:
		return true
	}
	return false
}

// Status is an artifact's position in the processing lifecycle.
type Status string

// Processing statuses. Transitions are one-directional:
// pending → processing → completed | failed. A failed or completed
// artifact may re-enter processing on a new request.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Subject is a case record owning zero or more artifacts.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Artifact is one uploaded file belonging to a subject. RelPath is
// relative to the snapshot-area root and always resolves inside the
// owning subject's directory.
type Artifact struct {
	ID            int64      `json:"id"`
	SubjectID     int64      `json:"subject_id"`
	Filename      string     `json:"filename"`
	Kind          Kind       `json:"kind"`
	RelPath       string     `json:"rel_path"`
	Annotation    string     `json:"annotation,omitempty"`
	Checksum      string     `json:"checksum"`
	Status        Status     `json:"status"`
	ExtractedText *string    `json:"extracted_text,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	ErrorDetail   *string    `json:"error_detail,omitempty"`
	UploadedAt    time.Time  `json:"uploaded_at"`
}
