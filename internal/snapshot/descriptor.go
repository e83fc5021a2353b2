// Package snapshot implements the on-disk descriptor that mirrors a
// subject's database state, and the engine that keeps it in sync.
package snapshot

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
)

// Version is the descriptor format version written by this engine.
// A mismatch on an existing descriptor is logged, never fatal.
const Version = "1.0"

// DescriptorFilename is the descriptor file name inside a subject's
// snapshot directory.
const DescriptorFilename = "snapshot.json"

// FileEntry is one artifact's line in the descriptor inventory.
type FileEntry struct {
	FileID     int64         `json:"file_id"`
	Filename   string        `json:"filename"`
	Kind       models.Kind   `json:"kind"`
	UploadedAt time.Time     `json:"uploaded_at"`
	Annotation string        `json:"annotation,omitempty"`
	Status     models.Status `json:"status"`
}

// Validate checks that the entry declares every required key.
func (e FileEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FileID, validation.Required),
		validation.Field(&e.Filename, validation.Required),
		validation.Field(&e.Kind, validation.Required),
		validation.Field(&e.UploadedAt, validation.Required),
		validation.Field(&e.Status, validation.Required),
	)
}

// Descriptor is the durable snapshot of one subject: identity, notes,
// and the file inventory in store order. It is derived from the store
// of record and can always be rebuilt from it.
type Descriptor struct {
	Version     string      `json:"version"`
	SubjectID   int64       `json:"subject_id"`
	SubjectName string      `json:"subject_name"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Notes       string      `json:"notes,omitempty"`
	Files       []FileEntry `json:"files"`
}

// Validate checks the descriptor's shape. A file list with any entry
// missing a required key fails as a whole; nothing is partially valid.
func (d *Descriptor) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.SubjectID, validation.Required),
		validation.Field(&d.SubjectName, validation.Required),
		validation.Field(&d.CreatedAt, validation.Required),
		validation.Field(&d.UpdatedAt, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidDescriptor, err)
	}
	for i, entry := range d.Files {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("%w: files[%d]: %v", apperr.ErrInvalidDescriptor, i, err)
		}
	}
	return nil
}
