package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
)

func validDescriptor() *Descriptor {
	now := time.Now().UTC()
	return &Descriptor{
		Version:     Version,
		SubjectID:   1,
		SubjectName: "Jane Roe",
		CreatedAt:   now,
		UpdatedAt:   now,
		Files: []FileEntry{{
			FileID:     1,
			Filename:   "note.txt",
			Kind:       models.KindText,
			UploadedAt: now,
			Status:     models.StatusPending,
		}},
	}
}

func TestDescriptorValidateOK(t *testing.T) {
	if err := validDescriptor().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDescriptorValidateMissingName(t *testing.T) {
	d := validDescriptor()
	d.SubjectName = ""
	err := d.Validate()
	if !errors.Is(err, apperr.ErrInvalidDescriptor) {
		t.Errorf("err = %v, want ErrInvalidDescriptor", err)
	}
}

func TestDescriptorValidateBadFileEntry(t *testing.T) {
	d := validDescriptor()
	d.Files[0].Filename = ""
	err := d.Validate()
	if !errors.Is(err, apperr.ErrInvalidDescriptor) {
		t.Errorf("err = %v, want ErrInvalidDescriptor", err)
	}
}

func TestDescriptorValidateEmptyFilesAllowed(t *testing.T) {
	d := validDescriptor()
	d.Files = nil
	if err := d.Validate(); err != nil {
		t.Errorf("empty file list should be valid: %v", err)
	}
}
