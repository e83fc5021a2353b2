// Package apperr defines the error taxonomy shared across Casevault
// components. Callers match these values with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound reports a missing subject or artifact.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a uniqueness conflict (subject name).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidIdentity reports an empty or whitespace-only subject name.
	ErrInvalidIdentity = errors.New("invalid subject identity")

	// ErrInvalidDescriptor reports a descriptor that fails shape validation.
	// A write guarded by this error performs no disk mutation.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrCorrupt reports a descriptor file that exists but cannot be parsed.
	// Recoverable only through an explicit rebuild.
	ErrCorrupt = errors.New("descriptor corrupt")

	// ErrArtifactMissing reports an artifact whose backing file is absent
	// on disk. Terminal for the processing attempt.
	ErrArtifactMissing = errors.New("artifact file missing")

	// ErrTransformFailed reports a transformation call that exhausted its
	// retries. The artifact keeps the failure message as its error detail.
	ErrTransformFailed = errors.New("transformation failed")
)
