// Package storage defines the snapshot-area file-system abstraction.
package storage

// Provider is the interface for snapshot-area file operations. All paths
// are relative to the area root; implementations must reject any path that
// escapes it.
type Provider interface {
	// Abs resolves a relative path to an absolute one inside the area.
	Abs(rel string) (string, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// RemoveTree removes the directory at path and everything under it.
	RemoveTree(path string) error
}
