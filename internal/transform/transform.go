// Package transform defines the transformation-service boundary: the
// external capability that turns an artifact's bytes into text.
package transform

import "context"

// Transformer converts an artifact file into extracted or cleaned text.
// Each call is a single fallible unit of work from the caller's point of
// view; retry behaviour lives behind this boundary, not in front of it.
type Transformer interface {
	// TranscribeAudio transcribes the audio file at path.
	TranscribeAudio(ctx context.Context, path string) (string, error)
	// ExtractText extracts text from the image or document at path.
	ExtractText(ctx context.Context, path string) (string, error)
	// CleanText cleans and normalizes the text file at path.
	CleanText(ctx context.Context, path string) (string, error)
}
