package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/casevault/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

// MIME allowlists per artifact kind.
var (
	audioTypes = map[string]struct{}{
		"audio/mpeg": {}, "audio/mp3": {}, "audio/wav": {}, "audio/x-wav": {},
		"audio/ogg": {}, "audio/x-ogg": {}, "audio/webm": {}, "audio/aac": {},
		"audio/x-m4a": {}, "audio/mp4": {},
	}
	imageTypes = map[string]struct{}{
		"image/jpeg": {}, "image/jpg": {}, "image/png": {}, "image/gif": {},
		"image/webp": {}, "application/pdf": {},
	}
	textTypes = map[string]struct{}{
		"text/plain": {}, "text/markdown": {}, "text/x-markdown": {},
	}
)

// kindForContentType classifies an upload by its MIME type. The bool is
// false for types outside every allowlist.
func kindForContentType(ct string) (models.Kind, bool) {
	parsed, _, err := mime.ParseMediaType(ct)
	if err != nil {
		parsed = strings.ToLower(strings.TrimSpace(ct))
	}
	if _, ok := audioTypes[parsed]; ok {
		return models.KindAudio, true
	}
	if _, ok := imageTypes[parsed]; ok {
		return models.KindImage, true
	}
	if _, ok := textTypes[parsed]; ok {
		return models.KindText, true
	}
	return "", false
}

// kindForFilename is the fallback classification when the part carries
// no usable content type.
func kindForFilename(name string) (models.Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".ogg", ".webm", ".aac", ".m4a":
		return models.KindAudio, true
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf":
		return models.KindImage, true
	case ".txt", ".md":
		return models.KindText, true
	}
	return "", false
}

// UploadArtifact handles POST /api/subjects/{id}/artifacts
// (multipart/form-data, field "file", optional field "annotation").
func (h *Handler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}

	kind, ok := kindForContentType(header.Header.Get("Content-Type"))
	if !ok {
		kind, ok = kindForFilename(header.Filename)
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported file type"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("file is empty"))
		return
	}

	annotation := r.FormValue("annotation")

	artifact, err := h.svc.UploadArtifact(r.Context(), id, header.Filename, kind, annotation, data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, artifact)
}
