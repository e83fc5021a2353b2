package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casevault/internal/caseservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *caseservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *caseservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pathID parses a numeric URL parameter. Returns (0, false) after
// writing the error response when the parameter is not a valid id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return 0, false
	}
	return id, true
}

// ListSubjects handles GET /api/subjects.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.svc.ListSubjects(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if subjects == nil {
		subjects = []SubjectResponse{}
	}
	writeJSON(w, http.StatusOK, SubjectListResponse{Subjects: subjects, Total: len(subjects)})
}

// CreateSubject handles POST /api/subjects.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	subject, err := h.svc.CreateSubject(r.Context(), req.Name, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

// GetSubject handles GET /api/subjects/{id}.
func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subject, err := h.svc.GetSubject(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

// UpdateSubject handles PUT /api/subjects/{id}.
func (h *Handler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateSubjectRequest
	// Only the enumerated mutable fields are accepted; anything else is
	// rejected rather than silently dropped.
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	subject, err := h.svc.UpdateSubject(r.Context(), id, req.Name, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

// DeleteSubject handles DELETE /api/subjects/{id}.
func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSubject(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListArtifacts handles GET /api/subjects/{id}/artifacts.
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	artifacts, err := h.svc.ListArtifacts(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []ArtifactResponse{}
	}
	writeJSON(w, http.StatusOK, ArtifactListResponse{Artifacts: artifacts, Total: len(artifacts)})
}

// DeleteArtifact handles DELETE /api/subjects/{id}/artifacts/{fid}.
func (h *Handler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fid, ok := pathID(w, r, "fid")
	if !ok {
		return
	}
	if err := h.svc.DeleteArtifact(r.Context(), id, fid); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot handles GET /api/subjects/{id}/snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	descriptor, err := h.svc.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptor)
}

// RebuildSnapshot handles POST /api/subjects/{id}/snapshot/rebuild.
func (h *Handler) RebuildSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	descriptor, err := h.svc.RebuildSnapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptor)
}

// DeleteSnapshot handles DELETE /api/subjects/{id}/snapshot.
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSnapshot(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProcessArtifact handles POST /api/subjects/{id}/process/{fid}.
func (h *Handler) ProcessArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fid, ok := pathID(w, r, "fid")
	if !ok {
		return
	}
	artifact, err := h.svc.Process(r.Context(), id, fid)
	if err != nil {
		slog.Error("process request failed",
			slog.Int64("subject_id", id),
			slog.Int64("artifact_id", fid),
			slog.String("error", err.Error()))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// ProcessingStatus handles GET /api/subjects/{id}/processing-status.
func (h *Handler) ProcessingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	artifacts, err := h.svc.ListArtifacts(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	files := make([]ArtifactStatus, len(artifacts))
	for i, a := range artifacts {
		files[i] = ArtifactStatus{
			ArtifactID:  a.ID,
			Filename:    a.Filename,
			Kind:        a.Kind,
			Status:      a.Status,
			UploadedAt:  a.UploadedAt,
			ProcessedAt: a.ProcessedAt,
			Error:       a.ErrorDetail,
		}
	}
	writeJSON(w, http.StatusOK, ProcessingStatusResponse{SubjectID: id, Files: files})
}
