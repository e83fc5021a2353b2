package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casevault/internal/caseservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *caseservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Subjects CRUD.
	r.Get("/subjects", h.ListSubjects)
	r.Post("/subjects", h.CreateSubject)
	r.Get("/subjects/{id}", h.GetSubject)
	r.Put("/subjects/{id}", h.UpdateSubject)
	r.Delete("/subjects/{id}", h.DeleteSubject)

	// Artifacts.
	r.Post("/subjects/{id}/artifacts", h.UploadArtifact)
	r.Get("/subjects/{id}/artifacts", h.ListArtifacts)
	r.Delete("/subjects/{id}/artifacts/{fid}", h.DeleteArtifact)

	// Snapshots.
	r.Get("/subjects/{id}/snapshot", h.GetSnapshot)
	r.Post("/subjects/{id}/snapshot/rebuild", h.RebuildSnapshot)
	r.Delete("/subjects/{id}/snapshot", h.DeleteSnapshot)

	// Processing.
	r.Post("/subjects/{id}/process/{fid}", h.ProcessArtifact)
	r.Get("/subjects/{id}/processing-status", h.ProcessingStatus)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
