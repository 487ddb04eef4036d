package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fennwick/lorevault/internal/entityservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *entityservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entities CRUD.
	r.Get("/entities", h.ListEntities)
	r.Post("/entities", h.CreateEntity)
	r.Get("/entities/*", h.GetEntity)
	r.Put("/entities/*", h.UpdateEntity)
	r.Delete("/entities/*", h.DeleteEntity)

	// Reference resolution.
	r.Post("/resolve", h.Resolve)
	r.Get("/backlinks/{id}", h.Backlinks)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
