package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fennwick/lorevault/internal/apperr"
	"github.com/fennwick/lorevault/internal/entityservice"
	"github.com/fennwick/lorevault/internal/ident"
	"github.com/fennwick/lorevault/internal/resolve"
	"github.com/fennwick/lorevault/internal/schema"
)

// Handler holds API route handlers.
type Handler struct {
	svc *entityservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *entityservice.Service) *Handler {
	return &Handler{svc: svc}
}

// entityPath extracts the entity file path from the URL (everything after
// /api/entities/). Supports encoded slashes from OpenAPI clients
// (e.g. npc%2Fnpc_vorra_7c2e.md).
func entityPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListEntities handles GET /api/entities.
//
//	@Summary		List entities from the vault index, optionally by type
//	@Tags			entities
//	@Produce		json
//	@Param			type	query		string	false	"Entity type filter"	Enums(npc, quest, location, faction, monster, encounter, session)
//	@Success		200		{object}	EntityListResponse
//	@Security		BearerAuth
//	@Router			/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")

	items, err := h.svc.ListEntities(r.Context(), entityType)
	if err != nil {
		slog.Error("list entities failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": items,
		"total":    len(items),
	})
}

// GetEntity handles GET /api/entities/*.
//
//	@Summary		Get a single entity by path
//	@Tags			entities
//	@Produce		json
//	@Param			path	path		string	true	"Entity file path"
//	@Success		200		{object}	EntityDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{path} [get]
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	path := entityPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ent, err := h.svc.GetEntity(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entity failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// CreateEntity handles POST /api/entities.
//
//	@Summary		Create a new entity with a freshly minted id
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntityRequest	true	"Entity to create"
//	@Success		201		{object}	EntityDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities [post]
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Type == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("type and name are required"))
		return
	}
	ent, err := h.svc.CreateEntity(r.Context(), req.Type, req.Name, req.Meta, req.Body, req.Path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("entity already exists"))
		case errors.Is(err, ident.ErrUnsupportedType):
			writeJSON(w, http.StatusBadRequest, errorBody("unsupported entity type"))
		default:
			var verr *schema.ValidationError
			var uerr *resolve.UnresolvedError
			if errors.As(err, &verr) || errors.As(err, &uerr) {
				writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
				return
			}
			slog.Error("create entity failed", slog.String("name", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, ent)
}

// UpdateEntity handles PUT /api/entities/*.
//
//	@Summary		Update an entity with optimistic concurrency
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Entity file path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateEntityRequest	true	"Updated metadata and body"
//	@Success		200			{object}	EntityDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{path} [put]
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := entityPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Meta == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("meta is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	ent, err := h.svc.UpdateEntity(r.Context(), path, req.Meta, req.Body, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			var verr *schema.ValidationError
			var uerr *resolve.UnresolvedError
			if errors.As(err, &verr) || errors.As(err, &uerr) {
				writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
				return
			}
			slog.Error("update entity failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// DeleteEntity handles DELETE /api/entities/*.
//
//	@Summary		Delete an entity
//	@Tags			entities
//	@Param			path	path	string	true	"Entity file path"
//	@Success		204		"Entity deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{path} [delete]
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	path := entityPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteEntity(r.Context(), path); err != nil {
		slog.Error("delete entity failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resolve handles POST /api/resolve.
//
//	@Summary		Resolve free-form references to canonical ids
//	@Tags			resolve
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResolveRequest	true	"References to resolve"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Refs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("refs is required"))
		return
	}
	resolutions, err := h.svc.ResolveRefs(r.Context(), req.Refs, req.ContextType)
	if err != nil {
		slog.Error("resolve failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resolutions": resolutions,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entity files
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Backlinks handles GET /api/backlinks/{id}.
//
//	@Summary		List entities whose ledgers reference the given id
//	@Tags			resolve
//	@Produce		json
//	@Param			id	path		string	true	"Canonical entity id"
//	@Success		200	{object}	BacklinksResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{id} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !ident.IsCanonical(id) {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be canonical"))
		return
	}
	links, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		slog.Error("backlinks failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if links == nil {
		links = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"backlinks": links,
	})
}
