package api

import (
	"github.com/fennwick/lorevault/internal/entityservice"
	"github.com/fennwick/lorevault/internal/models"
)

// CreateEntityRequest is the request body for creating an entity.
type CreateEntityRequest struct {
	Type string         `json:"type" example:"npc" validate:"required"`
	Name string         `json:"name" example:"Acolyte Vorra" validate:"required"`
	Path string         `json:"path,omitempty" example:"npc/npc_acolyte-vorra_7c2e.md"`
	Meta map[string]any `json:"meta,omitempty"`
	Body string         `json:"body,omitempty" example:"A nervous acolyte of the Tide Court."`
}

// UpdateEntityRequest is the request body for updating an entity.
type UpdateEntityRequest struct {
	Meta map[string]any `json:"meta" validate:"required"`
	Body string         `json:"body,omitempty"`
}

// ResolveRequest is the request body for resolving references.
type ResolveRequest struct {
	Refs        []string `json:"refs" validate:"required"`
	ContextType string   `json:"context_type,omitempty" example:"npc"`
}

// EntityDetail is the full entity response type (aliased from the domain layer).
type EntityDetail = entityservice.EntityDetail

// Resolution is a single resolution outcome (aliased from the domain layer).
type Resolution = entityservice.Resolution

// EntityListResponse wraps entity listings.
type EntityListResponse struct {
	Entities []models.IndexEntry `json:"entities" validate:"required"`
	Total    int                 `json:"total" example:"42" validate:"required"`
}

// ResolveResponse wraps batch resolution results.
type ResolveResponse struct {
	Resolutions []Resolution `json:"resolutions" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" example:"npc_acolyte-vorra_7c2e" validate:"required"`
	Name    string `json:"name" example:"Acolyte Vorra" validate:"required"`
	Type    string `json:"type" example:"npc" validate:"required"`
	Path    string `json:"path" example:"npc/npc_acolyte-vorra_7c2e.md" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse wraps the ids referencing an entity.
type BacklinksResponse struct {
	ID        string   `json:"id" example:"npc_acolyte-vorra_7c2e" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}
