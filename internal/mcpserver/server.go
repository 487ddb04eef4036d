// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Lorevault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fennwick/lorevault/internal/entityservice"
	"github.com/fennwick/lorevault/internal/storage"
)

// Server wraps the MCP server with Lorevault tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *entityservice.Service
}

// New creates a new MCP server with all Lorevault tools registered.
func New(store storage.Provider, svc *entityservice.Service) *Server {
	s := &Server{store: store, svc: svc}

	s.mcp = server.NewMCPServer(
		"Lorevault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_lore",
		mcp.WithDescription("Full-text search through entity names, tags, and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchLore)

	s.mcp.AddTool(mcp.NewTool("read_entity",
		mcp.WithDescription("Read the full content of an entity document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the entity file (e.g. npc/npc_vorra_7c2e.md)")),
	), s.readEntity)

	s.mcp.AddTool(mcp.NewTool("create_entity",
		mcp.WithDescription("Create a new entity. The server mints the canonical id, "+
			"resolves relationship references, and validates the document against the "+
			"entity schema. Read the contract first via the get_entity_contract tool "+
			"or the lorevault://entity-format resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type (npc, quest, location, faction, monster, encounter, session)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name for the new entity")),
		mcp.WithString("body", mcp.Description("Markdown body content")),
		mcp.WithString("meta", mcp.Description("Optional JSON object of extra front-matter fields (tags, ledgers)")),
	), s.createEntity)

	s.mcp.AddTool(mcp.NewTool("resolve_reference",
		mcp.WithDescription("Resolve a free-form reference (name, alias, '[type] Name', "+
			"'type: Name', or id prefix) to a canonical entity id."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Reference to resolve")),
		mcp.WithString("context_type", mcp.Description("Optional entity type hint for bare names")),
	), s.resolveReference)

	s.mcp.AddTool(mcp.NewTool("get_entity_contract",
		mcp.WithDescription("Returns the canonical Lorevault entity format contract. "+
			"Call this before creating or updating entities to ensure correct structure."),
	), s.getEntityContract)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List entities from the vault index, all or by type."),
		mcp.WithString("type", mcp.Description("Optional entity type filter (empty for all)")),
	), s.listEntities)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all entities whose relationship ledgers reference the given id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Canonical id of the entity to find backlinks for")),
	), s.getBacklinks)

	// Resource: entity format contract.
	s.mcp.AddResource(
		mcp.NewResource("lorevault://entity-format", "Entity Format Contract",
			mcp.WithResourceDescription("Canonical entity document format that all entities must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntityFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchLore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := ""
	if b, bErr := req.RequireString("body"); bErr == nil {
		body = b
	}

	var meta map[string]any
	if raw, mErr := req.RequireString("meta"); mErr == nil && raw != "" {
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("meta is not valid JSON: %v", jsonErr)), nil
		}
	}

	ent, err := s.svc.CreateEntity(ctx, entityType, name, meta, body, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", ent.ID, ent.Path)), nil
}

func (s *Server) resolveReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contextType := ""
	if ct, ctErr := req.RequireString("context_type"); ctErr == nil {
		contextType = ct
	}

	resolutions, err := s.svc.ResolveRefs(ctx, []string{ref}, contextType)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resolutions) == 0 || !resolutions[0].OK {
		return mcp.NewToolResultText(fmt.Sprintf("unresolved: %s", ref)), nil
	}
	return mcp.NewToolResultText(resolutions[0].ID), nil
}

func (s *Server) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType := ""
	if t, err := req.RequireString("type"); err == nil {
		entityType = t
	}

	entries, err := s.svc.ListEntities(ctx, entityType)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", e.ID, e.Name, e.Path))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no entities found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getEntityContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntityFormatContract), nil
}

func (s *Server) readEntityFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "lorevault://entity-format",
			MIMEType: "text/markdown",
			Text:     EntityFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
