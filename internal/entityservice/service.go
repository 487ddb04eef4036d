// Package entityservice coordinates the document store, vault index,
// resolver, and search index behind the operations collaborators call.
package entityservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fennwick/lorevault/internal/apperr"
	"github.com/fennwick/lorevault/internal/checksum"
	"github.com/fennwick/lorevault/internal/entitystore"
	"github.com/fennwick/lorevault/internal/frontmatter"
	"github.com/fennwick/lorevault/internal/ident"
	"github.com/fennwick/lorevault/internal/models"
	"github.com/fennwick/lorevault/internal/resolve"
	"github.com/fennwick/lorevault/internal/search"
	"github.com/fennwick/lorevault/internal/storage"
	"github.com/fennwick/lorevault/internal/vaultindex"
)

// EntityDetail is the full representation of one entity file.
type EntityDetail struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Meta      map[string]any `json:"meta,omitempty"`
	Body      string         `json:"body"`
	Checksum  string         `json:"checksum"`
	Backlinks []string       `json:"backlinks"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Resolution is the outcome of resolving one reference.
type Resolution struct {
	Ref string `json:"ref"`
	ID  string `json:"id,omitempty"`
	OK  bool   `json:"ok"`
}

// Service composes the persistence core. Writes reset the vault-index
// cache and the resolver tables, since neither tracks disk automatically.
type Service struct {
	store    storage.Provider
	docs     *entitystore.Store
	index    *vaultindex.Index
	resolver *resolve.Resolver
	db       *search.DB
}

// NewService creates a new entity service.
func NewService(store storage.Provider, docs *entitystore.Store, index *vaultindex.Index, resolver *resolve.Resolver, db *search.DB) *Service {
	return &Service{store: store, docs: docs, index: index, resolver: resolver, db: db}
}

// GetEntity loads, resolves, and validates the entity at path.
func (s *Service) GetEntity(_ context.Context, path string) (*EntityDetail, error) {
	doc, err := s.docs.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(doc)
}

// CreateEntity mints a canonical id for a new entity, writes its file, and
// invalidates cached index state. The target path defaults to
// "<type>/<id>.md".
func (s *Service) CreateEntity(_ context.Context, entityType, name string, meta map[string]any, body, path string) (*EntityDetail, error) {
	existing, err := s.existingIDs()
	if err != nil {
		return nil, err
	}

	id, err := ident.MakeID(entityType, name, existing, ident.Options{})
	if err != nil {
		return nil, err
	}

	fm, _ := frontmatter.FromInterface(meta).(frontmatter.Mapping)
	if fm == nil {
		fm = frontmatter.Mapping{}
	}
	fm["id"] = frontmatter.String(id)
	fm["name"] = frontmatter.String(name)
	fm["type"] = frontmatter.String(models.NormalizeType(entityType))

	if path == "" {
		path = fmt.Sprintf("%s/%s.md", models.NormalizeType(entityType), id)
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	doc, err := s.docs.Save(fm, body, path)
	if err != nil {
		return nil, err
	}
	s.afterWrite(path)
	return s.buildDetail(doc)
}

// UpdateEntity re-saves an existing entity in place with optimistic
// concurrency: when ifMatch is non-empty it must equal the checksum of the
// current file content.
func (s *Service) UpdateEntity(_ context.Context, path string, meta map[string]any, body, ifMatch string) (*EntityDetail, error) {
	current, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(current) {
		return nil, apperr.ErrConflict
	}

	fm, _ := frontmatter.FromInterface(meta).(frontmatter.Mapping)
	if fm == nil {
		fm = frontmatter.Mapping{}
	}
	doc, err := s.docs.Save(fm, body, path)
	if err != nil {
		return nil, err
	}
	s.afterWrite(path)
	return s.buildDetail(doc)
}

// DeleteEntity removes an entity file and its index entries. Structural
// deletion is a collaborator responsibility; this simply honors it.
func (s *Service) DeleteEntity(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.db.DeleteByPath(path); err != nil {
		return err
	}
	s.index.Reset()
	s.resolver.Reset()
	return nil
}

// ListEntities returns index entries filtered by type (empty for all).
func (s *Service) ListEntities(_ context.Context, entityType string) ([]models.IndexEntry, error) {
	return s.index.ListByType(entityType)
}

// ResolveRefs maps each reference to a canonical id. Unresolvable
// references are reported per entry rather than failing the batch.
func (s *Service) ResolveRefs(_ context.Context, refs []string, contextType string) ([]Resolution, error) {
	out := make([]Resolution, 0, len(refs))
	for _, ref := range refs {
		id, ok, err := s.resolver.Resolve(ref, contextType)
		if err != nil {
			return nil, err
		}
		out = append(out, Resolution{Ref: ref, ID: id, OK: ok})
	}
	return out, nil
}

// Search delegates full-text search to the search index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns the ids of entities whose ledgers reference id.
func (s *Service) Backlinks(_ context.Context, id string) ([]string, error) {
	return s.db.Backlinks(id)
}

// existingIDs collects every known id for collision avoidance. A missing
// manifest is not fatal here: creation must work in a fresh vault.
func (s *Service) existingIDs() (map[string]struct{}, error) {
	snap, err := s.index.Load(false)
	if err != nil {
		var merr *vaultindex.ManifestError
		if errors.As(err, &merr) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	out := make(map[string]struct{}, snap.Len())
	for _, e := range snap.All() {
		out[e.ID] = struct{}{}
	}
	return out, nil
}

// afterWrite refreshes derived state once a file hit disk.
func (s *Service) afterWrite(path string) {
	s.index.Reset()
	s.resolver.Reset()
	if data, err := s.store.Read(path); err == nil {
		_ = search.IndexFile(s.db, path, data)
	}
}

func (s *Service) buildDetail(doc *entitystore.Document) (*EntityDetail, error) {
	info, err := s.store.Stat(doc.Entity.Path)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(doc.Entity.ID)
	if err != nil {
		return nil, err
	}
	meta, _ := frontmatter.Interface(doc.Meta).(map[string]any)
	return &EntityDetail{
		ID:        doc.Entity.ID,
		Type:      doc.Entity.Type,
		Name:      doc.Entity.Name,
		Path:      doc.Entity.Path,
		Meta:      meta,
		Body:      doc.Body,
		Checksum:  info.Checksum,
		Backlinks: nonNilSlice(bl),
		UpdatedAt: info.UpdatedAt,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
