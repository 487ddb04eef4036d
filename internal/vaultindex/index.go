// Package vaultindex maintains a cached snapshot of every known entity,
// sourced from the manifest file a collaborator indexing process writes at
// the vault root.
package vaultindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fennwick/lorevault/internal/models"
)

// DefaultManifestPath is the manifest location probed first, relative to
// the vault root.
const DefaultManifestPath = ".lorevault/manifest.yaml"

// candidatePaths are probed in order when the configured manifest path
// cannot be read.
var candidatePaths = []string{
	DefaultManifestPath,
	"manifest.yaml",
	"data/manifest.yaml",
}

// FileReader is the slice of the storage provider the index needs.
type FileReader interface {
	Read(path string) ([]byte, error)
}

// ManifestError means no candidate manifest location yielded a readable,
// well-formed manifest. It chains the last underlying cause.
type ManifestError struct {
	Tried []string
	Cause error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("vaultindex: no readable manifest (tried %s): %v",
		strings.Join(e.Tried, ", "), e.Cause)
}

func (e *ManifestError) Unwrap() error { return e.Cause }

// Snapshot is one immutable view of the manifest. It is replaced wholesale
// on reload, never mutated in place.
type Snapshot struct {
	entries map[string]models.IndexEntry
	ids     []string // sorted, for deterministic enumeration
}

// Get returns the entry for id, if present.
func (s *Snapshot) Get(id string) (models.IndexEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.entries) }

// All returns every entry in ascending id order.
func (s *Snapshot) All() []models.IndexEntry {
	out := make([]models.IndexEntry, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entries[id])
	}
	return out
}

// Index loads and caches the vault manifest. The cache is explicit state
// on the Index value so tests can construct isolated instances; callers
// must Reset after any write that could change entity identity, name, or
// type.
type Index struct {
	root     string
	manifest string
	fs       FileReader

	mu    sync.Mutex
	cache *Snapshot
}

// New creates an Index over the given vault root. manifestPath is the
// root-relative manifest location probed first; empty selects the default.
func New(root, manifestPath string, fs FileReader) *Index {
	if manifestPath == "" {
		manifestPath = DefaultManifestPath
	}
	return &Index{root: root, manifest: manifestPath, fs: fs}
}

// Load returns the cached snapshot, re-reading the manifest only when
// force is true or nothing is cached yet. The cache is swapped atomically
// once parsing completes.
func (ix *Index) Load(force bool) (*Snapshot, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.cache != nil && !force {
		return ix.cache, nil
	}

	snap, err := ix.read()
	if err != nil {
		return nil, err
	}
	ix.cache = snap
	return snap, nil
}

// Reset invalidates the cache; the next Load performs fresh I/O.
func (ix *Index) Reset() {
	ix.mu.Lock()
	ix.cache = nil
	ix.mu.Unlock()
}

// ListByType returns all cached entries whose type matches entityType
// case-insensitively, in ascending id order. An empty type returns every
// entry. Paths are made absolute against the vault root.
func (ix *Index) ListByType(entityType string) ([]models.IndexEntry, error) {
	snap, err := ix.Load(false)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(entityType))

	var out []models.IndexEntry
	for _, e := range snap.All() {
		if want != "" && strings.ToLower(e.Type) != want {
			continue
		}
		e.Path = JoinRoot(ix.root, e.Path)
		out = append(out, e)
	}
	return out, nil
}

func (ix *Index) read() (*Snapshot, error) {
	paths := []string{ix.manifest}
	for _, c := range candidatePaths {
		if c != ix.manifest {
			paths = append(paths, c)
		}
	}

	var lastErr error
	for _, p := range paths {
		data, err := ix.fs.Read(p)
		if err != nil {
			lastErr = err
			continue
		}
		snap, err := parseManifest(data)
		if err != nil {
			lastErr = err
			continue
		}
		return snap, nil
	}
	return nil, &ManifestError{Tried: paths, Cause: lastErr}
}

type manifestDoc struct {
	Entities map[string]manifestEntry `yaml:"entities"`
}

type manifestEntry struct {
	Type    string    `yaml:"type"`
	Name    string    `yaml:"name"`
	Path    string    `yaml:"path"`
	ModTime time.Time `yaml:"mtime"`
	Aliases []string  `yaml:"aliases"`
	Titles  []string  `yaml:"titles"`
	Slug    string    `yaml:"slug"`
}

func parseManifest(data []byte) (*Snapshot, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("vaultindex: parse manifest: %w", err)
	}
	if doc.Entities == nil {
		return nil, fmt.Errorf("vaultindex: manifest has no entities mapping")
	}

	entries := make(map[string]models.IndexEntry, len(doc.Entities))
	ids := make([]string, 0, len(doc.Entities))
	for id, m := range doc.Entities {
		t := models.NormalizeType(m.Type)
		if t == "" {
			// Fall back to the id prefix for manifests written before the
			// type field existed.
			if i := strings.Index(id, "_"); i > 0 {
				t = models.NormalizeType(id[:i])
			}
		}
		entries[id] = models.IndexEntry{
			ID:      id,
			Type:    t,
			Name:    m.Name,
			Slug:    m.Slug,
			Aliases: m.Aliases,
			Titles:  m.Titles,
			Path:    m.Path,
			ModTime: m.ModTime,
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Snapshot{entries: entries, ids: ids}, nil
}

// JoinRoot joins a manifest-relative path onto the vault root, accepting
// both forward- and back-slash separators without doubling either.
func JoinRoot(root, rel string) string {
	if rel == "" {
		return root
	}
	rel = strings.ReplaceAll(rel, `\`, "/")
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	root = strings.TrimRight(strings.ReplaceAll(root, `\`, "/"), "/")
	if root == "" {
		return rel
	}
	return root + "/" + rel
}
