// Package resolve maps loosely-typed, human-authored entity references
// ("[faction] Silver Hand", "vorra", a raw canonical id) to canonical
// identifiers using lookup tables derived from the vault index.
package resolve

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fennwick/lorevault/internal/ident"
	"github.com/fennwick/lorevault/internal/models"
	"github.com/fennwick/lorevault/internal/vaultindex"
)

// bracketRe matches the legacy `[type] Name` reference form. It is checked
// before the `type: Name` colon form; when a name itself contains a colon
// the bracket form wins, matching the historical behavior.
var bracketRe = regexp.MustCompile(`^\[([A-Za-z]+)\]\s*(.*)$`)

// Lookup is an injectable resolution strategy consulted ahead of the
// built-in algorithm. A returned id is only trusted when it matches the
// canonical pattern.
type Lookup interface {
	Resolve(ref, contextType string) (string, bool)
}

// UnresolvedError carries every reference that could not be mapped to a
// canonical id, never just the first.
type UnresolvedError struct {
	Mentions []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("resolve: %d unresolved reference(s): %s",
		len(e.Mentions), strings.Join(e.Mentions, ", "))
}

// Resolver owns the derived lookup tables for one vault index. Tables are
// built lazily on first use and shared across calls until Reset.
type Resolver struct {
	index  *vaultindex.Index
	custom Lookup

	mu     sync.Mutex
	tables *tables
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookup installs a custom resolution strategy checked before the
// built-in tables.
func WithLookup(l Lookup) Option {
	return func(r *Resolver) { r.custom = l }
}

// New creates a Resolver over the given vault index.
func New(index *vaultindex.Index, opts ...Option) *Resolver {
	r := &Resolver{index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset drops the derived tables, forcing a rebuild against the latest
// vault index snapshot on next use. Call it whenever the index is reset.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.tables = nil
	r.mu.Unlock()
}

// Resolve maps one textual reference to a canonical id. contextType, when
// it names a known entity type, acts as the preferred type for ambiguous
// names unless the reference carries its own `[type]` or `type:` prefix.
// ok is false when the reference cannot be resolved.
func (r *Resolver) Resolve(ref, contextType string) (id string, ok bool, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false, nil
	}

	// Canonical ids pass through verbatim, no lookup at all.
	if ident.IsCanonical(ref) {
		return ref, true, nil
	}

	if r.custom != nil {
		if got, hit := r.custom.Resolve(ref, contextType); hit && ident.IsCanonical(got) {
			return got, true, nil
		}
	}

	t, err := r.load()
	if err != nil {
		return "", false, err
	}

	lower := strings.ToLower(ref)
	if e, hit := t.byID[lower]; hit {
		return e.ID, true, nil
	}

	name, preferred := splitLegacy(ref, contextType)
	nameKey := strings.ToLower(strings.TrimSpace(name))
	if nameKey == "" {
		return "", false, nil
	}

	if cands := t.byName[nameKey]; len(cands) > 0 {
		return pick(cands, preferred).ID, true, nil
	}

	slug := ident.Slugify(name)
	if cands := t.bySlug[slug]; len(cands) > 0 {
		return pick(cands, preferred).ID, true, nil
	}

	// The raw reference may already be a `type_slug` prefix; Slugify would
	// fold its underscore, so check it verbatim first.
	if cands := t.byPrefix[nameKey]; len(cands) > 0 {
		return pick(cands, preferred).ID, true, nil
	}

	types := models.Types()
	if preferred != "" {
		ordered := []string{preferred}
		for _, et := range types {
			if et != preferred {
				ordered = append(ordered, et)
			}
		}
		types = ordered
	}
	for _, et := range types {
		if cands := t.byPrefix[et+"_"+slug]; len(cands) > 0 {
			return pick(cands, preferred).ID, true, nil
		}
	}
	if cands := t.byPrefix[slug]; len(cands) > 0 {
		return pick(cands, preferred).ID, true, nil
	}

	return "", false, nil
}

// splitLegacy strips a `[type]` or `type:` prefix from ref. The bracket
// form is checked first; a prefix only sets the preferred type when it
// names a known entity type, and absent any prefix the caller-supplied
// context type applies.
func splitLegacy(ref, contextType string) (name, preferred string) {
	if m := bracketRe.FindStringSubmatch(ref); m != nil {
		if t := models.NormalizeType(m[1]); t != "" {
			return m[2], t
		}
	}
	if i := strings.Index(ref, ":"); i > 0 {
		if t := models.NormalizeType(ref[:i]); t != "" {
			return strings.TrimSpace(ref[i+1:]), t
		}
	}
	return ref, models.NormalizeType(contextType)
}

// pick prefers a candidate of the preferred type, else takes the first.
func pick(cands []models.IndexEntry, preferred string) models.IndexEntry {
	if preferred != "" {
		for _, c := range cands {
			if c.Type == preferred {
				return c
			}
		}
	}
	return cands[0]
}

type tables struct {
	byID     map[string]models.IndexEntry
	byName   map[string][]models.IndexEntry
	bySlug   map[string][]models.IndexEntry
	byPrefix map[string][]models.IndexEntry
}

// load builds the derived tables from the current index snapshot, reusing
// them across calls until Reset.
func (r *Resolver) load() (*tables, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tables != nil {
		return r.tables, nil
	}

	snap, err := r.index.Load(false)
	if err != nil {
		return nil, err
	}

	t := &tables{
		byID:     make(map[string]models.IndexEntry, snap.Len()),
		byName:   make(map[string][]models.IndexEntry),
		bySlug:   make(map[string][]models.IndexEntry),
		byPrefix: make(map[string][]models.IndexEntry),
	}
	for _, e := range snap.All() {
		t.byID[strings.ToLower(e.ID)] = e

		addKey(t.byName, e.Name, e)
		for _, a := range e.Aliases {
			addKey(t.byName, a, e)
		}
		for _, ti := range e.Titles {
			addKey(t.byName, ti, e)
		}

		slug := e.Slug
		if slug == "" {
			slug = ident.Slugify(e.Name)
		}
		t.bySlug[slug] = append(t.bySlug[slug], e)

		// Prefix keys: the id with its trailing shortcode stripped, and
		// the bare slug portion on its own.
		if _, idSlug, _, canonical := ident.SplitID(e.ID); canonical {
			prefix := e.Type + "_" + idSlug
			t.byPrefix[prefix] = append(t.byPrefix[prefix], e)
			t.byPrefix[idSlug] = append(t.byPrefix[idSlug], e)
		}
	}
	r.tables = t
	return t, nil
}

func addKey(m map[string][]models.IndexEntry, name string, e models.IndexEntry) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	m[key] = append(m[key], e)
}
