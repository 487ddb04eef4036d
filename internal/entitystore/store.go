// Package entitystore loads and saves single entity files, composing the
// front-matter codec, reference resolution, type inference, and schema
// validation.
package entitystore

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fennwick/lorevault/internal/frontmatter"
	"github.com/fennwick/lorevault/internal/models"
	"github.com/fennwick/lorevault/internal/resolve"
	"github.com/fennwick/lorevault/internal/schema"
)

// FileStore is the slice of the storage provider the store needs.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Document is a fully loaded entity file: the validated metadata mapping,
// the prose body, and the derived entity header.
type Document struct {
	Entity models.Entity
	Meta   frontmatter.Mapping
	Body   string
}

// Store reads and writes entity documents under the vault root.
type Store struct {
	fs       FileStore
	resolver *resolve.Resolver
}

// New creates a Store over the given file provider and resolver.
func New(fs FileStore, resolver *resolve.Resolver) *Store {
	return &Store{fs: fs, resolver: resolver}
}

// Load reads, decodes, resolves, and validates the entity file at path
// (relative to the vault root). Markdown files carry front matter; other
// supported extensions are decoded as bare structured documents.
func (s *Store) Load(p string) (*Document, error) {
	data, err := s.fs.Read(p)
	if err != nil {
		return nil, err
	}

	meta, body, err := Decode(p, data)
	if err != nil {
		return nil, err
	}
	return s.finish(meta, body, p)
}

// Save resolves, validates, serializes, and atomically writes an entity.
// The on-disk format follows the path extension; keys are sorted so
// repeated saves are diff-stable.
func (s *Store) Save(meta frontmatter.Mapping, body, p string) (*Document, error) {
	doc, err := s.finish(meta, body, p)
	if err != nil {
		return nil, err
	}

	var out []byte
	if isMarkdown(p) {
		out = []byte(frontmatter.Serialize(doc.Body, doc.Meta))
	} else {
		out, err = encodeStructured(doc.Meta, doc.Body)
		if err != nil {
			return nil, fmt.Errorf("entitystore: encode %s: %w", p, err)
		}
	}

	if err := s.fs.Write(p, out); err != nil {
		return nil, err
	}
	return doc, nil
}

// finish runs the shared tail of Load and Save: type inference, ledger
// resolution, and schema validation.
func (s *Store) finish(meta frontmatter.Mapping, body, p string) (*Document, error) {
	t := InferType(meta, p)
	if t == "" {
		return nil, &schema.ValidationError{
			Path:   p,
			Issues: map[string]string{"type": "cannot infer a known entity type"},
		}
	}

	if len(models.LedgerFields(t)) > 0 {
		resolved, err := s.resolver.NormalizeLedgers(meta, t, t)
		if err != nil {
			return nil, err
		}
		meta = resolved
	}

	if err := schema.Validate(t, p, meta); err != nil {
		return nil, err
	}

	return &Document{
		Entity: models.Entity{
			ID:   meta.GetString("id"),
			Type: t,
			Name: meta.GetString("name"),
			Path: p,
			Body: body,
		},
		Meta: meta,
		Body: body,
	}, nil
}

// InferType derives the entity type from the decoded `type` field or,
// failing that, from a path segment ("npcs/vorra.md" infers npc).
func InferType(meta frontmatter.Mapping, p string) string {
	if t := models.NormalizeType(meta.GetString("type")); t != "" {
		return t
	}
	for _, seg := range strings.Split(path.Dir(strings.ReplaceAll(p, `\`, "/")), "/") {
		if t := models.NormalizeType(seg); t != "" {
			return t
		}
		if t := models.NormalizeType(strings.TrimSuffix(seg, "s")); t != "" {
			return t
		}
	}
	return ""
}

func isMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(strings.ReplaceAll(p, `\`, "/")), ".md")
}

// Decode parses raw entity file bytes according to the path extension:
// markdown carries front matter, every other supported extension is a
// bare structured document.
func Decode(p string, data []byte) (frontmatter.Mapping, string, error) {
	if isMarkdown(p) {
		return frontmatter.Parse(string(data))
	}
	meta, body, err := decodeStructured(data)
	if err != nil {
		return nil, "", fmt.Errorf("entitystore: decode %s: %w", p, err)
	}
	return meta, body, nil
}

// decodeStructured parses a bare structured document (YAML, which also
// admits JSON). A top-level `body` string becomes the prose body.
func decodeStructured(data []byte) (frontmatter.Mapping, string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, "", err
	}
	body := ""
	if b, ok := raw["body"].(string); ok {
		body = b
		delete(raw, "body")
	}
	meta, _ := frontmatter.FromInterface(raw).(frontmatter.Mapping)
	if meta == nil {
		meta = frontmatter.Mapping{}
	}
	return meta, body, nil
}

func encodeStructured(meta frontmatter.Mapping, body string) ([]byte, error) {
	payload, _ := frontmatter.Interface(meta).(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}
	if body != "" {
		payload["body"] = body
	}
	return yaml.Marshal(payload)
}
