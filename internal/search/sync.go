package search

import (
	"fmt"
	"log/slog"

	"github.com/fennwick/lorevault/internal/checksum"
	"github.com/fennwick/lorevault/internal/entitystore"
	"github.com/fennwick/lorevault/internal/frontmatter"
	"github.com/fennwick/lorevault/internal/ident"
	"github.com/fennwick/lorevault/internal/models"
	"github.com/fennwick/lorevault/internal/storage"
)

// Sync walks the vault and brings the search index up to date:
//   - new/changed entity files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// Indexing is deliberately lenient: a file that fails the full document
// schema still gets indexed as long as it parses and carries an id, so
// search keeps working while an entity is mid-edit.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile decodes data according to the path's extension and upserts it
// into the DB. Markdown carries front matter; structured documents
// (yaml/json) are decoded whole, matching what the document store loads.
func IndexFile(db *DB, path string, data []byte) error {
	meta, body, err := entitystore.Decode(path, data)
	if err != nil {
		return err
	}
	id := meta.GetString("id")
	if id == "" {
		return fmt.Errorf("search: %s: no id field", path)
	}
	t := entitystore.InferType(meta, path)

	row := EntityRow{
		ID:       id,
		Name:     meta.GetString("name"),
		Type:     t,
		Path:     path,
		Checksum: checksum.Sum(data),
	}
	if tags, ok := meta["tags"].(frontmatter.Sequence); ok {
		for _, item := range tags {
			if s, ok := item.(frontmatter.String); ok {
				row.Tags = append(row.Tags, string(s))
			}
		}
	}

	return db.Upsert(row, body, extractEdges(meta, t))
}

// extractEdges pulls already-canonical relationship references out of the
// ledgers. Unresolved mentions are skipped here; resolution is the
// document store's job.
func extractEdges(meta frontmatter.Mapping, entityType string) []Edge {
	var edges []Edge
	for _, field := range models.LedgerFields(entityType) {
		seq, ok := meta[field].(frontmatter.Sequence)
		if !ok {
			continue
		}
		for _, item := range seq {
			var ref string
			switch v := item.(type) {
			case frontmatter.String:
				ref = string(v)
			case frontmatter.Mapping:
				ref = v.GetString("id")
			}
			if ident.IsCanonical(ref) {
				edges = append(edges, Edge{Target: ref, Field: field})
			}
		}
	}
	return edges
}
