package search

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityRow represents a row in the entities table.
type EntityRow struct {
	ID        string
	Name      string
	Type      string
	Path      string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// Edge is one directed relationship reference extracted from an entity's
// ledgers.
type Edge struct {
	Target string
	Field  string
}

// Result represents one search hit.
type Result struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Upsert inserts or replaces an entity, its FTS entry, and its outgoing
// relationship edges within a transaction.
func (db *DB) Upsert(e EntityRow, body string, edges []Edge) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(e.Tags)

	_, err = tx.Exec(`
		INSERT INTO entities (id, name, type, path, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			type       = excluded.type,
			path       = excluded.path,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, e.ID, e.Name, e.Type, e.Path, e.Checksum, string(tagsJSON), body, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("search: upsert entity: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, e.ID, e.Name, body, e.Tags); err != nil {
		return err
	}

	// Replace edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM relationships WHERE source = ?`, e.ID)
	if len(edges) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO relationships (source, target, field) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("search: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, edge := range edges {
			if _, err := stmt.Exec(e.ID, edge.Target, edge.Field); err != nil {
				return fmt.Errorf("search: insert edge: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes an entity, its FTS entry, and its outgoing edges.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM relationships WHERE source = ?`, id)
	_, _ = tx.Exec(`DELETE FROM entities WHERE id = ?`, id)

	return tx.Commit()
}

// DeleteByPath removes the entity indexed from the given vault path, if
// any.
func (db *DB) DeleteByPath(path string) error {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM entities WHERE path = ?`, path).Scan(&id)
	if err != nil {
		return nil // nothing indexed from that path
	}
	return db.Delete(id)
}

// GetChecksum returns the stored checksum for an entity, or empty string
// if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entities WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns every indexed checksum keyed by vault path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("search: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the ids of every entity whose ledgers reference the
// given target id.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM relationships WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("search: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
