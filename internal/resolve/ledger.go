package resolve

import (
	"fmt"

	"github.com/fennwick/lorevault/internal/frontmatter"
	"github.com/fennwick/lorevault/internal/models"
)

// NormalizeLedgers resolves every relationship ledger on an entity's
// metadata. Entries may be a bare reference string or a mapping carrying
// an `id`, `entityId`, or `name` field plus an optional free-text `notes`.
//
// Resolution is atomic over the whole entity: unresolved mentions are
// collected across all ledgers and, if any exist, a single
// *UnresolvedError listing them is returned, never a partially
// normalized mapping. When every entry already holds its resolved form
// the input mapping is returned unchanged.
func (r *Resolver) NormalizeLedgers(meta frontmatter.Mapping, entityType, preferredType string) (frontmatter.Mapping, error) {
	fields := models.LedgerFields(entityType)
	if len(fields) == 0 {
		return meta, nil
	}

	var unresolved []string
	normalized := make(map[string]frontmatter.Sequence)
	changed := false

	for _, field := range fields {
		seq, ok := meta[field].(frontmatter.Sequence)
		if !ok || len(seq) == 0 {
			continue
		}

		out := make(frontmatter.Sequence, 0, len(seq))
		for _, item := range seq {
			ref, notes, ok := ledgerRef(item)
			if !ok {
				unresolved = append(unresolved, fmt.Sprintf("%s: %v", field, frontmatter.Interface(item)))
				continue
			}

			id, found, err := r.Resolve(ref, preferredType)
			if err != nil {
				return nil, err
			}
			if !found {
				unresolved = append(unresolved, ref)
				continue
			}

			entry := frontmatter.Mapping{"id": frontmatter.String(id)}
			if notes != "" {
				entry["notes"] = frontmatter.String(notes)
			}
			out = append(out, entry)
			if !sameEntry(item, id, notes) {
				changed = true
			}
		}
		normalized[field] = out
	}

	if len(unresolved) > 0 {
		return nil, &UnresolvedError{Mentions: unresolved}
	}
	if !changed {
		return meta, nil
	}

	next := make(frontmatter.Mapping, len(meta))
	for k, v := range meta {
		next[k] = v
	}
	for field, seq := range normalized {
		next[field] = seq
	}
	return next, nil
}

// ledgerRef extracts the reference text and optional note from one ledger
// entry.
func ledgerRef(item frontmatter.Value) (ref, notes string, ok bool) {
	switch v := item.(type) {
	case frontmatter.String:
		return string(v), "", true
	case frontmatter.Mapping:
		for _, key := range []string{"id", "entityId", "name"} {
			if s := v.GetString(key); s != "" {
				return s, v.GetString("notes"), true
			}
		}
		return "", "", false
	default:
		return "", "", false
	}
}

// sameEntry reports whether a ledger entry already equals its normalized
// `{id, notes?}` form.
func sameEntry(item frontmatter.Value, id, notes string) bool {
	m, ok := item.(frontmatter.Mapping)
	if !ok {
		return false
	}
	want := 1
	if notes != "" {
		want = 2
	}
	return len(m) == want && m.GetString("id") == id && m.GetString("notes") == notes
}
