// Package models defines the domain types for Lorevault.
package models

import (
	"strings"
	"time"
)

// Entity types form a closed set. Anything outside it is rejected by the
// identifier generator and the document store.
const (
	TypeNPC       = "npc"
	TypeQuest     = "quest"
	TypeLocation  = "location"
	TypeFaction   = "faction"
	TypeMonster   = "monster"
	TypeEncounter = "encounter"
	TypeSession   = "session"
)

var entityTypes = []string{
	TypeNPC, TypeQuest, TypeLocation, TypeFaction,
	TypeMonster, TypeEncounter, TypeSession,
}

// Types returns the closed entity-type set in stable order.
func Types() []string {
	out := make([]string, len(entityTypes))
	copy(out, entityTypes)
	return out
}

// IsType reports whether s (case-insensitive) names a known entity type.
func IsType(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range entityTypes {
		if s == t {
			return true
		}
	}
	return false
}

// NormalizeType lower-cases and trims s, returning "" when it is not a
// known entity type.
func NormalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if IsType(s) {
		return s
	}
	return ""
}

// ledgerFields maps an entity type to the names of its relationship
// ledgers: ordered lists of references to other entities.
var ledgerFields = map[string][]string{
	TypeNPC:       {"allies", "enemies", "factions"},
	TypeQuest:     {"giver", "involved", "locations"},
	TypeLocation:  {"occupants", "connected"},
	TypeFaction:   {"members", "rivals", "holdings"},
	TypeMonster:   {"lairs"},
	TypeEncounter: {"participants", "locations"},
	TypeSession:   {"attendees", "quests"},
}

// LedgerFields returns the relationship ledger field names for an entity
// type, or nil for types that carry none.
func LedgerFields(entityType string) []string {
	return ledgerFields[strings.ToLower(entityType)]
}

// Entity is a loaded campaign record: canonical id, closed-set type,
// display name, the full metadata mapping, and the free-form prose body.
type Entity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Body string `json:"body,omitempty"`
}

// FileInfo is lightweight metadata for one vault file, as returned by
// storage listings.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IndexEntry is the read-only projection of an entity used for lookup,
// built from the manifest once per vault load.
type IndexEntry struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Name    string    `json:"name"`
	Slug    string    `json:"slug,omitempty"`
	Aliases []string  `json:"aliases,omitempty"`
	Titles  []string  `json:"titles,omitempty"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mtime"`
}
