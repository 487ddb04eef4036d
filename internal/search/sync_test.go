package search

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fennwick/lorevault/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVault(t *testing.T) storage.Provider {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

const vorraDoc = `---
id: npc_acolyte-vorra_7c2e
name: Acolyte Vorra
type: npc
tags:
  - tide-court
factions:
  - id: faction_silver-hand_m3k1
  - Unresolved Mention
---
A nervous acolyte of the Tide Court.
`

func TestIndexFile(t *testing.T) {
	db := testDB(t)
	if err := IndexFile(db, "npc/npc_acolyte-vorra_7c2e.md", []byte(vorraDoc)); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	cs, _ := db.GetChecksum("npc_acolyte-vorra_7c2e")
	if cs == "" {
		t.Fatal("entity not indexed")
	}

	// Only the canonical reference becomes an edge.
	bl, err := db.Backlinks("faction_silver-hand_m3k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != "npc_acolyte-vorra_7c2e" {
		t.Errorf("backlinks = %v", bl)
	}

	results, err := db.Search("nervous", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Acolyte Vorra" {
		t.Errorf("results = %+v", results)
	}
}

func TestIndexFile_StructuredDocument(t *testing.T) {
	db := testDB(t)
	doc := strings.Join([]string{
		"id: faction_silver-hand_m3k1",
		"name: Silver Hand",
		"type: faction",
		"members:",
		"  - npc_acolyte-vorra_7c2e",
		"body: A knightly order of the coast.",
		"",
	}, "\n")
	if err := IndexFile(db, "faction/faction_silver-hand_m3k1.yaml", []byte(doc)); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	if cs, _ := db.GetChecksum("faction_silver-hand_m3k1"); cs == "" {
		t.Fatal("yaml entity not indexed")
	}

	results, err := db.Search("knightly", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Silver Hand" {
		t.Errorf("results = %+v", results)
	}

	bl, err := db.Backlinks("npc_acolyte-vorra_7c2e")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != "faction_silver-hand_m3k1" {
		t.Errorf("backlinks = %v", bl)
	}
}

func TestIndexFile_NoID(t *testing.T) {
	db := testDB(t)
	err := IndexFile(db, "npc/anon.md", []byte("---\nname: Anon\n---\n"))
	if err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	db := testDB(t)
	store := testVault(t)

	if err := store.Write("npc/npc_acolyte-vorra_7c2e.md", []byte(vorraDoc)); err != nil {
		t.Fatal(err)
	}
	// A row indexed from a path that no longer exists on disk.
	_ = db.Upsert(EntityRow{ID: "npc_ghost_0000", Path: "npc/ghost.md", Checksum: "stale"}, "", nil)

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if cs, _ := db.GetChecksum("npc_acolyte-vorra_7c2e"); cs == "" {
		t.Error("new file not indexed")
	}
	if cs, _ := db.GetChecksum("npc_ghost_0000"); cs != "" {
		t.Error("stale row not removed")
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	db := testDB(t)
	store := testVault(t)
	if err := store.Write("npc/npc_acolyte-vorra_7c2e.md", []byte(vorraDoc)); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, _ := db.AllChecksums()

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	after, _ := db.AllChecksums()

	if len(before) != len(after) || before["npc/npc_acolyte-vorra_7c2e.md"] != after["npc/npc_acolyte-vorra_7c2e.md"] {
		t.Errorf("checksums changed across idle sync: %v vs %v", before, after)
	}
}

func TestIsEntityPath(t *testing.T) {
	cases := []struct {
		rel  string
		want bool
	}{
		{"npc/vorra.md", true},
		{"quest/bell.yaml", true},
		{"a/b/c.json", true},
		{"notes.txt", false},
		{".lorevault/manifest.yaml", false},
		{"manifest.yaml", false},
		{"npc/.lorevault-tmp-123", false},
		{".hidden.md", false},
	}
	for _, c := range cases {
		if got := isEntityPath(c.rel); got != c.want {
			t.Errorf("isEntityPath(%q) = %v, want %v", c.rel, got, c.want)
		}
	}
}

func TestIsManifestPath(t *testing.T) {
	if !isManifestPath(".lorevault/manifest.yaml") || !isManifestPath("manifest.yaml") {
		t.Error("manifest paths not recognized")
	}
	if isManifestPath("npc/vorra.md") {
		t.Error("entity path misread as manifest")
	}
}
