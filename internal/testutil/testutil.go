// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/fennwick/lorevault/internal/search"
	"github.com/fennwick/lorevault/internal/storage"
	"github.com/fennwick/lorevault/internal/vaultindex"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *search.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lorevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := search.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// ManifestEntry is one entity record for WriteManifest.
type ManifestEntry struct {
	ID      string
	Type    string
	Name    string
	Path    string
	Slug    string
	Aliases []string
	Titles  []string
}

// WriteManifest writes a manifest YAML at the default location inside the
// vault and returns a ready vault index over it.
func WriteManifest(t *testing.T, vaultDir string, store storage.Provider, entries []ManifestEntry) *vaultindex.Index {
	t.Helper()

	var b strings.Builder
	b.WriteString("entities:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s:\n", e.ID)
		if e.Type != "" {
			fmt.Fprintf(&b, "    type: %s\n", e.Type)
		}
		fmt.Fprintf(&b, "    name: %q\n", e.Name)
		fmt.Fprintf(&b, "    path: %s\n", e.Path)
		if e.Slug != "" {
			fmt.Fprintf(&b, "    slug: %s\n", e.Slug)
		}
		writeList(&b, "aliases", e.Aliases)
		writeList(&b, "titles", e.Titles)
	}

	if err := store.Write(vaultindex.DefaultManifestPath, []byte(b.String())); err != nil {
		t.Fatal(err)
	}
	return vaultindex.New(vaultDir, vaultindex.DefaultManifestPath, store)
}

func writeList(b *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "    %s:\n", key)
	for _, it := range items {
		fmt.Fprintf(b, "      - %q\n", it)
	}
}
