package entityservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fennwick/lorevault/internal/apperr"
	"github.com/fennwick/lorevault/internal/entitystore"
	"github.com/fennwick/lorevault/internal/resolve"
	"github.com/fennwick/lorevault/internal/storage"
	"github.com/fennwick/lorevault/internal/testutil"
	"github.com/fennwick/lorevault/internal/vaultindex"
)

func testService(t *testing.T) (*Service, storage.Provider, string) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	index := vaultindex.New(vaultDir, vaultindex.DefaultManifestPath, store)
	resolver := resolve.New(index)
	docs := entitystore.New(store, resolver)
	return NewService(store, docs, index, resolver, db), store, vaultDir
}

func TestCreateMintsCanonicalID(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	ent, err := svc.CreateEntity(ctx, "npc", "Acolyte Vorra", nil, "A nervous acolyte.", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(ent.ID, "npc_acolyte-vorra_") {
		t.Errorf("id = %q", ent.ID)
	}
	if ent.Path != "npc/"+ent.ID+".md" {
		t.Errorf("path = %q", ent.Path)
	}
	if ent.Checksum == "" {
		t.Error("checksum missing")
	}

	got, err := svc.GetEntity(ctx, ent.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != ent.ID || got.Body != "A nervous acolyte." {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateDuplicatePathFails(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateEntity(ctx, "npc", "Dup", nil, "", "npc/dup.md"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateEntity(ctx, "npc", "Dup", nil, "", "npc/dup.md")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateChecksumConflict(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	ent, err := svc.CreateEntity(ctx, "npc", "Lock Me", nil, "v1", "")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateEntity(ctx, ent.Path, ent.Meta, "v2", ent.Checksum)
	if err != nil {
		t.Fatalf("update with fresh checksum: %v", err)
	}
	if updated.Body != "v2" {
		t.Errorf("body = %q", updated.Body)
	}

	// The original checksum is now stale.
	_, err = svc.UpdateEntity(ctx, ent.Path, ent.Meta, "v3", ent.Checksum)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	// Empty If-Match skips the check entirely.
	if _, err := svc.UpdateEntity(ctx, ent.Path, ent.Meta, "v3", ""); err != nil {
		t.Errorf("update without If-Match: %v", err)
	}
}

func TestDeleteRemovesSearchRows(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	ent, err := svc.CreateEntity(ctx, "npc", "Bye", nil, "findmetoken", "")
	if err != nil {
		t.Fatal(err)
	}
	if results, _ := svc.Search(ctx, "findmetoken", 10); len(results) != 1 {
		t.Fatalf("precondition: entity should be searchable")
	}

	if err := svc.DeleteEntity(ctx, ent.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if results, _ := svc.Search(ctx, "findmetoken", 10); len(results) != 0 {
		t.Error("deleted entity still searchable")
	}
	if _, err := svc.GetEntity(ctx, ent.Path); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateResolvesLedgerAndIndexesEdges(t *testing.T) {
	svc, store, _ := testService(t)
	ctx := context.Background()

	manifest := strings.Join([]string{
		"entities:",
		"  faction_silver-hand_m3k1:",
		"    type: faction",
		"    name: Silver Hand",
		"    path: faction/faction_silver-hand_m3k1.md",
	}, "\n")
	if err := store.Write(vaultindex.DefaultManifestPath, []byte(manifest)); err != nil {
		t.Fatal(err)
	}

	ent, err := svc.CreateEntity(ctx, "npc", "Linked", map[string]any{
		"allies": []any{"Silver Hand"},
	}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	allies, ok := ent.Meta["allies"].([]any)
	if !ok || len(allies) != 1 {
		t.Fatalf("allies = %v", ent.Meta["allies"])
	}
	entry, _ := allies[0].(map[string]any)
	if entry["id"] != "faction_silver-hand_m3k1" {
		t.Errorf("ally = %v, want resolved id", entry)
	}

	bl, err := svc.Backlinks(ctx, "faction_silver-hand_m3k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != ent.ID {
		t.Errorf("backlinks = %v, want [%s]", bl, ent.ID)
	}
}

func TestDetailUpdatedAtIsFileModTime(t *testing.T) {
	svc, _, vaultDir := testService(t)
	ctx := context.Background()

	ent, err := svc.CreateEntity(ctx, "npc", "Stamp", nil, "", "")
	if err != nil {
		t.Fatal(err)
	}

	want := time.Now().Add(-3 * time.Hour).Truncate(time.Second)
	abs := filepath.Join(vaultDir, filepath.FromSlash(ent.Path))
	if err := os.Chtimes(abs, want, want); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetEntity(ctx, ent.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want file mtime %v", got.UpdatedAt, want)
	}
}

func TestResolveRefsBatch(t *testing.T) {
	svc, store, _ := testService(t)
	ctx := context.Background()

	manifest := strings.Join([]string{
		"entities:",
		"  npc_acolyte-vorra_7c2e:",
		"    type: npc",
		"    name: Acolyte Vorra",
		"    path: npc/npc_acolyte-vorra_7c2e.md",
	}, "\n")
	if err := store.Write(vaultindex.DefaultManifestPath, []byte(manifest)); err != nil {
		t.Fatal(err)
	}

	res, err := svc.ResolveRefs(ctx, []string{"Acolyte Vorra", "Complete Stranger"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !res[0].OK || res[0].ID != "npc_acolyte-vorra_7c2e" {
		t.Errorf("res[0] = %+v", res[0])
	}
	if res[1].OK {
		t.Errorf("res[1] = %+v, want miss", res[1])
	}
}

func TestCreateWorksWithoutManifest(t *testing.T) {
	// A fresh vault has no manifest yet; creation must still mint ids.
	svc, _, _ := testService(t)
	if _, err := svc.CreateEntity(context.Background(), "quest", "The Sunken Bell", nil, "", ""); err != nil {
		t.Fatalf("create in fresh vault: %v", err)
	}
}
