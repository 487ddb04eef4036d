package resolve

import (
	"os"
	"testing"

	"github.com/fennwick/lorevault/internal/vaultindex"
)

type fakeFS struct {
	files map[string][]byte
}

func (f *fakeFS) Read(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

const testManifest = `entities:
  npc_acolyte-vorra_7c2e:
    type: npc
    name: Acolyte Vorra
    path: npc/npc_acolyte-vorra_7c2e.md
    aliases:
      - Vorra
    titles:
      - Keeper of the Bell
  faction_silver-hand_m3k1:
    type: faction
    name: Silver Hand
    path: faction/faction_silver-hand_m3k1.md
  location_silver-hand_q8p4:
    type: location
    name: Silver Hand
    path: location/location_silver-hand_q8p4.md
  quest_sunken-bell_94k2:
    type: quest
    name: The Sunken Bell
    path: quest/quest_sunken-bell_94k2.md
    slug: sunken-bell
`

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	fs := &fakeFS{files: map[string][]byte{vaultindex.DefaultManifestPath: []byte(testManifest)}}
	return New(vaultindex.New("/vault", "", fs), opts...)
}

func resolveOK(t *testing.T, r *Resolver, ref, contextType string) string {
	t.Helper()
	id, ok, err := r.Resolve(ref, contextType)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", ref, err)
	}
	if !ok {
		t.Fatalf("Resolve(%q) did not resolve", ref)
	}
	return id
}

func TestResolve_CanonicalPassthrough(t *testing.T) {
	// A canonical id resolves without touching the index at all.
	fs := &fakeFS{files: map[string][]byte{}}
	r := New(vaultindex.New("/vault", "", fs))

	id := resolveOK(t, r, "npc_unknown-stranger_zz99", "")
	if id != "npc_unknown-stranger_zz99" {
		t.Errorf("id = %q", id)
	}
}

func TestResolve_ExactID(t *testing.T) {
	r := newTestResolver(t)
	if id := resolveOK(t, r, "NPC_Acolyte-Vorra_7C2E", ""); id != "npc_acolyte-vorra_7c2e" {
		t.Errorf("id = %q", id)
	}
}

func TestResolve_NameAliasTitle(t *testing.T) {
	r := newTestResolver(t)
	for _, ref := range []string{"Acolyte Vorra", "vorra", "keeper of the bell"} {
		if id := resolveOK(t, r, ref, ""); id != "npc_acolyte-vorra_7c2e" {
			t.Errorf("Resolve(%q) = %q", ref, id)
		}
	}
}

func TestResolve_BracketForm(t *testing.T) {
	r := newTestResolver(t)
	if id := resolveOK(t, r, "[location] Silver Hand", ""); id != "location_silver-hand_q8p4" {
		t.Errorf("id = %q", id)
	}
	if id := resolveOK(t, r, "[faction] Silver Hand", ""); id != "faction_silver-hand_m3k1" {
		t.Errorf("id = %q", id)
	}
}

func TestResolve_ColonForm(t *testing.T) {
	r := newTestResolver(t)
	if id := resolveOK(t, r, "location: Silver Hand", ""); id != "location_silver-hand_q8p4" {
		t.Errorf("id = %q", id)
	}
}

func TestResolve_BracketBeatsColon(t *testing.T) {
	r := newTestResolver(t)
	// The bracket type wins even when the name part contains a colon form.
	id, ok, err := r.Resolve("[npc] location: Silver Hand", "")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("resolved %q; the npc-typed lookup should miss", id)
	}
}

func TestResolve_ContextTypeBreaksTies(t *testing.T) {
	r := newTestResolver(t)
	if id := resolveOK(t, r, "Silver Hand", "location"); id != "location_silver-hand_q8p4" {
		t.Errorf("id = %q", id)
	}
	if id := resolveOK(t, r, "Silver Hand", "faction"); id != "faction_silver-hand_m3k1" {
		t.Errorf("id = %q", id)
	}
	// No context: first candidate in id order wins.
	if id := resolveOK(t, r, "Silver Hand", ""); id != "faction_silver-hand_m3k1" {
		t.Errorf("id = %q", id)
	}
}

func TestResolve_SlugAndPrefix(t *testing.T) {
	r := newTestResolver(t)
	if id := resolveOK(t, r, "sunken bell", ""); id != "quest_sunken-bell_94k2" {
		t.Errorf("slug lookup = %q", id)
	}
	if id := resolveOK(t, r, "quest_sunken-bell", ""); id != "quest_sunken-bell_94k2" {
		t.Errorf("prefix lookup = %q", id)
	}
	if id := resolveOK(t, r, "acolyte-vorra", ""); id != "npc_acolyte-vorra_7c2e" {
		t.Errorf("bare slug prefix = %q", id)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r := newTestResolver(t)
	for _, ref := range []string{"", "   ", "Nobody At All", "[npc] Nobody"} {
		id, ok, err := r.Resolve(ref, "")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Errorf("Resolve(%q) = %q, want miss", ref, id)
		}
	}
}

type staticLookup map[string]string

func (l staticLookup) Resolve(ref, _ string) (string, bool) {
	id, ok := l[ref]
	return id, ok
}

func TestResolve_CustomLookupWins(t *testing.T) {
	r := newTestResolver(t, WithLookup(staticLookup{
		"Vorra":    "npc_other-vorra_9x9x",
		"bad-hint": "not-canonical",
	}))

	// Custom hit overrides the alias table.
	if id := resolveOK(t, r, "Vorra", ""); id != "npc_other-vorra_9x9x" {
		t.Errorf("id = %q", id)
	}
	// A non-canonical custom answer is ignored and falls through.
	id, ok, err := r.Resolve("bad-hint", "")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("resolved %q from a non-canonical hint", id)
	}
}

func TestResolver_ResetRebuildsTables(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{vaultindex.DefaultManifestPath: []byte(testManifest)}}
	ix := vaultindex.New("/vault", "", fs)
	r := New(ix)

	if id := resolveOK(t, r, "Vorra", ""); id != "npc_acolyte-vorra_7c2e" {
		t.Fatalf("id = %q", id)
	}

	fs.files[vaultindex.DefaultManifestPath] = []byte(`entities:
  npc_new-vorra_1a2b:
    type: npc
    name: Vorra
    path: npc/npc_new-vorra_1a2b.md
`)
	ix.Reset()
	r.Reset()

	if id := resolveOK(t, r, "Vorra", ""); id != "npc_new-vorra_1a2b" {
		t.Errorf("id after reset = %q", id)
	}
}
