package resolve

import (
	"errors"
	"testing"

	"github.com/fennwick/lorevault/internal/frontmatter"
)

func TestNormalizeLedgers_ResolvesStringsAndMappings(t *testing.T) {
	r := newTestResolver(t)
	meta := frontmatter.Mapping{
		"name": frontmatter.String("Acolyte Vorra"),
		"allies": frontmatter.Sequence{
			frontmatter.String("Silver Hand"),
			frontmatter.Mapping{
				"name":  frontmatter.String("The Sunken Bell"),
				"notes": frontmatter.String("owes her a favor"),
			},
		},
	}

	got, err := r.NormalizeLedgers(meta, "npc", "faction")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	allies, ok := got["allies"].(frontmatter.Sequence)
	if !ok || len(allies) != 2 {
		t.Fatalf("allies = %#v", got["allies"])
	}
	first := allies[0].(frontmatter.Mapping)
	if first.GetString("id") != "faction_silver-hand_m3k1" {
		t.Errorf("allies[0].id = %q", first.GetString("id"))
	}
	second := allies[1].(frontmatter.Mapping)
	if second.GetString("id") != "quest_sunken-bell_94k2" {
		t.Errorf("allies[1].id = %q", second.GetString("id"))
	}
	if second.GetString("notes") != "owes her a favor" {
		t.Errorf("notes dropped: %v", second)
	}

	// The input mapping must not be mutated.
	if _, isStr := meta["allies"].(frontmatter.Sequence)[0].(frontmatter.String); !isStr {
		t.Error("input ledger was mutated in place")
	}
}

func TestNormalizeLedgers_BatchesAllUnresolved(t *testing.T) {
	r := newTestResolver(t)
	meta := frontmatter.Mapping{
		"allies": frontmatter.Sequence{
			frontmatter.String("Nobody One"),
			frontmatter.String("Vorra"),
		},
		"enemies": frontmatter.Sequence{
			frontmatter.String("Nobody Two"),
		},
	}

	_, err := r.NormalizeLedgers(meta, "npc", "npc")
	var uerr *UnresolvedError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnresolvedError", err)
	}
	if len(uerr.Mentions) != 2 {
		t.Fatalf("mentions = %v, want both misses", uerr.Mentions)
	}
	if uerr.Mentions[0] != "Nobody One" || uerr.Mentions[1] != "Nobody Two" {
		t.Errorf("mentions = %v", uerr.Mentions)
	}
}

func TestNormalizeLedgers_NoChangeReturnsInput(t *testing.T) {
	r := newTestResolver(t)
	meta := frontmatter.Mapping{
		"allies": frontmatter.Sequence{
			frontmatter.Mapping{"id": frontmatter.String("npc_acolyte-vorra_7c2e")},
		},
	}

	got, err := r.NormalizeLedgers(meta, "npc", "npc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(meta) {
		t.Fatalf("got = %#v", got)
	}
	gotSeq := got["allies"].(frontmatter.Sequence)
	wantSeq := meta["allies"].(frontmatter.Sequence)
	if gotSeq[0].(frontmatter.Mapping).GetString("id") != wantSeq[0].(frontmatter.Mapping).GetString("id") {
		t.Errorf("entry changed: %#v", gotSeq[0])
	}
}

func TestNormalizeLedgers_TypeWithoutLedgersIsNoop(t *testing.T) {
	r := newTestResolver(t)
	meta := frontmatter.Mapping{"name": frontmatter.String("x")}
	got, err := r.NormalizeLedgers(meta, "unknown", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got = %#v", got)
	}
}

func TestNormalizeLedgers_MalformedEntry(t *testing.T) {
	r := newTestResolver(t)
	meta := frontmatter.Mapping{
		"allies": frontmatter.Sequence{
			frontmatter.Mapping{"notes": frontmatter.String("no reference key")},
		},
	}
	_, err := r.NormalizeLedgers(meta, "npc", "npc")
	var uerr *UnresolvedError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnresolvedError", err)
	}
}
