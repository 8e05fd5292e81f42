package journal

import (
	"testing"

	"relickeep.gg/internal/ledger"
)

func TestEventJournal_WriteReadBack(t *testing.T) {
	dir := t.TempDir()
	j := NewEventJournal(dir)
	wrote := []ledger.Event{
		{Seq: 1, Op: ledger.EventIdentityMinted, Identity: 1, Owner: "alice"},
		{Seq: 2, Op: ledger.EventItemEquipped, Identity: 1, Caller: "alice", Slot: "armor", ItemType: "iron_plate", Amount: 2},
		{Seq: 3, Op: ledger.EventAttributeUpgraded, Identity: 1, Caller: "alice", Attribute: "luck", Value: 2, Amount: 10, Token: "GOLD"},
	}
	for _, ev := range wrote {
		if err := j.WriteEvent(ev); err != nil {
			t.Fatalf("write seq %d: %v", ev.Seq, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []ledger.Event
	if err := ReadAll(dir, 0, func(ev ledger.Event) error {
		got = append(got, ev)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(wrote) {
		t.Fatalf("read %d events, want %d", len(got), len(wrote))
	}
	for i := range wrote {
		if got[i] != wrote[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], wrote[i])
		}
	}
}

func TestReadAll_SkipsThroughSeq(t *testing.T) {
	dir := t.TempDir()
	j := NewEventJournal(dir)
	for seq := uint64(1); seq <= 5; seq++ {
		if err := j.WriteEvent(ledger.Event{Seq: seq, Op: ledger.EventIdentityMinted, Identity: ledger.IdentityID(seq), Owner: "a"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var seqs []uint64
	if err := ReadAll(dir, 3, func(ev ledger.Event) error {
		seqs = append(seqs, ev.Seq)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 4 || seqs[1] != 5 {
		t.Fatalf("resumed seqs = %v, want [4 5]", seqs)
	}
}

func TestReadAll_EmptyDir(t *testing.T) {
	if err := ReadAll(t.TempDir(), 0, func(ledger.Event) error { return nil }); err != nil {
		t.Fatalf("empty dir should read cleanly: %v", err)
	}
}
