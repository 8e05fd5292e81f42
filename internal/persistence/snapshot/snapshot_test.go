package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	snap := StateV1{
		Header:       Header{Version: 1, KeepID: "keep_1", Seq: 42},
		PaymentToken: "GOLD",
		UpgradeCost:  100,
		Identities: []IdentityV1{
			{
				ID:    1,
				Owner: "alice",
				Attributes: map[string]uint64{
					"strength": 2, "dexterity": 1, "intelligence": 1, "luck": 1,
				},
				Slots: []SlotV1{{Slot: "armor", ItemType: "iron_plate", Amount: 1}},
			},
		},
		NextIdentity: 2,
		Digest:       "deadbeef",
	}

	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, snap)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}
