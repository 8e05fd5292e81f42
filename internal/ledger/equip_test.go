package ledger

import (
	"errors"
	"testing"

	"relickeep.gg/internal/assets"
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

func TestEquipUnequip_RoundTrip(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	f.vault.Mint("alice", "iron_plate", 3)

	if err := f.ledger.Equip("alice", id, registry.SlotArmor, "iron_plate", 3); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if got := f.vault.Balance("alice", "iron_plate"); got != 0 {
		t.Fatalf("caller balance after equip = %d, want 0", got)
	}
	if got := f.vault.Balance(sysCustody, "iron_plate"); got != 3 {
		t.Fatalf("custody balance after equip = %d, want 3", got)
	}
	item, ok := f.ledger.GetEquippedItem(id, registry.SlotArmor)
	if !ok || item.ItemType != "iron_plate" || item.Amount != 3 {
		t.Fatalf("equipped = %+v ok=%v, want iron_plate x3", item, ok)
	}
	if !f.ledger.IsSlotEquipped(id, registry.SlotArmor) {
		t.Fatalf("armor slot should read occupied")
	}
	if got := f.ledger.CustodyBalance(id, "iron_plate"); got != 3 {
		t.Fatalf("custody record = %d, want 3", got)
	}
	f.checkInvariant(t)

	if err := f.ledger.Unequip("alice", id, registry.SlotArmor); err != nil {
		t.Fatalf("unequip: %v", err)
	}
	if got := f.vault.Balance("alice", "iron_plate"); got != 3 {
		t.Fatalf("caller balance after unequip = %d, want 3", got)
	}
	if f.ledger.IsSlotEquipped(id, registry.SlotArmor) {
		t.Fatalf("armor slot should read empty after unequip")
	}
	if got := f.ledger.CustodyBalance(id, "iron_plate"); got != 0 {
		t.Fatalf("custody record after unequip = %d, want 0", got)
	}
	f.checkInvariant(t)

	ops := f.events.ops()
	if len(ops) != 3 || ops[0] != EventIdentityMinted || ops[1] != EventItemEquipped || ops[2] != EventItemUnequipped {
		t.Fatalf("event ops = %v", ops)
	}
}

func TestEquip_AutoDisplacement(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	f.vault.Mint("alice", "iron_plate", 1)
	f.vault.Mint("alice", "storm_plate", 2)

	if err := f.ledger.Equip("alice", id, registry.SlotArmor, "iron_plate", 1); err != nil {
		t.Fatalf("first equip: %v", err)
	}
	if err := f.ledger.Equip("alice", id, registry.SlotArmor, "storm_plate", 2); err != nil {
		t.Fatalf("replacing equip: %v", err)
	}

	if got := f.vault.Balance("alice", "iron_plate"); got != 1 {
		t.Fatalf("displaced iron_plate not returned: balance %d", got)
	}
	item, _ := f.ledger.GetEquippedItem(id, registry.SlotArmor)
	if item.ItemType != "storm_plate" || item.Amount != 2 {
		t.Fatalf("occupant = %+v, want storm_plate x2", item)
	}
	if got := f.ledger.CustodyBalance(id, "iron_plate"); got != 0 {
		t.Fatalf("displaced custody record lingers: %d", got)
	}
	f.checkInvariant(t)

	// The replacement reads as unequip-then-equip in the event stream.
	ops := f.events.ops()
	want := []string{EventIdentityMinted, EventItemEquipped, EventItemUnequipped, EventItemEquipped}
	if len(ops) != len(want) {
		t.Fatalf("event ops = %v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, ops[i], want[i])
		}
	}
	// Displacement events share the commit, so seq stays contiguous.
	if f.events.evs[2].Seq+1 != f.events.evs[3].Seq {
		t.Fatalf("displacement seqs not contiguous: %d, %d", f.events.evs[2].Seq, f.events.evs[3].Seq)
	}
}

func TestEquip_Preconditions(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	f.vault.Mint("alice", "rusty_sword", 1)

	cases := []struct {
		name   string
		caller string
		id     IdentityID
		slot   registry.Slot
		item   string
		amount uint64
		code   string
	}{
		{"not owner", "mallory", id, registry.SlotWeapon, "rusty_sword", 1, protocol.ErrNotOwner},
		{"missing identity", "alice", 99, registry.SlotWeapon, "rusty_sword", 1, protocol.ErrIdentityNotFound},
		{"unknown slot", "alice", id, "cloak", "rusty_sword", 1, protocol.ErrBadRequest},
		{"zero amount", "alice", id, registry.SlotWeapon, "rusty_sword", 0, protocol.ErrBadAmount},
		{"unregistered item", "alice", id, registry.SlotWeapon, "excalibur", 1, protocol.ErrItemUnregistered},
		{"slot mismatch", "alice", id, registry.SlotArmor, "rusty_sword", 1, protocol.ErrSlotMismatch},
		{"insufficient balance", "alice", id, registry.SlotWeapon, "rusty_sword", 2, protocol.ErrNoBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.ledger.Equip(tc.caller, tc.id, tc.slot, tc.item, tc.amount)
			wantCode(t, err, tc.code)
		})
	}

	// None of the failures moved anything or touched the slot.
	if got := f.vault.Balance("alice", "rusty_sword"); got != 1 {
		t.Fatalf("balance disturbed by failed equips: %d", got)
	}
	if f.ledger.IsSlotEquipped(id, registry.SlotWeapon) {
		t.Fatalf("weapon slot occupied after failed equips")
	}
	seen := len(f.events.evs)
	if seen != 1 {
		t.Fatalf("failed equips emitted events: %v", f.events.ops())
	}
	f.checkInvariant(t)
}

func TestUnequip_EmptySlot(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	err := f.ledger.Unequip("alice", id, registry.SlotRelic)
	wantCode(t, err, protocol.ErrSlotEmpty)
}

func TestEquip_RegistryUnset(t *testing.T) {
	vault := assets.NewVault(sysCustody)
	l := New(Config{CustodyAccount: sysCustody, DefaultAttribute: 1}, vault)
	id, err := l.MintIdentity("alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	vault.Mint("alice", "iron_plate", 1)
	err = l.Equip("alice", id, registry.SlotArmor, "iron_plate", 1)
	wantCode(t, err, protocol.ErrRegistryUnset)
}

// faultMover delegates to a real vault but fails specific transfers so the
// rollback paths can be exercised.
type faultMover struct {
	AssetMover
	failItem string
}

func (m *faultMover) Move(actor, from, to, itemType string, amount uint64) error {
	if itemType == m.failItem {
		return errors.New("vault offline")
	}
	return m.AssetMover.Move(actor, from, to, itemType, amount)
}

func TestEquip_TransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	mover := &faultMover{AssetMover: f.vault, failItem: "storm_plate"}
	l := New(Config{CustodyAccount: sysCustody, TreasuryAccount: sysTreasury, DefaultAttribute: 1}, mover)
	if err := l.BindItemRegistry(testCatalog()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	id, err := l.MintIdentity("alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	f.vault.Mint("alice", "iron_plate", 1)
	f.vault.Mint("alice", "storm_plate", 1)

	if err := l.Equip("alice", id, registry.SlotArmor, "iron_plate", 1); err != nil {
		t.Fatalf("seed equip: %v", err)
	}

	// Displaced return succeeds (iron_plate moves fine), the incoming
	// transfer fails, and the compensation re-takes the displaced item.
	err = l.Equip("alice", id, registry.SlotArmor, "storm_plate", 1)
	wantCode(t, err, protocol.ErrTransferFailed)

	item, ok := l.GetEquippedItem(id, registry.SlotArmor)
	if !ok || item.ItemType != "iron_plate" {
		t.Fatalf("slot after failed replace = %+v ok=%v, want iron_plate restored", item, ok)
	}
	if got := f.vault.Balance("alice", "iron_plate"); got != 0 {
		t.Fatalf("iron_plate should be back in custody, caller holds %d", got)
	}
	if got := f.vault.Balance("alice", "storm_plate"); got != 1 {
		t.Fatalf("storm_plate should remain with caller, holds %d", got)
	}
	if err := l.CheckCustody(); err != nil {
		t.Fatalf("custody invariant after rollback: %v", err)
	}
}
