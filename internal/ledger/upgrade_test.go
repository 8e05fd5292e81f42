package ledger

import (
	"testing"

	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

func TestUpgradeAttribute(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	f.ledger.SetPaymentToken(f.token)
	f.ledger.SetUpgradeCost(10)
	f.token.Mint("alice", 25)

	if err := f.ledger.UpgradeAttribute("alice", id, AttrStrength); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := f.ledger.UpgradeAttribute("alice", id, AttrStrength); err != nil {
		t.Fatalf("second upgrade: %v", err)
	}
	attrs, _ := f.ledger.GetAttributes(id)
	if attrs.Strength != 3 {
		t.Fatalf("strength = %d, want 3", attrs.Strength)
	}
	if attrs.Luck != 1 {
		t.Fatalf("luck changed: %d", attrs.Luck)
	}
	if got := f.token.Balance("alice"); got != 5 {
		t.Fatalf("alice token balance = %d, want 5", got)
	}
	if got := f.token.Balance(sysTreasury); got != 20 {
		t.Fatalf("treasury balance = %d, want 20", got)
	}

	// Exactly the cost is debited; attribute counters only ever grow.
	ev := f.events.evs[len(f.events.evs)-1]
	if ev.Op != EventAttributeUpgraded || ev.Value != 3 || ev.Amount != 10 || ev.Token != "GOLD" {
		t.Fatalf("upgrade event = %+v", ev)
	}
}

func TestUpgradeAttribute_ConfigErrors(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")

	err := f.ledger.UpgradeAttribute("alice", id, AttrLuck)
	wantCode(t, err, protocol.ErrPayTokenUnset)

	f.ledger.SetPaymentToken(f.token)
	err = f.ledger.UpgradeAttribute("alice", id, AttrLuck)
	wantCode(t, err, protocol.ErrPayCostUnset)

	f.ledger.SetUpgradeCost(10)
	err = f.ledger.UpgradeAttribute("alice", id, "charisma")
	wantCode(t, err, protocol.ErrBadRequest)

	err = f.ledger.UpgradeAttribute("mallory", id, AttrLuck)
	wantCode(t, err, protocol.ErrNotOwner)

	attrs, _ := f.ledger.GetAttributes(id)
	if attrs != (AttributeSet{Strength: 1, Dexterity: 1, Intelligence: 1, Luck: 1}) {
		t.Fatalf("attributes changed by failed upgrades: %+v", attrs)
	}
}

func TestUpgradeAttribute_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")
	f.ledger.SetPaymentToken(f.token)
	f.ledger.SetUpgradeCost(10)
	f.token.Mint("alice", 9)

	err := f.ledger.UpgradeAttribute("alice", id, AttrDexterity)
	wantCode(t, err, protocol.ErrTransferFailed)

	attrs, _ := f.ledger.GetAttributes(id)
	if attrs.Dexterity != 1 {
		t.Fatalf("dexterity = %d after failed debit, want 1", attrs.Dexterity)
	}
	if got := f.token.Balance("alice"); got != 9 {
		t.Fatalf("failed debit moved funds: balance %d", got)
	}
}

// Two identities sharing an item type pool against one custody account. The
// per-identity records keep the pool attributable even though the vault only
// sees one custodial balance.
func TestCustody_PooledAcrossIdentities(t *testing.T) {
	f := newFixture(t)
	a := f.mint(t, "alice")
	b := f.mint(t, "bob")
	f.vault.Mint("alice", "moon_charm", 5)
	f.vault.Mint("bob", "moon_charm", 7)

	if err := f.ledger.Equip("alice", a, registry.SlotRelic, "moon_charm", 5); err != nil {
		t.Fatalf("alice equip: %v", err)
	}
	if err := f.ledger.Equip("bob", b, registry.SlotRelic, "moon_charm", 7); err != nil {
		t.Fatalf("bob equip: %v", err)
	}

	if got := f.vault.Balance(sysCustody, "moon_charm"); got != 12 {
		t.Fatalf("pooled custody = %d, want 12", got)
	}
	if got := f.ledger.CustodyBalance(a, "moon_charm"); got != 5 {
		t.Fatalf("alice record = %d, want 5", got)
	}
	if got := f.ledger.CustodyBalance(b, "moon_charm"); got != 7 {
		t.Fatalf("bob record = %d, want 7", got)
	}
	f.checkInvariant(t)

	if err := f.ledger.Unequip("bob", b, registry.SlotRelic); err != nil {
		t.Fatalf("bob unequip: %v", err)
	}
	if got := f.vault.Balance("bob", "moon_charm"); got != 7 {
		t.Fatalf("bob got back %d, want 7", got)
	}
	if got := f.vault.Balance(sysCustody, "moon_charm"); got != 5 {
		t.Fatalf("pooled custody after bob leaves = %d, want 5", got)
	}
	f.checkInvariant(t)
}
