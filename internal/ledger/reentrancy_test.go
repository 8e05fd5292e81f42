package ledger

import (
	"testing"

	"relickeep.gg/internal/assets"
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

// reentrantPaymaster wraps a real token and, on the first debit, calls back
// into the ledger as its own account before letting the payment through.
type reentrantPaymaster struct {
	*assets.Token
	ledger  *Ledger
	reenter func(l *Ledger)
	fired   bool
}

func (p *reentrantPaymaster) Debit(actor, from, to string, amount uint64) error {
	if !p.fired {
		p.fired = true
		p.reenter(p.ledger)
	}
	return p.Token.Debit(actor, from, to, amount)
}

func TestUpgrade_ReentrantCallerCannotPiggyback(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")

	var reentryErr error
	pm := &reentrantPaymaster{
		Token:  f.token,
		ledger: f.ledger,
		reenter: func(l *Ledger) {
			// The token contract tries to upgrade alice's identity under its
			// own name while her payment is in flight.
			reentryErr = l.UpgradeAttribute("evil-token", id, AttrLuck)
		},
	}
	f.ledger.SetPaymentToken(pm)
	f.ledger.SetUpgradeCost(10)
	f.token.Mint("alice", 10)

	if err := f.ledger.UpgradeAttribute("alice", id, AttrStrength); err != nil {
		t.Fatalf("outer upgrade: %v", err)
	}
	wantCode(t, reentryErr, protocol.ErrNotOwner)

	attrs, _ := f.ledger.GetAttributes(id)
	if attrs.Strength != 2 || attrs.Luck != 1 {
		t.Fatalf("attributes = %+v, want strength 2 and luck untouched", attrs)
	}
}

func TestUpgrade_ReentrantBurnRefundsPayment(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, "alice")

	pm := &reentrantPaymaster{
		Token:  f.token,
		ledger: f.ledger,
		reenter: func(l *Ledger) {
			// Alice's own re-entrant burn removes the identity mid-payment.
			if err := l.BurnIdentity("alice", id); err != nil {
				t.Fatalf("re-entrant burn: %v", err)
			}
		},
	}
	f.ledger.SetPaymentToken(pm)
	f.ledger.SetUpgradeCost(10)
	f.token.Mint("alice", 10)

	err := f.ledger.UpgradeAttribute("alice", id, AttrStrength)
	wantCode(t, err, protocol.ErrNotOwner)

	// The debit landed and was refunded; no net movement.
	if got := f.token.Balance("alice"); got != 10 {
		t.Fatalf("alice balance = %d, want full refund of 10", got)
	}
	if got := f.token.Balance(sysTreasury); got != 0 {
		t.Fatalf("treasury kept %d from a failed upgrade", got)
	}
}

// reentrantMover re-enters the ledger from inside an equip transfer.
type reentrantMover struct {
	*assets.Vault
	ledger  *Ledger
	reenter func(l *Ledger)
	fired   bool
}

func (m *reentrantMover) Move(actor, from, to, itemType string, amount uint64) error {
	if !m.fired && m.reenter != nil {
		m.fired = true
		m.reenter(m.ledger)
	}
	return m.Vault.Move(actor, from, to, itemType, amount)
}

func TestEquip_ReentrantObserverSeesConsistentState(t *testing.T) {
	vault := assets.NewVault(sysCustody)
	mover := &reentrantMover{Vault: vault}
	l := New(Config{CustodyAccount: sysCustody, TreasuryAccount: sysTreasury, DefaultAttribute: 1}, mover)
	mover.ledger = l
	if err := l.BindItemRegistry(testCatalog()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	id, err := l.MintIdentity("alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	vault.Mint("alice", "iron_plate", 1)
	vault.Mint("alice", "storm_plate", 1)
	if err := l.Equip("alice", id, registry.SlotArmor, "iron_plate", 1); err != nil {
		t.Fatalf("seed equip: %v", err)
	}

	// During the displaced item's return transfer the slot must already read
	// cleared, and its custody record must be gone.
	var occupiedMidFlight bool
	var custodyMidFlight uint64
	mover.fired = false
	mover.reenter = func(l *Ledger) {
		occupiedMidFlight = l.IsSlotEquipped(id, registry.SlotArmor)
		custodyMidFlight = l.CustodyBalance(id, "iron_plate")
	}
	if err := l.Equip("alice", id, registry.SlotArmor, "storm_plate", 1); err != nil {
		t.Fatalf("replacing equip: %v", err)
	}
	if occupiedMidFlight {
		t.Fatalf("slot read occupied while the displaced return was in flight")
	}
	if custodyMidFlight != 0 {
		t.Fatalf("custody record read %d mid-flight, want 0", custodyMidFlight)
	}
	if err := l.CheckCustody(); err != nil {
		t.Fatalf("custody invariant: %v", err)
	}
}

func TestEquip_ReentrantUnequipCannotDoubleSpend(t *testing.T) {
	vault := assets.NewVault(sysCustody)
	mover := &reentrantMover{Vault: vault}
	l := New(Config{CustodyAccount: sysCustody, TreasuryAccount: sysTreasury, DefaultAttribute: 1}, mover)
	mover.ledger = l
	if err := l.BindItemRegistry(testCatalog()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	id, err := l.MintIdentity("alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	vault.Mint("alice", "iron_plate", 1)
	if err := l.Equip("alice", id, registry.SlotArmor, "iron_plate", 1); err != nil {
		t.Fatalf("seed equip: %v", err)
	}

	// A second unequip attempted from inside the first one's transfer must
	// see the slot already cleared and fail, not pay out twice.
	var innerErr error
	mover.fired = false
	mover.reenter = func(l *Ledger) {
		innerErr = l.Unequip("alice", id, registry.SlotArmor)
	}
	if err := l.Unequip("alice", id, registry.SlotArmor); err != nil {
		t.Fatalf("outer unequip: %v", err)
	}
	wantCode(t, innerErr, protocol.ErrSlotEmpty)
	if got := vault.Balance("alice", "iron_plate"); got != 1 {
		t.Fatalf("alice holds %d iron_plate, want exactly 1", got)
	}
}
