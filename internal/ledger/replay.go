package ledger

import (
	"fmt"

	"relickeep.gg/internal/registry"
)

// ApplyEvent replays one committed event onto the ledger without
// authorization checks, mutating records and mirroring the physical vault
// movement the original operation performed, with the ledger acting as the
// custody account. Used by offline replay and resume catch-up to rebuild
// state from a journal; events must be applied in sequence order, over a
// vault whose balances match the event stream's starting point (empty for a
// full journal, snapshot-restored for a tail).
func (l *Ledger) ApplyEvent(ev Event) error {
	if ev.Seq != 0 && ev.Seq <= l.seq {
		return fmt.Errorf("event seq %d out of order (at %d)", ev.Seq, l.seq)
	}
	switch ev.Op {
	case EventIdentityMinted:
		if _, ok := l.identities[ev.Identity]; ok {
			return fmt.Errorf("mint of existing identity %d", ev.Identity)
		}
		l.identities[ev.Identity] = &Identity{
			ID:         ev.Identity,
			Owner:      ev.Owner,
			Attributes: newAttributeSet(l.cfg.DefaultAttribute),
			Equipment:  map[registry.Slot]EquippedItem{},
		}
		if ev.Identity >= l.nextIdentity {
			l.nextIdentity = ev.Identity + 1
		}

	case EventIdentityBurned:
		delete(l.identities, ev.Identity)
		delete(l.custody, ev.Identity)

	case EventItemGranted:
		if ev.Owner == "" || ev.ItemType == "" || ev.Amount == 0 {
			return fmt.Errorf("malformed grant event at seq %d", ev.Seq)
		}
		l.mover.Mint(ev.Owner, ev.ItemType, ev.Amount)

	case EventItemEquipped:
		ident, ok := l.identities[ev.Identity]
		if !ok {
			return fmt.Errorf("equip for unknown identity %d", ev.Identity)
		}
		if _, occupied := ident.Equipment[ev.Slot]; occupied {
			return fmt.Errorf("equip into occupied slot %s of identity %d", ev.Slot, ev.Identity)
		}
		if err := l.mover.Move(l.cfg.CustodyAccount, ev.Caller, l.cfg.CustodyAccount, ev.ItemType, ev.Amount); err != nil {
			return fmt.Errorf("replay equip transfer at seq %d: %w", ev.Seq, err)
		}
		ident.Equipment[ev.Slot] = EquippedItem{ItemType: ev.ItemType, Amount: ev.Amount}
		l.addCustody(ev.Identity, ev.ItemType, ev.Amount)

	case EventItemUnequipped:
		ident, ok := l.identities[ev.Identity]
		if !ok {
			return fmt.Errorf("unequip for unknown identity %d", ev.Identity)
		}
		item, occupied := ident.Equipment[ev.Slot]
		if !occupied || item.ItemType != ev.ItemType || item.Amount != ev.Amount {
			return fmt.Errorf("unequip mismatch for identity %d slot %s", ev.Identity, ev.Slot)
		}
		if err := l.mover.Move(l.cfg.CustodyAccount, l.cfg.CustodyAccount, ev.Caller, ev.ItemType, ev.Amount); err != nil {
			return fmt.Errorf("replay unequip transfer at seq %d: %w", ev.Seq, err)
		}
		delete(ident.Equipment, ev.Slot)
		l.subCustody(ev.Identity, ev.ItemType, ev.Amount)

	case EventAttributeUpgraded:
		ident, ok := l.identities[ev.Identity]
		if !ok {
			return fmt.Errorf("upgrade for unknown identity %d", ev.Identity)
		}
		got := ident.Attributes.inc(ev.Attribute)
		if ev.Value != 0 && got != ev.Value {
			return fmt.Errorf("upgrade of identity %d %s: replayed value %d, event says %d",
				ev.Identity, ev.Attribute, got, ev.Value)
		}

	case EventPaymentTokenSet:
		l.paymasterID = ev.Token

	case EventUpgradeCostSet:
		l.upgradeCost = ev.Amount

	default:
		return fmt.Errorf("unknown event op %q", ev.Op)
	}
	if ev.Seq != 0 {
		l.seq = ev.Seq
	}
	return nil
}
