package ledger

import (
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

// Equip places amount units of itemType into slot for identity. If the slot
// is occupied, the occupant is auto-displaced back to the caller first: that
// is a full unequip transition, not an error, and it must complete before
// the new item's transfer is attempted. The new item's physical transfer is
// the last step of the whole operation, so a failed transfer never leaves
// ledger records disagreeing with actual custody.
func (l *Ledger) Equip(caller string, id IdentityID, slot registry.Slot, itemType string, amount uint64) error {
	ident, err := l.controlled(id, caller)
	if err != nil {
		return err
	}
	if l.classifier == nil {
		return opErr(protocol.ErrRegistryUnset, "item registry not bound")
	}
	if _, ok := registry.ParseSlot(string(slot)); !ok {
		return opErr(protocol.ErrBadRequest, "unknown slot %q", slot)
	}
	if amount == 0 {
		return opErr(protocol.ErrBadAmount, "amount must be >= 1")
	}
	if !l.classifier.Registered(itemType) {
		return opErr(protocol.ErrItemUnregistered, "item type %q not registered", itemType)
	}
	itemSlot, err := l.classifier.SlotOf(itemType)
	if err != nil {
		return opErr(protocol.ErrItemUnregistered, "classify %q: %v", itemType, err)
	}
	if itemSlot != slot {
		return opErr(protocol.ErrSlotMismatch, "item type %q belongs in slot %q, not %q", itemType, itemSlot, slot)
	}
	if l.mover.Balance(caller, itemType) < amount {
		return opErr(protocol.ErrNoBalance, "caller %q holds %d %s, need %d",
			caller, l.mover.Balance(caller, itemType), itemType, amount)
	}

	var evs []Event

	// Auto-displacement: bookkeeping cleared before the return transfer so a
	// re-entrant observer never sees custody attributed to a cleared slot.
	displaced, hadDisplaced := ident.Equipment[slot]
	if hadDisplaced {
		delete(ident.Equipment, slot)
		l.subCustody(id, displaced.ItemType, displaced.Amount)
		if err := l.mover.Move(l.cfg.CustodyAccount, l.cfg.CustodyAccount, caller, displaced.ItemType, displaced.Amount); err != nil {
			ident.Equipment[slot] = displaced
			l.addCustody(id, displaced.ItemType, displaced.Amount)
			return opErr(protocol.ErrTransferFailed, "return displaced %s: %v", displaced.ItemType, err)
		}
		evs = append(evs, Event{
			Op:       EventItemUnequipped,
			Identity: id,
			Caller:   caller,
			Slot:     slot,
			ItemType: displaced.ItemType,
			Amount:   displaced.Amount,
		})
	}

	// New occupant: record first, physical transfer last.
	ident.Equipment[slot] = EquippedItem{ItemType: itemType, Amount: amount}
	l.addCustody(id, itemType, amount)
	if err := l.mover.Move(l.cfg.CustodyAccount, caller, l.cfg.CustodyAccount, itemType, amount); err != nil {
		delete(ident.Equipment, slot)
		l.subCustody(id, itemType, amount)
		if hadDisplaced {
			// Undo the displaced return so the whole operation reads as a
			// no-op. If the compensation itself fails the vault has violated
			// its contract; surface that loudly.
			if cerr := l.mover.Move(l.cfg.CustodyAccount, caller, l.cfg.CustodyAccount, displaced.ItemType, displaced.Amount); cerr != nil {
				return opErr(protocol.ErrInternal, "custody compensation failed: %v (after transfer failure: %v)", cerr, err)
			}
			ident.Equipment[slot] = displaced
			l.addCustody(id, displaced.ItemType, displaced.Amount)
		}
		return opErr(protocol.ErrTransferFailed, "take %s: %v", itemType, err)
	}
	evs = append(evs, Event{
		Op:       EventItemEquipped,
		Identity: id,
		Caller:   caller,
		Slot:     slot,
		ItemType: itemType,
		Amount:   amount,
	})
	l.flush(evs)
	return nil
}

// Unequip clears slot for identity and returns the occupant to the caller.
func (l *Ledger) Unequip(caller string, id IdentityID, slot registry.Slot) error {
	ident, err := l.controlled(id, caller)
	if err != nil {
		return err
	}
	if _, ok := registry.ParseSlot(string(slot)); !ok {
		return opErr(protocol.ErrBadRequest, "unknown slot %q", slot)
	}
	item, ok := ident.Equipment[slot]
	if !ok {
		return opErr(protocol.ErrSlotEmpty, "slot %q is empty for identity %d", slot, id)
	}

	delete(ident.Equipment, slot)
	l.subCustody(id, item.ItemType, item.Amount)
	if err := l.mover.Move(l.cfg.CustodyAccount, l.cfg.CustodyAccount, caller, item.ItemType, item.Amount); err != nil {
		ident.Equipment[slot] = item
		l.addCustody(id, item.ItemType, item.Amount)
		return opErr(protocol.ErrTransferFailed, "return %s: %v", item.ItemType, err)
	}
	l.flush([]Event{{
		Op:       EventItemUnequipped,
		Identity: id,
		Caller:   caller,
		Slot:     slot,
		ItemType: item.ItemType,
		Amount:   item.Amount,
	}})
	return nil
}
