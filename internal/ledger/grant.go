package ledger

import "relickeep.gg/internal/protocol"

// GrantItem mints amount units of itemType into account's free vault
// balance. Grants are the only way items enter the system, so they are
// evented and journaled like every other custody change; replay re-mints
// them, which keeps vault balances reconstructible alongside ledger records.
func (l *Ledger) GrantItem(account, itemType string, amount uint64) error {
	if account == "" {
		return opErr(protocol.ErrBadRequest, "empty account")
	}
	if l.classifier == nil {
		return opErr(protocol.ErrRegistryUnset, "item registry not bound")
	}
	if amount == 0 {
		return opErr(protocol.ErrBadAmount, "amount must be >= 1")
	}
	if !l.classifier.Registered(itemType) {
		return opErr(protocol.ErrItemUnregistered, "item type %q not registered", itemType)
	}
	l.mover.Mint(account, itemType, amount)
	l.flush([]Event{{
		Op:       EventItemGranted,
		Owner:    account,
		ItemType: itemType,
		Amount:   amount,
	}})
	return nil
}
