package ledger

import (
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

// GetEquippedItem returns the occupant of slot for identity, if any.
func (l *Ledger) GetEquippedItem(id IdentityID, slot registry.Slot) (EquippedItem, bool) {
	ident, ok := l.identities[id]
	if !ok {
		return EquippedItem{}, false
	}
	item, ok := ident.Equipment[slot]
	return item, ok
}

// IsSlotEquipped reports whether slot is occupied for identity.
func (l *Ledger) IsSlotEquipped(id IdentityID, slot registry.Slot) bool {
	_, ok := l.GetEquippedItem(id, slot)
	return ok
}

// CustodyBalance returns the total amount of itemType held in system custody
// on behalf of identity.
func (l *Ledger) CustodyBalance(id IdentityID, itemType string) uint64 {
	return l.custody[id][itemType]
}

// GetAttributes returns the attribute set for identity.
func (l *Ledger) GetAttributes(id IdentityID) (AttributeSet, error) {
	ident, ok := l.identities[id]
	if !ok {
		return AttributeSet{}, opErr(protocol.ErrIdentityNotFound, "identity %d not found", id)
	}
	return ident.Attributes, nil
}

// OwnerOf returns the controlling account for identity.
func (l *Ledger) OwnerOf(id IdentityID) (string, error) {
	ident, ok := l.identities[id]
	if !ok {
		return "", opErr(protocol.ErrIdentityNotFound, "identity %d not found", id)
	}
	return ident.Owner, nil
}

// IdentityCount returns the number of live identities.
func (l *Ledger) IdentityCount() int { return len(l.identities) }

// PaymentConfigured reports the effective upgrade configuration.
func (l *Ledger) PaymentConfigured() (token string, cost uint64) {
	return l.paymasterID, l.upgradeCost
}
