package ledger

import "relickeep.gg/internal/protocol"

// UpgradeAttribute debits the configured fee and, only on unambiguous debit
// success, increments the chosen counter by exactly one. The debit is an
// outward call that may re-enter the ledger; a re-entrant call is evaluated
// against its own caller and cannot piggyback on this call's ownership
// check.
func (l *Ledger) UpgradeAttribute(caller string, id IdentityID, attr Attribute) error {
	if _, err := l.controlled(id, caller); err != nil {
		return err
	}
	if _, ok := ParseAttribute(string(attr)); !ok {
		return opErr(protocol.ErrBadRequest, "unknown attribute %q", attr)
	}
	if l.paymaster == nil {
		return opErr(protocol.ErrPayTokenUnset, "payment token not configured")
	}
	if l.upgradeCost == 0 {
		return opErr(protocol.ErrPayCostUnset, "upgrade cost not configured")
	}

	if err := l.paymaster.Debit(l.cfg.CustodyAccount, caller, l.cfg.TreasuryAccount, l.upgradeCost); err != nil {
		return opErr(protocol.ErrTransferFailed, "debit %d %s: %v", l.upgradeCost, l.paymaster.ID(), err)
	}

	// Re-resolve after the external call: a re-entrant burn could have
	// removed the identity while the debit was in flight. Refund so the
	// failed operation moves no net funds.
	ident, ok := l.identities[id]
	if !ok || ident.Owner != caller {
		if rerr := l.paymaster.Debit(l.cfg.CustodyAccount, l.cfg.TreasuryAccount, caller, l.upgradeCost); rerr != nil {
			return opErr(protocol.ErrInternal, "refund failed: %v", rerr)
		}
		return opErr(protocol.ErrNotOwner, "identity %d changed hands during payment", id)
	}

	value := ident.Attributes.inc(attr)
	l.flush([]Event{{
		Op:        EventAttributeUpgraded,
		Identity:  id,
		Caller:    caller,
		Attribute: attr,
		Value:     value,
		Amount:    l.upgradeCost,
		Token:     l.paymaster.ID(),
	}})
	return nil
}
