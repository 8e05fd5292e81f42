package ledger

import (
	"fmt"

	"relickeep.gg/internal/registry"
)

// CheckCustody verifies custody conservation and slot occupancy for the
// whole ledger: every custody balance equals the sum of the identity's slot
// amounts for that item type, no occupied slot has a zero amount, and no
// custody row exists without a backing slot.
func (l *Ledger) CheckCustody() error {
	for id, ident := range l.identities {
		want := map[string]uint64{}
		for _, slot := range registry.Slots() {
			item, ok := ident.Equipment[slot]
			if !ok {
				continue
			}
			if item.Amount == 0 {
				return fmt.Errorf("identity %d slot %s occupied with zero amount", id, slot)
			}
			if item.ItemType == "" {
				return fmt.Errorf("identity %d slot %s occupied with empty item type", id, slot)
			}
			want[item.ItemType] += item.Amount
		}
		got := l.custody[id]
		for it, amt := range want {
			if got[it] != amt {
				return fmt.Errorf("identity %d custody %s = %d, slots sum to %d", id, it, got[it], amt)
			}
		}
		for it, amt := range got {
			if want[it] != amt {
				return fmt.Errorf("identity %d custody %s = %d with no matching slots", id, it, amt)
			}
		}
	}
	for id := range l.custody {
		if _, ok := l.identities[id]; !ok {
			return fmt.Errorf("custody rows for unknown identity %d", id)
		}
	}
	return nil
}
