package ledger

import (
	"fmt"
	"sort"

	"relickeep.gg/internal/persistence/snapshot"
	"relickeep.gg/internal/registry"
)

// ExportSnapshot captures all ledger state for persistence.
func (l *Ledger) ExportSnapshot(keepID string) snapshot.StateV1 {
	token, cost := l.PaymentConfigured()
	snap := snapshot.StateV1{
		Header:       snapshot.Header{Version: 1, KeepID: keepID, Seq: l.seq},
		PaymentToken: token,
		UpgradeCost:  cost,
		NextIdentity: uint64(l.nextIdentity),
		Digest:       l.StateDigest(),
	}
	for _, ident := range l.identities {
		row := snapshot.IdentityV1{
			ID:         uint64(ident.ID),
			Owner:      ident.Owner,
			Attributes: ident.Attributes.Map(),
		}
		for _, slot := range registry.Slots() {
			if item, ok := ident.Equipment[slot]; ok {
				row.Slots = append(row.Slots, snapshot.SlotV1{
					Slot:     string(slot),
					ItemType: item.ItemType,
					Amount:   item.Amount,
				})
			}
		}
		snap.Identities = append(snap.Identities, row)
	}
	sort.Slice(snap.Identities, func(i, j int) bool { return snap.Identities[i].ID < snap.Identities[j].ID })

	for account, types := range l.mover.Accounts() {
		for itemType, amount := range types {
			snap.Vault = append(snap.Vault, snapshot.VaultBalanceV1{
				Account:  account,
				ItemType: itemType,
				Amount:   amount,
			})
		}
	}
	sort.Slice(snap.Vault, func(i, j int) bool {
		if snap.Vault[i].Account != snap.Vault[j].Account {
			return snap.Vault[i].Account < snap.Vault[j].Account
		}
		return snap.Vault[i].ItemType < snap.Vault[j].ItemType
	})
	return snap
}

// ImportSnapshot restores ledger state from a snapshot. Custody balances are
// rebuilt from slot records and verified against the embedded digest, and
// the backing vault is re-credited so post-import operations can physically
// move what the records say is held. Import assumes an empty vault.
func (l *Ledger) ImportSnapshot(snap snapshot.StateV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	l.identities = map[IdentityID]*Identity{}
	l.custody = map[IdentityID]map[string]uint64{}
	l.seq = snap.Header.Seq
	l.paymasterID = snap.PaymentToken
	l.upgradeCost = snap.UpgradeCost
	l.nextIdentity = IdentityID(snap.NextIdentity)
	if l.nextIdentity == 0 {
		l.nextIdentity = 1
	}

	for _, row := range snap.Identities {
		id := IdentityID(row.ID)
		ident := &Identity{
			ID:        id,
			Owner:     row.Owner,
			Equipment: map[registry.Slot]EquippedItem{},
		}
		ident.Attributes = AttributeSet{
			Strength:     row.Attributes[string(AttrStrength)],
			Dexterity:    row.Attributes[string(AttrDexterity)],
			Intelligence: row.Attributes[string(AttrIntelligence)],
			Luck:         row.Attributes[string(AttrLuck)],
		}
		for _, s := range row.Slots {
			slot, ok := registry.ParseSlot(s.Slot)
			if !ok {
				return fmt.Errorf("identity %d: unknown slot %q", row.ID, s.Slot)
			}
			if s.Amount == 0 {
				return fmt.Errorf("identity %d slot %s: zero amount", row.ID, s.Slot)
			}
			ident.Equipment[slot] = EquippedItem{ItemType: s.ItemType, Amount: s.Amount}
			l.addCustody(id, s.ItemType, s.Amount)
		}
		l.identities[id] = ident
		if id >= l.nextIdentity {
			l.nextIdentity = id + 1
		}
	}

	if len(snap.Vault) > 0 {
		for _, row := range snap.Vault {
			l.mover.Mint(row.Account, row.ItemType, row.Amount)
		}
	} else {
		// Older images carry no vault section; the custody pool is still
		// fully determined by the records, so re-credit at least that.
		for _, m := range l.custody {
			for itemType, amount := range m {
				l.mover.Mint(l.cfg.CustodyAccount, itemType, amount)
			}
		}
	}

	if err := l.CheckCustody(); err != nil {
		return fmt.Errorf("snapshot custody check: %w", err)
	}
	if snap.Digest != "" && snap.Digest != l.StateDigest() {
		return fmt.Errorf("snapshot digest mismatch: have %s, want %s", l.StateDigest(), snap.Digest)
	}
	return nil
}
