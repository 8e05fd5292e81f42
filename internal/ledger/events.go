package ledger

import "relickeep.gg/internal/registry"

// Event ops.
const (
	EventItemGranted       = "ITEM_GRANTED"
	EventItemEquipped      = "ITEM_EQUIPPED"
	EventItemUnequipped    = "ITEM_UNEQUIPPED"
	EventAttributeUpgraded = "ATTRIBUTE_UPGRADED"
	EventIdentityMinted    = "IDENTITY_MINTED"
	EventIdentityBurned    = "IDENTITY_BURNED"
	EventPaymentTokenSet   = "PAYMENT_TOKEN_SET"
	EventUpgradeCostSet    = "UPGRADE_COST_SET"
)

// Event is one committed ledger observation. Events carry enough identifying
// data to reconstruct full ledger state from a log replay.
type Event struct {
	Seq      uint64     `json:"seq"`
	Op       string     `json:"op"`
	Identity IdentityID `json:"identity,omitempty"`
	Caller   string     `json:"caller,omitempty"`
	Owner    string     `json:"owner,omitempty"`

	Slot     registry.Slot `json:"slot,omitempty"`
	ItemType string        `json:"item_type,omitempty"`
	Amount   uint64        `json:"amount,omitempty"`

	Attribute Attribute `json:"attribute,omitempty"`
	Value     uint64    `json:"value,omitempty"`
	Token     string    `json:"token,omitempty"`
}
