package ledger

import (
	"relickeep.gg/internal/registry"
)

// IdentityID is the non-transferable player handle. IDs are assigned once at
// mint and never reused.
type IdentityID uint64

// Attribute names one of the four identity counters.
type Attribute string

const (
	AttrStrength     Attribute = "strength"
	AttrDexterity    Attribute = "dexterity"
	AttrIntelligence Attribute = "intelligence"
	AttrLuck         Attribute = "luck"
)

var orderedAttributes = []Attribute{AttrStrength, AttrDexterity, AttrIntelligence, AttrLuck}

// Attributes returns the closed attribute enumeration in canonical order.
func Attributes() []Attribute {
	out := make([]Attribute, len(orderedAttributes))
	copy(out, orderedAttributes)
	return out
}

func ParseAttribute(s string) (Attribute, bool) {
	for _, a := range orderedAttributes {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// AttributeSet holds the four counters. Counters only ever grow, one at a
// time, through UpgradeAttribute.
type AttributeSet struct {
	Strength     uint64 `json:"strength"`
	Dexterity    uint64 `json:"dexterity"`
	Intelligence uint64 `json:"intelligence"`
	Luck         uint64 `json:"luck"`
}

func newAttributeSet(base uint64) AttributeSet {
	return AttributeSet{Strength: base, Dexterity: base, Intelligence: base, Luck: base}
}

func (a AttributeSet) Get(attr Attribute) uint64 {
	switch attr {
	case AttrStrength:
		return a.Strength
	case AttrDexterity:
		return a.Dexterity
	case AttrIntelligence:
		return a.Intelligence
	case AttrLuck:
		return a.Luck
	}
	return 0
}

func (a *AttributeSet) inc(attr Attribute) uint64 {
	switch attr {
	case AttrStrength:
		a.Strength++
		return a.Strength
	case AttrDexterity:
		a.Dexterity++
		return a.Dexterity
	case AttrIntelligence:
		a.Intelligence++
		return a.Intelligence
	case AttrLuck:
		a.Luck++
		return a.Luck
	}
	return 0
}

// Map returns the counters keyed by attribute name, for wire responses.
func (a AttributeSet) Map() map[string]uint64 {
	return map[string]uint64{
		string(AttrStrength):     a.Strength,
		string(AttrDexterity):    a.Dexterity,
		string(AttrIntelligence): a.Intelligence,
		string(AttrLuck):         a.Luck,
	}
}

// EquippedItem is a slot occupant. Amount is always >= 1 while a slot is
// occupied; an empty slot has no record at all.
type EquippedItem struct {
	ItemType string `json:"item_type"`
	Amount   uint64 `json:"amount"`
}

// Identity is one player handle with its mutable attribute set and equipped
// slots.
type Identity struct {
	ID         IdentityID
	Owner      string
	Attributes AttributeSet
	Equipment  map[registry.Slot]EquippedItem
}
