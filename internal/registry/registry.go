// Package registry loads the item catalog consumed by the custody ledger.
// Item types are classified into equipment slots; classification and item
// data are immutable once loaded.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Slot is an equipment category. The set is closed; every registered item
// type maps to exactly one slot.
type Slot string

const (
	SlotArmor  Slot = "armor"
	SlotWeapon Slot = "weapon"
	SlotRelic  Slot = "relic"
)

var orderedSlots = []Slot{SlotArmor, SlotWeapon, SlotRelic}

// Slots returns the closed slot enumeration in canonical order.
func Slots() []Slot {
	out := make([]Slot, len(orderedSlots))
	copy(out, orderedSlots)
	return out
}

// ParseSlot validates a wire-level slot name.
func ParseSlot(s string) (Slot, bool) {
	for _, slot := range orderedSlots {
		if string(slot) == s {
			return slot, true
		}
	}
	return "", false
}

type ItemDef struct {
	ID   string          `json:"id"`
	Slot string          `json:"slot"`
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Catalog is the loaded item registry. Registration is explicit: an item
// type exists iff it appears in Defs, independent of its slot value.
type Catalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]ItemDef
	Digest  string
}

const itemsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "slot"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "slot": {"enum": ["armor", "weapon", "relic"]},
      "name": {"type": "string"},
      "data": {}
    },
    "additionalProperties": false
  }
}`

var compiledItemsSchema = jsonschema.MustCompileString("items.schema.json", itemsSchema)

// Load reads and validates <configDir>/items.json.
func Load(configDir string) (*Catalog, error) {
	var c Catalog
	if err := loadItems(filepath.Join(configDir, "items.json"), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadItems(path string, out *Catalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	if err := compiledItemsSchema.Validate(doc); err != nil {
		return fmt.Errorf("items.json: schema: %w", err)
	}

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

// Registered reports whether itemType exists in the catalog.
func (c *Catalog) Registered(itemType string) bool {
	_, ok := c.Defs[itemType]
	return ok
}

// SlotOf returns the slot classification for itemType. Unregistered item
// types are an error, never a zero slot.
func (c *Catalog) SlotOf(itemType string) (Slot, error) {
	def, ok := c.Defs[itemType]
	if !ok {
		return "", fmt.Errorf("item type %q not registered", itemType)
	}
	slot, ok := ParseSlot(def.Slot)
	if !ok {
		return "", fmt.Errorf("item type %q has invalid slot %q", itemType, def.Slot)
	}
	return slot, nil
}

// DataOf returns the opaque item data for itemType.
func (c *Catalog) DataOf(itemType string) ([]byte, error) {
	def, ok := c.Defs[itemType]
	if !ok {
		return nil, fmt.Errorf("item type %q not registered", itemType)
	}
	return def.Data, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
