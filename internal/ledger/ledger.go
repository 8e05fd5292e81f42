// Package ledger implements the custody ledger and identity attribute store:
// which item occupies which equipment slot for which identity, how custody
// moves on equip/unequip, and how paid upgrades mutate attributes.
//
// The ledger is single-threaded by contract: all state must be accessed only
// from the goroutine running the Service loop. Outward calls (asset mover,
// paymaster) are synchronous and may re-enter ledger operations on the same
// goroutine before returning; every public operation re-validates ownership
// and preconditions from scratch on entry, and sequences bookkeeping so the
// recorded custody never disagrees with actual asset location at any point
// an outward call can observe.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

// AssetMover moves pooled item balances between accounts. Implementations
// enforce their own capability checks; the ledger acts as the system
// account. Mint and Accounts exist for grants, replay, and snapshots: the
// ledger is the durable record of the backing balances and must be able to
// re-establish them.
type AssetMover interface {
	Move(actor, from, to, itemType string, amount uint64) error
	Balance(account, itemType string) uint64
	Mint(account, itemType string, amount uint64)
	Accounts() map[string]map[string]uint64
}

// Paymaster debits the upgrade fee. Any returned error means no funds moved;
// implementations must not signal failure by a silent no-op.
type Paymaster interface {
	ID() string
	Debit(actor, from, to string, amount uint64) error
	Mint(account string, amount uint64)
}

// EventSink receives committed ledger events. Called from the ledger
// goroutine; implementations must not call back into the ledger.
type EventSink interface {
	WriteEvent(Event) error
}

type Config struct {
	// CustodyAccount holds equipped items and is the principal the ledger
	// acts as when moving assets.
	CustodyAccount string
	// TreasuryAccount receives upgrade fees.
	TreasuryAccount string
	// DefaultAttribute is the starting value of every counter at mint.
	DefaultAttribute uint64
}

type Ledger struct {
	cfg   Config
	mover AssetMover

	// Bound once; a second bind is an error.
	classifier *registry.Catalog

	// Upgrade configuration, idempotently settable.
	paymaster   Paymaster
	paymasterID string
	upgradeCost uint64

	identities map[IdentityID]*Identity
	custody    map[IdentityID]map[string]uint64

	nextIdentity IdentityID
	seq          uint64
	sink         EventSink
}

func New(cfg Config, mover AssetMover) *Ledger {
	if cfg.CustodyAccount == "" {
		cfg.CustodyAccount = "sys:custody"
	}
	if cfg.TreasuryAccount == "" {
		cfg.TreasuryAccount = "sys:treasury"
	}
	if cfg.DefaultAttribute == 0 {
		cfg.DefaultAttribute = 1
	}
	return &Ledger{
		cfg:          cfg,
		mover:        mover,
		identities:   map[IdentityID]*Identity{},
		custody:      map[IdentityID]map[string]uint64{},
		nextIdentity: 1,
	}
}

func (l *Ledger) SetEventSink(sink EventSink) { l.sink = sink }

// BindItemRegistry binds the item classifier. One-time: rebinding is
// rejected even with the same catalog.
func (l *Ledger) BindItemRegistry(c *registry.Catalog) error {
	if l.classifier != nil {
		return opErr(protocol.ErrRegistryBound, "item registry already bound")
	}
	if c == nil {
		return opErr(protocol.ErrBadRequest, "nil item registry")
	}
	l.classifier = c
	return nil
}

// SetPaymentToken configures the upgrade fee token. Idempotently updatable.
func (l *Ledger) SetPaymentToken(p Paymaster) {
	l.paymaster = p
	l.paymasterID = ""
	if p != nil {
		l.paymasterID = p.ID()
	}
	l.flush([]Event{{Op: EventPaymentTokenSet, Token: l.paymasterID}})
}

// SetUpgradeCost configures the per-upgrade fee. Idempotently updatable.
func (l *Ledger) SetUpgradeCost(cost uint64) {
	l.upgradeCost = cost
	l.flush([]Event{{Op: EventUpgradeCostSet, Amount: cost}})
}

// MintIdentity creates a new identity owned by owner. Pricing and payment
// for mint live outside the ledger; this is pure bookkeeping.
func (l *Ledger) MintIdentity(owner string) (IdentityID, error) {
	if owner == "" {
		return 0, opErr(protocol.ErrBadRequest, "empty owner")
	}
	id := l.nextIdentity
	l.nextIdentity++
	l.identities[id] = &Identity{
		ID:         id,
		Owner:      owner,
		Attributes: newAttributeSet(l.cfg.DefaultAttribute),
		Equipment:  map[registry.Slot]EquippedItem{},
	}
	l.flush([]Event{{Op: EventIdentityMinted, Identity: id, Owner: owner}})
	return id, nil
}

// BurnIdentity destroys an identity. Every occupied slot is unequipped first
// so custody drains back to the owner; each return is a complete, evented
// transition, and a failed return aborts the burn with the remaining slots
// untouched.
func (l *Ledger) BurnIdentity(caller string, id IdentityID) error {
	ident, err := l.controlled(id, caller)
	if err != nil {
		return err
	}
	for _, slot := range registry.Slots() {
		if _, ok := ident.Equipment[slot]; !ok {
			continue
		}
		if err := l.Unequip(caller, id, slot); err != nil {
			return err
		}
	}
	delete(l.identities, id)
	delete(l.custody, id)
	l.flush([]Event{{Op: EventIdentityBurned, Identity: id, Caller: caller, Owner: ident.Owner}})
	return nil
}

// ownsIdentity is the ownership oracle: a fresh lookup on every entry, never
// cached across calls, so re-entrant invocations are judged against their
// own caller.
func (l *Ledger) ownsIdentity(id IdentityID, caller string) bool {
	ident, ok := l.identities[id]
	return ok && ident.Owner == caller
}

func (l *Ledger) controlled(id IdentityID, caller string) (*Identity, error) {
	ident, ok := l.identities[id]
	if !ok {
		return nil, opErr(protocol.ErrIdentityNotFound, "identity %d not found", id)
	}
	if !l.ownsIdentity(id, caller) {
		return nil, opErr(protocol.ErrNotOwner, "caller %q does not control identity %d", caller, id)
	}
	return ident, nil
}

func (l *Ledger) addCustody(id IdentityID, itemType string, amount uint64) {
	m := l.custody[id]
	if m == nil {
		m = map[string]uint64{}
		l.custody[id] = m
	}
	m[itemType] += amount
}

func (l *Ledger) subCustody(id IdentityID, itemType string, amount uint64) {
	m := l.custody[id]
	m[itemType] -= amount
	if m[itemType] == 0 {
		delete(m, itemType)
	}
	if len(m) == 0 {
		delete(l.custody, id)
	}
}

// flush commits a batch of events from one successful operation, assigning
// sequence numbers at commit time.
func (l *Ledger) flush(evs []Event) {
	for i := range evs {
		l.seq++
		evs[i].Seq = l.seq
		if l.sink != nil {
			_ = l.sink.WriteEvent(evs[i])
		}
	}
}

// Seq returns the last committed event sequence number.
func (l *Ledger) Seq() uint64 { return l.seq }

// StateDigest is a sha256 over the canonical JSON export of all ledger
// state, used by snapshots and replay verification.
func (l *Ledger) StateDigest() string {
	type slotRow struct {
		Slot     registry.Slot `json:"slot"`
		ItemType string        `json:"item_type"`
		Amount   uint64        `json:"amount"`
	}
	type identRow struct {
		ID         IdentityID   `json:"id"`
		Owner      string       `json:"owner"`
		Attributes AttributeSet `json:"attributes"`
		Slots      []slotRow    `json:"slots"`
	}
	rows := make([]identRow, 0, len(l.identities))
	for _, ident := range l.identities {
		r := identRow{ID: ident.ID, Owner: ident.Owner, Attributes: ident.Attributes}
		for _, slot := range registry.Slots() {
			if item, ok := ident.Equipment[slot]; ok {
				r.Slots = append(r.Slots, slotRow{Slot: slot, ItemType: item.ItemType, Amount: item.Amount})
			}
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	doc := struct {
		Seq        uint64     `json:"seq"`
		Next       IdentityID `json:"next_identity"`
		Identities []identRow `json:"identities"`
	}{Seq: l.seq, Next: l.nextIdentity, Identities: rows}

	b, _ := json.Marshal(doc)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
