package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Account         string            `json:"account"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Account         string         `json:"account"`
	Slots           []string       `json:"slots"`
	Catalog         CatalogDigests `json:"catalog"`
}

type CatalogDigests struct {
	Items  DigestRef `json:"items"`
	Tuning string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// OP (client -> server): one ledger operation or query.
type OpMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	Identity  uint64 `json:"identity,omitempty"`
	Slot      string `json:"slot,omitempty"`
	ItemType  string `json:"item_type,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Attribute string `json:"attribute,omitempty"`
}

// Op names carried in OpMsg.Op.
const (
	OpEquip          = "EQUIP"
	OpUnequip        = "UNEQUIP"
	OpUpgrade        = "UPGRADE_ATTRIBUTE"
	OpGetEquipped    = "GET_EQUIPPED"
	OpIsSlotEquipped = "IS_SLOT_EQUIPPED"
	OpCustodyBalance = "CUSTODY_BALANCE"
	OpGetAttributes  = "GET_ATTRIBUTES"
)

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	Equipped   *EquippedRef      `json:"equipped,omitempty"`
	Occupied   *bool             `json:"occupied,omitempty"`
	Balance    *uint64           `json:"balance,omitempty"`
	Attributes map[string]uint64 `json:"attributes,omitempty"`
}

type EquippedRef struct {
	ItemType string `json:"item_type"`
	Amount   uint64 `json:"amount"`
}

// EVENT (server -> client): pushed ledger observation, replay-complete.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Identity  uint64 `json:"identity"`
	Caller    string `json:"caller,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Slot      string `json:"slot,omitempty"`
	ItemType  string `json:"item_type,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Value     uint64 `json:"value,omitempty"`
	Token     string `json:"token,omitempty"`
}
