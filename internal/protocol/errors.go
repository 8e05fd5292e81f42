package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Authorization.
	ErrNotOwner = "E_NOT_OWNER"

	// Configuration.
	ErrPayTokenUnset = "E_PAY_TOKEN_UNSET"
	ErrPayCostUnset  = "E_PAY_COST_UNSET"
	ErrRegistryBound = "E_REGISTRY_BOUND"
	ErrRegistryUnset = "E_REGISTRY_UNSET"

	// Validation.
	ErrIdentityNotFound = "E_IDENTITY_NOT_FOUND"
	ErrItemUnregistered = "E_ITEM_UNREGISTERED"
	ErrSlotMismatch     = "E_SLOT_MISMATCH"
	ErrBadAmount        = "E_BAD_AMOUNT"
	ErrSlotEmpty        = "E_SLOT_EMPTY"
	ErrNoBalance        = "E_NO_BALANCE"
	ErrBadRequest       = "E_BAD_REQUEST"

	// External-call failures.
	ErrTransferFailed = "E_TRANSFER_FAILED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrNotOwner:         {},
	ErrPayTokenUnset:    {},
	ErrPayCostUnset:     {},
	ErrRegistryBound:    {},
	ErrRegistryUnset:    {},
	ErrIdentityNotFound: {},
	ErrItemUnregistered: {},
	ErrSlotMismatch:     {},
	ErrBadAmount:        {},
	ErrSlotEmpty:        {},
	ErrNoBalance:        {},
	ErrBadRequest:       {},
	ErrTransferFailed:   {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
