package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrNotOwner,
		ErrPayTokenUnset,
		ErrPayCostUnset,
		ErrRegistryBound,
		ErrRegistryUnset,
		ErrIdentityNotFound,
		ErrItemUnregistered,
		ErrSlotMismatch,
		ErrBadAmount,
		ErrSlotEmpty,
		ErrNoBalance,
		ErrBadRequest,
		ErrTransferFailed,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}
