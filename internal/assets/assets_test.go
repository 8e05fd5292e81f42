package assets

import "testing"

func TestVaultMove(t *testing.T) {
	v := NewVault("sys:keep")
	v.Mint("alice", "iron_plate", 3)

	if err := v.Move("alice", "alice", "bob", "iron_plate", 2); err != nil {
		t.Fatalf("self move: %v", err)
	}
	if got := v.Balance("alice", "iron_plate"); got != 1 {
		t.Fatalf("alice balance = %d, want 1", got)
	}
	if got := v.Balance("bob", "iron_plate"); got != 2 {
		t.Fatalf("bob balance = %d, want 2", got)
	}

	// Operator may move third-party balances.
	if err := v.Move("sys:keep", "bob", "alice", "iron_plate", 1); err != nil {
		t.Fatalf("operator move: %v", err)
	}

	// Anyone else may not.
	if err := v.Move("mallory", "alice", "mallory", "iron_plate", 1); err == nil {
		t.Fatalf("expected capability error")
	}
	// No partial effect from the rejected move.
	if got := v.Balance("alice", "iron_plate"); got != 2 {
		t.Fatalf("alice balance = %d after rejected move, want 2", got)
	}
}

func TestVaultMove_Insufficient(t *testing.T) {
	v := NewVault("sys:keep")
	v.Mint("alice", "moon_charm", 1)
	if err := v.Move("alice", "alice", "bob", "moon_charm", 2); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if got := v.Balance("alice", "moon_charm"); got != 1 {
		t.Fatalf("alice balance = %d, want 1", got)
	}
}

func TestVaultAccounts(t *testing.T) {
	v := NewVault("sys:keep")
	v.Mint("alice", "iron_plate", 3)
	v.Mint("sys:keep", "moon_charm", 1)
	// A drained balance disappears from the export.
	v.Mint("bob", "rusty_sword", 1)
	if err := v.Move("bob", "bob", "alice", "rusty_sword", 1); err != nil {
		t.Fatalf("move: %v", err)
	}

	got := v.Accounts()
	if got["alice"]["iron_plate"] != 3 || got["alice"]["rusty_sword"] != 1 {
		t.Fatalf("alice export = %v", got["alice"])
	}
	if got["sys:keep"]["moon_charm"] != 1 {
		t.Fatalf("operator export = %v", got["sys:keep"])
	}
	if _, ok := got["bob"]; ok {
		t.Fatalf("drained account exported: %v", got["bob"])
	}

	// The export is a copy.
	got["alice"]["iron_plate"] = 99
	if v.Balance("alice", "iron_plate") != 3 {
		t.Fatalf("export aliases vault state")
	}
}

func TestTokenDebit(t *testing.T) {
	tok := NewToken("GOLD", "sys:keep")
	tok.Mint("alice", 150)

	if err := tok.Debit("sys:keep", "alice", "sys:treasury", 100); err != nil {
		t.Fatalf("operator debit: %v", err)
	}
	if got := tok.Balance("alice"); got != 50 {
		t.Fatalf("alice balance = %d, want 50", got)
	}
	if got := tok.Balance("sys:treasury"); got != 100 {
		t.Fatalf("treasury balance = %d, want 100", got)
	}

	if err := tok.Debit("sys:keep", "alice", "sys:treasury", 100); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if got := tok.Balance("alice"); got != 50 {
		t.Fatalf("alice balance = %d after failed debit, want 50", got)
	}

	if err := tok.Debit("mallory", "alice", "mallory", 10); err == nil {
		t.Fatalf("expected capability error")
	}
}
