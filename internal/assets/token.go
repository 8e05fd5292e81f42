package assets

import "fmt"

// Token is a single fungible currency ledger. Like the vault, it enforces
// only authorization: an actor may debit its own account, and the operator
// may debit anyone.
type Token struct {
	id       string
	operator string
	balances map[string]uint64
}

func NewToken(id, operator string) *Token {
	return &Token{
		id:       id,
		operator: operator,
		balances: map[string]uint64{},
	}
}

func (t *Token) ID() string { return t.id }

func (t *Token) Mint(account string, amount uint64) {
	t.balances[account] += amount
}

func (t *Token) Balance(account string) uint64 {
	return t.balances[account]
}

// Debit moves amount from one account to another. Returns an error rather
// than a false status; callers must treat any error as "no funds moved".
func (t *Token) Debit(actor, from, to string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("zero amount")
	}
	if actor != from && actor != t.operator {
		return fmt.Errorf("actor %q may not debit %q", actor, from)
	}
	if t.balances[from] < amount {
		return fmt.Errorf("insufficient balance: %s has %d %s, need %d", from, t.balances[from], t.id, amount)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}
