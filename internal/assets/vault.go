// Package assets implements the capability-checked asset primitives the
// ledger moves value through: a pooled multi-type item vault and a fungible
// payment token. Balances are plain bookkeeping; authorization is the only
// rule enforced here.
package assets

import "fmt"

// Vault holds pooled per-account balances for every item type. A single
// operator account may move balances it does not own; everyone else may only
// move their own.
type Vault struct {
	operator string
	balances map[string]map[string]uint64
}

func NewVault(operator string) *Vault {
	return &Vault{
		operator: operator,
		balances: map[string]map[string]uint64{},
	}
}

// Mint credits freshly created items to an account. Reached through admin
// grants and through snapshot and journal restore.
func (v *Vault) Mint(account, itemType string, amount uint64) {
	if amount == 0 {
		return
	}
	acct := v.balances[account]
	if acct == nil {
		acct = map[string]uint64{}
		v.balances[account] = acct
	}
	acct[itemType] += amount
}

func (v *Vault) Balance(account, itemType string) uint64 {
	return v.balances[account][itemType]
}

// Accounts exports every non-zero balance, keyed by account then item type.
// The result is a copy; holders may not mutate vault state through it.
func (v *Vault) Accounts() map[string]map[string]uint64 {
	out := map[string]map[string]uint64{}
	for account, types := range v.balances {
		for itemType, amount := range types {
			if amount == 0 {
				continue
			}
			acct := out[account]
			if acct == nil {
				acct = map[string]uint64{}
				out[account] = acct
			}
			acct[itemType] = amount
		}
	}
	return out
}

// Move transfers amount of itemType from one account to another. The actor
// must either be the source account or the vault operator.
func (v *Vault) Move(actor, from, to, itemType string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("zero amount")
	}
	if actor != from && actor != v.operator {
		return fmt.Errorf("actor %q may not move funds of %q", actor, from)
	}
	src := v.balances[from]
	if src[itemType] < amount {
		return fmt.Errorf("insufficient balance: %s has %d %s, need %d", from, src[itemType], itemType, amount)
	}
	src[itemType] -= amount
	if src[itemType] == 0 {
		delete(src, itemType)
	}
	dst := v.balances[to]
	if dst == nil {
		dst = map[string]uint64{}
		v.balances[to] = dst
	}
	dst[itemType] += amount
	return nil
}
