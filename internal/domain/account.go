package domain

import "math/big"

// Account is a wallet that has appeared in any event. Its accumulators only
// ever grow.
type Account struct {
	ID                 AccountID `json:"id"`
	Address            string    `json:"address"`
	TotalPrimaryIncome *big.Int  `json:"total_primary_income"`
	TotalRoyalty       *big.Int  `json:"total_royalty"`
}

// NewAccount returns an account with zero accumulators.
func NewAccount(id AccountID) Account {
	return Account{
		ID:                 id,
		Address:            string(id),
		TotalPrimaryIncome: new(big.Int),
		TotalRoyalty:       new(big.Int),
	}
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	out := a
	out.TotalPrimaryIncome = cloneBig(a.TotalPrimaryIncome)
	out.TotalRoyalty = cloneBig(a.TotalRoyalty)
	return out
}
