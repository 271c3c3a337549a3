package engine

import "math/big"

var hundred = big.NewInt(100)

// Share computes one artist's cut of a sale as (price * fee / artists) / 100
// with truncating integer division. The operation order is part of the
// result: dividing by 100 first changes the rounding.
func Share(price, fee *big.Int, artists int) *big.Int {
	if artists <= 0 || price == nil || fee == nil {
		return new(big.Int)
	}
	n := new(big.Int).Mul(price, fee)
	n.Quo(n, big.NewInt(int64(artists)))
	return n.Quo(n, hundred)
}

// PrimaryFee is the percentage of a first sale that goes to the artists.
func PrimaryFee(platformPrimaryFee *big.Int) *big.Int {
	return new(big.Int).Sub(hundred, platformPrimaryFee)
}
