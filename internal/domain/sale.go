package domain

import (
	"math/big"
	"time"
)

// Sale is a reserve-price ("buy now") listing.
type Sale struct {
	ID         SaleID     `json:"id"`
	Artwork    ArtworkID  `json:"artwork"`
	Seller     AccountID  `json:"seller"`
	Price      *big.Int   `json:"price"`
	IsSold     bool       `json:"is_sold"`
	Buyer      *AccountID `json:"buyer,omitempty"`
	TimeRaised time.Time  `json:"time_raised"`
	TimeSold   *time.Time `json:"time_sold,omitempty"`
}

// Clone returns a deep copy.
func (s Sale) Clone() Sale {
	out := s
	out.Price = cloneBig(s.Price)
	out.Buyer = clonePtr(s.Buyer)
	out.TimeSold = clonePtr(s.TimeSold)
	return out
}

// Transfer records one ownership change that was not a mint.
type Transfer struct {
	ID        TransferID `json:"id"`
	Artwork   ArtworkID  `json:"artwork"`
	From      AccountID  `json:"from"`
	To        AccountID  `json:"to"`
	Timestamp time.Time  `json:"timestamp"`
}
