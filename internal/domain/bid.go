package domain

import (
	"math/big"
	"time"
)

// BidStatus is the state of an auction bid.
type BidStatus string

const (
	BidOpen      BidStatus = "Open"
	BidCancelled BidStatus = "Cancelled"
	BidAccepted  BidStatus = "Accepted"
)

// Bid is created by every BidProposed event.
type Bid struct {
	ID            BidID      `json:"id"`
	Artwork       ArtworkID  `json:"artwork"`
	Bidder        AccountID  `json:"bidder"`
	Price         *big.Int   `json:"price"`
	Status        BidStatus  `json:"status"`
	AcceptedBy    *AccountID `json:"accepted_by,omitempty"`
	TimeRaised    time.Time  `json:"time_raised"`
	TimeCancelled *time.Time `json:"time_cancelled,omitempty"`
	TimeAccepted  *time.Time `json:"time_accepted,omitempty"`
}

// Clone returns a deep copy.
func (b Bid) Clone() Bid {
	out := b
	out.Price = cloneBig(b.Price)
	out.AcceptedBy = clonePtr(b.AcceptedBy)
	out.TimeCancelled = clonePtr(b.TimeCancelled)
	out.TimeAccepted = clonePtr(b.TimeAccepted)
	return out
}
