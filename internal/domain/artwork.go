package domain

import (
	"math/big"
	"time"
)

// ArtworkStatus is the lifecycle state of an artwork.
type ArtworkStatus string

const (
	ArtworkCreated ArtworkStatus = "Created"
	ArtworkSold    ArtworkStatus = "Sold"
)

// Artwork is one minted token. Bids, Sales and Transfers are append-only id
// lists; CurrentBid, CurrentSale and MasterArtwork are weak references that
// are resolved through the store.
type Artwork struct {
	ID                  ArtworkID     `json:"id"`
	Owner               AccountID     `json:"owner"`
	Artists             []AccountID   `json:"artists"`
	URI                 string        `json:"uri"`
	IsMaster            bool          `json:"is_master"`
	MasterArtwork       *ArtworkID    `json:"master_artwork,omitempty"`
	Status              ArtworkStatus `json:"status"`
	CurrentBid          *BidID        `json:"current_bid,omitempty"`
	CurrentSale         *SaleID       `json:"current_sale,omitempty"`
	FirstTransferPrice  *big.Int      `json:"first_transfer_price,omitempty"`
	LastTransferPrice   *big.Int      `json:"last_transfer_price,omitempty"`
	Bids                []BidID       `json:"bids"`
	Sales               []SaleID      `json:"sales"`
	Transfers           []TransferID  `json:"transfers"`
	TimeCreated         time.Time     `json:"time_created"`
	TimeLastTransferred *time.Time    `json:"time_last_transferred,omitempty"`
}

// Clone returns a deep copy so that callers never share slices or big.Ints
// with a stored value.
func (a Artwork) Clone() Artwork {
	out := a
	out.Artists = append([]AccountID(nil), a.Artists...)
	out.Bids = append([]BidID(nil), a.Bids...)
	out.Sales = append([]SaleID(nil), a.Sales...)
	out.Transfers = append([]TransferID(nil), a.Transfers...)
	out.MasterArtwork = clonePtr(a.MasterArtwork)
	out.CurrentBid = clonePtr(a.CurrentBid)
	out.CurrentSale = clonePtr(a.CurrentSale)
	out.FirstTransferPrice = cloneBig(a.FirstTransferPrice)
	out.LastTransferPrice = cloneBig(a.LastTransferPrice)
	out.TimeLastTransferred = clonePtr(a.TimeLastTransferred)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
