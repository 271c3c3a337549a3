package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a decoded contract event.
type EventKind string

const (
	KindFeeUpdated   EventKind = "FeeUpdated"
	KindTransfer     EventKind = "Transfer"
	KindBidProposed  EventKind = "BidProposed"
	KindBidWithdrawn EventKind = "BidWithdrawn"
	KindBuyPriceSet  EventKind = "BuyPriceSet"
	KindTokenSale    EventKind = "TokenSale"
)

// EventMeta is the position of a log in the chain. Events are delivered in
// (BlockNumber, TxIndex, LogIndex) order.
type EventMeta struct {
	Contract    common.Address `json:"contract"`
	BlockNumber uint64         `json:"block_number"`
	BlockHash   common.Hash    `json:"block_hash"`
	TxHash      common.Hash    `json:"tx_hash"`
	TxIndex     uint           `json:"tx_index"`
	LogIndex    uint           `json:"log_index"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ID is the idempotency key of the event.
func (m EventMeta) ID() string {
	return fmt.Sprintf("%s-%d", m.TxHash.Hex(), m.LogIndex)
}

// TxID is the lowercase transaction hash used as the id of entities the
// event creates.
func (m EventMeta) TxID() string {
	return m.TxHash.Hex()
}

// Event is implemented by every decoded contract event.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
}

// FeeUpdatedEvent corresponds to RoyaltyAmountUpdated.
type FeeUpdatedEvent struct {
	EventMeta
	PlatformPrimaryFee   *big.Int
	PlatformSecondaryFee *big.Int
	ArtistRoyaltyFee     *big.Int
}

// TransferEvent is the ERC-721 Transfer event.
type TransferEvent struct {
	EventMeta
	TokenID *big.Int
	From    common.Address
	To      common.Address
}

// BidProposedEvent is emitted when a bidder places an auction bid.
type BidProposedEvent struct {
	EventMeta
	TokenID   *big.Int
	Bidder    common.Address
	BidAmount *big.Int
}

// BidWithdrawnEvent is emitted when the current bid is withdrawn.
type BidWithdrawnEvent struct {
	EventMeta
	TokenID *big.Int
}

// BuyPriceSetEvent is emitted when the owner lists or re-prices a token.
type BuyPriceSetEvent struct {
	EventMeta
	TokenID *big.Int
	Price   *big.Int
}

// TokenSaleEvent is emitted when a token is sold through either a bid or a listing.
type TokenSaleEvent struct {
	EventMeta
	TokenID   *big.Int
	Buyer     common.Address
	SalePrice *big.Int
}

func (e *FeeUpdatedEvent) Kind() EventKind   { return KindFeeUpdated }
func (e *TransferEvent) Kind() EventKind     { return KindTransfer }
func (e *BidProposedEvent) Kind() EventKind  { return KindBidProposed }
func (e *BidWithdrawnEvent) Kind() EventKind { return KindBidWithdrawn }
func (e *BuyPriceSetEvent) Kind() EventKind  { return KindBuyPriceSet }
func (e *TokenSaleEvent) Kind() EventKind    { return KindTokenSale }

func (e *FeeUpdatedEvent) Meta() EventMeta   { return e.EventMeta }
func (e *TransferEvent) Meta() EventMeta     { return e.EventMeta }
func (e *BidProposedEvent) Meta() EventMeta  { return e.EventMeta }
func (e *BidWithdrawnEvent) Meta() EventMeta { return e.EventMeta }
func (e *BuyPriceSetEvent) Meta() EventMeta  { return e.EventMeta }
func (e *TokenSaleEvent) Meta() EventMeta    { return e.EventMeta }

// TokenOf returns the token id an event refers to, or nil for events that
// are not about a single token.
func TokenOf(e Event) *big.Int {
	switch ev := e.(type) {
	case *TransferEvent:
		return ev.TokenID
	case *BidProposedEvent:
		return ev.TokenID
	case *BidWithdrawnEvent:
		return ev.TokenID
	case *BuyPriceSetEvent:
		return ev.TokenID
	case *TokenSaleEvent:
		return ev.TokenID
	default:
		return nil
	}
}
