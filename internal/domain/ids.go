package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountID is the lowercase hex form of a wallet address.
type AccountID string

// ArtworkID is the decimal form of an ERC-721 token id.
type ArtworkID string

// BidID, SaleID and TransferID are the hex hash of the transaction that
// created the entity.
type (
	BidID      string
	SaleID     string
	TransferID string
)

// NullAddress is the mint/burn address.
var NullAddress = common.Address{}

// AccountIDFromAddress normalises an address into an AccountID.
func AccountIDFromAddress(addr common.Address) AccountID {
	return AccountID(strings.ToLower(addr.Hex()))
}

// Address converts the id back into an address.
func (id AccountID) Address() common.Address {
	return common.HexToAddress(string(id))
}

// ArtworkIDFromToken formats a token id the way every entity refers to it.
func ArtworkIDFromToken(tokenID *big.Int) ArtworkID {
	if tokenID == nil {
		return ArtworkID("0")
	}
	return ArtworkID(tokenID.String())
}

// TokenID parses the artwork id back into a token id. It returns nil for an
// id that is not a base-10 integer.
func (id ArtworkID) TokenID() *big.Int {
	n, ok := new(big.Int).SetString(string(id), 10)
	if !ok {
		return nil
	}
	return n
}
