package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// ErrUnknownTopic is returned by Decode for logs that are not artwork
// contract events.
var ErrUnknownTopic = errors.New("chain: unknown log topic")

// Decode turns a raw log into a domain event stamped with the block time.
func Decode(lg types.Log, blockTime time.Time) (domain.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, ErrUnknownTopic
	}
	name, ok := topicKinds[lg.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, lg.Topics[0].Hex())
	}

	meta := domain.EventMeta{
		Contract:    lg.Address,
		BlockNumber: lg.BlockNumber,
		BlockHash:   lg.BlockHash,
		TxHash:      lg.TxHash,
		TxIndex:     lg.TxIndex,
		LogIndex:    lg.Index,
		Timestamp:   blockTime.UTC(),
	}

	if name == "Transfer" {
		// ERC-721 indexes all three arguments.
		if len(lg.Topics) != 4 {
			return nil, fmt.Errorf("chain: decode Transfer in %s: want 4 topics, got %d", lg.TxHash.Hex(), len(lg.Topics))
		}
		return &domain.TransferEvent{
			EventMeta: meta,
			From:      common.BytesToAddress(lg.Topics[1].Bytes()),
			To:        common.BytesToAddress(lg.Topics[2].Bytes()),
			TokenID:   new(big.Int).SetBytes(lg.Topics[3].Bytes()),
		}, nil
	}

	values, err := ArtworkABI.Events[name].Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("chain: decode %s in %s: %w", name, lg.TxHash.Hex(), err)
	}

	switch name {
	case "RoyaltyAmountUpdated":
		primary, secondary, royalty, err := threeInts(values)
		if err != nil {
			return nil, fmt.Errorf("chain: decode %s: %w", name, err)
		}
		return &domain.FeeUpdatedEvent{
			EventMeta:            meta,
			PlatformPrimaryFee:   primary,
			PlatformSecondaryFee: secondary,
			ArtistRoyaltyFee:     royalty,
		}, nil
	case "BidProposed":
		tokenID, amount, bidder, err := intIntAddr(values)
		if err != nil {
			return nil, fmt.Errorf("chain: decode %s: %w", name, err)
		}
		return &domain.BidProposedEvent{EventMeta: meta, TokenID: tokenID, BidAmount: amount, Bidder: bidder}, nil
	case "BidWithdrawn":
		if len(values) != 1 {
			return nil, fmt.Errorf("chain: decode %s: want 1 value, got %d", name, len(values))
		}
		tokenID, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("chain: decode %s: token id is %T", name, values[0])
		}
		return &domain.BidWithdrawnEvent{EventMeta: meta, TokenID: tokenID}, nil
	case "BuyPriceSet":
		if len(values) != 2 {
			return nil, fmt.Errorf("chain: decode %s: want 2 values, got %d", name, len(values))
		}
		tokenID, ok1 := values[0].(*big.Int)
		price, ok2 := values[1].(*big.Int)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("chain: decode %s: unexpected types %T, %T", name, values[0], values[1])
		}
		return &domain.BuyPriceSetEvent{EventMeta: meta, TokenID: tokenID, Price: price}, nil
	case "TokenSale":
		tokenID, price, buyer, err := intIntAddr(values)
		if err != nil {
			return nil, fmt.Errorf("chain: decode %s: %w", name, err)
		}
		return &domain.TokenSaleEvent{EventMeta: meta, TokenID: tokenID, SalePrice: price, Buyer: buyer}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, name)
}

func threeInts(values []any) (*big.Int, *big.Int, *big.Int, error) {
	if len(values) != 3 {
		return nil, nil, nil, fmt.Errorf("want 3 values, got %d", len(values))
	}
	a, ok1 := values[0].(*big.Int)
	b, ok2 := values[1].(*big.Int)
	c, ok3 := values[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, nil, nil, fmt.Errorf("unexpected types %T, %T, %T", values[0], values[1], values[2])
	}
	return a, b, c, nil
}

func intIntAddr(values []any) (*big.Int, *big.Int, common.Address, error) {
	if len(values) != 3 {
		return nil, nil, common.Address{}, fmt.Errorf("want 3 values, got %d", len(values))
	}
	a, ok1 := values[0].(*big.Int)
	b, ok2 := values[1].(*big.Int)
	addr, ok3 := values[2].(common.Address)
	if !ok1 || !ok2 || !ok3 {
		return nil, nil, common.Address{}, fmt.Errorf("unexpected types %T, %T, %T", values[0], values[1], values[2])
	}
	return a, b, addr, nil
}
