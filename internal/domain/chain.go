package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ControlToken describes the control token attached to a layer.
type ControlToken struct {
	TokenID *big.Int
	Levers  []*big.Int
}

// ChainState answers read-only questions about the artwork contract as of a
// given block. Answers for a fixed (token, block) pair must not change.
//
// A call that reverts is reported as ok == false with a nil error; err is
// reserved for transport and decoding failures.
type ChainState interface {
	CreatorAt(ctx context.Context, block uint64, tokenID *big.Int, index int) (creator common.Address, ok bool, err error)
	TokenURI(ctx context.Context, block uint64, tokenID *big.Int) (string, error)
	ControlTokenOf(ctx context.Context, block uint64, tokenID *big.Int) (token ControlToken, ok bool, err error)
}

// EventSource delivers decoded events for a closed block range in delivery
// order.
type EventSource interface {
	Head(ctx context.Context) (uint64, error)
	Events(ctx context.Context, from, to uint64) ([]Event, error)
}
