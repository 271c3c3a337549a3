package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// Accessor answers the engine's chain-state queries with eth_call against
// the artwork contract, evaluated at the block of the event being applied.
type Accessor struct {
	rpc      RPC
	contract common.Address
}

// NewAccessor creates an Accessor for the contract at address.
func NewAccessor(rpc RPC, contract common.Address) *Accessor {
	return &Accessor{rpc: rpc, contract: contract}
}

// CreatorAt returns creator index of tokenID. ok is false when the call
// reverts, which is how the contract signals the end of the list.
func (a *Accessor) CreatorAt(ctx context.Context, block uint64, tokenID *big.Int, index int) (common.Address, bool, error) {
	out, ok, err := a.call(ctx, block, methodUniqueTokenCreators, tokenID, big.NewInt(int64(index)))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	values, err := ArtworkABI.Unpack(methodUniqueTokenCreators, out)
	if err != nil || len(values) != 1 {
		// An empty or malformed answer is the same signal as a revert.
		return common.Address{}, false, nil
	}
	addr, isAddr := values[0].(common.Address)
	if !isAddr {
		return common.Address{}, false, fmt.Errorf("chain: %s returned %T", methodUniqueTokenCreators, values[0])
	}
	return addr, true, nil
}

// TokenURI returns the metadata URI of tokenID. A revert is an error here:
// every minted token has a URI.
func (a *Accessor) TokenURI(ctx context.Context, block uint64, tokenID *big.Int) (string, error) {
	out, ok, err := a.call(ctx, block, methodTokenURI, tokenID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("chain: %s(%s): %w", methodTokenURI, tokenID, domain.ErrReverted)
	}
	values, err := ArtworkABI.Unpack(methodTokenURI, out)
	if err != nil {
		return "", fmt.Errorf("chain: unpack %s: %w", methodTokenURI, err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("chain: %s returned %d values", methodTokenURI, len(values))
	}
	uri, isString := values[0].(string)
	if !isString {
		return "", fmt.Errorf("chain: %s returned %T", methodTokenURI, values[0])
	}
	return uri, nil
}

// ControlTokenOf returns the control token of tokenID. ok is false when the
// call reverts, which means the token is a master.
func (a *Accessor) ControlTokenOf(ctx context.Context, block uint64, tokenID *big.Int) (domain.ControlToken, bool, error) {
	out, ok, err := a.call(ctx, block, methodGetControlToken, tokenID)
	if err != nil || !ok {
		return domain.ControlToken{}, false, err
	}
	values, err := ArtworkABI.Unpack(methodGetControlToken, out)
	if err != nil || len(values) != 1 {
		return domain.ControlToken{}, false, nil
	}
	levers, _ := values[0].([]*big.Int)
	return domain.ControlToken{TokenID: tokenID, Levers: levers}, true, nil
}

// call runs a view function. ok is false when the node reports a revert.
func (a *Accessor) call(ctx context.Context, block uint64, method string, args ...any) ([]byte, bool, error) {
	data, err := ArtworkABI.Pack(method, args...)
	if err != nil {
		return nil, false, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}
	out, err := a.rpc.CallContract(ctx, ethereum.CallMsg{To: &a.contract, Data: data}, at)
	if err != nil {
		if IsRevert(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chain: call %s at block %d: %w", method, block, err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

// IsRevert reports whether err is the node rejecting a call because the
// contract reverted, as opposed to a transport or node failure. Contracts
// built with older compilers fail out-of-range array reads with an invalid
// opcode instead of a revert.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrReverted) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "vm execution error")
}

var _ domain.ChainState = (*Accessor)(nil)
