package engine

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// fakeChain answers chain-state queries from in-memory tables keyed by token.
type fakeChain struct {
	creators map[string][]common.Address
	uris     map[string]string
	layers   map[string]bool
	err      error
	calls    int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		creators: make(map[string][]common.Address),
		uris:     make(map[string]string),
		layers:   make(map[string]bool),
	}
}

func (f *fakeChain) token(id int64, uri string, layer bool, creators ...common.Address) {
	key := big.NewInt(id).String()
	f.creators[key] = creators
	f.uris[key] = uri
	f.layers[key] = layer
}

func (f *fakeChain) CreatorAt(_ context.Context, _ uint64, tokenID *big.Int, index int) (common.Address, bool, error) {
	f.calls++
	if f.err != nil {
		return common.Address{}, false, f.err
	}
	list := f.creators[tokenID.String()]
	if index >= len(list) {
		return common.Address{}, false, nil
	}
	return list[index], true, nil
}

func (f *fakeChain) TokenURI(_ context.Context, _ uint64, tokenID *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.uris[tokenID.String()], nil
}

func (f *fakeChain) ControlTokenOf(_ context.Context, _ uint64, tokenID *big.Int) (domain.ControlToken, bool, error) {
	if f.err != nil {
		return domain.ControlToken{}, false, f.err
	}
	if !f.layers[tokenID.String()] {
		return domain.ControlToken{}, false, nil
	}
	return domain.ControlToken{TokenID: tokenID}, true, nil
}

// endlessChain reports a creator at every index.
type endlessChain struct{ fakeChain }

func (e *endlessChain) CreatorAt(context.Context, uint64, *big.Int, int) (common.Address, bool, error) {
	return common.HexToAddress("0xa1"), true, nil
}

var errRPC = errors.New("rpc unavailable")
