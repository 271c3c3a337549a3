// Package chain reads the artwork contract from an Ethereum JSON-RPC node:
// decoded event logs in chain order and the view functions consulted while
// applying them.
package chain

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

//go:embed abi/asyncartwork.json
var artworkABIJSON string

// ArtworkABI is the parsed subset of the artwork contract interface.
var ArtworkABI = mustParseABI(artworkABIJSON)

const (
	methodUniqueTokenCreators = "uniqueTokenCreators"
	methodTokenURI            = "tokenURI"
	methodGetControlToken     = "getControlToken"
)

// eventNames maps contract event names to the kinds the engine handles.
var eventNames = map[string]domain.EventKind{
	"RoyaltyAmountUpdated": domain.KindFeeUpdated,
	"Transfer":             domain.KindTransfer,
	"BidProposed":          domain.KindBidProposed,
	"BidWithdrawn":         domain.KindBidWithdrawn,
	"BuyPriceSet":          domain.KindBuyPriceSet,
	"TokenSale":            domain.KindTokenSale,
}

// topicKinds maps the first log topic to the event kind.
var topicKinds = func() map[common.Hash]string {
	out := make(map[common.Hash]string, len(eventNames))
	for name := range eventNames {
		out[ArtworkABI.Events[name].ID] = name
	}
	return out
}()

// Topics returns the event signature hashes to filter logs by.
func Topics() []common.Hash {
	out := make([]common.Hash, 0, len(topicKinds))
	for id := range topicKinds {
		out = append(out, id)
	}
	return out
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: parse artwork abi: %v", err))
	}
	return parsed
}
