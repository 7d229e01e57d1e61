package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for Pebble storage. Every persisted entity carries a
// discriminator-style prefix so iteration stays scoped to one entity
// kind and accounts stay self-describing by prefix alone.
//
//	user:<address>:<subAccountId>     -> UserAccount
//	pmkt:<marketIndex>                -> PerpMarketState
//	smkt:<marketIndex>                -> SpotMarketState
//	orcl:<pubkey>:<source>             -> OracleFeedState
//	ord:<address>:<subAccountId>:<orderId> -> order.Order
const (
	prefixUser       = "user:"
	prefixPerpMarket = "pmkt:"
	prefixSpotMarket = "smkt:"
	prefixOracle     = "orcl:"
	prefixOrder      = "ord:"
)

func userKey(addr common.Address, subAccountID uint8) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", prefixUser, addr.Hex(), subAccountID))
}

func userPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixUser, addr.Hex()))
}

func perpMarketKey(marketIndex uint16) []byte {
	return []byte(fmt.Sprintf("%s%05d", prefixPerpMarket, marketIndex))
}

func spotMarketKey(marketIndex uint16) []byte {
	return []byte(fmt.Sprintf("%s%05d", prefixSpotMarket, marketIndex))
}

func oracleKey(pubkey common.Address, source uint8) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", prefixOracle, pubkey.Hex(), source))
}

func orderKey(addr common.Address, subAccountID uint8, orderID uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%010d", prefixOrder, addr.Hex(), subAccountID, orderID))
}

func orderPrefix(addr common.Address, subAccountID uint8) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:", prefixOrder, addr.Hex(), subAccountID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
