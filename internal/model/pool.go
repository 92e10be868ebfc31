package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolInfo describes a discovered pool's immutable metadata.
type PoolInfo struct {
	Address     common.Address `json:"address"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`
}

// PoolState is a snapshot of a pool's mutable price state.
type PoolState struct {
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int32    `json:"tick"`
	Liquidity    *big.Int `json:"liquidity"`
}
