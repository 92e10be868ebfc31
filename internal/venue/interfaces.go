// Package venue defines the external collaborators the engine drives: the
// pool factory, pools, the quoter, the swap router, the position custody
// venue, price feeds, the rate oracle, and the access registry. The engine
// depends only on the interfaces here; on-chain implementations live in this
// package as well.
package venue

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityRouter/internal/model"
)

// Factory resolves a pool address for a token pair and tick-spacing tier.
// A zero address means no pool exists for that tier.
type Factory interface {
	GetPool(ctx context.Context, tokenA, tokenB common.Address, tickSpacing int32) (common.Address, error)
}

// PoolReader reads pool metadata and price state.
type PoolReader interface {
	Metadata(ctx context.Context, pool common.Address) (model.PoolInfo, error)
	State(ctx context.Context, pool common.Address) (model.PoolState, error)
}

// Quoter simulates swaps at current venue state. Either method may fail for
// pairs or paths the quoter does not support.
type Quoter interface {
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, tickSpacing int32, amountIn *big.Int) (*big.Int, error)
	QuoteExactInput(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error)
}

// SingleHopParams parameterizes a one-pool swap.
type SingleHopParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	TickSpacing      int32
	Recipient        common.Address
	Deadline         time.Time
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// MultiHopParams parameterizes an atomic multi-pool swap over an encoded
// path.
type MultiHopParams struct {
	Path             []byte
	Recipient        common.Address
	Deadline         time.Time
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// SwapRouter executes swaps. Realized outputs are verified by the caller
// from balance deltas, so these methods report only success or failure.
type SwapRouter interface {
	ExactInputSingle(ctx context.Context, params SingleHopParams) error
	ExactInput(ctx context.Context, params MultiHopParams) error
}

// MintParams parameterizes opening a position.
type MintParams struct {
	Pool           model.PoolInfo
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Recipient      common.Address
	Deadline       time.Time
}

// MintResult reports the opened position.
type MintResult struct {
	PositionID *big.Int
	Liquidity  *big.Int
	Amount0    *big.Int
	Amount1    *big.Int
}

// PositionManager is the custody venue owning position existence.
type PositionManager interface {
	Mint(ctx context.Context, params MintParams) (MintResult, error)
	CollectFees(ctx context.Context, positionID *big.Int, recipient common.Address) (*big.Int, *big.Int, error)
	DecreaseLiquidity(ctx context.Context, positionID, liquidity *big.Int, deadline time.Time) (*big.Int, *big.Int, error)
	Burn(ctx context.Context, positionID *big.Int) error
}

// RoundData is one price-feed observation.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
	Decimals        uint8
}

// PriceFeed reads the latest round of a trusted feed contract.
type PriceFeed interface {
	LatestRound(ctx context.Context, feed common.Address) (RoundData, error)
}

// RateOracle quotes a conversion rate between two assets, optionally
// through a bridge asset. Rate is a Q18 fixed-point multiplier from tokenIn
// base units to tokenOut base units; weight reflects backing liquidity.
type RateOracle interface {
	Rate(ctx context.Context, tokenIn, tokenOut, bridge common.Address) (rate, weight *big.Int, err error)
}

// AccessRegistry answers operator authorization checks.
type AccessRegistry interface {
	IsAuthorized(ctx context.Context, caller, onBehalfOf common.Address) (bool, error)
}

// BalanceReader reads ERC20 balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// TokenMetadata resolves per-token decimal precision.
type TokenMetadata interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}
