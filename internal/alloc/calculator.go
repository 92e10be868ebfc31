// Package alloc splits a base-asset funding amount between the two assets
// of a range position, using oracle prices and the pool's constant-liquidity
// relation.
package alloc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityRouter/internal/model"
	"liquidityRouter/internal/oracle"
	"liquidityRouter/internal/tickmath"
	"liquidityRouter/internal/venue"
)

// Calculator computes funding splits.
type Calculator struct {
	oracle       *oracle.Aggregator
	tokens       venue.TokenMetadata
	baseDecimals uint8
	logger       *zap.Logger
}

func NewCalculator(priceOracle *oracle.Aggregator, tokens venue.TokenMetadata, baseDecimals uint8, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		oracle:       priceOracle,
		tokens:       tokens,
		baseDecimals: baseDecimals,
		logger:       logger,
	}
}

// Allocate returns how much of totalFunding (base-asset units) to convert
// into token0 and token1 for a position over [tickLower, tickUpper]. The two
// amounts always sum exactly to totalFunding. A range entirely above the
// current tick yields a single-sided token0 position, entirely below yields
// single-sided token1; in range the split follows the tick's fractional
// position, corrected by the liquidity relation.
func (c *Calculator) Allocate(ctx context.Context, totalFunding *big.Int, pool model.PoolInfo, state model.PoolState, tickLower, tickUpper int32) (*big.Int, *big.Int, error) {
	if totalFunding == nil || totalFunding.Sign() <= 0 {
		return new(big.Int), new(big.Int), nil
	}

	if state.Tick < tickLower {
		return new(big.Int).Set(totalFunding), new(big.Int), nil
	}
	if state.Tick >= tickUpper {
		return new(big.Int), new(big.Int).Set(totalFunding), nil
	}

	width := int64(tickUpper) - int64(tickLower)
	if width <= 0 {
		return evenSplit(totalFunding)
	}

	// First-order split from the tick's position in the range: at the
	// lower bound the position is all token0, at the upper all token1.
	frac1 := big.NewInt(int64(state.Tick) - int64(tickLower))
	usd1 := new(big.Int).Mul(totalFunding, frac1)
	usd1.Quo(usd1, big.NewInt(width))
	usd0 := new(big.Int).Sub(totalFunding, usd1)

	quote0, err := c.oracle.PriceInBase(ctx, pool.Token0)
	if err != nil {
		return nil, nil, fmt.Errorf("price token0: %w", err)
	}
	quote1, err := c.oracle.PriceInBase(ctx, pool.Token1)
	if err != nil {
		return nil, nil, fmt.Errorf("price token1: %w", err)
	}
	if quote0.Price.Sign() <= 0 || quote1.Price.Sign() <= 0 {
		return evenSplit(totalFunding)
	}

	decimals0, err := c.tokens.Decimals(ctx, pool.Token0)
	if err != nil {
		decimals0 = venue.DefaultTokenDecimals
	}
	decimals1, err := c.tokens.Decimals(ctx, pool.Token1)
	if err != nil {
		decimals1 = venue.DefaultTokenDecimals
	}

	// Second pass: the linear-in-tick ratio only approximates the
	// liquidity-balanced split. Derive the token1 amount that matches the
	// token0 amount's liquidity over the range and re-weigh the split.
	sqrtLower, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		return nil, nil, fmt.Errorf("lower bound: %w", err)
	}
	sqrtUpper, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("upper bound: %w", err)
	}
	sqrtCurrent := state.SqrtPriceX96
	if sqrtCurrent == nil || sqrtCurrent.Sign() == 0 {
		sqrtCurrent, err = tickmath.SqrtPriceAtTick(state.Tick)
		if err != nil {
			return nil, nil, fmt.Errorf("current tick: %w", err)
		}
	}

	amount0 := c.baseToTokens(usd0, quote0.Price, decimals0)
	liquidity := tickmath.LiquidityForAmount0(sqrtCurrent, sqrtUpper, amount0)
	amount1 := tickmath.Amount1ForLiquidity(sqrtLower, sqrtCurrent, liquidity)
	usd1Corrected := c.tokensToBase(amount1, quote1.Price, decimals1)

	denom := new(big.Int).Add(usd0, usd1Corrected)
	if denom.Sign() == 0 {
		return evenSplit(totalFunding)
	}

	amountBase0 := new(big.Int).Mul(totalFunding, usd0)
	amountBase0.Quo(amountBase0, denom)
	amountBase1 := new(big.Int).Sub(totalFunding, amountBase0)

	c.logger.Debug("allocation computed",
		zap.String("pool", pool.Address.Hex()),
		zap.Int32("tick", state.Tick),
		zap.String("amount0", amountBase0.String()),
		zap.String("amount1", amountBase1.String()),
	)
	return amountBase0, amountBase1, nil
}

// baseToTokens converts base-asset units to token units at the USD price.
func (c *Calculator) baseToTokens(baseUnits *big.Int, price decimal.Decimal, decimals uint8) *big.Int {
	usd := decimal.NewFromBigInt(baseUnits, -int32(c.baseDecimals))
	return usd.Div(price).Shift(int32(decimals)).BigInt()
}

// tokensToBase converts token units to base-asset units at the USD price.
func (c *Calculator) tokensToBase(tokenUnits *big.Int, price decimal.Decimal, decimals uint8) *big.Int {
	tokens := decimal.NewFromBigInt(tokenUnits, -int32(decimals))
	return tokens.Mul(price).Shift(int32(c.baseDecimals)).BigInt()
}

func evenSplit(total *big.Int) (*big.Int, *big.Int, error) {
	half := new(big.Int).Rsh(total, 1)
	rest := new(big.Int).Sub(total, half)
	return half, rest, nil
}
