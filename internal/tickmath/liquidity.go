package tickmath

import "math/big"

// MulDiv returns a*b/denominator with full intermediate precision. A zero
// denominator yields zero.
func MulDiv(a, b, denominator *big.Int) *big.Int {
	if denominator == nil || denominator.Sign() == 0 {
		return new(big.Int)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator)
}

// LiquidityForAmount0 computes the liquidity that amount0 of token0 provides
// over the sqrt-price interval [sqrtA, sqrtB].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	sqrtA, sqrtB = sortSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	intermediate := MulDiv(sqrtA, sqrtB, Q96)
	return MulDiv(amount0, intermediate, diff)
}

// LiquidityForAmount1 computes the liquidity that amount1 of token1 provides
// over the sqrt-price interval [sqrtA, sqrtB].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = sortSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	return MulDiv(amount1, Q96, diff)
}

// Amount0ForLiquidity computes the token0 amount backing the given liquidity
// over [sqrtA, sqrtB].
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sqrtA, sqrtB = sortSqrt(sqrtA, sqrtB)
	if sqrtA.Sign() == 0 {
		return new(big.Int)
	}
	shifted := new(big.Int).Lsh(liquidity, 96)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	return new(big.Int).Quo(MulDiv(shifted, diff, sqrtB), sqrtA)
}

// Amount1ForLiquidity computes the token1 amount backing the given liquidity
// over [sqrtA, sqrtB].
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sqrtA, sqrtB = sortSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	return MulDiv(liquidity, diff, Q96)
}

func sortSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}
