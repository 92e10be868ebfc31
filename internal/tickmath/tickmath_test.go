package tickmath

import (
	"errors"
	"math/big"
	"testing"
)

func TestSqrtPriceAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "79228162514264337593543950336"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtPriceAtTick(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tc.tick, err)
		}
		if got.String() != tc.want {
			t.Fatalf("tick %d: got %s, want %s", tc.tick, got.String(), tc.want)
		}
	}
}

func TestSqrtPriceAtTickOutOfRange(t *testing.T) {
	if _, err := SqrtPriceAtTick(MaxTick + 1); !errors.Is(err, ErrTickOutOfRange) {
		t.Fatalf("expected out-of-range error, got %v", err)
	}
	if _, err := SqrtPriceAtTick(MinTick - 1); !errors.Is(err, ErrTickOutOfRange) {
		t.Fatalf("expected out-of-range error, got %v", err)
	}
}

func TestSqrtPriceAtTickMonotonic(t *testing.T) {
	ticks := []int32{MinTick, -500000, -100000, -60, -1, 0, 1, 60, 100000, 500000, MaxTick}
	prev, err := SqrtPriceAtTick(ticks[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tick := range ticks[1:] {
		cur, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("tick %d: price %s not greater than previous %s", tick, cur, prev)
		}
		prev = cur
	}
}

func TestSqrtPriceReciprocal(t *testing.T) {
	// sqrtPrice(-t) * sqrtPrice(t) must equal Q96^2 within rounding.
	q192 := new(big.Int).Mul(Q96, Q96)
	for _, tick := range []int32{1, 10, 60, 200, 887, 10000, 443636} {
		pos, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		neg, err := SqrtPriceAtTick(-tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", -tick, err)
		}
		product := new(big.Int).Mul(pos, neg)
		diff := new(big.Int).Sub(product, q192)
		diff.Abs(diff)
		// One rounding unit on either factor bounds the product error.
		bound := new(big.Int).Add(pos, neg)
		if diff.Cmp(bound) > 0 {
			t.Fatalf("tick %d: reciprocal drift %s exceeds bound %s", tick, diff, bound)
		}
	}
}

func TestLiquidityAmountRoundTrip(t *testing.T) {
	sqrtLower, err := SqrtPriceAtTick(-600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqrtUpper, err := SqrtPriceAtTick(600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqrtCur, err := SqrtPriceAtTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amount0 := big.NewInt(1_000_000_000)
	liquidity := LiquidityForAmount0(sqrtCur, sqrtUpper, amount0)
	if liquidity.Sign() <= 0 {
		t.Fatalf("expected positive liquidity, got %s", liquidity)
	}

	back := Amount0ForLiquidity(sqrtCur, sqrtUpper, liquidity)
	diff := new(big.Int).Sub(amount0, back)
	diff.Abs(diff)
	// Round-trip through liquidity loses at most a few base units.
	if diff.Cmp(big.NewInt(10)) > 0 {
		t.Fatalf("amount0 round trip drift too large: %s", diff)
	}

	amount1 := Amount1ForLiquidity(sqrtLower, sqrtCur, liquidity)
	if amount1.Sign() <= 0 {
		t.Fatalf("expected positive amount1, got %s", amount1)
	}
}

func TestMulDivZeroDenominator(t *testing.T) {
	got := MulDiv(big.NewInt(3), big.NewInt(4), big.NewInt(0))
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}
