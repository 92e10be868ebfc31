// Package swap executes routes against the venue with slippage floors
// derived from quotes, verifying realized outputs from balance deltas.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityRouter/internal/model"
	"liquidityRouter/internal/venue"
)

// ErrInsufficientOutput marks a realized swap output below the slippage
// floor.
var ErrInsufficientOutput = errors.New("insufficient output")

const (
	// DefaultSlippageBps applies when a caller passes zero.
	DefaultSlippageBps = uint32(100)
	// MaxSlippageBps is the hard ceiling on tolerated slippage.
	MaxSlippageBps = uint32(1000)

	bpsDenominator = 10_000
)

// Executor runs swaps for the engine's custody account.
type Executor struct {
	quoter    venue.Quoter
	router    venue.SwapRouter
	balances  venue.BalanceReader
	recipient common.Address
	logger    *zap.Logger
}

func NewExecutor(quoter venue.Quoter, router venue.SwapRouter, balances venue.BalanceReader, recipient common.Address, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		quoter:    quoter,
		router:    router,
		balances:  balances,
		recipient: recipient,
		logger:    logger,
	}
}

// NormalizeSlippage applies the default for zero and clamps to the ceiling.
func NormalizeSlippage(slippageBps uint32) uint32 {
	if slippageBps == 0 {
		return DefaultSlippageBps
	}
	if slippageBps > MaxSlippageBps {
		return MaxSlippageBps
	}
	return slippageBps
}

// Swap converts amountIn along the route and returns the realized output,
// measured as the recipient's balance delta in the destination asset. The
// minimum acceptable output is the quoted amount minus the slippage
// tolerance; when the quoter cannot answer, a one-unit floor keeps the
// operation live at the cost of safety margin.
func (e *Executor) Swap(ctx context.Context, route model.Route, amountIn *big.Int, slippageBps uint32, deadline time.Time) (*big.Int, error) {
	// A hopless route (including the zero value a failed route lookup
	// leaves behind) converts nothing, so it must short-circuit before
	// shape validation.
	if amountIn == nil {
		amountIn = new(big.Int)
	}
	if route.Empty() {
		return new(big.Int).Set(amountIn), nil
	}
	if amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	if err := route.Validate(nil); err != nil {
		return nil, err
	}
	slippageBps = NormalizeSlippage(slippageBps)

	if route.Hops() == 1 {
		return e.swapSingle(ctx, route, amountIn, slippageBps, deadline)
	}
	return e.swapMulti(ctx, route, amountIn, slippageBps, deadline)
}

func (e *Executor) swapSingle(ctx context.Context, route model.Route, amountIn *big.Int, slippageBps uint32, deadline time.Time) (*big.Int, error) {
	tokenIn, tokenOut := route.Source(), route.Destination()
	spacing := route.TickSpacings[0]

	minOut := e.minOutput(ctx, func(ctx context.Context) (*big.Int, error) {
		return e.quoter.QuoteExactInputSingle(ctx, tokenIn, tokenOut, spacing, amountIn)
	}, slippageBps)

	before, err := e.balances.BalanceOf(ctx, tokenOut, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("balance before: %w", err)
	}

	err = e.router.ExactInputSingle(ctx, venue.SingleHopParams{
		TokenIn:          tokenIn,
		TokenOut:         tokenOut,
		TickSpacing:      spacing,
		Recipient:        e.recipient,
		Deadline:         deadline,
		AmountIn:         amountIn,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return nil, fmt.Errorf("swap %s -> %s: %w", tokenIn.Hex(), tokenOut.Hex(), err)
	}

	return e.verifyOutput(ctx, tokenOut, before, minOut)
}

func (e *Executor) swapMulti(ctx context.Context, route model.Route, amountIn *big.Int, slippageBps uint32, deadline time.Time) (*big.Int, error) {
	path, err := EncodePath(route)
	if err != nil {
		return nil, err
	}
	tokenOut := route.Destination()

	minOut := e.minOutput(ctx, func(ctx context.Context) (*big.Int, error) {
		return e.quoter.QuoteExactInput(ctx, path, amountIn)
	}, slippageBps)

	before, err := e.balances.BalanceOf(ctx, tokenOut, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("balance before: %w", err)
	}

	err = e.router.ExactInput(ctx, venue.MultiHopParams{
		Path:             path,
		Recipient:        e.recipient,
		Deadline:         deadline,
		AmountIn:         amountIn,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return nil, fmt.Errorf("multi-hop swap to %s: %w", tokenOut.Hex(), err)
	}

	return e.verifyOutput(ctx, tokenOut, before, minOut)
}

// minOutput derives the slippage floor from a quote, falling back to one
// base unit when quoting fails.
func (e *Executor) minOutput(ctx context.Context, quote func(context.Context) (*big.Int, error), slippageBps uint32) *big.Int {
	quoted, err := quote(ctx)
	if err != nil || quoted == nil || quoted.Sign() <= 0 {
		e.logger.Warn("quote unavailable, using minimal output floor", zap.Error(err))
		return big.NewInt(1)
	}
	minOut := new(big.Int).Mul(quoted, big.NewInt(int64(bpsDenominator-slippageBps)))
	minOut.Quo(minOut, big.NewInt(bpsDenominator))
	if minOut.Sign() <= 0 {
		minOut = big.NewInt(1)
	}
	return minOut
}

// verifyOutput measures the realized output from the balance delta and
// enforces the floor; the router's own return value is never trusted.
func (e *Executor) verifyOutput(ctx context.Context, tokenOut common.Address, before, minOut *big.Int) (*big.Int, error) {
	after, err := e.balances.BalanceOf(ctx, tokenOut, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("balance after: %w", err)
	}
	realized := new(big.Int).Sub(after, before)
	if realized.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("realized %s below floor %s: %w", realized, minOut, ErrInsufficientOutput)
	}
	return realized, nil
}

// ConvertPair converts funding into two target assets. When one target's
// route passes through the other target (its first hop lands on it), the
// two legs are not independent: the first leg is executed once for the
// combined amount, the dependent tail runs on a carved-out portion, and the
// residual becomes the first target's final amount.
func (e *Executor) ConvertPair(ctx context.Context, route0, route1 model.Route, amount0, amount1 *big.Int, slippageBps uint32, deadline time.Time) (*big.Int, *big.Int, error) {
	if dependsOn(route1, route0) {
		out0, out1, err := e.convertDependent(ctx, route0, route1, amount0, amount1, slippageBps, deadline)
		return out0, out1, err
	}
	if dependsOn(route0, route1) {
		out1, out0, err := e.convertDependent(ctx, route1, route0, amount1, amount0, slippageBps, deadline)
		return out0, out1, err
	}

	out0, err := e.Swap(ctx, route0, amount0, slippageBps, deadline)
	if err != nil {
		return nil, nil, err
	}
	out1, err := e.Swap(ctx, route1, amount1, slippageBps, deadline)
	if err != nil {
		return nil, nil, err
	}
	return out0, out1, nil
}

// convertDependent handles the case where dependent's route reaches its
// target through primary's destination asset.
func (e *Executor) convertDependent(ctx context.Context, primary, dependent model.Route, primaryAmount, dependentAmount *big.Int, slippageBps uint32, deadline time.Time) (*big.Int, *big.Int, error) {
	combined := new(big.Int).Add(primaryAmount, dependentAmount)
	intermediate, err := e.Swap(ctx, primary, combined, slippageBps, deadline)
	if err != nil {
		return nil, nil, err
	}

	// Carve the dependent leg's share out of the intermediate amount,
	// proportional to the funding split; an underivable share splits
	// 50/50 rather than failing.
	carved := new(big.Int)
	if combined.Sign() > 0 {
		carved.Mul(intermediate, dependentAmount)
		carved.Quo(carved, combined)
	} else {
		carved.Rsh(intermediate, 1)
	}

	dependentOut, err := e.Swap(ctx, dependent.Tail(), carved, slippageBps, deadline)
	if err != nil {
		return nil, nil, err
	}

	primaryOut := new(big.Int).Sub(intermediate, carved)
	e.logger.Debug("dependent conversion resolved",
		zap.String("intermediate", intermediate.String()),
		zap.String("carved", carved.String()),
		zap.String("residual", primaryOut.String()),
	)
	return primaryOut, dependentOut, nil
}

// dependsOn reports whether route's first hop lands on target's
// destination while both start from the same source.
func dependsOn(route, target model.Route) bool {
	if route.Hops() < 2 || target.Hops() < 1 {
		return false
	}
	return route.Source() == target.Source() && route.Tokens[1] == target.Destination()
}
