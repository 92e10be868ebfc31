// Package position coordinates the full open and close lifecycle of
// concentrated-liquidity positions funded from the base asset.
package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityRouter/internal/alloc"
	"liquidityRouter/internal/journal"
	"liquidityRouter/internal/model"
	"liquidityRouter/internal/route"
	"liquidityRouter/internal/swap"
	"liquidityRouter/internal/tickmath"
	"liquidityRouter/internal/venue"
)

var (
	// ErrReentrantCall marks an operation started while another is in
	// flight.
	ErrReentrantCall = errors.New("operation already in progress")
	// ErrDeadlineExpired marks a request whose deadline has already
	// passed.
	ErrDeadlineExpired = errors.New("deadline expired")
	// ErrInvalidRange marks a tick range the pool cannot accept.
	ErrInvalidRange = errors.New("invalid tick range")
	// ErrUnauthorized marks a caller the access registry rejects.
	ErrUnauthorized = errors.New("caller not authorized")
	// ErrNoFunding marks an open request without funding.
	ErrNoFunding = errors.New("funding amount required")
)

// DefaultDeadline applies when a request carries no deadline.
const DefaultDeadline = 5 * time.Minute

// OpenRequest parameterizes opening a position from base-asset funding.
type OpenRequest struct {
	Pool        common.Address
	TickLower   int32
	TickUpper   int32
	Funding     *big.Int
	SlippageBps uint32
	Deadline    time.Time
	OnBehalfOf  common.Address
}

// OpenResult reports the opened position and any unconsumed amounts.
type OpenResult struct {
	PositionID *big.Int
	Liquidity  *big.Int
	Amount0    *big.Int
	Amount1    *big.Int
	Leftover0  *big.Int
	Leftover1  *big.Int
}

// CloseRequest parameterizes unwinding a position back to the base asset.
type CloseRequest struct {
	PositionID  *big.Int
	Pool        common.Address
	Liquidity   *big.Int
	MinOut      *big.Int
	SlippageBps uint32
	Deadline    time.Time
	OnBehalfOf  common.Address
}

// CloseResult reports the realized base-asset proceeds.
type CloseResult struct {
	AmountOut *big.Int
	Fees0     *big.Int
	Fees1     *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// Coordinator sequences pool discovery, routing, allocation, swapping and
// venue calls for one operation at a time.
type Coordinator struct {
	pools     venue.PoolReader
	access    venue.AccessRegistry
	positions venue.PositionManager
	finder    *route.Finder
	alloc     *alloc.Calculator
	swapper   *swap.Executor
	journal   journal.Recorder

	baseAsset common.Address
	operator  common.Address
	deadline  time.Duration
	logger    *zap.Logger

	busy atomic.Bool
	now  func() time.Time
}

// Config wires the coordinator's collaborators.
type Config struct {
	Pools     venue.PoolReader
	Access    venue.AccessRegistry
	Positions venue.PositionManager
	Finder    *route.Finder
	Alloc     *alloc.Calculator
	Swapper   *swap.Executor
	Journal   journal.Recorder

	BaseAsset common.Address
	Operator  common.Address
	// Deadline applies when a request carries none.
	Deadline time.Duration
}

func NewCoordinator(cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := cfg.Journal
	if rec == nil {
		rec = journal.Nop{}
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Coordinator{
		pools:     cfg.Pools,
		access:    cfg.Access,
		positions: cfg.Positions,
		finder:    cfg.Finder,
		alloc:     cfg.Alloc,
		swapper:   cfg.Swapper,
		journal:   rec,
		baseAsset: cfg.BaseAsset,
		operator:  cfg.Operator,
		deadline:  deadline,
		logger:    logger,
		now:       time.Now,
	}
}

// Open converts base-asset funding into both pool assets and mints a
// position over the requested tick range. One operation runs at a time;
// a second call while one is in flight fails fast instead of queueing.
func (c *Coordinator) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return OpenResult{}, ErrReentrantCall
	}
	defer c.busy.Store(false)

	if req.Funding == nil || req.Funding.Sign() <= 0 {
		return OpenResult{}, ErrNoFunding
	}
	deadline, err := c.resolveDeadline(req.Deadline)
	if err != nil {
		return OpenResult{}, err
	}
	owner, err := c.authorize(ctx, req.OnBehalfOf)
	if err != nil {
		return OpenResult{}, err
	}

	info, err := c.pools.Metadata(ctx, req.Pool)
	if err != nil {
		return OpenResult{}, fmt.Errorf("pool metadata %s: %w", req.Pool.Hex(), err)
	}
	if err := validateRange(req.TickLower, req.TickUpper, info.TickSpacing); err != nil {
		return OpenResult{}, err
	}
	state, err := c.pools.State(ctx, req.Pool)
	if err != nil {
		return OpenResult{}, fmt.Errorf("pool state %s: %w", req.Pool.Hex(), err)
	}

	routes := c.finder.FindRoutesForOpen(ctx, c.baseAsset, info.Token0, info.Token1)

	amount0, amount1, err := c.alloc.Allocate(ctx, req.Funding, info, state, req.TickLower, req.TickUpper)
	if err != nil {
		return OpenResult{}, fmt.Errorf("allocate funding: %w", err)
	}
	if err := checkRoutes(routes, amount0, amount1); err != nil {
		return OpenResult{}, err
	}

	out0, out1, err := c.swapper.ConvertPair(ctx, routes.Route0, routes.Route1, amount0, amount1, req.SlippageBps, deadline)
	if err != nil {
		return OpenResult{}, fmt.Errorf("convert funding: %w", err)
	}

	mint, err := c.positions.Mint(ctx, venue.MintParams{
		Pool:           info,
		TickLower:      req.TickLower,
		TickUpper:      req.TickUpper,
		Amount0Desired: out0,
		Amount1Desired: out1,
		Recipient:      owner,
		Deadline:       deadline,
	})
	if err != nil {
		return OpenResult{}, fmt.Errorf("mint position: %w", err)
	}

	result := OpenResult{
		PositionID: mint.PositionID,
		Liquidity:  mint.Liquidity,
		Amount0:    mint.Amount0,
		Amount1:    mint.Amount1,
		Leftover0:  new(big.Int).Sub(out0, mint.Amount0),
		Leftover1:  new(big.Int).Sub(out1, mint.Amount1),
	}
	if result.Leftover0.Sign() > 0 || result.Leftover1.Sign() > 0 {
		c.logger.Info("mint left unconsumed amounts",
			zap.String("leftover0", result.Leftover0.String()),
			zap.String("leftover1", result.Leftover1.String()),
		)
	}

	c.record(ctx, model.OperationRecord{
		Kind:        "open",
		Pool:        info.Address.Hex(),
		PositionID:  mint.PositionID.String(),
		Token0:      info.Token0.Hex(),
		Token1:      info.Token1.Hex(),
		TickLower:   req.TickLower,
		TickUpper:   req.TickUpper,
		Funding:     req.Funding.String(),
		Amount0:     mint.Amount0.String(),
		Amount1:     mint.Amount1.String(),
		Liquidity:   mint.Liquidity.String(),
		SlippageBps: swap.NormalizeSlippage(req.SlippageBps),
		Status:      "success",
		CompletedAt: c.now().UTC().Format(time.RFC3339),
	})

	c.logger.Info("position opened",
		zap.String("pool", info.Address.Hex()),
		zap.String("position_id", mint.PositionID.String()),
		zap.String("liquidity", mint.Liquidity.String()),
	)
	return result, nil
}

// Close collects fees, withdraws liquidity, burns the position and swaps
// the proceeds back into the base asset.
func (c *Coordinator) Close(ctx context.Context, req CloseRequest) (CloseResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return CloseResult{}, ErrReentrantCall
	}
	defer c.busy.Store(false)

	if req.PositionID == nil {
		return CloseResult{}, fmt.Errorf("position id required")
	}
	deadline, err := c.resolveDeadline(req.Deadline)
	if err != nil {
		return CloseResult{}, err
	}
	if _, err := c.authorize(ctx, req.OnBehalfOf); err != nil {
		return CloseResult{}, err
	}

	info, err := c.pools.Metadata(ctx, req.Pool)
	if err != nil {
		return CloseResult{}, fmt.Errorf("pool metadata %s: %w", req.Pool.Hex(), err)
	}

	// Resolve routes back to the base asset before touching the venue:
	// collect, decrease and burn are one-way, so a pair with no path home
	// must abort while the position is still intact. Partial routes are
	// re-checked against realized amounts below.
	routes := c.finder.FindRoutesForClose(ctx, info.Token0, info.Token1, c.baseAsset)
	if routes.Status == route.RouteNone {
		return CloseResult{}, fmt.Errorf("no route for either leg: %w", routes.Err0)
	}

	fees0, fees1, err := c.positions.CollectFees(ctx, req.PositionID, c.operator)
	if err != nil {
		return CloseResult{}, fmt.Errorf("collect fees: %w", err)
	}
	amt0, amt1, err := c.positions.DecreaseLiquidity(ctx, req.PositionID, req.Liquidity, deadline)
	if err != nil {
		return CloseResult{}, fmt.Errorf("decrease liquidity: %w", err)
	}
	if err := c.positions.Burn(ctx, req.PositionID); err != nil {
		return CloseResult{}, fmt.Errorf("burn position: %w", err)
	}

	total0 := sum(fees0, amt0)
	total1 := sum(fees1, amt1)

	if err := checkRoutes(routes, total0, total1); err != nil {
		return CloseResult{}, err
	}

	out0, err := c.swapper.Swap(ctx, routes.Route0, total0, req.SlippageBps, deadline)
	if err != nil {
		return CloseResult{}, fmt.Errorf("unwind token0: %w", err)
	}
	out1, err := c.swapper.Swap(ctx, routes.Route1, total1, req.SlippageBps, deadline)
	if err != nil {
		return CloseResult{}, fmt.Errorf("unwind token1: %w", err)
	}

	amountOut := new(big.Int).Add(out0, out1)
	if req.MinOut != nil && amountOut.Cmp(req.MinOut) < 0 {
		return CloseResult{}, fmt.Errorf("proceeds %s below minimum %s: %w", amountOut, req.MinOut, swap.ErrInsufficientOutput)
	}

	c.record(ctx, model.OperationRecord{
		Kind:        "close",
		Pool:        info.Address.Hex(),
		PositionID:  req.PositionID.String(),
		Token0:      info.Token0.Hex(),
		Token1:      info.Token1.Hex(),
		Amount0:     total0.String(),
		Amount1:     total1.String(),
		AmountOut:   amountOut.String(),
		Liquidity:   bigString(req.Liquidity),
		SlippageBps: swap.NormalizeSlippage(req.SlippageBps),
		Status:      "success",
		CompletedAt: c.now().UTC().Format(time.RFC3339),
	})

	c.logger.Info("position closed",
		zap.String("pool", info.Address.Hex()),
		zap.String("position_id", req.PositionID.String()),
		zap.String("amount_out", amountOut.String()),
	)
	return CloseResult{
		AmountOut: amountOut,
		Fees0:     fees0,
		Fees1:     fees1,
		Amount0:   amt0,
		Amount1:   amt1,
	}, nil
}

// resolveDeadline fills in the default and rejects deadlines already in
// the past.
func (c *Coordinator) resolveDeadline(deadline time.Time) (time.Time, error) {
	now := c.now()
	if deadline.IsZero() {
		return now.Add(c.deadline), nil
	}
	if !deadline.After(now) {
		return time.Time{}, fmt.Errorf("deadline %s: %w", deadline.Format(time.RFC3339), ErrDeadlineExpired)
	}
	return deadline, nil
}

// authorize resolves the position owner and checks the operator may act
// for them.
func (c *Coordinator) authorize(ctx context.Context, onBehalfOf common.Address) (common.Address, error) {
	owner := onBehalfOf
	if owner == (common.Address{}) {
		owner = c.operator
	}
	if c.access == nil {
		return owner, nil
	}
	ok, err := c.access.IsAuthorized(ctx, c.operator, owner)
	if err != nil {
		return common.Address{}, fmt.Errorf("authorization check: %w", err)
	}
	if !ok {
		return common.Address{}, fmt.Errorf("operator %s for %s: %w", c.operator.Hex(), owner.Hex(), ErrUnauthorized)
	}
	return owner, nil
}

// checkRoutes enforces the partial-route policy: an operation proceeds
// with a missing route only when that leg moves nothing.
func checkRoutes(routes route.RoutePair, amount0, amount1 *big.Int) error {
	switch routes.Status {
	case route.RouteSuccess:
		return nil
	case route.RouteNone:
		return fmt.Errorf("no route for either leg: %w", routes.Err0)
	}
	if routes.Err0 != nil && amount0 != nil && amount0.Sign() > 0 {
		return fmt.Errorf("leg for token0 needs %s: %w", amount0, routes.Err0)
	}
	if routes.Err1 != nil && amount1 != nil && amount1.Sign() > 0 {
		return fmt.Errorf("leg for token1 needs %s: %w", amount1, routes.Err1)
	}
	return nil
}

// validateRange rejects tick ranges the pool cannot mint over.
func validateRange(tickLower, tickUpper, spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("pool tick spacing %d: %w", spacing, ErrInvalidRange)
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("lower %d not below upper %d: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	if tickLower < tickmath.MinTick || tickUpper > tickmath.MaxTick {
		return fmt.Errorf("range [%d, %d] outside tick domain: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	if tickLower%spacing != 0 || tickUpper%spacing != 0 {
		return fmt.Errorf("range [%d, %d] not aligned to spacing %d: %w", tickLower, tickUpper, spacing, ErrInvalidRange)
	}
	if tickUpper-tickLower < spacing {
		return fmt.Errorf("range width below spacing %d: %w", spacing, ErrInvalidRange)
	}
	return nil
}

// record journals the operation; persistence failures are logged and do
// not fail an operation that already settled on chain.
func (c *Coordinator) record(ctx context.Context, rec model.OperationRecord) {
	if err := c.journal.Record(ctx, []model.OperationRecord{rec}); err != nil {
		c.logger.Warn("journal write failed", zap.Error(err))
	}
}

func sum(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Add(out, a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
