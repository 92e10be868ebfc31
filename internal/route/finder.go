package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityRouter/internal/model"
)

// ErrNoRoute marks a pair no direct or bridged path connects.
var ErrNoRoute = errors.New("no route")

// RouteStatus reports the outcome of a dual-route lookup.
type RouteStatus int

const (
	// RouteNone means neither leg resolved.
	RouteNone RouteStatus = iota
	// RoutePartial means exactly one leg resolved; whether that is usable
	// is the caller's policy decision.
	RoutePartial
	// RouteSuccess means both legs resolved.
	RouteSuccess
)

// RoutePair holds the two legs of a dual-route lookup.
type RoutePair struct {
	Status RouteStatus
	Route0 model.Route
	Route1 model.Route
	Err0   error
	Err1   error
}

// Finder produces swap routes using the locator and a prioritized list of
// bridge assets.
type Finder struct {
	locator *Locator
	bridges []common.Address
	logger  *zap.Logger
}

func NewFinder(locator *Locator, bridges []common.Address, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{locator: locator, bridges: bridges, logger: logger}
}

// FindRoute returns a path from `from` to `to`: empty when they are the
// same asset, one hop for a direct pool, otherwise two hops through the
// first bridge with pools on both sides. Fails with ErrNoRoute when no
// bridge connects the pair.
func (f *Finder) FindRoute(ctx context.Context, from, to common.Address) (model.Route, error) {
	if from == to {
		return model.Route{Tokens: []common.Address{from}}, nil
	}

	direct, found, err := f.locator.FindPool(ctx, from, to)
	if err != nil {
		return model.Route{}, err
	}
	if found {
		return model.Route{
			Pools:        []common.Address{direct.Address},
			Tokens:       []common.Address{from, to},
			TickSpacings: []int32{direct.TickSpacing},
		}, nil
	}

	for _, bridge := range f.bridges {
		if bridge == from || bridge == to {
			continue
		}
		first, foundFirst, err := f.locator.FindPool(ctx, from, bridge)
		if err != nil {
			return model.Route{}, err
		}
		if !foundFirst {
			continue
		}
		second, foundSecond, err := f.locator.FindPool(ctx, bridge, to)
		if err != nil {
			return model.Route{}, err
		}
		if !foundSecond {
			continue
		}
		f.logger.Debug("bridged route found",
			zap.String("from", from.Hex()),
			zap.String("to", to.Hex()),
			zap.String("bridge", bridge.Hex()),
		)
		return model.Route{
			Pools:        []common.Address{first.Address, second.Address},
			Tokens:       []common.Address{from, bridge, to},
			TickSpacings: []int32{first.TickSpacing, second.TickSpacing},
		}, nil
	}

	return model.Route{}, fmt.Errorf("%s -> %s: %w", from.Hex(), to.Hex(), ErrNoRoute)
}

// FindRoutesForOpen resolves the funding asset's routes into both position
// assets.
func (f *Finder) FindRoutesForOpen(ctx context.Context, funding, token0, token1 common.Address) RoutePair {
	return f.findPair(ctx, funding, token0, funding, token1)
}

// FindRoutesForClose resolves both position assets' routes back to the
// funding asset.
func (f *Finder) FindRoutesForClose(ctx context.Context, token0, token1, funding common.Address) RoutePair {
	return f.findPair(ctx, token0, funding, token1, funding)
}

// findPair computes the two legs independently and reports the tri-state
// status; the policy for a partial result belongs to the caller.
func (f *Finder) findPair(ctx context.Context, from0, to0, from1, to1 common.Address) RoutePair {
	pair := RoutePair{}
	pair.Route0, pair.Err0 = f.FindRoute(ctx, from0, to0)
	pair.Route1, pair.Err1 = f.FindRoute(ctx, from1, to1)

	switch {
	case pair.Err0 == nil && pair.Err1 == nil:
		pair.Status = RouteSuccess
	case pair.Err0 == nil || pair.Err1 == nil:
		pair.Status = RoutePartial
	default:
		pair.Status = RouteNone
	}
	return pair
}
