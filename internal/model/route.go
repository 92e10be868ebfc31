package model

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidRoute marks a route whose shape or contents are unusable.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrArrayLengthMismatch marks a route whose parallel slices disagree.
	ErrArrayLengthMismatch = errors.New("route array length mismatch")
)

// Route is an ordered swap path. Tokens[0] is the source asset,
// Tokens[len(Tokens)-1] the destination; Pools[i] connects Tokens[i] and
// Tokens[i+1]. A route with no pools means source and destination are the
// same asset.
type Route struct {
	Pools        []common.Address `json:"pools"`
	Tokens       []common.Address `json:"tokens"`
	TickSpacings []int32          `json:"tick_spacings"`
}

// Hops returns the number of pool hops in the route.
func (r Route) Hops() int {
	return len(r.Pools)
}

// Empty reports whether the route requires no conversion.
func (r Route) Empty() bool {
	return len(r.Pools) == 0
}

// Source returns the route's input asset.
func (r Route) Source() common.Address {
	if len(r.Tokens) == 0 {
		return common.Address{}
	}
	return r.Tokens[0]
}

// Destination returns the route's output asset.
func (r Route) Destination() common.Address {
	if len(r.Tokens) == 0 {
		return common.Address{}
	}
	return r.Tokens[len(r.Tokens)-1]
}

// Tail returns the route with its first hop removed.
func (r Route) Tail() Route {
	if len(r.Pools) == 0 {
		return r
	}
	return Route{
		Pools:        r.Pools[1:],
		Tokens:       r.Tokens[1:],
		TickSpacings: r.TickSpacings[1:],
	}
}

// Validate checks the route shape invariants: matching slice lengths, no
// zero token or pool entries, and every hop's tick spacing drawn from the
// allowed set. An empty allowed set disables the spacing check.
func (r Route) Validate(allowedSpacings []int32) error {
	if len(r.Tokens) != len(r.Pools)+1 {
		return ErrArrayLengthMismatch
	}
	if len(r.TickSpacings) != len(r.Pools) {
		return ErrArrayLengthMismatch
	}
	for _, token := range r.Tokens {
		if token == (common.Address{}) {
			return ErrInvalidRoute
		}
	}
	for _, pool := range r.Pools {
		if pool == (common.Address{}) {
			return ErrInvalidRoute
		}
	}
	if len(allowedSpacings) == 0 {
		return nil
	}
	for _, spacing := range r.TickSpacings {
		if !spacingAllowed(spacing, allowedSpacings) {
			return ErrInvalidRoute
		}
	}
	return nil
}

func spacingAllowed(spacing int32, allowed []int32) bool {
	for _, candidate := range allowed {
		if spacing == candidate {
			return true
		}
	}
	return false
}
