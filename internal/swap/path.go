package swap

import (
	"fmt"

	"liquidityRouter/internal/model"
)

// EncodePath packs a multi-hop route into the venue's path layout:
// token (20 bytes), tick spacing (3 bytes, big-endian two's complement),
// repeating, terminated by the final token.
func EncodePath(route model.Route) ([]byte, error) {
	if len(route.Tokens) != len(route.Pools)+1 || len(route.TickSpacings) != len(route.Pools) {
		return nil, model.ErrArrayLengthMismatch
	}
	if route.Hops() == 0 {
		return nil, fmt.Errorf("empty route: %w", model.ErrInvalidRoute)
	}

	path := make([]byte, 0, len(route.Tokens)*20+len(route.TickSpacings)*3)
	for i, spacing := range route.TickSpacings {
		path = append(path, route.Tokens[i].Bytes()...)
		path = append(path, byte(spacing>>16), byte(spacing>>8), byte(spacing))
	}
	path = append(path, route.Tokens[len(route.Tokens)-1].Bytes()...)
	return path, nil
}
