// Package oracle resolves USD prices for assets. Well-known assets come
// from trusted feeds with staleness and round-consistency checks; the long
// tail is resolved by searching a prioritized list of bridge assets against
// the external rate oracle.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrPriceUnavailable marks an asset no source could price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrStalePrice marks a feed observation older than the staleness ceiling.
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidPriceRound marks an inconsistent or incomplete feed round.
	ErrInvalidPriceRound = errors.New("invalid price round")
)

// DefaultStaleness is the feed-age ceiling when none is configured.
const DefaultStaleness = time.Hour

// Quote is a USD price per whole unit of an asset.
type Quote struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// PriceSource is one provider in the aggregation chain. handled reports
// whether the source is responsible for the asset; a handled error is
// authoritative and must not be masked by later sources.
type PriceSource interface {
	TryPrice(ctx context.Context, asset common.Address) (quote Quote, handled bool, err error)
}

// Aggregator resolves prices by walking an ordered source chain.
type Aggregator struct {
	base    common.Address
	sources []PriceSource
	now     func() time.Time
	logger  *zap.Logger
}

// NewAggregator builds an aggregator for the given base asset. Sources are
// consulted in order; the base asset short-circuits to a unit price.
func NewAggregator(base common.Address, sources []PriceSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		base:    base,
		sources: sources,
		now:     time.Now,
		logger:  logger,
	}
}

// PriceInBase returns the asset's USD price.
func (a *Aggregator) PriceInBase(ctx context.Context, asset common.Address) (Quote, error) {
	if asset == a.base {
		return Quote{Price: decimal.NewFromInt(1), UpdatedAt: a.now()}, nil
	}

	for _, source := range a.sources {
		quote, handled, err := source.TryPrice(ctx, asset)
		if !handled {
			continue
		}
		if err != nil {
			return Quote{}, err
		}
		a.logger.Debug("price resolved",
			zap.String("asset", asset.Hex()),
			zap.String("price", quote.Price.String()),
		)
		return quote, nil
	}

	return Quote{}, fmt.Errorf("asset %s: %w", asset.Hex(), ErrPriceUnavailable)
}
