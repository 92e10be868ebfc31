package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityRouter/internal/venue"
)

// FeedSource prices the configured well-known assets from trusted feeds.
// Any check failure aborts the calling operation; a stale feed is never
// silently replaced by a fallback value.
type FeedSource struct {
	feeds     map[common.Address]common.Address
	client    venue.PriceFeed
	staleness time.Duration
	now       func() time.Time
}

// NewFeedSource maps assets to their feed contracts. staleness <= 0 uses
// DefaultStaleness.
func NewFeedSource(feeds map[common.Address]common.Address, client venue.PriceFeed, staleness time.Duration) *FeedSource {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &FeedSource{
		feeds:     feeds,
		client:    client,
		staleness: staleness,
		now:       time.Now,
	}
}

func (s *FeedSource) TryPrice(ctx context.Context, asset common.Address) (Quote, bool, error) {
	feed, ok := s.feeds[asset]
	if !ok {
		return Quote{}, false, nil
	}

	round, err := s.client.LatestRound(ctx, feed)
	if err != nil {
		return Quote{}, true, fmt.Errorf("feed %s: %w", feed.Hex(), err)
	}

	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return Quote{}, true, fmt.Errorf("feed %s: non-positive answer: %w", feed.Hex(), ErrInvalidPriceRound)
	}
	if round.UpdatedAt.IsZero() || round.UpdatedAt.Unix() == 0 {
		return Quote{}, true, fmt.Errorf("feed %s: round incomplete: %w", feed.Hex(), ErrInvalidPriceRound)
	}
	if round.AnsweredInRound == nil || round.RoundID == nil || round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return Quote{}, true, fmt.Errorf("feed %s: answered round behind: %w", feed.Hex(), ErrInvalidPriceRound)
	}
	if age := s.now().Sub(round.UpdatedAt); age > s.staleness {
		return Quote{}, true, fmt.Errorf("feed %s: age %s: %w", feed.Hex(), age, ErrStalePrice)
	}

	price := decimal.NewFromBigInt(round.Answer, -int32(round.Decimals))
	return Quote{Price: price, UpdatedAt: round.UpdatedAt}, true, nil
}

// BridgeSource prices arbitrary assets by probing the rate oracle through a
// prioritized bridge list. The zero address as the first bridge means a
// direct lookup. It handles every asset and must sit last in the chain.
type BridgeSource struct {
	rates        venue.RateOracle
	tokens       venue.TokenMetadata
	base         common.Address
	baseDecimals uint8
	bridges      []common.Address
	logger       *zap.Logger
	now          func() time.Time
}

func NewBridgeSource(rates venue.RateOracle, tokens venue.TokenMetadata, base common.Address, baseDecimals uint8, bridges []common.Address, logger *zap.Logger) *BridgeSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Direct lookup first, then each configured bridge.
	ordered := make([]common.Address, 0, len(bridges)+1)
	ordered = append(ordered, common.Address{})
	ordered = append(ordered, bridges...)
	return &BridgeSource{
		rates:        rates,
		tokens:       tokens,
		base:         base,
		baseDecimals: baseDecimals,
		bridges:      ordered,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *BridgeSource) TryPrice(ctx context.Context, asset common.Address) (Quote, bool, error) {
	decimals, err := s.tokens.Decimals(ctx, asset)
	if err != nil {
		decimals = venue.DefaultTokenDecimals
	}

	for _, bridge := range s.bridges {
		if bridge == asset || bridge == s.base {
			continue
		}
		rate, weight, err := s.rates.Rate(ctx, asset, s.base, bridge)
		if err != nil {
			s.logger.Debug("rate lookup failed",
				zap.String("asset", asset.Hex()),
				zap.String("bridge", bridge.Hex()),
				zap.Error(err),
			)
			continue
		}
		if rate == nil || rate.Sign() <= 0 || weight == nil || weight.Sign() <= 0 {
			continue
		}

		// rate converts asset base units to base-asset units at Q18 scale;
		// price per whole token follows from the two precisions.
		price := decimal.NewFromBigInt(rate, -18).Shift(int32(decimals) - int32(s.baseDecimals))
		return Quote{Price: price, UpdatedAt: s.now()}, true, nil
	}

	return Quote{}, true, fmt.Errorf("asset %s: all bridges exhausted: %w", asset.Hex(), ErrPriceUnavailable)
}
