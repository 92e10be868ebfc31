package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityRouter/internal/venue"
)

var (
	baseAsset  = common.BytesToAddress([]byte{0xba})
	wellKnown  = common.BytesToAddress([]byte{0x01})
	longTail   = common.BytesToAddress([]byte{0x02})
	bridgeA    = common.BytesToAddress([]byte{0x0a})
	feedAddr   = common.BytesToAddress([]byte{0xfe})
	fixedClock = time.Unix(1_700_000_000, 0)
)

type fakeFeed struct {
	round venue.RoundData
	err   error
}

func (f *fakeFeed) LatestRound(_ context.Context, _ common.Address) (venue.RoundData, error) {
	return f.round, f.err
}

type rateKey struct {
	in, out, bridge common.Address
}

type fakeRates struct {
	rates map[rateKey][2]*big.Int
}

func (f *fakeRates) Rate(_ context.Context, tokenIn, tokenOut, bridge common.Address) (*big.Int, *big.Int, error) {
	pair, ok := f.rates[rateKey{tokenIn, tokenOut, bridge}]
	if !ok {
		return nil, nil, errors.New("no rate")
	}
	return pair[0], pair[1], nil
}

type fakeTokens struct {
	decimals map[common.Address]uint8
}

func (f *fakeTokens) Decimals(_ context.Context, token common.Address) (uint8, error) {
	if d, ok := f.decimals[token]; ok {
		return d, nil
	}
	return 0, errors.New("unknown token")
}

func healthyRound(answer int64) venue.RoundData {
	return venue.RoundData{
		RoundID:         big.NewInt(10),
		Answer:          big.NewInt(answer),
		UpdatedAt:       fixedClock.Add(-time.Minute),
		AnsweredInRound: big.NewInt(10),
		Decimals:        8,
	}
}

func newFeedSource(feed *fakeFeed) *FeedSource {
	source := NewFeedSource(map[common.Address]common.Address{wellKnown: feedAddr}, feed, time.Hour)
	source.now = func() time.Time { return fixedClock }
	return source
}

func TestBasePriceIsUnit(t *testing.T) {
	agg := NewAggregator(baseAsset, nil, nil)
	quote, err := agg.PriceInBase(context.Background(), baseAsset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price.String() != "1" {
		t.Fatalf("expected unit price, got %s", quote.Price)
	}
}

func TestFeedSourcePrice(t *testing.T) {
	feed := &fakeFeed{round: healthyRound(250_000_000_000)} // 2500.0 at 8 decimals
	agg := NewAggregator(baseAsset, []PriceSource{newFeedSource(feed)}, nil)

	quote, err := agg.PriceInBase(context.Background(), wellKnown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price.String() != "2500" {
		t.Fatalf("expected 2500, got %s", quote.Price)
	}
}

func TestFeedSourceStaleAborts(t *testing.T) {
	round := healthyRound(100)
	round.UpdatedAt = fixedClock.Add(-2 * time.Hour)
	feed := &fakeFeed{round: round}

	// A healthy bridge source sits behind the feed; the stale feed must
	// abort rather than fall through to it.
	rates := &fakeRates{rates: map[rateKey][2]*big.Int{
		{wellKnown, baseAsset, common.Address{}}: {big.NewInt(1e18), big.NewInt(1)},
	}}
	bridge := NewBridgeSource(rates, &fakeTokens{}, baseAsset, 6, nil, nil)
	agg := NewAggregator(baseAsset, []PriceSource{newFeedSource(feed), bridge}, nil)

	_, err := agg.PriceInBase(context.Background(), wellKnown)
	if !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price error, got %v", err)
	}
}

func TestFeedSourceRoundChecks(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*venue.RoundData)
	}{
		{"non-positive answer", func(r *venue.RoundData) { r.Answer = big.NewInt(0) }},
		{"incomplete round", func(r *venue.RoundData) { r.UpdatedAt = time.Unix(0, 0) }},
		{"answered round behind", func(r *venue.RoundData) { r.AnsweredInRound = big.NewInt(9) }},
	}
	for _, tc := range cases {
		round := healthyRound(100)
		tc.mutate(&round)
		agg := NewAggregator(baseAsset, []PriceSource{newFeedSource(&fakeFeed{round: round})}, nil)
		if _, err := agg.PriceInBase(context.Background(), wellKnown); !errors.Is(err, ErrInvalidPriceRound) {
			t.Fatalf("%s: expected invalid round error, got %v", tc.name, err)
		}
	}
}

func TestBridgeSourceDirectRate(t *testing.T) {
	// 1e18 rate = 1:1 in base units; with matching 6-decimal precision
	// that is one USD per whole token.
	rates := &fakeRates{rates: map[rateKey][2]*big.Int{
		{longTail, baseAsset, common.Address{}}: {big.NewInt(1e18), big.NewInt(5)},
	}}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{longTail: 6}}
	bridge := NewBridgeSource(rates, tokens, baseAsset, 6, []common.Address{bridgeA}, nil)
	agg := NewAggregator(baseAsset, []PriceSource{bridge}, nil)

	quote, err := agg.PriceInBase(context.Background(), longTail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price.String() != "1" {
		t.Fatalf("expected price 1, got %s", quote.Price)
	}
}

func TestBridgeSourceFallsBackThroughBridges(t *testing.T) {
	rates := &fakeRates{rates: map[rateKey][2]*big.Int{
		{longTail, baseAsset, bridgeA}: {big.NewInt(2e18), big.NewInt(7)},
	}}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{longTail: 6}}
	bridge := NewBridgeSource(rates, tokens, baseAsset, 6, []common.Address{bridgeA}, nil)
	agg := NewAggregator(baseAsset, []PriceSource{bridge}, nil)

	quote, err := agg.PriceInBase(context.Background(), longTail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price.String() != "2" {
		t.Fatalf("expected price 2, got %s", quote.Price)
	}
}

func TestBridgeSourceExhausted(t *testing.T) {
	bridge := NewBridgeSource(&fakeRates{}, &fakeTokens{}, baseAsset, 6, []common.Address{bridgeA}, nil)
	agg := NewAggregator(baseAsset, []PriceSource{bridge}, nil)

	_, err := agg.PriceInBase(context.Background(), longTail)
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}

func TestZeroRateOrWeightRejected(t *testing.T) {
	rates := &fakeRates{rates: map[rateKey][2]*big.Int{
		{longTail, baseAsset, common.Address{}}: {big.NewInt(0), big.NewInt(5)},
		{longTail, baseAsset, bridgeA}:          {big.NewInt(1e18), big.NewInt(0)},
	}}
	bridge := NewBridgeSource(rates, &fakeTokens{}, baseAsset, 6, []common.Address{bridgeA}, nil)
	agg := NewAggregator(baseAsset, []PriceSource{bridge}, nil)

	if _, err := agg.PriceInBase(context.Background(), longTail); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}
