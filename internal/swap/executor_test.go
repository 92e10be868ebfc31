package swap

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityRouter/internal/model"
	"liquidityRouter/internal/venue"
)

var (
	usdc = common.HexToAddress("0x1000000000000000000000000000000000000001")
	weth = common.HexToAddress("0x1000000000000000000000000000000000000002")
	dai  = common.HexToAddress("0x1000000000000000000000000000000000000003")

	poolA = common.HexToAddress("0x2000000000000000000000000000000000000001")
	poolB = common.HexToAddress("0x2000000000000000000000000000000000000002")

	holder = common.HexToAddress("0x3000000000000000000000000000000000000001")
)

// ledger tracks the holder's per-token balances so the fake router can
// credit outputs the same way a real venue settles them.
type ledger struct {
	balances map[common.Address]*big.Int
}

func newLedger() *ledger {
	return &ledger{balances: make(map[common.Address]*big.Int)}
}

func (l *ledger) credit(token common.Address, amount *big.Int) {
	cur, ok := l.balances[token]
	if !ok {
		cur = new(big.Int)
	}
	l.balances[token] = new(big.Int).Add(cur, amount)
}

func (l *ledger) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if bal, ok := l.balances[token]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

type fakeQuoter struct {
	out *big.Int
	err error
}

func (q *fakeQuoter) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, tickSpacing int32, amountIn *big.Int) (*big.Int, error) {
	return q.out, q.err
}

func (q *fakeQuoter) QuoteExactInput(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	return q.out, q.err
}

// fakeRouter pops one payout per call and credits it to the destination
// asset, mimicking on-chain settlement.
type fakeRouter struct {
	l       *ledger
	payouts []*big.Int
	err     error

	single []venue.SingleHopParams
	multi  []venue.MultiHopParams
}

func (r *fakeRouter) pop() *big.Int {
	if len(r.payouts) == 0 {
		return new(big.Int)
	}
	out := r.payouts[0]
	r.payouts = r.payouts[1:]
	return out
}

func (r *fakeRouter) ExactInputSingle(ctx context.Context, params venue.SingleHopParams) error {
	r.single = append(r.single, params)
	if r.err != nil {
		return r.err
	}
	r.l.credit(params.TokenOut, r.pop())
	return nil
}

func (r *fakeRouter) ExactInput(ctx context.Context, params venue.MultiHopParams) error {
	r.multi = append(r.multi, params)
	if r.err != nil {
		return r.err
	}
	tokenOut := common.BytesToAddress(params.Path[len(params.Path)-20:])
	r.l.credit(tokenOut, r.pop())
	return nil
}

func singleHop(in, out common.Address) model.Route {
	return model.Route{
		Pools:        []common.Address{poolA},
		Tokens:       []common.Address{in, out},
		TickSpacings: []int32{60},
	}
}

func twoHop(in, mid, out common.Address) model.Route {
	return model.Route{
		Pools:        []common.Address{poolA, poolB},
		Tokens:       []common.Address{in, mid, out},
		TickSpacings: []int32{60, 10},
	}
}

func newTestExecutor(quoter *fakeQuoter, router *fakeRouter) *Executor {
	return NewExecutor(quoter, router, router.l, holder, nil)
}

func TestNormalizeSlippage(t *testing.T) {
	cases := []struct {
		in, want uint32
	}{
		{0, DefaultSlippageBps},
		{250, 250},
		{MaxSlippageBps, MaxSlippageBps},
		{5000, MaxSlippageBps},
	}
	for _, tc := range cases {
		if got := NormalizeSlippage(tc.in); got != tc.want {
			t.Errorf("NormalizeSlippage(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSwapEmptyRoutePassthrough(t *testing.T) {
	router := &fakeRouter{l: newLedger()}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(1)}, router)

	amount := big.NewInt(5000)
	out, err := exec.Swap(context.Background(), model.Route{}, amount, 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Cmp(amount) != 0 {
		t.Fatalf("passthrough output = %s, want %s", out, amount)
	}
	if len(router.single)+len(router.multi) != 0 {
		t.Fatal("empty route must not touch the router")
	}
}

func TestSwapZeroAmount(t *testing.T) {
	router := &fakeRouter{l: newLedger()}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(1)}, router)

	out, err := exec.Swap(context.Background(), singleHop(usdc, weth), new(big.Int), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Sign() != 0 {
		t.Fatalf("zero input output = %s, want 0", out)
	}
	if len(router.single) != 0 {
		t.Fatal("zero input must not touch the router")
	}
}

func TestSwapSingleHopFloor(t *testing.T) {
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(995)}}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(1000)}, router)

	out, err := exec.Swap(context.Background(), singleHop(usdc, weth), big.NewInt(1_000_000), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Cmp(big.NewInt(995)) != 0 {
		t.Fatalf("realized = %s, want 995", out)
	}
	if len(router.single) != 1 {
		t.Fatalf("single calls = %d, want 1", len(router.single))
	}
	// 1000 quoted minus 100 bps.
	if got := router.single[0].AmountOutMinimum; got.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("AmountOutMinimum = %s, want 990", got)
	}
}

func TestSwapBelowFloorFails(t *testing.T) {
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(980)}}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(1000)}, router)

	_, err := exec.Swap(context.Background(), singleHop(usdc, weth), big.NewInt(1_000_000), 100, time.Now().Add(time.Minute))
	if !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("err = %v, want ErrInsufficientOutput", err)
	}
}

func TestSwapQuoterFailureUsesUnitFloor(t *testing.T) {
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(7)}}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("quoter down")}, router)

	out, err := exec.Swap(context.Background(), singleHop(usdc, weth), big.NewInt(1_000_000), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("realized = %s, want 7", out)
	}
	if got := router.single[0].AmountOutMinimum; got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("AmountOutMinimum = %s, want unit floor", got)
	}
}

func TestSwapMultiHop(t *testing.T) {
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(4242)}}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(4300)}, router)

	route := twoHop(usdc, weth, dai)
	out, err := exec.Swap(context.Background(), route, big.NewInt(1_000_000), 200, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Cmp(big.NewInt(4242)) != 0 {
		t.Fatalf("realized = %s, want 4242", out)
	}
	if len(router.multi) != 1 {
		t.Fatalf("multi calls = %d, want 1", len(router.multi))
	}
	wantPath, err := EncodePath(route)
	if err != nil {
		t.Fatalf("EncodePath: %v", err)
	}
	if !bytes.Equal(router.multi[0].Path, wantPath) {
		t.Fatal("multi-hop call used an unexpected path encoding")
	}
}

func TestSwapRouterErrorPropagates(t *testing.T) {
	router := &fakeRouter{l: newLedger(), err: errors.New("execution reverted")}
	exec := newTestExecutor(&fakeQuoter{out: big.NewInt(1000)}, router)

	_, err := exec.Swap(context.Background(), singleHop(usdc, weth), big.NewInt(100), 100, time.Now().Add(time.Minute))
	if err == nil {
		t.Fatal("expected router error to propagate")
	}
}

func TestConvertPairIndependent(t *testing.T) {
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(100), big.NewInt(200)}}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("no quote")}, router)

	out0, out1, err := exec.ConvertPair(context.Background(),
		singleHop(usdc, weth), singleHop(usdc, dai),
		big.NewInt(600), big.NewInt(400), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ConvertPair: %v", err)
	}
	if out0.Cmp(big.NewInt(100)) != 0 || out1.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("outputs = %s, %s; want 100, 200", out0, out1)
	}
	if len(router.single) != 2 {
		t.Fatalf("single calls = %d, want 2", len(router.single))
	}
}

func TestConvertPairDependentCarve(t *testing.T) {
	// route1 reaches dai through weth, route0's destination, so the first
	// leg must run once for the combined amount.
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(2000), big.NewInt(1234)}}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("no quote")}, router)

	out0, out1, err := exec.ConvertPair(context.Background(),
		singleHop(usdc, weth), twoHop(usdc, weth, dai),
		big.NewInt(600), big.NewInt(400), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ConvertPair: %v", err)
	}
	if len(router.single) != 2 {
		t.Fatalf("single calls = %d, want 2", len(router.single))
	}
	if got := router.single[0].AmountIn; got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("combined first leg AmountIn = %s, want 1000", got)
	}
	// Carve: 2000 * 400 / 1000 = 800 routed down the tail.
	if got := router.single[1].AmountIn; got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("tail AmountIn = %s, want 800", got)
	}
	if router.single[1].TokenIn != weth || router.single[1].TokenOut != dai {
		t.Fatal("tail leg must run on the dependent route's remaining hop")
	}
	if out0.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("residual = %s, want 1200", out0)
	}
	if out1.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("dependent output = %s, want 1234", out1)
	}
}

func TestConvertPairDependentReversed(t *testing.T) {
	// Same dependency with the legs swapped: route0 passes through
	// route1's destination.
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(2000), big.NewInt(1234)}}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("no quote")}, router)

	out0, out1, err := exec.ConvertPair(context.Background(),
		twoHop(usdc, weth, dai), singleHop(usdc, weth),
		big.NewInt(400), big.NewInt(600), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ConvertPair: %v", err)
	}
	if out0.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("dependent output = %s, want 1234", out0)
	}
	if out1.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("residual = %s, want 1200", out1)
	}
}

func TestConvertPairSkipsRoutelessZeroLeg(t *testing.T) {
	// A failed route lookup leaves a zero-value route behind; with no
	// funding on that leg the pair conversion must still run the other
	// leg instead of rejecting the route shape.
	router := &fakeRouter{l: newLedger(), payouts: []*big.Int{big.NewInt(100)}}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("no quote")}, router)

	out0, out1, err := exec.ConvertPair(context.Background(),
		singleHop(usdc, weth), model.Route{},
		big.NewInt(500), new(big.Int), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ConvertPair: %v", err)
	}
	if out0.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("routed output = %s, want 100", out0)
	}
	if out1.Sign() != 0 {
		t.Fatalf("routeless output = %s, want 0", out1)
	}
	if len(router.single) != 1 {
		t.Fatalf("single calls = %d, want 1", len(router.single))
	}
}

func TestConvertPairZeroAmounts(t *testing.T) {
	router := &fakeRouter{l: newLedger()}
	exec := newTestExecutor(&fakeQuoter{err: errors.New("no quote")}, router)

	out0, out1, err := exec.ConvertPair(context.Background(),
		singleHop(usdc, weth), twoHop(usdc, weth, dai),
		new(big.Int), new(big.Int), 100, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ConvertPair: %v", err)
	}
	if out0.Sign() != 0 || out1.Sign() != 0 {
		t.Fatalf("outputs = %s, %s; want zeros", out0, out1)
	}
}

func TestEncodePath(t *testing.T) {
	route := twoHop(usdc, weth, dai)
	path, err := EncodePath(route)
	if err != nil {
		t.Fatalf("EncodePath: %v", err)
	}
	if len(path) != 20+3+20+3+20 {
		t.Fatalf("path length = %d, want 66", len(path))
	}
	if !bytes.Equal(path[:20], usdc.Bytes()) {
		t.Fatal("path must start with the source token")
	}
	if !bytes.Equal(path[20:23], []byte{0, 0, 60}) {
		t.Fatalf("first spacing bytes = %x, want 00003c", path[20:23])
	}
	if !bytes.Equal(path[len(path)-20:], dai.Bytes()) {
		t.Fatal("path must end with the destination token")
	}

	if _, err := EncodePath(model.Route{}); err == nil {
		t.Fatal("expected error for an empty route")
	}
}
