package venue

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityRouter/internal/chain"
	"liquidityRouter/internal/model"
)

func callContract(ctx context.Context, client *chain.Client, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// Transactor signs and sends contract transactions and waits for their
// receipts.
type Transactor struct {
	client *chain.Client
	opts   *bind.TransactOpts
	mu     sync.Mutex
}

// NewTransactor builds a transactor from the operator key.
func NewTransactor(client *chain.Client, key *ecdsa.PrivateKey, chainID *big.Int) (*Transactor, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &Transactor{client: client, opts: opts}, nil
}

// Sender returns the transacting account.
func (t *Transactor) Sender() common.Address {
	return t.opts.From
}

func (t *Transactor) transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	// Nonce management in go-ethereum is per-TransactOpts; serialize sends.
	t.mu.Lock()
	defer t.mu.Unlock()

	bound := bind.NewBoundContract(to, parsed, t.client.Eth(), t.client.Eth(), t.client.Eth())
	opts := *t.opts
	opts.Context = ctx

	tx, err := bound.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, t.client.Eth(), tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted: tx %s", method, tx.Hash().Hex())
	}
	return receipt, nil
}

// OnChainFactory resolves pools through the on-chain factory contract.
type OnChainFactory struct {
	client  *chain.Client
	address common.Address
}

func NewOnChainFactory(client *chain.Client, address common.Address) *OnChainFactory {
	return &OnChainFactory{client: client, address: address}
}

func (f *OnChainFactory) GetPool(ctx context.Context, tokenA, tokenB common.Address, tickSpacing int32) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := callContract(ctx, f.client, f.address, parsed, "getPool", tokenA, tokenB, big.NewInt(int64(tickSpacing)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// OnChainPoolReader reads pool contracts directly.
type OnChainPoolReader struct {
	client *chain.Client
}

func NewOnChainPoolReader(client *chain.Client) *OnChainPoolReader {
	return &OnChainPoolReader{client: client}
}

func (r *OnChainPoolReader) Metadata(ctx context.Context, pool common.Address) (model.PoolInfo, error) {
	parsed, err := PoolABI()
	if err != nil {
		return model.PoolInfo{}, err
	}

	values, err := callContract(ctx, r.client, pool, parsed, "token0")
	if err != nil {
		return model.PoolInfo{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callContract(ctx, r.client, pool, parsed, "token1")
	if err != nil {
		return model.PoolInfo{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callContract(ctx, r.client, pool, parsed, "fee")
	if err != nil {
		return model.PoolInfo{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("fee: %w", err)
	}

	values, err = callContract(ctx, r.client, pool, parsed, "tickSpacing")
	if err != nil {
		return model.PoolInfo{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("tick spacing: %w", err)
	}

	return model.PoolInfo{
		Address:     pool,
		Token0:      token0,
		Token1:      token1,
		Fee:         uint32(feeInt.Uint64()),
		TickSpacing: spacing,
	}, nil
}

func (r *OnChainPoolReader) State(ctx context.Context, pool common.Address) (model.PoolState, error) {
	parsed, err := PoolABI()
	if err != nil {
		return model.PoolState{}, err
	}

	values, err := callContract(ctx, r.client, pool, parsed, "slot0")
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("slot0 return size %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}

	state := model.PoolState{SqrtPriceX96: sqrtPrice, Tick: tick}

	if values, err := callContract(ctx, r.client, pool, parsed, "liquidity"); err == nil {
		if liq, err := asBigInt(values[0]); err == nil {
			state.Liquidity = liq
		}
	}

	return state, nil
}

// OnChainQuoter simulates swaps through the quoter contract.
type OnChainQuoter struct {
	client  *chain.Client
	address common.Address
}

func NewOnChainQuoter(client *chain.Client, address common.Address) *OnChainQuoter {
	return &OnChainQuoter{client: client, address: address}
}

func (q *OnChainQuoter) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, tickSpacing int32, amountIn *big.Int) (*big.Int, error) {
	parsed, err := QuoterABI()
	if err != nil {
		return nil, err
	}
	values, err := callContract(ctx, q.client, q.address, parsed, "quoteExactInputSingle", tokenIn, tokenOut, big.NewInt(int64(tickSpacing)), amountIn)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (q *OnChainQuoter) QuoteExactInput(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	parsed, err := QuoterABI()
	if err != nil {
		return nil, err
	}
	values, err := callContract(ctx, q.client, q.address, parsed, "quoteExactInput", path, amountIn)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// OnChainRouter executes swaps through the router contract.
type OnChainRouter struct {
	transactor *Transactor
	address    common.Address
}

func NewOnChainRouter(transactor *Transactor, address common.Address) *OnChainRouter {
	return &OnChainRouter{transactor: transactor, address: address}
}

func (r *OnChainRouter) ExactInputSingle(ctx context.Context, params SingleHopParams) error {
	parsed, err := RouterABI()
	if err != nil {
		return err
	}
	_, err = r.transactor.transact(ctx, r.address, parsed, "exactInputSingle",
		params.TokenIn,
		params.TokenOut,
		big.NewInt(int64(params.TickSpacing)),
		params.Recipient,
		big.NewInt(params.Deadline.Unix()),
		params.AmountIn,
		params.AmountOutMinimum,
	)
	return err
}

func (r *OnChainRouter) ExactInput(ctx context.Context, params MultiHopParams) error {
	parsed, err := RouterABI()
	if err != nil {
		return err
	}
	_, err = r.transactor.transact(ctx, r.address, parsed, "exactInput",
		params.Path,
		params.Recipient,
		big.NewInt(params.Deadline.Unix()),
		params.AmountIn,
		params.AmountOutMinimum,
	)
	return err
}

// OnChainPositionManager drives the position custody contract.
type OnChainPositionManager struct {
	transactor *Transactor
	address    common.Address
}

func NewOnChainPositionManager(transactor *Transactor, address common.Address) *OnChainPositionManager {
	return &OnChainPositionManager{transactor: transactor, address: address}
}

func (m *OnChainPositionManager) Mint(ctx context.Context, params MintParams) (MintResult, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return MintResult{}, err
	}
	receipt, err := m.transactor.transact(ctx, m.address, parsed, "mint",
		params.Pool.Token0,
		params.Pool.Token1,
		big.NewInt(int64(params.Pool.TickSpacing)),
		big.NewInt(int64(params.TickLower)),
		big.NewInt(int64(params.TickUpper)),
		params.Amount0Desired,
		params.Amount1Desired,
		params.Recipient,
		big.NewInt(params.Deadline.Unix()),
	)
	if err != nil {
		return MintResult{}, err
	}

	positionID, values, err := m.eventFromReceipt(receipt, parsed, "IncreaseLiquidity")
	if err != nil {
		return MintResult{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return MintResult{}, fmt.Errorf("liquidity: %w", err)
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return MintResult{}, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return MintResult{}, fmt.Errorf("amount1: %w", err)
	}

	return MintResult{
		PositionID: positionID,
		Liquidity:  liquidity,
		Amount0:    amount0,
		Amount1:    amount1,
	}, nil
}

func (m *OnChainPositionManager) CollectFees(ctx context.Context, positionID *big.Int, recipient common.Address) (*big.Int, *big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, nil, err
	}
	receipt, err := m.transactor.transact(ctx, m.address, parsed, "collect", positionID, recipient)
	if err != nil {
		return nil, nil, err
	}
	_, values, err := m.eventFromReceipt(receipt, parsed, "Collect")
	if err != nil {
		return nil, nil, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("amount1: %w", err)
	}
	return amount0, amount1, nil
}

func (m *OnChainPositionManager) DecreaseLiquidity(ctx context.Context, positionID, liquidity *big.Int, deadline time.Time) (*big.Int, *big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, nil, err
	}
	receipt, err := m.transactor.transact(ctx, m.address, parsed, "decreaseLiquidity", positionID, liquidity, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, nil, err
	}
	_, values, err := m.eventFromReceipt(receipt, parsed, "DecreaseLiquidity")
	if err != nil {
		return nil, nil, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("amount1: %w", err)
	}
	return amount0, amount1, nil
}

func (m *OnChainPositionManager) Burn(ctx context.Context, positionID *big.Int) error {
	parsed, err := PositionManagerABI()
	if err != nil {
		return err
	}
	_, err = m.transactor.transact(ctx, m.address, parsed, "burn", positionID)
	return err
}

// eventFromReceipt finds the named event emitted by the manager and returns
// the position id from the indexed topic plus the non-indexed values.
func (m *OnChainPositionManager) eventFromReceipt(receipt *types.Receipt, parsed abi.ABI, name string) (*big.Int, []interface{}, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown event %s", name)
	}
	for _, log := range receipt.Logs {
		if log.Address != m.address || len(log.Topics) < 2 {
			continue
		}
		if log.Topics[0] != event.ID {
			continue
		}
		positionID := new(big.Int).SetBytes(log.Topics[1].Bytes())
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("unpack %s: %w", name, err)
		}
		return positionID, values, nil
	}
	return nil, nil, fmt.Errorf("event %s not found in receipt", name)
}

// OnChainPriceFeed reads trusted feed contracts, caching per-feed decimals.
type OnChainPriceFeed struct {
	client *chain.Client

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewOnChainPriceFeed(client *chain.Client) *OnChainPriceFeed {
	return &OnChainPriceFeed{client: client, decimals: make(map[common.Address]uint8)}
}

func (p *OnChainPriceFeed) LatestRound(ctx context.Context, feed common.Address) (RoundData, error) {
	parsed, err := PriceFeedABI()
	if err != nil {
		return RoundData{}, err
	}

	values, err := callContract(ctx, p.client, feed, parsed, "latestRoundData")
	if err != nil {
		return RoundData{}, err
	}
	if len(values) != 5 {
		return RoundData{}, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	roundID, err := asBigInt(values[0])
	if err != nil {
		return RoundData{}, fmt.Errorf("round id: %w", err)
	}
	answer, err := asBigInt(values[1])
	if err != nil {
		return RoundData{}, fmt.Errorf("answer: %w", err)
	}
	updatedAt, err := asBigInt(values[3])
	if err != nil {
		return RoundData{}, fmt.Errorf("updated at: %w", err)
	}
	answeredInRound, err := asBigInt(values[4])
	if err != nil {
		return RoundData{}, fmt.Errorf("answered in round: %w", err)
	}

	decimals, err := p.feedDecimals(ctx, feed, parsed)
	if err != nil {
		return RoundData{}, err
	}

	return RoundData{
		RoundID:         roundID,
		Answer:          answer,
		UpdatedAt:       time.Unix(updatedAt.Int64(), 0),
		AnsweredInRound: answeredInRound,
		Decimals:        decimals,
	}, nil
}

func (p *OnChainPriceFeed) feedDecimals(ctx context.Context, feed common.Address, parsed abi.ABI) (uint8, error) {
	p.mu.RLock()
	decimals, ok := p.decimals[feed]
	p.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	values, err := callContract(ctx, p.client, feed, parsed, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, err = asUint8(values[0])
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.decimals[feed] = decimals
	p.mu.Unlock()
	return decimals, nil
}

// OnChainRateOracle queries the external rate oracle contract.
type OnChainRateOracle struct {
	client  *chain.Client
	address common.Address
}

func NewOnChainRateOracle(client *chain.Client, address common.Address) *OnChainRateOracle {
	return &OnChainRateOracle{client: client, address: address}
}

func (o *OnChainRateOracle) Rate(ctx context.Context, tokenIn, tokenOut, bridge common.Address) (*big.Int, *big.Int, error) {
	parsed, err := RateOracleABI()
	if err != nil {
		return nil, nil, err
	}
	values, err := callContract(ctx, o.client, o.address, parsed, "getRate", tokenIn, tokenOut, bridge)
	if err != nil {
		return nil, nil, err
	}
	rate, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("rate: %w", err)
	}
	weight, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("weight: %w", err)
	}
	return rate, weight, nil
}

// OnChainAccessRegistry queries the operator access registry.
type OnChainAccessRegistry struct {
	client  *chain.Client
	address common.Address
}

func NewOnChainAccessRegistry(client *chain.Client, address common.Address) *OnChainAccessRegistry {
	return &OnChainAccessRegistry{client: client, address: address}
}

func (r *OnChainAccessRegistry) IsAuthorized(ctx context.Context, caller, onBehalfOf common.Address) (bool, error) {
	parsed, err := AccessRegistryABI()
	if err != nil {
		return false, err
	}
	values, err := callContract(ctx, r.client, r.address, parsed, "isAuthorized", caller, onBehalfOf)
	if err != nil {
		return false, err
	}
	authorized, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", values[0])
	}
	return authorized, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
