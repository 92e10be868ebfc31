package venue

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityRouter/internal/chain"
)

// DefaultTokenDecimals is assumed when a token does not answer decimals().
const DefaultTokenDecimals = uint8(18)

// TokenReader reads ERC20 balances and metadata, caching decimals by token
// address. Decimals are immutable so entries never expire.
type TokenReader struct {
	client *chain.Client

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewTokenReader(client *chain.Client) *TokenReader {
	return &TokenReader{client: client, decimals: make(map[common.Address]uint8)}
}

// BalanceOf returns the owner's token balance.
func (r *TokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callContract(ctx, r.client, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Decimals returns the token's decimal precision, defaulting when the call
// fails.
func (r *TokenReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	r.mu.RLock()
	decimals, ok := r.decimals[token]
	r.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	parsed, err := ERC20ABI()
	if err != nil {
		return 0, err
	}
	values, err := callContract(ctx, r.client, token, parsed, "decimals")
	if err != nil {
		decimals = DefaultTokenDecimals
	} else {
		decimals, err = asUint8(values[0])
		if err != nil {
			return 0, fmt.Errorf("decimals: %w", err)
		}
	}

	r.mu.Lock()
	r.decimals[token] = decimals
	r.mu.Unlock()
	return decimals, nil
}
