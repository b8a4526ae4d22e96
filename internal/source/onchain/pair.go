// Package onchain reads prices straight from Uniswap-V2 style pair contracts
// and the chain's gas price, over a JSON-RPC endpoint.
package onchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPair means the factory has no pool for the requested tokens.
var ErrNoPair = errors.New("onchain: pair does not exist")

// V2Source quotes a pair from the reserves of one V2 fork. The pair address
// for a token pair never changes once created, so lookups are cached.
type V2Source struct {
	id      string
	factory common.Address
	caller  ethereum.ContractCaller
	now     func() time.Time

	pairs sync.Map // pairKey -> common.Address
}

type pairKey struct{ token0, token1 common.Address }

// NewV2Source creates a source for the venue whose factory lives at factory.
// caller is usually an *ethclient.Client.
func NewV2Source(venue string, factory common.Address, caller ethereum.ContractCaller) *V2Source {
	return &V2Source{
		id:      "onchain:" + venue,
		factory: factory,
		caller:  caller,
		now:     time.Now,
	}
}

// ID implements domain.QuoteSource.
func (s *V2Source) ID() string { return s.id }

// Fetch reads the pool reserves and prices base in quote, adjusted for token
// decimals. LiquidityUSD is derived from whichever side has a reference USD
// price and is 0 otherwise.
func (s *V2Source) Fetch(ctx context.Context, base, quote domain.Token) (domain.Quote, error) {
	start := s.now()

	token0, token1 := sortTokens(base.Address, quote.Address)
	pair, err := s.pairAddress(ctx, token0, token1)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%s: %s/%s: %w", s.id, base.Symbol, quote.Symbol, err)
	}

	reserve0, reserve1, err := s.reserves(ctx, pair)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%s: %s/%s: %w", s.id, base.Symbol, quote.Symbol, err)
	}
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return domain.Quote{}, fmt.Errorf("%s: %s/%s: empty pool: %w", s.id, base.Symbol, quote.Symbol, domain.ErrNotAvailable)
	}

	baseReserve, quoteReserve := reserve0, reserve1
	if token0 != base.Address {
		baseReserve, quoteReserve = reserve1, reserve0
	}
	baseAmt := scale(baseReserve, base.Decimals)
	quoteAmt := scale(quoteReserve, quote.Decimals)

	var liquidity float64
	switch {
	case quote.ReferenceUSD > 0:
		liquidity = 2 * quoteAmt * quote.ReferenceUSD
	case base.ReferenceUSD > 0:
		liquidity = 2 * baseAmt * base.ReferenceUSD
	}

	observed := s.now()
	return domain.NewQuote(s.id, base, quote, quoteAmt/baseAmt, liquidity, observed, observed.Sub(start))
}

func (s *V2Source) pairAddress(ctx context.Context, token0, token1 common.Address) (common.Address, error) {
	key := pairKey{token0, token1}
	if v, ok := s.pairs.Load(key); ok {
		return v.(common.Address), nil
	}

	out, err := s.call(ctx, s.factory, &factoryABI, "getPair", token0, token1)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPair: unexpected result %T", out[0])
	}
	if addr == (common.Address{}) {
		return common.Address{}, ErrNoPair
	}
	s.pairs.Store(key, addr)
	return addr, nil
}

func (s *V2Source) reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	out, err := s.call(ctx, pair, &pairABI, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("getReserves: unexpected result %T, %T", out[0], out[1])
	}
	return r0, r1, nil
}

// call packs method, runs eth_call against the latest block and unpacks the
// outputs.
func (s *V2Source) call(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) ([]any, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	data, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := contract.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// sortTokens orders two addresses the way V2 factories assign token0/token1.
func sortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// scale converts a raw token amount into whole units.
func scale(raw *big.Int, decimals uint8) float64 {
	unit := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), unit).Float64()
	return f
}

var _ domain.QuoteSource = (*V2Source)(nil)
