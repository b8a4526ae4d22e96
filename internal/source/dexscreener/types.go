package dexscreener

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// APIToken is a token leg of a DexScreener pair.
type APIToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// APILiquidity is the pool depth as reported by DexScreener.
type APILiquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// APIPair is one pool entry from the token-pairs endpoint. Prices arrive as
// decimal strings.
type APIPair struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   APIToken      `json:"baseToken"`
	QuoteToken  APIToken      `json:"quoteToken"`
	PriceNative string        `json:"priceNative"`
	PriceUSD    string        `json:"priceUsd"`
	Liquidity   *APILiquidity `json:"liquidity"`
}

// matches reports whether the pool trades a against b, in either
// orientation. inverted is true when the pool's base token is b.
func (p APIPair) matches(a, b common.Address) (ok, inverted bool) {
	pb, pq := p.BaseToken.Address, p.QuoteToken.Address
	switch {
	case sameAddress(pb, a) && sameAddress(pq, b):
		return true, false
	case sameAddress(pb, b) && sameAddress(pq, a):
		return true, true
	}
	return false, false
}

// nativePrice parses PriceNative: units of QuoteToken per BaseToken.
func (p APIPair) nativePrice() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(p.PriceNative), 64)
}

func (p APIPair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

func sameAddress(raw string, addr common.Address) bool {
	return common.IsHexAddress(raw) && common.HexToAddress(raw) == addr
}
