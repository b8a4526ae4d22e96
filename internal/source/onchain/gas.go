package onchain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

// GasOracle reports eth_gasPrice in gwei, falling back to a static price
// when the node cannot answer.
type GasOracle struct {
	pricer       ethereum.GasPricer
	fallbackGwei float64
	timeout      time.Duration
	logger       *slog.Logger
}

// NewGasOracle creates a GasOracle. pricer may be nil, in which case the
// fallback is always used. A fallbackGwei of 0 disables the fallback.
func NewGasOracle(pricer ethereum.GasPricer, fallbackGwei float64, timeout time.Duration, logger *slog.Logger) *GasOracle {
	return &GasOracle{
		pricer:       pricer,
		fallbackGwei: fallbackGwei,
		timeout:      timeout,
		logger:       logger.With(slog.String("component", "gas_oracle")),
	}
}

// GasPriceGwei implements domain.GasOracle.
func (g *GasOracle) GasPriceGwei(ctx context.Context) (float64, error) {
	if g.pricer == nil {
		return g.fallback(nil)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	wei, err := g.pricer.SuggestGasPrice(ctx)
	if err != nil {
		return g.fallback(err)
	}
	if wei == nil || wei.Sign() <= 0 {
		return g.fallback(fmt.Errorf("node returned gas price %v", wei))
	}
	return weiToGwei(wei), nil
}

func (g *GasOracle) fallback(cause error) (float64, error) {
	if g.fallbackGwei <= 0 {
		if cause == nil {
			return 0, fmt.Errorf("onchain: gas price: %w", domain.ErrNoGasPrice)
		}
		return 0, fmt.Errorf("onchain: gas price: %w: %w", domain.ErrNoGasPrice, cause)
	}
	if cause != nil {
		g.logger.Warn("gas price unavailable, using fallback",
			slog.Float64("fallback_gwei", g.fallbackGwei),
			slog.String("error", cause.Error()),
		)
	}
	return g.fallbackGwei, nil
}

func weiToGwei(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return f
}

// Dial connects to a JSON-RPC endpoint. The returned client serves both
// V2Source and GasOracle.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc: %w", err)
	}
	return client, nil
}

var _ domain.GasOracle = (*GasOracle)(nil)
