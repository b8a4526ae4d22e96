package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/aggregator"
	"github.com/alanyoungcy/tokenarb/internal/config"
	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/evaluator"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
	"github.com/alanyoungcy/tokenarb/internal/scanner"
	"github.com/alanyoungcy/tokenarb/internal/source"
	"github.com/alanyoungcy/tokenarb/internal/source/dexscreener"
	"github.com/alanyoungcy/tokenarb/internal/source/onchain"
	"github.com/ethereum/go-ethereum/common"
)

var usdPrices = map[string]float64{
	"WBNB": 600,
	"USDT": 1,
	"BUSD": 1,
	"USDC": 1,
	"ETH":  2500,
	"BTCB": 60000,
	"CAKE": 2.5,
}

// pairsServer answers token-pairs requests with one deep pool between the
// requested token and every other token in the universe.
func pairsServer(t *testing.T, tokens []domain.Token, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		addr := common.HexToAddress(path.Base(r.URL.Path))
		var pairs []dexscreener.APIPair
		for _, base := range tokens {
			if base.Address != addr {
				continue
			}
			for _, quote := range tokens {
				if quote.Address == base.Address {
					continue
				}
				pairs = append(pairs, dexscreener.APIPair{
					ChainID:     "bsc",
					DexID:       "pancakeswap",
					BaseToken:   dexscreener.APIToken{Address: base.Address.Hex(), Symbol: base.Symbol},
					QuoteToken:  dexscreener.APIToken{Address: quote.Address.Hex(), Symbol: quote.Symbol},
					PriceNative: strconv.FormatFloat(usdPrices[base.Symbol]/usdPrices[quote.Symbol], 'g', -1, 64),
					Liquidity:   &dexscreener.APILiquidity{USD: 5e6},
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pairs)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// slowVenue answers every pair after a fixed RPC latency.
type slowVenue struct {
	id      string
	latency time.Duration
}

func (v slowVenue) ID() string { return v.id }

func (v slowVenue) Fetch(ctx context.Context, base, quote domain.Token) (domain.Quote, error) {
	select {
	case <-time.After(v.latency):
	case <-ctx.Done():
		return domain.Quote{}, ctx.Err()
	}
	return domain.NewQuote(v.id, base, quote, usdPrices[base.Symbol]/usdPrices[quote.Symbol], 5e6, time.Now(), v.latency)
}

func TestDefaultCycleFitsDeadline(t *testing.T) {
	cfg := config.Defaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	u, err := cfg.BuildUniverse()
	if err != nil {
		t.Fatal(err)
	}
	paths, err := buildPaths(cfg.Pathfind, u)
	if err != nil {
		t.Fatal(err)
	}
	aggCfg, err := aggregatorConfig(cfg.Aggregator)
	if err != nil {
		t.Fatal(err)
	}
	evalCfg, err := evaluatorConfig(cfg.Evaluator, cfg.Chain.GasUnitsPerHop)
	if err != nil {
		t.Fatal(err)
	}
	scCfg, err := scannerConfig(&cfg, u)
	if err != nil {
		t.Fatal(err)
	}

	var hits atomic.Int32
	srv := pairsServer(t, u.Tokens, &hits)
	ds := cfg.Sources.DexScreener
	sources := []domain.QuoteSource{
		dexscreener.New(srv.URL, ds.ChainID, ds.Timeout.Duration, ds.CacheTTL.Duration).
			WithGate(source.NewGate(dexscreener.SourceID, ds.MinInterval.Duration, nil, logger)),
	}
	for _, v := range cfg.Sources.OnChain.Venues {
		venue := slowVenue{id: "onchain:" + v.Name, latency: 100 * time.Millisecond}
		sources = append(sources, source.NewThrottled(venue, cfg.Sources.OnChain.MinInterval.Duration, nil, logger))
	}

	sc := scanner.New(scCfg, paths,
		aggregator.New(sources, aggCfg, logger),
		onchain.NewGasOracle(nil, cfg.Chain.FallbackGasGwei, 0, logger),
		evaluator.New(evalCfg, logger),
		ranker.New(cfg.Ranker.TopK),
		ranker.NewHistory(cfg.Ranker.HistorySize),
		logger,
	)

	cycle, err := sc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if cycle.Abandoned || cycle.Suppressed {
		t.Fatalf("cycle abandoned=%v suppressed=%v", cycle.Abandoned, cycle.Suppressed)
	}
	if cycle.PairsAvailable != cycle.PairsRequested {
		t.Errorf("pairs available = %d of %d", cycle.PairsAvailable, cycle.PairsRequested)
	}
	if cycle.PathsEvaluated != len(paths) {
		t.Errorf("paths evaluated = %d, want %d", cycle.PathsEvaluated, len(paths))
	}
	if limit := cfg.Scanner.CycleDeadline.Duration * 3 / 4; cycle.Duration > limit {
		t.Errorf("cycle took %v, want under %v", cycle.Duration, limit)
	}
	// One token-pairs request per token, not one per pair.
	if n := int(hits.Load()); n >= cycle.PairsRequested {
		t.Errorf("dexscreener requests = %d for %d pairs", n, cycle.PairsRequested)
	}
}
