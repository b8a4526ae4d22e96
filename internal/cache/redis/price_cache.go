package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PriceBook implements domain.PriceBook with one hash per pair and a set
// indexing the pairs of the latest snapshot. Entries expire after ttl so an
// idle scanner stops advertising old prices.
type PriceBook struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceBook creates a PriceBook backed by c.
func NewPriceBook(c *Client, ttl time.Duration) *PriceBook {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PriceBook{rdb: c.Underlying(), ttl: ttl}
}

var priceIndexKey = keyPrefix + "prices"

func priceKey(pair domain.PairKey) string {
	return keyPrefix + "price:" + pair.String()
}

// Put replaces the book with snap's prices.
func (pb *PriceBook) Put(ctx context.Context, snap *domain.Snapshot) error {
	if snap.Len() == 0 {
		return nil
	}
	pipe := pb.rdb.TxPipeline()
	pipe.Del(ctx, priceIndexKey)
	for pair, cp := range snap.Prices {
		key := priceKey(pair)
		pipe.HSet(ctx, key, encodePrice(cp))
		pipe.Expire(ctx, key, pb.ttl)
		pipe.SAdd(ctx, priceIndexKey, pair.String())
	}
	pipe.Expire(ctx, priceIndexKey, pb.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put prices: %w", err)
	}
	return nil
}

// Latest returns the prices of the last Put, sorted by pair. Pairs whose
// hash expired are omitted.
func (pb *PriceBook) Latest(ctx context.Context) ([]domain.ConsensusPrice, error) {
	members, err := pb.rdb.SMembers(ctx, priceIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list prices: %w", err)
	}
	if len(members) == 0 {
		return []domain.ConsensusPrice{}, nil
	}
	sort.Strings(members)

	pipe := pb.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, keyPrefix+"price:"+m)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}

	out := make([]domain.ConsensusPrice, 0, len(members))
	for _, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		cp, err := decodePrice(vals)
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

func encodePrice(cp domain.ConsensusPrice) map[string]any {
	return map[string]any{
		"base":        cp.Base.Symbol,
		"quote":       cp.Quote.Symbol,
		"category":    string(cp.Category),
		"median":      strconv.FormatFloat(cp.MedianPrice, 'f', -1, 64),
		"confidence":  cp.Confidence.String(),
		"manipulated": strconv.FormatBool(cp.ManipulationDetected),
		"sources":     strconv.Itoa(cp.ContributingSources),
		"deviation":   strconv.FormatFloat(cp.MaxDeviation, 'f', -1, 64),
		"liquidity":   strconv.FormatFloat(cp.LiquidityUSD, 'f', -1, 64),
		"ts":          strconv.FormatInt(cp.ComputedAt.UnixNano(), 10),
	}
}

// decodePrice rebuilds a consensus price. Tokens carry only their symbol
// and the pair category.
func decodePrice(vals map[string]string) (domain.ConsensusPrice, error) {
	var (
		cp   domain.ConsensusPrice
		errs []error
	)
	parseFloat := func(field string) float64 {
		f, err := strconv.ParseFloat(vals[field], 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
		return f
	}

	cat, err := domain.ParseCategory(vals["category"])
	if err != nil {
		errs = append(errs, err)
	}
	conf, err := domain.ParseConfidence(vals["confidence"])
	if err != nil {
		errs = append(errs, err)
	}
	sources, err := strconv.Atoi(vals["sources"])
	if err != nil {
		errs = append(errs, fmt.Errorf("sources: %w", err))
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("ts: %w", err))
	}

	cp = domain.ConsensusPrice{
		Base:                 domain.Token{Symbol: vals["base"]},
		Quote:                domain.Token{Symbol: vals["quote"]},
		Category:             cat,
		MedianPrice:          parseFloat("median"),
		Confidence:           conf,
		ManipulationDetected: vals["manipulated"] == "true",
		ContributingSources:  sources,
		MaxDeviation:         parseFloat("deviation"),
		LiquidityUSD:         parseFloat("liquidity"),
		ComputedAt:           time.Unix(0, ts),
	}
	if len(errs) > 0 {
		return domain.ConsensusPrice{}, fmt.Errorf("redis: decode price: %w", errors.Join(errs...))
	}
	return cp, nil
}

var _ domain.PriceBook = (*PriceBook)(nil)
