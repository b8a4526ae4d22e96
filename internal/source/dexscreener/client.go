// Package dexscreener implements a quote source backed by the DexScreener
// public REST API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/source"
	"golang.org/x/sync/singleflight"
)

// SourceID identifies quotes from this adapter.
const SourceID = "dexscreener"

// Client fetches the pools of a token and turns the deepest matching pool
// into a quote. Responses are shared for cacheTTL so a scan cycle costs one
// request per token rather than one per pair.
type Client struct {
	baseURL    string
	chainID    string
	httpClient *http.Client
	cacheTTL   time.Duration
	gate       *source.Gate

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedPairs
	now   func() time.Time
}

type cachedPairs struct {
	pairs     []APIPair
	fetchedAt time.Time
	latency   time.Duration
}

// New creates a DexScreener client.
//
// baseURL is the API root, e.g. "https://api.dexscreener.com"; chainID is
// DexScreener's chain slug, e.g. "bsc".
func New(baseURL, chainID string, timeout, cacheTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
		cache:      make(map[string]cachedPairs),
		now:        time.Now,
	}
}

// WithGate paces the client's HTTP requests. Answers served from the
// response cache do not pass through the gate.
func (c *Client) WithGate(g *source.Gate) *Client {
	c.gate = g
	return c
}

// ID implements domain.QuoteSource.
func (c *Client) ID() string { return SourceID }

// Fetch returns the price of base in quote from the deepest pool that trades
// the two tokens on the configured chain.
func (c *Client) Fetch(ctx context.Context, base, quote domain.Token) (domain.Quote, error) {
	entry, err := c.tokenPairs(ctx, base)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("dexscreener: %s/%s: %w", base.Symbol, quote.Symbol, err)
	}

	var (
		best     *APIPair
		inverted bool
	)
	for i := range entry.pairs {
		p := &entry.pairs[i]
		if p.ChainID != c.chainID {
			continue
		}
		ok, inv := p.matches(base.Address, quote.Address)
		if !ok {
			continue
		}
		if best == nil || p.liquidityUSD() > best.liquidityUSD() {
			best, inverted = p, inv
		}
	}
	if best == nil {
		return domain.Quote{}, fmt.Errorf("dexscreener: %s/%s: no pool: %w", base.Symbol, quote.Symbol, domain.ErrNotFound)
	}

	price, err := best.nativePrice()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("dexscreener: %s/%s: parse price %q: %w", base.Symbol, quote.Symbol, best.PriceNative, err)
	}
	if inverted && price > 0 {
		price = 1 / price
	}
	return domain.NewQuote(SourceID, base, quote, price, best.liquidityUSD(), entry.fetchedAt, entry.latency)
}

// tokenPairs returns the pools of token, from cache when younger than
// cacheTTL. Concurrent misses for the same token share one request.
func (c *Client) tokenPairs(ctx context.Context, token domain.Token) (cachedPairs, error) {
	key := strings.ToLower(token.Address.Hex())

	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.cacheTTL {
		return entry, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if c.gate != nil {
			if err := c.gate.Wait(ctx); err != nil {
				return cachedPairs{}, err
			}
		}
		start := c.now()
		body, err := c.doGet(ctx, fmt.Sprintf("/token-pairs/v1/%s/%s", url.PathEscape(c.chainID), key))
		if err != nil {
			return cachedPairs{}, err
		}
		var pairs []APIPair
		if err := json.Unmarshal(body, &pairs); err != nil {
			return cachedPairs{}, fmt.Errorf("decode pairs: %w", err)
		}
		fetched := cachedPairs{pairs: pairs, fetchedAt: c.now()}
		fetched.latency = fetched.fetchedAt.Sub(start)

		c.mu.Lock()
		c.cache[key] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return cachedPairs{}, err
	}
	return v.(cachedPairs), nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}

var _ domain.QuoteSource = (*Client)(nil)
