package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

func TestHasPattern(t *testing.T) {
	if hasPattern(domain.ChannelOpportunities) {
		t.Errorf("%s treated as a pattern", domain.ChannelOpportunities)
	}
	if !hasPattern("tokenarb:*") {
		t.Error("glob not detected")
	}
}

func TestDecodeStreamsSkipsForeignEntries(t *testing.T) {
	msgs := decodeStreams([]redis.XStream{{
		Stream: domain.StreamOpportunities,
		Messages: []redis.XMessage{
			{ID: "1-0", Values: map[string]any{"payload": `{"a":1}`}},
			{ID: "2-0", Values: map[string]any{"other": "x"}},
			{ID: "3-0", Values: map[string]any{"payload": []byte(`{"b":2}`)}},
		},
	}})
	if len(msgs) != 2 || msgs[0].ID != "1-0" || string(msgs[1].Payload) != `{"b":2}` {
		t.Errorf("decoded %+v", msgs)
	}
}

func TestPriceHashKeepsConsensusFields(t *testing.T) {
	in := domain.ConsensusPrice{
		Base:                 domain.Token{Symbol: "CAKE"},
		Quote:                domain.Token{Symbol: "USDT"},
		Category:             domain.CategoryOther,
		MedianPrice:          2.2,
		Confidence:           domain.ConfidenceHigh,
		ManipulationDetected: true,
		ContributingSources:  3,
		MaxDeviation:         0.3,
		LiquidityUSD:         1e6,
		ComputedAt:           time.Unix(1700000000, 42),
	}
	vals := make(map[string]string)
	for k, v := range encodePrice(in) {
		vals[k] = v.(string)
	}
	out, err := decodePrice(vals)
	if err != nil {
		t.Fatalf("decodePrice: %v", err)
	}
	if out.Pair() != in.Pair() || out.MedianPrice != 2.2 || out.Confidence != domain.ConfidenceHigh ||
		!out.ManipulationDetected || out.ContributingSources != 3 || !out.ComputedAt.Equal(in.ComputedAt) {
		t.Errorf("decoded %+v", out)
	}

	vals["median"] = "abc"
	if _, err := decodePrice(vals); err == nil {
		t.Error("corrupt median accepted")
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	if got := lockKey("scanner"); got != "tokenarb:lock:scanner" {
		t.Errorf("lockKey = %q", got)
	}
	if got := rateLimitKey("source:dexscreener"); got != "tokenarb:ratelimit:source:dexscreener" {
		t.Errorf("rateLimitKey = %q", got)
	}
	if got := priceKey(domain.PairKey{Base: "WBNB", Quote: "USDT"}); got != "tokenarb:price:WBNB/USDT" {
		t.Errorf("priceKey = %q", got)
	}
}

// offlineClient never dials; only code paths that fail before the network
// may use it.
func offlineClient(t *testing.T) *Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Client{rdb: rdb, addr: "127.0.0.1:0"}
}

func TestSignalBusStaysInNamespace(t *testing.T) {
	sb := NewSignalBus(offlineClient(t), 500)
	ctx := context.Background()

	if err := sb.Publish(ctx, "orders:new", []byte("{}")); err == nil || !strings.Contains(err.Error(), "namespace") {
		t.Errorf("Publish outside namespace: err = %v", err)
	}
	if _, err := sb.Subscribe(ctx, "*"); err == nil {
		t.Error("Subscribe to a bare wildcard should be refused")
	}
	if err := sb.StreamAppend(ctx, "stream:opportunities", nil); err == nil {
		t.Error("StreamAppend outside namespace should be refused")
	}
	for _, name := range []string{domain.ChannelOpportunities, domain.ChannelCycles, domain.ChannelSimulations, domain.StreamOpportunities, "tokenarb:*"} {
		if err := checkChannel(name); err != nil {
			t.Errorf("checkChannel(%q) = %v", name, err)
		}
	}
}

func TestStreamWindowFollowsHistorySize(t *testing.T) {
	c := offlineClient(t)
	if got := NewSignalBus(c, 500).maxLen; got != 500 {
		t.Errorf("maxLen = %d, want 500", got)
	}
	if got := NewSignalBus(c, 0).maxLen; got != defaultStreamMaxLen {
		t.Errorf("maxLen = %d, want default %d", got, defaultStreamMaxLen)
	}
}

func TestLockHolder(t *testing.T) {
	for value, want := range map[string]string{
		"scanner-1:4242|6f1c0e0a-1111-2222-3333-444455556666": "scanner-1:4242",
		"":             "unknown",
		"no-separator": "unknown",
		"|token":       "unknown",
	} {
		if got := lockHolder(value); got != want {
			t.Errorf("lockHolder(%q) = %q, want %q", value, got, want)
		}
	}
}

func TestInstanceIDAndClientName(t *testing.T) {
	id := InstanceID()
	host, pid, ok := strings.Cut(id, ":")
	if !ok || host == "" || pid == "" {
		t.Errorf("InstanceID = %q, want host:pid", id)
	}
	if strings.Contains(id, "|") {
		t.Errorf("InstanceID %q contains the lock value separator", id)
	}
	if got := clientName("scan"); got != "tokenarb-scan" {
		t.Errorf("clientName = %q", got)
	}
	if got := clientName(""); got != "tokenarb" {
		t.Errorf("clientName = %q", got)
	}
}
