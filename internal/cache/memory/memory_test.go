package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

func TestBusPatternSubscribe(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, _ := b.Subscribe(ctx, "tokenarb:*")
	cycles, _ := b.Subscribe(ctx, "tokenarb:cycles")

	_ = b.Publish(ctx, "tokenarb:opportunities", []byte("opp"))
	_ = b.Publish(ctx, "tokenarb:cycles", []byte("cycle"))

	if got := string(<-all); got != "opp" {
		t.Errorf("pattern subscriber got %q first", got)
	}
	if got := string(<-all); got != "cycle" {
		t.Errorf("pattern subscriber got %q second", got)
	}
	if got := string(<-cycles); got != "cycle" {
		t.Errorf("exact subscriber got %q", got)
	}
	select {
	case extra := <-cycles:
		t.Errorf("exact subscriber got unexpected %q", extra)
	default:
	}
}

func TestBusSubscriptionClosesWithContext(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "x")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received a message after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestBusStreamRead(t *testing.T) {
	b := NewBus()
	ctx := context.Background()
	for _, p := range []string{"a", "b", "c"} {
		_ = b.StreamAppend(ctx, "s", []byte(p))
	}

	msgs, _ := b.StreamRead(ctx, "s", "0", 2)
	if len(msgs) != 2 || string(msgs[0].Payload) != "a" {
		t.Fatalf("first read = %+v", msgs)
	}
	rest, _ := b.StreamRead(ctx, "s", msgs[1].ID, 10)
	if len(rest) != 1 || string(rest[0].Payload) != "c" {
		t.Errorf("second read = %+v", rest)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "api:1.2.3.4", 3, time.Minute); !ok {
			t.Fatalf("call %d rejected within budget", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "api:1.2.3.4", 3, time.Minute); ok {
		t.Error("fourth call allowed")
	}
	if ok, _ := rl.Allow(ctx, "api:5.6.7.8", 3, time.Minute); !ok {
		t.Error("keys are not independent")
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "k"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if err := rl.Wait(ctx, "k"); err == nil {
		t.Error("second Wait should fail before the hour-long refill")
	}
}

func TestPriceBookLatestSorted(t *testing.T) {
	pb := NewPriceBook()
	ctx := context.Background()
	if got, _ := pb.Latest(ctx); len(got) != 0 {
		t.Fatalf("empty book returned %v", got)
	}

	snap := &domain.Snapshot{Prices: map[domain.PairKey]domain.ConsensusPrice{
		{Base: "WBNB", Quote: "USDT"}: {Base: domain.Token{Symbol: "WBNB"}, Quote: domain.Token{Symbol: "USDT"}, MedianPrice: 600},
		{Base: "CAKE", Quote: "USDT"}: {Base: domain.Token{Symbol: "CAKE"}, Quote: domain.Token{Symbol: "USDT"}, MedianPrice: 2},
	}}
	_ = pb.Put(ctx, snap)
	_ = pb.Put(ctx, &domain.Snapshot{})

	got, _ := pb.Latest(ctx)
	if len(got) != 2 || got[0].Base.Symbol != "CAKE" || got[1].MedianPrice != 600 {
		t.Errorf("Latest = %+v", got)
	}
}
