package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// defaultStreamMaxLen bounds streams via XADD MAXLEN ~ when no history
// size is configured.
const defaultStreamMaxLen int64 = 10000

// SignalBus carries scanner events: pub/sub for live consumers such as the
// WebSocket hub, streams for consumers that must not miss an opportunity.
// Every channel and stream lives under the tokenarb: namespace.
type SignalBus struct {
	rdb    *redis.Client
	maxLen int64
	now    func() time.Time
}

// NewSignalBus creates a SignalBus backed by c. Streams keep roughly
// historySize entries, the same window as the in-process opportunity
// history; a non-positive size falls back to a fixed bound.
func NewSignalBus(c *Client, historySize int) *SignalBus {
	maxLen := defaultStreamMaxLen
	if historySize > 0 {
		maxLen = int64(historySize)
	}
	return &SignalBus{rdb: c.Underlying(), maxLen: maxLen, now: time.Now}
}

// checkChannel rejects names outside the tokenarb namespace, so a typo does
// not publish into, or listen on, another application's channels.
func checkChannel(name string) error {
	if !strings.HasPrefix(name, keyPrefix) {
		return fmt.Errorf("redis: channel %q is outside the %s namespace", name, keyPrefix)
	}
	return nil
}

// Publish sends payload on channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns payloads published on channel, which may be a glob
// pattern. The returned channel closes when ctx ends.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// StreamAppend adds payload to stream, trimming to roughly the configured
// window. Entries carry the append time in unix milliseconds next to the
// payload.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	if err := checkChannel(stream); err != nil {
		return err
	}
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload": payload,
			"at":      strconv.FormatInt(sb.now().UnixMilli(), 10),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" or "" for the
// start). An empty stream is not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	if err := checkChannel(stream); err != nil {
		return nil, err
	}
	if lastID == "" {
		lastID = "0"
	}
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}
	return decodeStreams(results), nil
}

// decodeStreams extracts the payload field of every entry, skipping entries
// written by something else.
func decodeStreams(results []redis.XStream) []domain.StreamMessage {
	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			var data []byte
			switch v := msg.Values["payload"].(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}
			messages = append(messages, domain.StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return messages
}

var _ domain.SignalBus = (*SignalBus)(nil)
