// Package notify fans human-readable alerts out to chat channels. Delivery is
// best effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types understood by Notifier filters.
const (
	EventOpportunity    = "opportunity"
	EventSimulation     = "simulation"
	EventCycleAbandoned = "cycle_abandoned"
	EventError          = "error"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every Sender whose event type is allowed. An empty
// event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	dedup   *Dedup
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. dedup may be nil.
func NewNotifier(senders []Sender, events []string, dedup *Dedup, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		dedup:   dedup,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify sends title/message for event if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.allowed(ctx, event) {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyOnce is Notify suppressed for key while the Dedup window is open, so
// an opportunity that persists across cycles alerts once.
func (n *Notifier) NotifyOnce(ctx context.Context, event, key, title, message string) error {
	if !n.allowed(ctx, event) {
		return nil
	}
	if n.dedup != nil && n.dedup.IsDuplicate(event+":"+key) {
		n.logger.DebugContext(ctx, "duplicate suppressed", slog.String("event", event), slog.String("key", key))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) allowed(ctx context.Context, event string) bool {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return false
	}
	return true
}

// dispatch tries every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
