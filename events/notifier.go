// Package events provides EventNotifier implementations for announcing
// pipeline and storage outcomes.
package events

import (
	"context"
	"log/slog"
	"sort"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// LogNotifier writes every event to the structured log. It is the default
// sink when no external event bus is wired in.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier over log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the event name with its payload as attributes. Payload keys
// are emitted in sorted order.
func (n *LogNotifier) Notify(ctx context.Context, event interfaces.Event) {
	attrs := make([]any, 0, len(event.Payload)*2+2)
	attrs = append(attrs, slog.String("event", event.Name))

	keys := make([]string, 0, len(event.Payload))
	for key := range event.Payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, slog.String(key, event.Payload[key]))
	}

	n.log.InfoContext(ctx, "Pipeline event", attrs...)
}

// Noop discards all events.
type Noop = interfaces.NoopNotifier

// Fanout delivers every event to each wrapped notifier in order.
type Fanout []interfaces.EventNotifier

func (f Fanout) Notify(ctx context.Context, event interfaces.Event) {
	for _, notifier := range f {
		notifier.Notify(ctx, event)
	}
}
