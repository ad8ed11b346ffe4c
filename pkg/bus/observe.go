package bus

import (
	"context"
	"log/slog"
	"time"
)

// ObserveEvents logs every event until ctx is done or the bus closes.
func ObserveEvents(ctx context.Context, mb *MessageBus, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "bus.events")

	events, unsubscribe := mb.SubscribeEvents(ctx, 32)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			LogEvent(log, event)
		}
	}
}

// LogEvent writes one event with a stable attribute set.
func LogEvent(log *slog.Logger, event Event) {
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
		"chat_id", event.ChatID,
		"message_id", event.MessageID,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if event.Sender != "" {
		attrs = append(attrs, "sender", event.Sender)
	}
	if event.Recipient != "" {
		attrs = append(attrs, "recipient", event.Recipient)
	}
	if event.Amount != 0 {
		attrs = append(attrs, "amount", event.Amount)
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case EventTipFailed:
		log.Error("Tip event", append(attrs, "error", event.Error)...)
	case EventTipRejected:
		log.Info("Tip event", append(attrs, "reason", event.Reason)...)
	case EventTipReceived, EventTipAccepted:
		log.Info("Tip event", attrs...)
	default:
		log.Debug("Tip event", attrs...)
	}
}
