package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tipbot/pkg/bus"
	"tipbot/pkg/channel"
	"tipbot/pkg/config"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter turns Telegram chat messages into tip requests and replies in thread.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

func (a *Adapter) Name() string {
	return channelName
}

// Run long-polls Telegram and passes every text message through handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := a.inboundFromUpdate(update)
			if !ok {
				continue
			}
			a.log.Info("Received message", "chat_id", inbound.ChatID, "message_id", inbound.MessageID, "sender", inbound.SenderHandle, "content", previewText(inbound.Content))

			outbound, err := handler(ctx, inbound)
			if err != nil {
				a.log.Error("Failed to process inbound message", "message_id", inbound.MessageID, "error", err)
			}

			responseText := replyText(outbound)
			if responseText == "" {
				continue
			}
			a.log.Info("Sending reply", "chat_id", inbound.ChatID, "message_id", inbound.MessageID, "content", previewText(responseText))

			params := tu.Message(tu.ID(update.Message.Chat.ID), responseText).
				WithReplyParameters(&telego.ReplyParameters{MessageID: update.Message.MessageID})
			if _, err := bot.SendMessage(ctx, params); err != nil {
				a.log.Error("Failed to send telegram message", "error", err)
			}
		}
	}
}

// inboundFromUpdate maps a text message from an allowed sender; anything else
// is skipped.
func (a *Adapter) inboundFromUpdate(update telego.Update) (bus.InboundMessage, bool) {
	message := update.Message
	if message == nil {
		return bus.InboundMessage{}, false
	}

	content := strings.TrimSpace(message.Text)
	if content == "" {
		return bus.InboundMessage{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundMessage{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	handle := strings.TrimSpace(message.From.Username)
	if !a.senderAllowed(senderID, handle) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID, "sender", handle)
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{
		Channel:      channelName,
		MessageID:    strconv.FormatInt(message.Chat.ID, 10) + ":" + strconv.Itoa(message.MessageID),
		SenderID:     senderID,
		SenderHandle: handle,
		ChatID:       strconv.FormatInt(message.Chat.ID, 10),
		Content:      content,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}, true
}

// senderAllowed matches allow_from entries against the numeric id or the
// handle. An empty allow list accepts everyone.
func (a *Adapter) senderAllowed(senderID string, handle string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	if _, ok := a.allowFrom[strings.TrimSpace(senderID)]; ok {
		return true
	}
	if handle == "" {
		return false
	}
	_, ok := a.allowFrom["@"+strings.ToLower(strings.TrimPrefix(handle, "@"))]
	return ok
}

func replyText(outbound bus.OutboundMessage) string {
	if text := strings.TrimSpace(outbound.Content); text != "" {
		return text
	}
	return strings.TrimSpace(outbound.Error)
}

// allowFromSet normalizes allow_from values into a lookup set. Handles are
// stored lower-cased with a leading "@".
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			trimmed = strings.ToLower(trimmed)
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
