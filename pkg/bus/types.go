package bus

// InboundMessage is one chat message handed from a channel adapter to the
// gateway.
type InboundMessage struct {
	Channel      string            `json:"channel"`
	MessageID    string            `json:"message_id"`
	SenderID     string            `json:"sender_id"`
	SenderHandle string            `json:"sender_handle"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the reply a channel adapter sends back to the chat.
type OutboundMessage struct {
	Channel   string            `json:"channel"`
	ChatID    string            `json:"chat_id"`
	ReplyToID string            `json:"reply_to_id,omitempty"`
	Content   string            `json:"content"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
