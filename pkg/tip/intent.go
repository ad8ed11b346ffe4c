package tip

import (
	"encoding/json"
	"strings"
)

// Reasons reported by Intent.Reason for invalid intents.
const (
	ReasonNoAmount      = "no_amount"
	ReasonZeroAmount    = "zero_amount"
	ReasonDirectedAtBot = "directed_at_bot"
	ReasonSenderIsBot   = "sender_is_bot"
)

// Intent is the resolved result of one parse. Validity is derived from the
// other fields on demand and never stored.
type Intent struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	// Amount is the canonical amount in base units, equal to Amounts[0] or 0.
	Amount int64 `json:"amount"`

	Mentions []string           `json:"mentions"`
	Tokens   []AmountToken      `json:"tokens"`
	Amounts  []int64            `json:"amounts"`
	Details  []NormalizedAmount `json:"details"`

	MultipleRecipients bool   `json:"multiple_recipients"`
	DirectedAtBot      bool   `json:"directed_at_bot"`
	Bot                string `json:"bot"`
}

// resolve picks the recipient and canonical amount and computes the flags.
// normalized must already be in precedence order.
func resolve(msg Message, bot string, mentions []string, tokens []AmountToken, normalized []NormalizedAmount) Intent {
	intent := Intent{
		Sender:   msg.Sender,
		Mentions: mentions,
		Tokens:   tokens,
		Amounts:  make([]int64, 0, len(normalized)),
		Details:  normalized,
		Bot:      bot,
	}

	for _, amount := range normalized {
		intent.Amounts = append(intent.Amounts, amount.BaseUnits)
	}
	if len(intent.Amounts) > 0 {
		intent.Amount = intent.Amounts[0]
	}

	if len(mentions) > 0 && sameHandle(mentions[0], bot) {
		intent.DirectedAtBot = true
	}

	distinct := make(map[string]struct{}, len(mentions))
	for _, mention := range mentions {
		if sameHandle(mention, bot) {
			continue
		}
		if intent.Recipient == "" {
			intent.Recipient = mention
		}
		distinct[strings.ToLower(mention)] = struct{}{}
	}
	intent.MultipleRecipients = len(distinct) >= 2

	return intent
}

// HasRecipient reports whether a non-bot mention was found.
func (i Intent) HasRecipient() bool {
	return i.Recipient != ""
}

// Valid reports whether the intent is an actionable tip request. Ambiguity,
// such as several recipients, is tolerated.
func (i Intent) Valid() bool {
	return i.Reason() == ""
}

// Reason names the first rule an invalid intent breaks, or "" when valid.
func (i Intent) Reason() string {
	switch {
	case len(i.Amounts) == 0:
		return ReasonNoAmount
	case i.Amount == 0:
		return ReasonZeroAmount
	case i.DirectedAtBot:
		return ReasonDirectedAtBot
	case sameHandle(i.Sender, i.Bot):
		return ReasonSenderIsBot
	default:
		return ""
	}
}

// MarshalJSON adds the derived validity fields to the encoded intent.
func (i Intent) MarshalJSON() ([]byte, error) {
	type plain Intent
	return json.Marshal(struct {
		plain
		Valid  bool   `json:"valid"`
		Reason string `json:"reason,omitempty"`
	}{
		plain:  plain(i),
		Valid:  i.Valid(),
		Reason: i.Reason(),
	})
}
