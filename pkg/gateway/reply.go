package gateway

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tipbot/pkg/tip"
)

// ReasonNoRecipient rejects an otherwise valid intent that names nobody to pay.
const ReasonNoRecipient = "no_recipient"

const retryLaterReply = "Exchange rate is unavailable right now, please try again in a minute."

// Outcome is what the gateway decided for one message.
type Outcome struct {
	Intent   tip.Intent
	Accepted bool
	Reason   string
}

// decide applies the gateway's acceptance rule on top of intent validity.
func decide(intent tip.Intent) Outcome {
	outcome := Outcome{Intent: intent, Reason: intent.Reason()}
	if outcome.Reason == "" && !intent.HasRecipient() {
		outcome.Reason = ReasonNoRecipient
	}
	outcome.Accepted = outcome.Reason == ""
	return outcome
}

// FormatReply renders the chat reply for an outcome. An empty string means
// the bot stays silent, which is the case for chatter without an amount.
func FormatReply(outcome Outcome) string {
	intent := outcome.Intent
	if outcome.Accepted {
		reply := fmt.Sprintf("%s sent %s to %s.", atHandle(intent.Sender), FormatBTC(intent.Amount), atHandle(intent.Recipient))
		if intent.MultipleRecipients {
			reply += " Only the first mentioned user is tipped."
		}
		return reply
	}

	switch outcome.Reason {
	case tip.ReasonZeroAmount:
		return "Tips must be larger than zero."
	case tip.ReasonDirectedAtBot:
		return fmt.Sprintf("Mention the recipient first, for example: @alice 1 beer (not %s).", atHandle(intent.Bot))
	case ReasonNoRecipient:
		return fmt.Sprintf("Who should get %s? Mention them with @handle.", FormatBTC(intent.Amount))
	default:
		return ""
	}
}

// FormatBTC renders base units as a BTC amount with the satoshi count.
func FormatBTC(units int64) string {
	btc := decimal.New(units, -8)
	return fmt.Sprintf("%s BTC (%d sat)", btc.StringFixed(8), units)
}

func atHandle(handle string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "someone"
	}
	return "@" + handle
}
