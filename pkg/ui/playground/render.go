package playground

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"tipbot/pkg/tip"
)

// RenderIntent draws the styled card for one parse result.
func RenderIntent(text string, intent tip.Intent, width int) string {
	return defaultTheme().intentCard(text, intent, width)
}

// RenderPlain prints one parse result as unstyled "key: value" lines.
func RenderPlain(intent tip.Intent) string {
	var b strings.Builder
	for _, row := range intentRows(intent) {
		fmt.Fprintf(&b, "%s: %s\n", row.label, row.value)
	}
	return b.String()
}

type row struct {
	label string
	value string
}

func intentRows(intent tip.Intent) []row {
	status := "valid"
	if reason := intent.Reason(); reason != "" {
		status = "invalid (" + reason + ")"
	}

	rows := []row{
		{label: "status", value: status},
		{label: "sender", value: displayOrNA(intent.Sender)},
		{label: "recipient", value: displayOrNA(intent.Recipient)},
		{label: "amount", value: formatUnits(intent.Amount)},
		{label: "mentions", value: displayOrNA(strings.Join(intent.Mentions, ", "))},
	}

	amounts := make([]string, 0, len(intent.Details))
	for _, detail := range intent.Details {
		amounts = append(amounts, fmt.Sprintf("%s %s = %s", detail.Token.Value.String(), detail.Token.Spelling, strconv.FormatInt(detail.BaseUnits, 10)))
	}
	rows = append(rows, row{label: "amounts", value: displayOrNA(strings.Join(amounts, "; "))})

	var flags []string
	if intent.MultipleRecipients {
		flags = append(flags, "multiple recipients")
	}
	if intent.DirectedAtBot {
		flags = append(flags, "directed at @"+intent.Bot)
	}
	if len(flags) > 0 {
		rows = append(rows, row{label: "flags", value: strings.Join(flags, ", ")})
	}

	return rows
}

func (t theme) intentCard(text string, intent tip.Intent, width int) string {
	contentWidth := max(40, width-6)

	lines := make([]string, 0, 8)
	for _, r := range intentRows(intent) {
		value := t.value.Render(r.value)
		if r.label == "amount" {
			value = t.amount.Render(r.value)
		}
		lines = append(lines, t.label.Render(r.label)+value)
	}

	title, box := t.validTitle, t.validBox
	label := "VALID"
	if !intent.Valid() {
		title, box = t.invalidTitle, t.invalidBox
		label = "INVALID"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		t.inputTitle.Render("MESSAGE"),
		t.inputBox.Width(contentWidth).Render(strings.TrimSpace(text)),
		title.Render(label),
		box.Width(contentWidth).Render(strings.Join(lines, "\n")),
	)
}

func (t theme) errorCard(text string, err error, width int) string {
	contentWidth := max(40, width-6)
	return lipgloss.JoinVertical(lipgloss.Left,
		t.inputTitle.Render("MESSAGE"),
		t.inputBox.Width(contentWidth).Render(strings.TrimSpace(text)),
		t.errorTitle.Render("ERROR"),
		t.errorBox.Width(contentWidth).Render(err.Error()),
	)
}

// formatUnits renders base units with their BTC value.
func formatUnits(units int64) string {
	return fmt.Sprintf("%d sat (%s BTC)", units, decimal.New(units, -8).StringFixed(8))
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}
