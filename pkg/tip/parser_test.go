package tip

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSender = "sender"

// btcUSD is the recorded exchange rate the fiat expectations are computed from.
var btcUSD = decimal.NewFromInt(695)

type countingRate struct {
	mu    sync.Mutex
	calls int
	rate  decimal.Decimal
	err   error
}

func (r *countingRate) CurrentRate(context.Context, string, string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.rate, r.err
}

func (r *countingRate) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestParser() *Parser {
	return NewParser(FixedRate(btcUSD))
}

func parse(t *testing.T, text string) Intent {
	t.Helper()
	return parseFrom(t, text, testSender)
}

func parseFrom(t *testing.T, text string, sender string) Intent {
	t.Helper()
	intent, err := newTestParser().Parse(context.Background(), Message{Text: text, Sender: sender})
	require.NoError(t, err)
	return intent
}

func TestParseBasicTip(t *testing.T) {
	intent := parse(t, "@recipient, really good article, keep it up! Here's a tip 0.001 BTC @tippercoin")

	assert.Equal(t, "tippercoin", DefaultBotHandle)
	assert.Equal(t, testSender, intent.Sender)
	assert.Equal(t, "recipient", intent.Recipient)
	assert.NotEqual(t, "tippercoin", intent.Recipient)
	assert.Equal(t, int64(100_000), intent.Amount)
	assert.Equal(t, []string{"recipient", "tippercoin"}, intent.Mentions)
	assert.Equal(t, []int64{100_000}, intent.Amounts)
	assert.False(t, intent.MultipleRecipients)
	assert.False(t, intent.DirectedAtBot)
	assert.True(t, intent.Valid())
	assert.Empty(t, intent.Reason())
}

func TestParseMultipleRecipientsAndAmounts(t *testing.T) {
	intent := parse(t, "@recipient1, @recipient2, really good article, keep it up!\n      Here's a tip 0.001 BTC but not 1 BTC @tippercoin")

	assert.True(t, intent.MultipleRecipients)
	assert.Equal(t, "recipient1", intent.Recipient)
	assert.Equal(t, int64(100_000), intent.Amount)
	assert.Contains(t, intent.Amounts, int64(100_000_000))
	assert.True(t, intent.Valid())
}

func TestParseRepeatedRecipientIsNotMultiple(t *testing.T) {
	intent := parse(t, "@alice thanks @Alice 1 BTC @tippercoin")

	assert.Equal(t, []string{"alice", "Alice", "tippercoin"}, intent.Mentions)
	assert.Equal(t, "alice", intent.Recipient)
	assert.False(t, intent.MultipleRecipients)
}

func TestParseInvalidIntents(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		sender string
		reason string
		amount int64
	}{
		{
			name:   "no amount",
			text:   "@recipient does this btc thing actually work? @tippercoin",
			sender: testSender,
			reason: ReasonNoAmount,
		},
		{
			name:   "zero amount",
			text:   "@recipient1 really good article, keep it up! Here's a tip 0.000 BTC @tippercoin",
			sender: testSender,
			reason: ReasonZeroAmount,
		},
		{
			name:   "bot is first mention",
			text:   "@tippercoin, @BrookeInVegas I still can't get anyone to accept a\n      BitCoin. My first follower to request one, gets one (only if u r new 2 BTC)",
			sender: testSender,
			reason: ReasonDirectedAtBot,
			amount: 200_000_000,
		},
		{
			name:   "bot is sender",
			text:   "@locksley someone just give yo ass 0.01 BTC, take it man!",
			sender: "tippercoin",
			reason: ReasonSenderIsBot,
			amount: 1_000_000,
		},
		{
			name:   "bot is sender with at sign and case",
			text:   "@locksley 0.01 BTC",
			sender: "@TipperCoin",
			reason: ReasonSenderIsBot,
			amount: 1_000_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := parseFrom(t, tt.text, tt.sender)
			assert.False(t, intent.Valid())
			assert.Equal(t, tt.reason, intent.Reason())
			assert.Equal(t, tt.amount, intent.Amount)
		})
	}
}

func TestParseDirectAddressKeepsRecipient(t *testing.T) {
	intent := parse(t, "@tippercoin, @BrookeInVegas 2 BTC")

	assert.True(t, intent.DirectedAtBot)
	assert.Equal(t, "BrookeInVegas", intent.Recipient)
	assert.False(t, intent.Valid())
}

func TestParseBotOnlyMention(t *testing.T) {
	intent := parse(t, "@tippercoin 1 BTC")

	assert.False(t, intent.HasRecipient())
	assert.Empty(t, intent.Recipient)
	assert.True(t, intent.DirectedAtBot)
}

func TestParseWithoutMentions(t *testing.T) {
	intent := parse(t, "no handles here, just 1 BTC")

	assert.NotNil(t, intent.Mentions)
	assert.Empty(t, intent.Mentions)
	assert.False(t, intent.HasRecipient())
	assert.True(t, intent.Valid())
}

func TestParseSuffixUnits(t *testing.T) {
	const prefix = "@recipient, really good article, keep it up! Here's a tip "

	tests := []struct {
		text string
		want int64
	}{
		{text: "0.041 BTC", want: 4_100_000},
		{text: "0.041 btc", want: 4_100_000},
		{text: "2 BTC", want: 200_000_000},
		{text: "0.01 Bitcoins", want: 1_000_000},
		{text: "5 mBTC", want: 500_000},
		{text: "250 sats", want: 250},
		// 5e8 / 695
		{text: "5 USD", want: 719_424},
		{text: "5 dollars", want: 719_424},
		// 2 × 4 × 1e8 / 695
		{text: "2 beers", want: 1_151_079},
		// 5 × 1.337 × 1e8 / 695
		{text: "5 internets", want: 961_870},
		{text: "$0.01 BTC", want: 1_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent := parse(t, prefix+tt.text+" @tippercoin")
			assert.Equal(t, tt.want, intent.Amount)
		})
	}
}

func TestParsePrefixUnits(t *testing.T) {
	const prefix = "@recipient, really good article, keep it up! Here's a tip "

	tests := []struct {
		text string
		want int64
	}{
		{text: "฿0.041", want: 4_100_000},
		{text: "฿2", want: 200_000_000},
		// 3e8 / 695
		{text: "$ 3", want: 431_654},
		{text: "BTC 0.01", want: 1_000_000},
		{text: "mBTC8", want: 800_000},
		{text: "BTC 0.01 USD", want: 1_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent := parse(t, prefix+tt.text+" @tippercoin")
			assert.Equal(t, tt.want, intent.Amount)
		})
	}
}

func TestParseHandleDigitsDoNotLeakIntoAmounts(t *testing.T) {
	tests := []struct {
		text string
		want int64
	}{
		{text: "@person123 1 beer #tippercoin", want: 575_539},
		{text: "@person123 1 usd #tippercoin", want: 143_884},
		{text: "@person123 1 BTC #tippercoin", want: 100_000_000},
		{text: "@person123 1 bitcoin #tippercoin", want: 100_000_000},
		{text: "@person123 1 internet #tippercoin", want: 192_374},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent := parse(t, tt.text)
			assert.Equal(t, "person123", intent.Recipient)
			assert.Equal(t, tt.want, intent.Amount)
			assert.Len(t, intent.Amounts, 1)
		})
	}
}

func TestParseFixedUnitsOutrankFiat(t *testing.T) {
	intent := parse(t, "@bob 5 USD or maybe 0.5 BTC")

	assert.Equal(t, int64(50_000_000), intent.Amount)
	assert.Equal(t, []int64{50_000_000, 719_424}, intent.Amounts)
	require.Len(t, intent.Tokens, 2)
	assert.Equal(t, "usd", intent.Tokens[0].Unit.Key)
	assert.Equal(t, "btc", intent.Tokens[1].Unit.Key)
}

func TestParseIsLinear(t *testing.T) {
	one := parse(t, "@bob 1 BTC")
	two := parse(t, "@bob 2 BTC")

	assert.Equal(t, int64(100_000_000), one.Amount)
	assert.Equal(t, 2*one.Amount, two.Amount)
}

func TestParseIsIdempotent(t *testing.T) {
	parser := newTestParser()
	msg := Message{Text: "@a, @b here is 2 beers and 0.1 mBTC @tippercoin", Sender: testSender}

	first, err := parser.Parse(context.Background(), msg)
	require.NoError(t, err)
	second, err := parser.Parse(context.Background(), msg)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-parse mismatch (-first +second):\n%s", diff)
	}
}

func TestParseCallsRateSourceOncePerMessage(t *testing.T) {
	rates := &countingRate{rate: btcUSD}
	parser := NewParser(rates)

	_, err := parser.Parse(context.Background(), Message{Text: "@bob 5 USD and 2 beers and $1", Sender: testSender})
	require.NoError(t, err)
	assert.Equal(t, 1, rates.count())

	_, err = parser.Parse(context.Background(), Message{Text: "@bob 1 BTC", Sender: testSender})
	require.NoError(t, err)
	assert.Equal(t, 1, rates.count(), "fixed units must not consult the rate source")
}

func TestParseRateFailures(t *testing.T) {
	tests := []struct {
		name  string
		rates RateSource
	}{
		{name: "source error", rates: &countingRate{err: errors.New("feed down")}},
		{name: "zero rate", rates: FixedRate(decimal.Zero)},
		{name: "negative rate", rates: FixedRate(decimal.NewFromInt(-1))},
		{name: "no source", rates: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(tt.rates).Parse(context.Background(), Message{Text: "@bob 5 USD", Sender: testSender})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRateUnavailable)
		})
	}
}

func TestParseBTCOnlyIgnoresBrokenRateSource(t *testing.T) {
	parser := NewParser(&countingRate{err: errors.New("feed down")})

	intent, err := parser.Parse(context.Background(), Message{Text: "@bob $0.01 BTC", Sender: testSender})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), intent.Amount)
}

func TestParseCustomBotHandle(t *testing.T) {
	parser := NewParser(FixedRate(btcUSD), WithBotHandle("@TipJar"))
	assert.Equal(t, "TipJar", parser.BotHandle())

	intent, err := parser.Parse(context.Background(), Message{Text: "@tipjar @carol 1 BTC", Sender: testSender})
	require.NoError(t, err)
	assert.True(t, intent.DirectedAtBot)
	assert.Equal(t, "carol", intent.Recipient)
	assert.Equal(t, ReasonDirectedAtBot, intent.Reason())
}

func TestParseCustomPrices(t *testing.T) {
	units := NewUnitTable(Prices{Beer: decimal.NewFromInt(695)})
	parser := NewParser(FixedRate(btcUSD), WithUnits(units))

	intent, err := parser.Parse(context.Background(), Message{Text: "@bob 1 beer", Sender: testSender})
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), intent.Amount)
}

func TestParseSpacingFixtures(t *testing.T) {
	file, err := os.Open("testdata/spacing.txt")
	require.NoError(t, err)
	defer file.Close()

	parser := newTestParser()
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		intent, err := parser.Parse(context.Background(), Message{Text: text, Sender: testSender})
		require.NoError(t, err, "line %d", line)
		assert.Equal(t, int64(1_000_000), intent.Amount, "line %d: %q", line, text)
		assert.True(t, intent.Valid(), "line %d: %q", line, text)
	}
	require.NoError(t, scanner.Err())
	assert.Greater(t, line, 0)
}

func TestIntentMarshalJSONIncludesValidity(t *testing.T) {
	intent := parse(t, "@bob 0.000 BTC")

	data, err := intent.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"valid":false`)
	assert.Contains(t, string(data), `"reason":"zero_amount"`)
	assert.Contains(t, string(data), `"kind":"fixed"`)
}

func TestParseMalformedNumbersDegradeToInvalid(t *testing.T) {
	for _, text := range []string{
		"@bob .5 BTC",
		"@bob 5.5.5 BTC",
		"@bob 1,000.5 BTC",
		"@bob -5 BTC",
	} {
		t.Run(text, func(t *testing.T) {
			intent := parse(t, text)
			assert.Zero(t, intent.Amount)
			assert.Empty(t, intent.Amounts)
			assert.False(t, intent.Valid())
			assert.Equal(t, ReasonNoAmount, intent.Reason())
			assert.Equal(t, "bob", intent.Recipient)
		})
	}
}
