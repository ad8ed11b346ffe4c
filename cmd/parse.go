package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tipbot/pkg/config"
	"tipbot/pkg/tip"
	"tipbot/pkg/ui/playground"
)

type parseOptions struct {
	sender string
	rate   string
	json   bool
	plain  bool
}

var parseOpts parseOptions

var parseCmd = &cobra.Command{
	Use:   "parse [message]",
	Short: "Parse one message or open the interactive playground",
	Long: `Parses a tip message and prints the resolved intent. Without a message an
interactive playground starts; with "-" every line of stdin is parsed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		if rate := strings.TrimSpace(parseOpts.rate); rate != "" {
			cfg.Rates.Source = config.RateSourceStatic
			cfg.Rates.StaticRate = rate
		}

		log, closeLog, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		parser, _, err := buildParser(cfg, log)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		parseFn := func(ctx context.Context, text string) (tip.Intent, error) {
			return parser.Parse(ctx, tip.Message{Text: text, Sender: parseOpts.sender})
		}

		message := resolveMessage(args)
		switch {
		case message == "-":
			return parseLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), parseFn, parseOpts)
		case message != "":
			return parseOne(ctx, cmd.OutOrStdout(), parseFn, message, parseOpts)
		default:
			return playground.RunInteractive(ctx, parseFn, playground.Info{
				Sender:     parseOpts.sender,
				Bot:        parser.BotHandle(),
				Fiat:       parser.Fiat(),
				RateSource: rateSourceLabel(cfg),
			})
		}
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseOpts.sender, "sender", "s", "sender", "handle of the message author")
	parseCmd.Flags().StringVar(&parseOpts.rate, "rate", "", "static BTC price in the fiat currency, overrides the config")
	parseCmd.Flags().BoolVar(&parseOpts.json, "json", false, "print the intent as JSON")
	parseCmd.Flags().BoolVar(&parseOpts.plain, "plain", false, "print unstyled key: value lines")
	parseCmd.MarkFlagsMutuallyExclusive("json", "plain")
}

func resolveMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOne(ctx context.Context, out io.Writer, parseFn playground.ParseFunc, message string, opts parseOptions) error {
	intent, err := parseFn(ctx, message)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(intent)
	case opts.plain:
		_, err = io.WriteString(out, playground.RenderPlain(intent))
		return err
	default:
		_, err = fmt.Fprintln(out, playground.RenderIntent(message, intent, 80))
		return err
	}
}

// parseLines parses stdin line by line; blank lines are skipped. Output is
// one JSON object per line with --json and a one-line summary otherwise.
func parseLines(ctx context.Context, in io.Reader, out io.Writer, parseFn playground.ParseFunc, opts parseOptions) error {
	scanner := bufio.NewScanner(in)
	encoder := json.NewEncoder(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		intent, err := parseFn(ctx, line)
		if err != nil {
			return fmt.Errorf("parse %q: %w", line, err)
		}

		if opts.json {
			if err := encoder.Encode(intent); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(out, summaryLine(intent)); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func summaryLine(intent tip.Intent) string {
	status := "valid"
	if reason := intent.Reason(); reason != "" {
		status = reason
	}
	recipient := intent.Recipient
	if recipient == "" {
		recipient = "-"
	}
	return fmt.Sprintf("%s\t%d\t%s", status, intent.Amount, recipient)
}

func rateSourceLabel(cfg *config.Config) string {
	if cfg.Rates.Source == config.RateSourceStatic {
		if cfg.Rates.StaticRate == "" {
			return "none"
		}
		return "static " + cfg.Rates.StaticRate
	}
	return cfg.Rates.Source
}
