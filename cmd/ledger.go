package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"tipbot/pkg/store"
)

var (
	ledgerLimit int
	ledgerJSON  bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List recently processed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		ledger, err := store.Open(cfg.Store.Path, slog.Default())
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		records, err := ledger.Recent(cmd.Context(), ledgerLimit)
		if err != nil {
			return err
		}

		if ledgerJSON {
			return writeRecordsJSON(cmd.OutOrStdout(), records)
		}
		return writeRecordsTable(cmd.OutOrStdout(), records)
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 20, "number of records to show")
	ledgerCmd.Flags().BoolVar(&ledgerJSON, "json", false, "print records as JSON lines")
}

func writeRecordsJSON(out io.Writer, records []store.Record) error {
	encoder := json.NewEncoder(out)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeRecordsTable prints an unstyled, borderless table so output stays
// plain when piped.
func writeRecordsTable(out io.Writer, records []store.Record) error {
	cell := lipgloss.NewStyle().PaddingRight(1)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		StyleFunc(func(_, _ int) lipgloss.Style { return cell }).
		Headers("TIME", "CHANNEL", "MESSAGE", "SENDER", "RECIPIENT", "AMOUNT", "STATUS")

	for _, rec := range records {
		status := "accepted"
		if !rec.Valid {
			status = rec.Reason
		}
		t.Row(
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.Channel,
			rec.MessageID,
			orDash(rec.Sender),
			orDash(rec.Recipient),
			strconv.FormatInt(rec.Amount, 10),
			status,
		)
	}

	_, err := fmt.Fprintln(out, t.String())
	return err
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
