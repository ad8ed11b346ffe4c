// Package playground renders parse results in the terminal, either as a
// one-shot card or as an interactive session.
package playground

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tipbot/pkg/tip"
)

// ParseFunc parses one message typed into the playground.
type ParseFunc func(ctx context.Context, text string) (tip.Intent, error)

// Info is shown in the playground header.
type Info struct {
	Sender     string
	Bot        string
	Fiat       string
	RateSource string
}

func RunInteractive(ctx context.Context, parseFn ParseFunc, info Info) error {
	program := tea.NewProgram(newModel(ctx, parseFn, info), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("16")).
		Background(lipgloss.Color("214")).
		Padding(0, 2)

	return style.Render("Happy tipping")
}
