package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitaminmoo/blesync/internal/notify"
)

// Run starts the TUI application and blocks until the user quits.
func Run(ctx context.Context, ctrl Controller, alerts <-chan notify.Alert) error {
	m := NewModel(ctx, ctrl, alerts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}

	return nil
}
