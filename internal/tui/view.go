package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vitaminmoo/blesync/internal/ble"
)

// dataRows is the number of stored readings visible at once.
const dataRows = 15

// View renders the model.
func (m Model) View() string {
	if m.alert != nil {
		return m.overlayAlert()
	}

	var content string

	switch m.view {
	case ViewDevices:
		content = m.viewDevices()
	case ViewConnected:
		content = m.viewConnected()
	case ViewData:
		content = m.viewData()
	default:
		content = "Unknown view"
	}

	helpView := m.styles.Help.Render(m.help.View(m.keys))

	return m.styles.App.Render(
		content + "\n" + m.renderStatusBar() + "\n" + helpView,
	)
}

// renderStatusBar summarizes storage and sync state on every view.
func (m Model) renderStatusBar() string {
	field := func(key, value string) string {
		return m.styles.StatusKey.Render(key) + m.styles.StatusValue.Render(value)
	}

	sync := "never"
	if s := m.status.LastSync; s != nil {
		sync = "ok " + s.At.Format(time.TimeOnly)
		if s.Err != nil {
			sync = "failed " + s.At.Format(time.TimeOnly)
		}
	}

	bar := field("stored", fmt.Sprintf("%d", m.status.Stored)) +
		field("sync", sync) +
		m.styles.StatusKey.Render("devices") + m.styles.Highlight.Render(fmt.Sprintf("%d", len(m.devices)))
	return m.styles.StatusBar.Render(bar)
}

// renderTitleBar renders a consistent title bar with connection status.
func (m Model) renderTitleBar(title string) string {
	var parts []string

	parts = append(parts, m.styles.Title.Render(title))

	switch {
	case m.connecting:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Connecting..."))
	case m.status.State == ble.StateConnected && m.status.Peripheral != nil:
		parts = append(parts, m.styles.Success.Render("●"))
		parts = append(parts, m.styles.Muted.Render(m.status.Peripheral.DisplayName()))
	case m.status.Scanning:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Scanning..."))
	default:
		parts = append(parts, m.styles.Muted.Render("○ Not connected"))
	}

	if m.status.Online {
		parts = append(parts, m.styles.StatusOnline.Render("⇅ Online"))
	} else {
		parts = append(parts, m.styles.StatusOffline.Render("⇅ Offline"))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderMessages(b *strings.Builder) {
	if m.errorMsg != "" {
		b.WriteString(m.styles.Error.Render(m.errorMsg))
		b.WriteString("\n")
	} else if m.statusMsg != "" {
		b.WriteString(m.styles.Muted.Render(m.statusMsg))
		b.WriteString("\n")
	}
}

func (m Model) viewDevices() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("BLE Sync"))
	b.WriteString("\n")
	m.renderMessages(&b)
	b.WriteString("\n")

	if len(m.devices) == 0 {
		if m.status.Scanning {
			b.WriteString(m.styles.Muted.Render("Looking for devices..."))
		} else {
			scanKey := m.keys.Scan.Help().Key
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("No devices found. ['%s' to scan]", scanKey)))
		}
		b.WriteString("\n")
		return b.String()
	}

	for i, p := range m.devices {
		line := fmt.Sprintf("%-24s %s", truncate(p.Name, 24), m.styles.Muted.Render(p.ID))
		if i == m.cursor {
			b.WriteString(m.styles.MenuItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.styles.MenuItem.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewConnected() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Device"))
	b.WriteString("\n")
	m.renderMessages(&b)
	b.WriteString("\n")

	if p := m.status.Peripheral; p != nil {
		b.WriteString(m.renderField("Connected to", p.DisplayName()))
		b.WriteString(m.renderField("Address", p.ID))
	}
	b.WriteString(m.renderField("Stored", fmt.Sprintf("%d readings", m.status.Stored)))
	if s := m.status.LastSync; s != nil {
		result := m.styles.Success.Render("ok")
		if s.Err != nil {
			result = m.styles.Error.Render("failed")
		}
		b.WriteString(m.renderField("Last sync", fmt.Sprintf("%s (%d) %s", s.At.Format(time.TimeOnly), s.Count, result)))
	}
	b.WriteString("\n")

	if r := m.status.Latest; r != nil {
		b.WriteString(m.styles.Label.Render("Current value:"))
		b.WriteString(m.styles.BigValue.Render(r.Value))
		b.WriteString("\n")
		b.WriteString(m.gauge.View(r.Value))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("at " + r.Timestamp.Local().Format(time.DateTime)))
	} else {
		b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render("Waiting for the first reading..."))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewData() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Stored Data"))
	b.WriteString("\n\n")

	if len(m.readings) == 0 {
		b.WriteString(m.styles.Muted.Render("No stored readings."))
		b.WriteString("\n")
		return b.String()
	}

	start := 0
	if m.cursor >= dataRows {
		start = m.cursor - dataRows + 1
	}
	end := min(start+dataRows, len(m.readings))

	for i := start; i < end; i++ {
		r := m.readings[i]
		line := fmt.Sprintf("%4d  %s  %8s", i+1, r.Timestamp.Local().Format(time.DateTime), r.Value)
		if i == m.cursor {
			b.WriteString(m.styles.MenuItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.styles.MenuItem.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d of %d", m.cursor+1, len(m.readings))))
	b.WriteString("\n")
	return b.String()
}

// overlayAlert renders the pending alert centered on screen.
func (m Model) overlayAlert() string {
	style := m.styles.Alert
	title := m.styles.Success.Bold(true).Render(m.alert.Title)
	if m.alert.IsError() {
		style = m.styles.AlertError
		title = m.styles.Error.Bold(true).Render(m.alert.Title)
	}

	body := title + "\n\n" + m.alert.Message + "\n\n" + m.styles.Muted.Render("[enter] OK")
	if n := len(m.queued); n > 0 {
		body += m.styles.Muted.Render(fmt.Sprintf("  (+%d more)", n))
	}
	box := style.Render(body)

	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderField(label, value string) string {
	return m.styles.Label.Render(label+":") + " " + m.styles.Value.Render(value) + "\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
