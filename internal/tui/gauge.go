package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/progress"
)

// gaugeMax is the upper bound of a reading value.
const gaugeMax = 100.0

// Gauge renders the latest reading as a bar.
type Gauge struct {
	bar progress.Model
}

// NewGauge creates a gauge of the given width.
func NewGauge(width int) Gauge {
	return Gauge{bar: progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)}
}

// SetWidth resizes the bar.
func (g *Gauge) SetWidth(width int) {
	g.bar.Width = width
}

// View renders value, a decimal string in [0, gaugeMax). Unparseable values
// render as an empty bar.
func (g Gauge) View(value string) string {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 {
		v = 0
	}
	return g.bar.ViewAs(min(v/gaugeMax, 1))
}
