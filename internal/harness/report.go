package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Markers prefix passed and failed tests in reports.
const (
	PassMarker = "✓"
	FailMarker = "✗"
)

// Marker returns the report marker for an outcome.
func Marker(passed bool) string {
	if passed {
		return PassMarker
	}
	return FailMarker
}

// PrintResults renders one row per test followed by the run totals.
func (c *Collector) PrintResults(w io.Writer) {
	s := c.Results()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(s.Duration)))
	t.AppendHeader(table.Row{"", "Test", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter},
		{Number: 3, WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, r := range c.Tests() {
		t.AppendRow(table.Row{Marker(r.Passed), r.Name, r.Message})
	}

	t.AppendFooter(table.Row{
		Marker(s.AllPassed()),
		fmt.Sprintf("Total: %d  Passed: %d  Failed: %d", s.Total, s.Passed, s.Failed),
		fmt.Sprintf("Success rate: %.2f%%  Duration: %s", s.SuccessRate, formatDuration(s.Duration)),
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.Render()
}

// formatDuration renders d with millisecond precision.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
