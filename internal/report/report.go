// Package report renders the final run verdict for the console
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

var (
	successStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	skippedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	detailStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))
)

// Render produces the human-readable run report. Failed targets and
// skipped targets are listed separately so root causes are not buried
// under their cascades.
func Render(v *runstate.Verdict) string {
	var b strings.Builder

	if v.Success {
		b.WriteString(successStyle.Render(fmt.Sprintf("BUILD SUCCESS: %d targets built", v.Total)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(failedStyle.Render(fmt.Sprintf(
		"BUILD FAILED: %d of %d targets failed, %d skipped",
		len(v.Failed), v.Total, len(v.Skipped),
	)))
	b.WriteString("\n")

	for _, res := range v.Failed {
		b.WriteString(failedStyle.Render(fmt.Sprintf("  FAILED  %s (%s)", res.Target.ID(), res.Kind)))
		b.WriteString("\n")
		if res.Detail != "" {
			b.WriteString(detailStyle.Render("          " + firstLine(res.Detail)))
			b.WriteString("\n")
		}
	}

	for _, res := range v.Skipped {
		b.WriteString(skippedStyle.Render(fmt.Sprintf(
			"  SKIPPED %s due to failed dependencies %s",
			res.Target.ID(), strings.Join(res.CausedBy, ", "),
		)))
		b.WriteString("\n")
	}

	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
