// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/rollup"
)

var (
	// PrimaryColor is the main theme color (ledger green).
	PrimaryColor = lipgloss.Color("#2E8B57")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	LedgerIcon  = "📒"
)

// maxListedWarnings caps how many warnings a summary box prints.
const maxListedWarnings = 10

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the ledger icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(LedgerIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}

// RenderImportSummary renders the outcome of publishing one file.
func RenderImportSummary(source string, s reconcile.Summary, dryRun bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Table: %s (%s)\n", s.Table, s.Strategy)
	fmt.Fprintf(&b, "  • Rows received: %d\n", s.Received)
	fmt.Fprintf(&b, "  • Inserted: %d\n", s.Inserted)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "  • Skipped as duplicates: %d\n", s.Skipped)
	}
	if s.Replaced > 0 || len(s.Dates) > 0 {
		fmt.Fprintf(&b, "  • Replaced: %d on %s\n", s.Replaced, strings.Join(s.Dates, ", "))
	}
	fmt.Fprintf(&b, "  • Kept: %d", s.Kept)

	if len(s.Warnings) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderWarnings(s.Warnings))
	}

	title := source
	if dryRun {
		title += SubtleStyle.Render(" (dry run, nothing written)")
	}
	return RenderBox(title, b.String())
}

// RenderRollupSummary renders the outcome of a DRE consolidation.
func RenderRollupSummary(r rollup.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Table: %s\n", r.Table)
	fmt.Fprintf(&b, "  • Sources consolidated: %d\n", r.Sources)
	fmt.Fprintf(&b, "  • Lines: %d\n", r.Lines)
	fmt.Fprintf(&b, "  • Periods: %d", max(len(r.Header)-1, 0))

	if len(r.Missing) > 0 {
		b.WriteString("\n\n")
		b.WriteString(FormatWarning("Missing sources: " + strings.Join(r.Missing, ", ")))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderWarnings(r.Warnings))
	}
	return RenderBox("DRE rollup", b.String())
}

func renderWarnings(warnings []string) string {
	lines := []string{FormatWarning(fmt.Sprintf("%d warning(s):", len(warnings)))}
	for i, w := range warnings {
		if i == maxListedWarnings {
			lines = append(lines, SubtleStyle.Render(fmt.Sprintf("    … and %d more", len(warnings)-maxListedWarnings)))
			break
		}
		lines = append(lines, "    "+w)
	}
	return strings.Join(lines, "\n")
}
