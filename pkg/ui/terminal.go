// Package ui prints the command line's human-facing output: the banner,
// status lines and the end-of-crawl summary. Structured progress goes
// through the logger instead.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Output receives everything this package prints
var Output io.Writer = os.Stdout

// ASCIILogo is printed by PrintLogo
const ASCIILogo = `
  ┌┬┐┬ ┬┌─┐┌─┐┌┬┐┌─┐┬─┐┌─┐┌─┐┬ ┬
   │ │││├┤ ├┤  │ │ ┬├┬┘├─┤├─┘├─┤
   ┴ └┴┘└─┘└─┘ ┴ └─┘┴└─┴ ┴┴  ┴ ┴
  follower graph crawler`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	orange  = lipgloss.Color("#FF6700")
	dim     = lipgloss.Color("#B0B0B0")

	logoStyle    = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(yellow)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(orange).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(yellow)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
	headerStyle  = lipgloss.NewStyle().Foreground(magenta).Bold(true).Underline(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)
)

func PrintLogo() {
	fmt.Fprintln(Output, logoStyle.Render(ASCIILogo))
}

// PrintError prints msg, followed by err when one is given
func PrintError(msg string, err ...error) {
	if len(err) > 0 && err[0] != nil {
		msg = msg + ": " + err[0].Error()
	}
	fmt.Fprintln(Output, errorStyle.Render("✗ "+msg))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Output, successStyle.Render("✓ "+msg))
}

// PrintInfo prints one "label: value" line
func PrintInfo(label, value string) {
	fmt.Fprintf(Output, "%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func PrintWarning(msg string) {
	fmt.Fprintln(Output, warningStyle.Render("! "+msg))
}

// PrintHint prints a dimmed line
func PrintHint(msg string) {
	fmt.Fprintln(Output, dimStyle.Render(msg))
}
