// Package ui holds the terminal pieces of the CLI: spinner, login prompt,
// status tables and the review browser.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	accent = lipgloss.Color("39")  // bright blue
	dim    = lipgloss.Color("240") // dim gray
	red    = lipgloss.Color("196")
	green  = lipgloss.Color("42")
	amber  = lipgloss.Color("214")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)
)

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// scoreStyle colors a score: green for strong matches, amber for passing
// ones, dim otherwise.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return lipgloss.NewStyle().Foreground(green).Bold(true)
	case score >= 70:
		return lipgloss.NewStyle().Foreground(amber)
	case score >= 0:
		return lipgloss.NewStyle().Foreground(dim)
	default:
		return lipgloss.NewStyle().Foreground(dim).Italic(true)
	}
}
