package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	headingColor = lipgloss.Color("12")
	mutedColor   = lipgloss.Color("8")
	moveColor    = lipgloss.Color("11")
	renameColor  = lipgloss.Color("14")
	okColor      = lipgloss.Color("10")
	errorColor   = lipgloss.Color("9")
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	move    lipgloss.Style
	rename  lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
}

// newStyles returns the palette, or plain text styles when color is false.
func newStyles(color bool) styles {
	label := lipgloss.NewStyle().Width(20)
	if !color {
		plain := lipgloss.NewStyle()
		return styles{
			title:   plain,
			label:   label,
			value:   plain,
			muted:   plain,
			move:    plain,
			rename:  plain,
			ok:      plain,
			warning: plain,
		}
	}
	return styles{
		title:   lipgloss.NewStyle().Foreground(headingColor).Bold(true),
		label:   label.Foreground(mutedColor),
		value:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
		move:    lipgloss.NewStyle().Foreground(moveColor).Bold(true),
		rename:  lipgloss.NewStyle().Foreground(renameColor).Bold(true),
		ok:      lipgloss.NewStyle().Foreground(okColor).Bold(true),
		warning: lipgloss.NewStyle().Foreground(errorColor).Bold(true),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
