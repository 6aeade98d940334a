package ui

import "github.com/charmbracelet/lipgloss"

var styles = newPalette()

// palette is the application stylesheet, built from named
// [lipgloss.Style] fields.
type palette struct {
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	ok        lipgloss.Style
	err       lipgloss.Style
	warn      lipgloss.Style
	help      lipgloss.Style
	dim       lipgloss.Style
	accent    lipgloss.Style
	playerBar lipgloss.Style
	chatOwn   lipgloss.Style
	chatOther lipgloss.Style
	popup     lipgloss.Style
}

func newPalette() *palette {
	return &palette{
		title:     bold("#7D56F4").MarginBottom(1),
		tab:       fg("#626262").Padding(0, 2),
		activeTab: bold("#7D56F4").Padding(0, 2).Underline(true),
		ok:        bold("#04B575"),
		err:       bold("#FF5555"),
		warn:      fg("#FFA500"),
		help:      em("#626262"),
		dim:       fg("#626262"),
		accent:    fg("#7D56F4"),
		playerBar: fg("#FAFAFA").Background(lipgloss.Color("#2D2D44")).Padding(0, 1),
		chatOwn:   fg("#04B575"),
		chatOther: fg("#5FAFFF"),
		popup: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 3),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}

func em(color string) lipgloss.Style {
	return fg(color).Italic(true)
}
