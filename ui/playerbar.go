package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"streamfm/core/player"
	"streamfm/model"
)

// playerBar is the persistent bottom strip showing the loaded track and
// transport state. It only caches what the player streams publish.
type playerBar struct {
	track    *model.Track
	state    player.State
	playing  bool
	loading  bool
	position float64
	duration float64
	volume   float64
	muted    bool
}

func (b *playerBar) render(width int) string {
	if width <= 0 {
		width = 80
	}

	var status string
	switch {
	case b.loading:
		status = "⏳"
	case b.state == player.StateErrored:
		status = styles.err.Render("✖")
	case b.playing:
		status = "▶"
	case b.state == player.StateEnded:
		status = "⏹"
	default:
		status = "⏸"
	}

	title := "nothing playing"
	if b.track != nil {
		title = fmt.Sprintf("%s · %s", b.track.Title, b.track.Artist)
	}

	clock := fmt.Sprintf("%s / %s", formatClock(b.position), formatClock(b.duration))

	vol := fmt.Sprintf("vol %d%%", int(b.volume))
	if b.muted {
		vol = "muted"
	}

	left := fmt.Sprintf("%s %s", status, title)
	right := fmt.Sprintf("%s  %s  %s", b.renderProgress(width/4), clock, vol)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return styles.playerBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *playerBar) renderProgress(width int) string {
	if width < 4 {
		width = 4
	}
	filled := 0
	if b.duration > 0 {
		filled = int(b.position / b.duration * float64(width))
		if filled > width {
			filled = width
		}
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
