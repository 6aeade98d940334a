package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"streamfm/service"
)

// uploadModel is the upload tab: a small form plus live progress.
type uploadModel struct {
	deps   *Deps
	inputs []textinput.Model
	focus  int
	busy   bool
	step    *service.UploadProgress
	done    string
	errText string
}

const (
	fieldFile = iota
	fieldTitle
	fieldArtist
	fieldAlbum
)

func newUploadModel(deps *Deps) *uploadModel {
	mk := func(placeholder string) textinput.Model {
		input := textinput.New()
		input.Placeholder = placeholder
		input.CharLimit = 256
		return input
	}
	inputs := []textinput.Model{
		mk("path to audio file (mp3, wav, ogg, m4a, aac)"),
		mk("title"),
		mk("artist"),
		mk("album (optional)"),
	}
	inputs[fieldFile].Focus()
	return &uploadModel{deps: deps, inputs: inputs}
}

func (u *uploadModel) setFocus(focus int) {
	u.focus = focus
	for i := range u.inputs {
		if i == focus {
			u.inputs[i].Focus()
		} else {
			u.inputs[i].Blur()
		}
	}
}

func (u *uploadModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if u.busy {
		return nil
	}

	switch msg.String() {
	case "down":
		u.setFocus((u.focus + 1) % len(u.inputs))
		return nil
	case "up":
		u.setFocus((u.focus + len(u.inputs) - 1) % len(u.inputs))
		return nil
	case "enter":
		return u.submit()
	case "esc":
		u.done = ""
		u.errText = ""
		u.step = nil
		u.deps.Upload.ClearState()
		return nil
	}

	var cmd tea.Cmd
	u.inputs[u.focus], cmd = u.inputs[u.focus].Update(msg)
	return cmd
}

func (u *uploadModel) submit() tea.Cmd {
	path := strings.TrimSpace(u.inputs[fieldFile].Value())
	title := strings.TrimSpace(u.inputs[fieldTitle].Value())
	artist := strings.TrimSpace(u.inputs[fieldArtist].Value())
	if path == "" || title == "" || artist == "" {
		u.errText = "file, title and artist are required"
		return nil
	}

	u.busy = true
	u.errText = ""
	u.done = ""
	song := service.SongUpload{
		Title:    title,
		Artist:   artist,
		Album:    strings.TrimSpace(u.inputs[fieldAlbum].Value()),
		FilePath: path,
	}
	return func() tea.Msg {
		track, err := u.deps.Upload.UploadSong(context.Background(), song)
		return uploadDoneMsg{track: track, err: err}
	}
}

func (u *uploadModel) finish(msg uploadDoneMsg) tea.Cmd {
	u.busy = false
	if msg.err != nil {
		u.errText = msg.err.Error()
		return nil
	}
	u.done = fmt.Sprintf("Uploaded %q", msg.track.Title)
	for i := range u.inputs {
		u.inputs[i].SetValue("")
	}
	u.setFocus(fieldFile)
	u.deps.Tracks.Refresh()
	return nil
}

func (u *uploadModel) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Upload a song"))
	b.WriteString("\n")
	for i := range u.inputs {
		b.WriteString(u.inputs[i].View())
		b.WriteString("\n")
	}

	if u.step != nil {
		switch u.step.Status {
		case service.StatusUploading:
			b.WriteString(fmt.Sprintf("\n%s %d%%", styles.accent.Render("Uploading..."), u.step.Percentage))
		case service.StatusProcessing:
			b.WriteString("\n" + styles.accent.Render("Processing..."))
		case service.StatusCompleted:
			b.WriteString("\n" + styles.ok.Render("Done"))
		case service.StatusError:
			b.WriteString("\n" + styles.err.Render(u.step.Message))
		}
	}
	if u.done != "" {
		b.WriteString("\n" + styles.ok.Render(u.done))
	}
	if u.errText != "" {
		b.WriteString("\n" + styles.err.Render(u.errText))
	}

	b.WriteString("\n\n" + styles.help.Render("↑/↓ move • enter upload • esc reset"))
	return b.String()
}
