package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"streamfm/core/player"
	"streamfm/model"
	"streamfm/service"
)

// Messages produced by commands and the stream bridges.
type (
	errMsg struct{ err error }

	authDelayDoneMsg struct{ user *model.User }
	popupClearMsg    struct{}

	tracksLoadedMsg struct {
		tracks []model.Track
		search bool
		err    error
	}
	catalogChangedMsg struct{}

	favoriteIDsMsg  []int64
	favoriteToggled struct {
		songID int64
		added  bool
		err    error
	}

	trackChangedMsg  struct{ track *model.Track }
	playingMsg       bool
	positionMsg      float64
	durationMsg      float64
	loadingMsg       bool
	playerStateMsg   player.State
	uploadProgressMsg struct{ step *service.UploadProgress }
	uploadDoneMsg    struct {
		track model.Track
		err   error
	}

	chatMessagesMsg  []model.ChatMessage
	chatConnectedMsg bool
	chatPresenceMsg  model.PresenceEvent
	typingExpiredMsg struct{}
)

// watch relays one value from a stream subscription into the program.
// The receiving Update handler re-arms it to keep the bridge flowing.
func watch[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		value, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(value)
	}
}

// after fires msg once the delay elapsed.
func after(delay time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg { return msg })
}
