// Package ui is the terminal front end: an Elm-style program over the
// playback engine, the chat session and the feature services.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streamfm/core/player"
	"streamfm/core/realtime"
	"streamfm/core/stream"
	"streamfm/model"
	"streamfm/service"
)

// Deps bundles everything the views talk to.
type Deps struct {
	Auth      *service.Auth
	Tracks    *service.Tracks
	Favorites *service.Favorites
	Upload    *service.Upload
	Player    *player.Player
	Chat      *realtime.Session
	Room      string
}

type tab int

const (
	tabCatalog tab = iota
	tabFavorites
	tabUpload
	tabCount
)

var tabNames = [tabCount]string{"Tracks", "Favorites", "Upload"}

// App is the root TUI model.
type App struct {
	deps *Deps
	keys keyMap
	help help.Model

	width  int
	height int

	authed bool
	auth   *authModel

	activeTab tab
	catalog   *trackListModel
	favorites *trackListModel
	upload    *uploadModel
	chat      *chatModel
	chatOpen  bool
	bar       playerBar

	errText string

	subs       stream.Bag
	trackCh    <-chan *model.Track
	playingCh  <-chan bool
	positionCh <-chan float64
	durationCh <-chan float64
	loadingCh  <-chan bool
	stateCh    <-chan player.State
	favIDsCh   <-chan []int64
	refreshCh  <-chan bool
	progressCh <-chan *service.UploadProgress
	chatMsgCh  <-chan []model.ChatMessage
	chatConnCh <-chan bool
	presenceCh <-chan model.PresenceEvent
}

// NewApp builds the root model and subscribes to every stream the views
// render from.
func NewApp(deps *Deps) *App {
	a := &App{
		deps:      deps,
		keys:      newKeyMap(),
		help:      help.New(),
		auth:      newAuthModel(deps),
		catalog:   newTrackListModel(deps, false),
		favorites: newTrackListModel(deps, true),
		upload:    newUploadModel(deps),
		chat:      newChatModel(deps),
	}
	a.bar.volume = deps.Player.Volume()

	a.trackCh = subscribeInto(&a.subs, deps.Player.Track())
	a.playingCh = subscribeInto(&a.subs, deps.Player.Playing())
	a.positionCh = subscribeInto(&a.subs, deps.Player.Position())
	a.durationCh = subscribeInto(&a.subs, deps.Player.Duration())
	a.loadingCh = subscribeInto(&a.subs, deps.Player.Loading())
	a.stateCh = subscribeInto(&a.subs, deps.Player.State())
	a.favIDsCh = subscribeInto(&a.subs, deps.Favorites.Stream())
	a.refreshCh = subscribeInto(&a.subs, deps.Tracks.RefreshStream())
	a.progressCh = subscribeInto(&a.subs, deps.Upload.Progress())
	a.chatMsgCh = subscribeInto(&a.subs, deps.Chat.Messages())
	a.chatConnCh = subscribeInto(&a.subs, deps.Chat.Connected())
	a.presenceCh = subscribeInto(&a.subs, deps.Chat.Presence())

	return a
}

func subscribeInto[T any](bag *stream.Bag, subject *stream.Subject[T]) <-chan T {
	ch, cancel := subject.Subscribe()
	bag.Add(cancel)
	return ch
}

// Init starts the stream bridges and, with a persisted session, goes
// straight to the main screen.
func (a *App) Init() tea.Cmd {
	cmds := a.bridgeCmds()
	if a.deps.Auth.IsAuthenticated() {
		cmds = append(cmds, a.enterMain()...)
	}
	return tea.Batch(cmds...)
}

func (a *App) bridgeCmds() []tea.Cmd {
	return []tea.Cmd{
		watch(a.trackCh, func(t *model.Track) tea.Msg { return trackChangedMsg{track: t} }),
		watch(a.playingCh, func(v bool) tea.Msg { return playingMsg(v) }),
		watch(a.positionCh, func(v float64) tea.Msg { return positionMsg(v) }),
		watch(a.durationCh, func(v float64) tea.Msg { return durationMsg(v) }),
		watch(a.loadingCh, func(v bool) tea.Msg { return loadingMsg(v) }),
		watch(a.stateCh, func(v player.State) tea.Msg { return playerStateMsg(v) }),
		watch(a.favIDsCh, func(ids []int64) tea.Msg { return favoriteIDsMsg(ids) }),
		watch(a.refreshCh, func(bool) tea.Msg { return catalogChangedMsg{} }),
		watch(a.progressCh, func(s *service.UploadProgress) tea.Msg { return uploadProgressMsg{step: s} }),
		watch(a.chatMsgCh, func(m []model.ChatMessage) tea.Msg { return chatMessagesMsg(m) }),
		watch(a.chatConnCh, func(v bool) tea.Msg { return chatConnectedMsg(v) }),
		watch(a.presenceCh, func(ev model.PresenceEvent) tea.Msg { return chatPresenceMsg(ev) }),
	}
}

// enterMain switches to the signed-in screen and kicks off the initial
// loads plus the chat join.
func (a *App) enterMain() []tea.Cmd {
	a.authed = true
	a.resize()

	cmds := []tea.Cmd{a.catalog.load()}
	cmds = append(cmds, func() tea.Msg {
		if err := a.deps.Favorites.Load(context.Background()); err != nil {
			return errMsg{err: err}
		}
		return nil
	})
	if user := a.deps.Auth.CurrentUser(); user != nil {
		a.deps.Chat.JoinRoom(user.ID, displayName(user), a.deps.Room)
		a.deps.Chat.GetMessageHistory(a.deps.Room, 1, 50)
	}
	return cmds
}

func (a *App) logout() {
	if user := a.deps.Auth.CurrentUser(); user != nil {
		a.deps.Chat.LeaveRoom(user.ID, a.deps.Room)
	}
	a.deps.Auth.Logout()
	a.deps.Player.Pause()
	a.chatOpen = false
	a.authed = false
	a.auth.switchMode(modeLogin)
}

func (a *App) resize() {
	a.help.Width = a.width
	contentHeight := a.height - 4
	a.auth.setSize(a.width, a.height)
	a.catalog.setSize(a.width, contentHeight)
	a.favorites.setSize(a.width, contentHeight)
	a.chat.setSize(a.width, contentHeight)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case errMsg:
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		return a, nil

	case trackChangedMsg:
		a.bar.track = msg.track
		return a, watch(a.trackCh, func(t *model.Track) tea.Msg { return trackChangedMsg{track: t} })
	case playingMsg:
		a.bar.playing = bool(msg)
		return a, watch(a.playingCh, func(v bool) tea.Msg { return playingMsg(v) })
	case positionMsg:
		a.bar.position = float64(msg)
		return a, watch(a.positionCh, func(v float64) tea.Msg { return positionMsg(v) })
	case durationMsg:
		a.bar.duration = float64(msg)
		return a, watch(a.durationCh, func(v float64) tea.Msg { return durationMsg(v) })
	case loadingMsg:
		a.bar.loading = bool(msg)
		return a, watch(a.loadingCh, func(v bool) tea.Msg { return loadingMsg(v) })
	case playerStateMsg:
		a.bar.state = player.State(msg)
		return a, watch(a.stateCh, func(v player.State) tea.Msg { return playerStateMsg(v) })

	case favoriteIDsMsg:
		a.catalog.setFavorites(msg)
		a.favorites.setFavorites(msg)
		return a, watch(a.favIDsCh, func(ids []int64) tea.Msg { return favoriteIDsMsg(ids) })
	case favoriteToggled:
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		return a, nil
	case catalogChangedMsg:
		return a, tea.Batch(
			a.catalog.load(),
			watch(a.refreshCh, func(bool) tea.Msg { return catalogChangedMsg{} }),
		)
	case tracksLoadedMsg:
		if msg.err != nil {
			a.errText = msg.err.Error()
			return a, nil
		}
		a.errText = ""
		if msg.search {
			a.catalog.setTracks(msg.tracks, true)
		} else {
			a.catalog.setTracks(msg.tracks, false)
			a.favorites.setTracks(msg.tracks, false)
		}
		return a, nil

	case uploadProgressMsg:
		a.upload.step = msg.step
		return a, watch(a.progressCh, func(s *service.UploadProgress) tea.Msg { return uploadProgressMsg{step: s} })
	case uploadDoneMsg:
		return a, a.upload.finish(msg)

	case chatMessagesMsg:
		a.chat.setMessages(msg)
		return a, watch(a.chatMsgCh, func(m []model.ChatMessage) tea.Msg { return chatMessagesMsg(m) })
	case chatConnectedMsg:
		a.chat.connected = bool(msg)
		return a, watch(a.chatConnCh, func(v bool) tea.Msg { return chatConnectedMsg(v) })
	case chatPresenceMsg:
		a.chat.applyPresence(model.PresenceEvent(msg))
		return a, watch(a.presenceCh, func(ev model.PresenceEvent) tea.Msg { return chatPresenceMsg(ev) })
	case typingExpiredMsg:
		a.chat.expireTyping()
		return a, nil

	case tea.KeyMsg:
		if !a.authed {
			cmd, done := a.auth.Update(msg)
			if done {
				return a, tea.Batch(a.enterMain()...)
			}
			return a, cmd
		}
		return a, a.handleMainKey(msg)
	}

	if !a.authed {
		cmd, done := a.auth.Update(msg)
		if done {
			return a, tea.Batch(a.enterMain()...)
		}
		return a, cmd
	}
	return a, nil
}

// editing reports whether keystrokes currently belong to a text input,
// so playback shortcuts stay out of the way.
func (a *App) editing() bool {
	return a.chatOpen || a.catalog.searching || a.activeTab == tabUpload
}

func (a *App) handleMainKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	if a.chatOpen {
		if msg.String() == "esc" {
			a.chatOpen = false
			a.chat.close()
			return nil
		}
		return a.chat.handleKey(msg)
	}

	if !a.editing() {
		switch msg.String() {
		case "q":
			return tea.Quit
		case " ":
			return func() tea.Msg {
				if err := a.deps.Player.TogglePlay(); err != nil {
					return errMsg{err: err}
				}
				return nil
			}
		case "left":
			a.deps.Player.SeekTo(a.bar.position - 5)
			return nil
		case "right":
			a.deps.Player.SeekTo(a.bar.position + 5)
			return nil
		case "+", "=":
			a.deps.Player.SetVolume(a.deps.Player.Volume() + 5)
			a.bar.volume = a.deps.Player.Volume()
			return nil
		case "-":
			a.deps.Player.SetVolume(a.deps.Player.Volume() - 5)
			a.bar.volume = a.deps.Player.Volume()
			return nil
		case "m":
			a.deps.Player.SetMuted(!a.deps.Player.Muted())
			a.bar.muted = a.deps.Player.Muted()
			return nil
		case "?":
			a.help.ShowAll = !a.help.ShowAll
			return nil
		}
	}

	switch msg.String() {
	case "tab":
		if !a.catalog.searching {
			a.activeTab = (a.activeTab + 1) % tabCount
			return nil
		}
	case "shift+tab":
		if !a.catalog.searching {
			a.activeTab = (a.activeTab + tabCount - 1) % tabCount
			return nil
		}
	case "c":
		if !a.editing() {
			a.chatOpen = true
			return a.chat.open()
		}
	case "ctrl+l":
		a.logout()
		return nil
	}

	switch a.activeTab {
	case tabCatalog:
		return a.catalog.handleKey(msg)
	case tabFavorites:
		return a.favorites.handleKey(msg)
	case tabUpload:
		return a.upload.handleKey(msg)
	}
	return nil
}

func (a *App) View() string {
	if !a.authed {
		return a.auth.View()
	}

	var content string
	if a.chatOpen {
		content = a.chat.View()
	} else {
		switch a.activeTab {
		case tabCatalog:
			content = a.catalog.View()
		case tabFavorites:
			content = a.favorites.View()
		case tabUpload:
			content = a.upload.View()
		}
	}

	body := lipgloss.NewStyle().Height(max(a.height-4, 1)).Render(content)

	status := ""
	if a.errText != "" {
		status = styles.err.Render(a.errText)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderTabs(),
		body,
		status,
		a.bar.render(a.width),
		a.help.View(a.keys),
	)
}

func (a *App) renderTabs() string {
	rendered := make([]string, 0, tabCount)
	for i, name := range tabNames {
		if tab(i) == a.activeTab && !a.chatOpen {
			rendered = append(rendered, styles.activeTab.Render(name))
		} else {
			rendered = append(rendered, styles.tab.Render(name))
		}
	}
	if a.chatOpen {
		rendered = append(rendered, styles.activeTab.Render("Chat"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Close tears down the stream subscriptions.
func (a *App) Close() {
	a.subs.Close()
}
