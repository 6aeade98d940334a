package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up         key.Binding
	down       key.Binding
	enter      key.Binding
	back       key.Binding
	nextTab    key.Binding
	prevTab    key.Binding
	playPause  key.Binding
	seekBack   key.Binding
	seekFwd    key.Binding
	volUp      key.Binding
	volDown    key.Binding
	mute       key.Binding
	favorite   key.Binding
	search     key.Binding
	chat       key.Binding
	logout     key.Binding
	toggleHelp key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		nextTab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		prevTab:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		playPause:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		seekBack:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "seek -5s")),
		seekFwd:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "seek +5s")),
		volUp:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		favorite:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		chat:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chat")),
		logout:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "logout")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.favorite, k.chat, k.toggleHelp, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.nextTab, k.prevTab, k.search, k.favorite},
		{k.playPause, k.seekBack, k.seekFwd, k.mute},
		{k.volUp, k.volDown, k.chat, k.logout},
		{k.toggleHelp, k.quit},
	}
}
