package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"streamfm/model"
)

// typingLinger is how long the local typing indicator stays on after
// the last keystroke.
const typingLinger = 2 * time.Second

// chatModel is the chat overlay: a message log, an input line and the
// who-is-typing indicator. The app toggles its visibility.
type chatModel struct {
	deps      *Deps
	viewport  viewport.Model
	input     textinput.Model
	messages  []model.ChatMessage
	notices   []string
	typists   map[int64]string
	connected  bool
	typingSent bool
	lastTyped  time.Time
	width      int
	height     int
}

func newChatModel(deps *Deps) *chatModel {
	input := textinput.New()
	input.Placeholder = "say something"
	input.CharLimit = 500
	return &chatModel{
		deps:    deps,
		input:   input,
		typists: make(map[int64]string),
	}
}

func (c *chatModel) setSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport = viewport.New(width-4, height-7)
	c.refreshLog()
}

func (c *chatModel) open() tea.Cmd {
	return c.input.Focus()
}

func (c *chatModel) close() {
	c.input.Blur()
}

func (c *chatModel) setMessages(messages []model.ChatMessage) {
	c.messages = messages
	c.refreshLog()
}

func (c *chatModel) applyPresence(ev model.PresenceEvent) {
	me := c.deps.Auth.CurrentUser()
	switch ev.Event {
	case "user_typing":
		if me != nil && ev.UserID == me.ID {
			return
		}
		if ev.IsTyping {
			c.typists[ev.UserID] = ev.Username
		} else {
			delete(c.typists, ev.UserID)
		}
	case "user_joined":
		c.addNotice(fmt.Sprintf("%s joined", ev.Username))
	case "user_left", "user_disconnected":
		delete(c.typists, ev.UserID)
		c.addNotice(fmt.Sprintf("%s left", ev.Username))
	}
}

func (c *chatModel) addNotice(text string) {
	c.notices = append(c.notices, text)
	if len(c.notices) > 3 {
		c.notices = c.notices[len(c.notices)-3:]
	}
	c.refreshLog()
}

func (c *chatModel) refreshLog() {
	if c.viewport.Width == 0 {
		return
	}
	me := c.deps.Auth.CurrentUser()
	var b strings.Builder
	for _, msg := range c.messages {
		name := styles.chatOther.Render(msg.Username)
		if me != nil && msg.UserID == me.ID {
			name = styles.chatOwn.Render(msg.Username)
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n",
			styles.dim.Render(shortTime(msg.Timestamp)), name, msg.Message))
	}
	for _, notice := range c.notices {
		b.WriteString(styles.dim.Render("· "+notice) + "\n")
	}
	c.viewport.SetContent(b.String())
	c.viewport.GotoBottom()
}

func (c *chatModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	me := c.deps.Auth.CurrentUser()

	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(c.input.Value())
		if text == "" || me == nil {
			return nil
		}
		c.deps.Chat.SendMessage(me.ID, displayName(me), text, c.deps.Room)
		c.input.SetValue("")
		if c.typingSent {
			c.typingSent = false
			c.deps.Chat.SendTypingIndicator(me.ID, c.deps.Room, false)
		}
		return nil
	case "up", "pgup":
		c.viewport.LineUp(1)
		return nil
	case "down", "pgdown":
		c.viewport.LineDown(1)
		return nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	cmds = append(cmds, cmd)

	if me != nil {
		// Every keystroke pushes the expiry out; only the first one
		// actually tells the room.
		c.lastTyped = time.Now()
		if !c.typingSent {
			c.typingSent = true
			c.deps.Chat.SendTypingIndicator(me.ID, c.deps.Room, true)
		}
		cmds = append(cmds, after(typingLinger, typingExpiredMsg{}))
	}
	return tea.Batch(cmds...)
}

func (c *chatModel) expireTyping() {
	if !c.typingSent || time.Since(c.lastTyped) < typingLinger {
		return
	}
	c.typingSent = false
	if me := c.deps.Auth.CurrentUser(); me != nil {
		c.deps.Chat.SendTypingIndicator(me.ID, c.deps.Room, false)
	}
}

func (c *chatModel) View() string {
	status := styles.err.Render("offline")
	if c.connected {
		status = styles.ok.Render("online")
	}
	header := fmt.Sprintf("%s %s", styles.title.Render("Chat · "+c.deps.Room), status)

	typing := ""
	if len(c.typists) > 0 {
		names := make([]string, 0, len(c.typists))
		for _, name := range c.typists {
			names = append(names, name)
		}
		verb := "is typing..."
		if len(names) > 1 {
			verb = "are typing..."
		}
		typing = styles.dim.Render(strings.Join(names, ", ") + " " + verb)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		header,
		c.viewport.View(),
		typing,
		c.input.View(),
		styles.help.Render("enter send • esc close chat"))
}

// shortTime trims a wire timestamp down to HH:MM for display.
func shortTime(stamp string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, stamp); err == nil {
			return ts.Format("15:04")
		}
	}
	if len(stamp) >= 16 {
		return stamp[11:16]
	}
	return stamp
}
