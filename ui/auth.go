package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streamfm/model"
)

// authSuccessDelay keeps the welcome popup visible before the main
// screen takes over.
const authSuccessDelay = 1500 * time.Millisecond

type authMode int

const (
	modeLogin authMode = iota
	modeRegister
	modeForgotEmail
	modeForgotReset
)

type authResultMsg struct {
	user *model.User
	err  error
}

type verifyEmailResultMsg struct{ err error }
type resetResultMsg struct{ err error }

// authModel is the sign-in screen with its login, register and
// password-reset forms.
type authModel struct {
	deps  *Deps
	mode  authMode
	email textinput.Model
	pass  textinput.Model
	conf  textinput.Model
	focus int
	busy  bool
	popup   string
	errText string
	width   int
	height  int
}

func newAuthModel(deps *Deps) *authModel {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 128
	email.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.CharLimit = 128

	conf := textinput.New()
	conf.Placeholder = "confirm password"
	conf.EchoMode = textinput.EchoPassword
	conf.CharLimit = 128

	return &authModel{deps: deps, email: email, pass: pass, conf: conf}
}

func (a *authModel) setSize(width, height int) {
	a.width = width
	a.height = height
}

// fieldCount is how many inputs the active form shows.
func (a *authModel) fieldCount() int {
	switch a.mode {
	case modeRegister, modeForgotReset:
		return 3
	case modeForgotEmail:
		return 1
	default:
		return 2
	}
}

func (a *authModel) switchMode(mode authMode) {
	a.mode = mode
	a.errText = ""
	a.pass.SetValue("")
	a.conf.SetValue("")
	a.setFocus(0)
	if mode == modeForgotReset {
		// The verified email stays, the cursor moves to the password.
		a.setFocus(1)
	}
}

func (a *authModel) setFocus(focus int) {
	a.focus = focus
	inputs := []*textinput.Model{&a.email, &a.pass, &a.conf}
	for i, input := range inputs {
		if i == focus {
			input.Focus()
		} else {
			input.Blur()
		}
	}
}

func (a *authModel) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg), false

	case authResultMsg:
		a.busy = false
		if msg.err != nil {
			a.errText = msg.err.Error()
			return nil, false
		}
		a.popup = fmt.Sprintf("Welcome back, %s!", displayName(msg.user))
		if a.mode == modeRegister {
			a.popup = fmt.Sprintf("Account created. Welcome, %s!", displayName(msg.user))
		}
		return after(authSuccessDelay, authDelayDoneMsg{user: msg.user}), false

	case verifyEmailResultMsg:
		a.busy = false
		if msg.err != nil {
			a.errText = msg.err.Error()
			return nil, false
		}
		a.switchMode(modeForgotReset)
		return nil, false

	case resetResultMsg:
		a.busy = false
		if msg.err != nil {
			a.errText = msg.err.Error()
			return nil, false
		}
		a.switchMode(modeLogin)
		a.popup = "Password updated, sign in with the new one"
		return after(authSuccessDelay, popupClearMsg{}), false

	case popupClearMsg:
		a.popup = ""
		return nil, false

	case authDelayDoneMsg:
		a.popup = ""
		return nil, true
	}
	return nil, false
}

func (a *authModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if a.busy || a.popup != "" {
		if msg.String() == "ctrl+c" {
			return tea.Quit
		}
		return nil
	}

	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "tab", "down":
		a.setFocus((a.focus + 1) % a.fieldCount())
		return nil
	case "shift+tab", "up":
		a.setFocus((a.focus + a.fieldCount() - 1) % a.fieldCount())
		return nil
	case "ctrl+r":
		if a.mode == modeLogin {
			a.switchMode(modeRegister)
		} else {
			a.switchMode(modeLogin)
		}
		return nil
	case "ctrl+f":
		a.switchMode(modeForgotEmail)
		return nil
	case "esc":
		if a.mode != modeLogin {
			a.switchMode(modeLogin)
		}
		return nil
	case "enter":
		return a.submit()
	}

	var cmd tea.Cmd
	switch a.focus {
	case 0:
		a.email, cmd = a.email.Update(msg)
	case 1:
		a.pass, cmd = a.pass.Update(msg)
	case 2:
		a.conf, cmd = a.conf.Update(msg)
	}
	return cmd
}

func (a *authModel) submit() tea.Cmd {
	email := strings.TrimSpace(a.email.Value())
	if err := validateEmail(email); err != nil {
		a.errText = err.Error()
		return nil
	}

	switch a.mode {
	case modeLogin:
		password := a.pass.Value()
		if password == "" {
			a.errText = "password is required"
			return nil
		}
		a.busy = true
		a.errText = ""
		return func() tea.Msg {
			user, err := a.deps.Auth.Login(context.Background(), email, password)
			return authResultMsg{user: user, err: err}
		}

	case modeRegister:
		password := a.pass.Value()
		if err := validatePassword(password, a.conf.Value()); err != nil {
			a.errText = err.Error()
			return nil
		}
		a.busy = true
		a.errText = ""
		return func() tea.Msg {
			user, err := a.deps.Auth.Register(context.Background(), email, password)
			return authResultMsg{user: user, err: err}
		}

	case modeForgotEmail:
		a.busy = true
		a.errText = ""
		return func() tea.Msg {
			return verifyEmailResultMsg{err: a.deps.Auth.VerifyEmail(context.Background(), email)}
		}

	case modeForgotReset:
		password := a.pass.Value()
		if err := validatePassword(password, a.conf.Value()); err != nil {
			a.errText = err.Error()
			return nil
		}
		a.busy = true
		a.errText = ""
		return func() tea.Msg {
			return resetResultMsg{err: a.deps.Auth.ResetPassword(context.Background(), email, password)}
		}
	}
	return nil
}

func (a *authModel) View() string {
	if a.popup != "" {
		return a.center(styles.popup.Render(styles.ok.Render(a.popup)))
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("streamfm"))
	b.WriteString("\n")

	switch a.mode {
	case modeLogin:
		b.WriteString("Sign in\n\n")
	case modeRegister:
		b.WriteString("Create an account\n\n")
	case modeForgotEmail:
		b.WriteString("Reset password: enter your email\n\n")
	case modeForgotReset:
		b.WriteString("Reset password: choose a new one\n\n")
	}

	b.WriteString(a.email.View())
	b.WriteString("\n")
	if a.fieldCount() > 1 {
		b.WriteString(a.pass.View())
		b.WriteString("\n")
	}
	if a.fieldCount() > 2 {
		b.WriteString(a.conf.View())
		b.WriteString("\n")
	}

	if a.busy {
		b.WriteString("\n" + styles.dim.Render("Working..."))
	}
	if a.errText != "" {
		b.WriteString("\n" + styles.err.Render(a.errText))
	}

	b.WriteString("\n\n")
	switch a.mode {
	case modeLogin:
		b.WriteString(styles.help.Render("enter sign in • ctrl+r register • ctrl+f forgot password • ctrl+c quit"))
	case modeRegister:
		b.WriteString(styles.help.Render("enter create • esc back to sign in • ctrl+c quit"))
	default:
		b.WriteString(styles.help.Render("enter continue • esc back to sign in • ctrl+c quit"))
	}

	return a.center(b.String())
}

func (a *authModel) center(content string) string {
	if a.width == 0 || a.height == 0 {
		return content
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || !strings.Contains(email[at:], ".") {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

func displayName(user *model.User) string {
	if user == nil {
		return "listener"
	}
	if user.Username != "" {
		return user.Username
	}
	return user.Email
}
