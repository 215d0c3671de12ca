package tui

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/client"
)

type authMode int

const (
	modeSignIn authMode = iota
	modeRegister
	modeForgot
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// authModel drives the sign-in, registration, and forgot-password
// forms. Validation happens inline before any request is sent.
type authModel struct {
	client *client.Client
	mode   authMode

	inputs  []textinput.Model
	focused int

	errText    string
	statusText string
	busy       bool
}

const (
	fieldEmail = iota
	fieldPassword
	fieldPasswordConfirm
	fieldName
)

func newAuthModel(c *client.Client) authModel {
	m := authModel{client: c, mode: modeSignIn}
	m.inputs = make([]textinput.Model, 4)
	for i := range m.inputs {
		ti := textinput.New()
		ti.CharLimit = 200
		m.inputs[i] = ti
	}
	m.inputs[fieldEmail].Placeholder = "email"
	m.inputs[fieldPassword].Placeholder = "password"
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPasswordConfirm].Placeholder = "confirm password"
	m.inputs[fieldPasswordConfirm].EchoMode = textinput.EchoPassword
	m.inputs[fieldName].Placeholder = "display name (optional)"
	m.focusField(fieldEmail)
	return m
}

// visibleFields lists the input indexes the current mode shows, in tab
// order.
func (m *authModel) visibleFields() []int {
	switch m.mode {
	case modeRegister:
		return []int{fieldEmail, fieldPassword, fieldPasswordConfirm, fieldName}
	case modeForgot:
		return []int{fieldEmail}
	default:
		return []int{fieldEmail, fieldPassword}
	}
}

func (m *authModel) focusField(index int) {
	m.focused = index
	for i := range m.inputs {
		if i == index {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *authModel) cycleFocus(backward bool) {
	fields := m.visibleFields()
	pos := 0
	for i, f := range fields {
		if f == m.focused {
			pos = i
			break
		}
	}
	if backward {
		pos = (pos - 1 + len(fields)) % len(fields)
	} else {
		pos = (pos + 1) % len(fields)
	}
	m.focusField(fields[pos])
}

func (m *authModel) switchMode(mode authMode) {
	m.mode = mode
	m.errText = ""
	m.statusText = ""
	m.focusField(fieldEmail)
}

// validate checks the current form and returns a user-facing message
// for the first problem found.
func (m *authModel) validate() string {
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	if !emailPattern.MatchString(email) {
		return "Please enter a valid email address."
	}
	if m.mode == modeForgot {
		return ""
	}
	password := m.inputs[fieldPassword].Value()
	if m.mode == modeRegister {
		if len(password) < 8 {
			return "Password must be at least 8 characters."
		}
		if password != m.inputs[fieldPasswordConfirm].Value() {
			return "Passwords do not match."
		}
		return ""
	}
	if password == "" {
		return "Please enter your password."
	}
	return ""
}

func (m *authModel) submit() tea.Cmd {
	if msg := m.validate(); msg != "" {
		m.errText = msg
		return nil
	}
	m.errText = ""
	m.busy = true

	c := m.client
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	confirm := m.inputs[fieldPasswordConfirm].Value()
	name := strings.TrimSpace(m.inputs[fieldName].Value())

	switch m.mode {
	case modeRegister:
		return func() tea.Msg {
			if _, err := c.CreateUser(context.Background(), email, password, confirm, name); err != nil {
				return authDoneMsg{err: err}
			}
			return registeredMsg{email: email}
		}
	case modeForgot:
		return func() tea.Msg {
			if err := c.RequestPasswordReset(context.Background(), email); err != nil {
				return authDoneMsg{err: err}
			}
			return resetRequestedMsg{}
		}
	default:
		return func() tea.Msg {
			session, err := c.AuthWithPassword(context.Background(), email, password)
			return authDoneMsg{session: session, err: err}
		}
	}
}

func (m *authModel) startOAuth() tea.Cmd {
	m.errText = ""
	m.statusText = "Waiting for the browser sign-in to finish..."
	m.busy = true
	c := m.client
	return func() tea.Msg {
		session, err := c.AuthWithOAuth2(context.Background())
		return authDoneMsg{session: session, err: err}
	}
}

func (m authModel) update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy && msg.String() != "ctrl+c" {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			m.cycleFocus(false)
			return m, nil
		case "shift+tab", "up":
			m.cycleFocus(true)
			return m, nil
		case "enter":
			return m, m.submit()
		case "ctrl+r":
			if m.mode == modeRegister {
				m.switchMode(modeSignIn)
			} else {
				m.switchMode(modeRegister)
			}
			return m, nil
		case "ctrl+f":
			if m.mode == modeForgot {
				m.switchMode(modeSignIn)
			} else {
				m.switchMode(modeForgot)
			}
			return m, nil
		case "ctrl+o":
			return m, m.startOAuth()
		}
	case authDoneMsg:
		m.busy = false
		m.statusText = ""
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, nil
	case registeredMsg:
		m.busy = false
		m.switchMode(modeSignIn)
		m.statusText = "Account created for " + msg.email + ". Sign in to continue."
		return m, nil
	case resetRequestedMsg:
		m.busy = false
		m.switchMode(modeSignIn)
		m.statusText = "If that email has an account, a reset link is on its way."
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m authModel) render() string {
	var b strings.Builder

	switch m.mode {
	case modeRegister:
		b.WriteString(titleStyle.Render("Create account") + "\n\n")
	case modeForgot:
		b.WriteString(titleStyle.Render("Reset password") + "\n\n")
	default:
		b.WriteString(titleStyle.Render("Sign in") + "\n\n")
	}

	for _, f := range m.visibleFields() {
		b.WriteString(m.inputs[f].View() + "\n")
	}

	if m.errText != "" {
		b.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}
	if m.statusText != "" {
		b.WriteString("\n" + successStyle.Render(m.statusText) + "\n")
	}

	switch m.mode {
	case modeRegister:
		b.WriteString("\n" + helpStyle.Render("enter create · ctrl+r back to sign in · ctrl+c quit"))
	case modeForgot:
		b.WriteString("\n" + helpStyle.Render("enter send link · ctrl+f back to sign in · ctrl+c quit"))
	default:
		b.WriteString("\n" + helpStyle.Render("enter sign in · ctrl+o sign in with provider · ctrl+r register · ctrl+f forgot password · ctrl+g browse as guest · ctrl+c quit"))
	}

	return panelStyle.Render(b.String())
}
