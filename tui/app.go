package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/client"
	"taskboard/log"
	"taskboard/todo"
)

var logger = log.GetLogger("TUI")

type screen int

const (
	screenAuth screen = iota
	screenList
)

// rootModel owns the screen flow: the auth forms until a session (or
// guest browsing) starts, then the live todo list.
type rootModel struct {
	client *client.Client
	notify *notifier

	screen screen
	auth   authModel
	list   listModel

	session      *client.Session
	store        *todo.Store
	subscription *client.Subscription
}

func newRootModel(c *client.Client, notify *notifier) rootModel {
	return rootModel{
		client: c,
		notify: notify,
		screen: screenAuth,
		auth:   newAuthModel(c),
	}
}

func (m rootModel) Init() tea.Cmd { return nil }

// startSession wires the sync store and realtime feed for a session. A
// nil session browses the public collection anonymously.
func (m rootModel) startSession(session *client.Session) (rootModel, tea.Cmd) {
	store := todo.NewStore(m.client.Todos(session), session.Viewer())

	notify := m.notify
	store.OnChange(func() { notify.notify(storeChangedMsg{}) })

	subscription := m.client.Subscribe(context.Background(), session, "todos", client.SubscribeOptions{
		OnEvent:     store.Apply,
		OnReconnect: func() { notify.notify(feedRestoredMsg{}) },
	})

	m.session = session
	m.store = store
	m.subscription = subscription
	m.list = newListModel(store)
	m.screen = screenList
	return m, m.list.fetchCmd()
}

// endSession tears the feed down and returns to the auth screen.
func (m rootModel) endSession() (rootModel, tea.Cmd) {
	subscription := m.subscription
	session := m.session
	c := m.client

	m.subscription = nil
	m.session = nil
	m.store = nil
	m.auth = newAuthModel(m.client)
	m.screen = screenAuth

	return m, func() tea.Msg {
		if subscription != nil {
			subscription.Close()
		}
		c.SignOut(context.Background(), session)
		return nil
	}
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "q":
			if m.screen == screenList && m.list.mode == inputNone {
				return m.quit()
			}
		case "ctrl+g":
			if m.screen == screenAuth {
				return m.startSession(nil)
			}
		}
	case authDoneMsg:
		if msg.session != nil {
			return m.startSession(msg.session)
		}
	case signOutRequestedMsg:
		return m.endSession()
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenList:
		m.list, cmd = m.list.update(msg)
	default:
		m.auth, cmd = m.auth.update(msg)
	}
	return m, cmd
}

func (m rootModel) quit() (tea.Model, tea.Cmd) {
	if m.subscription != nil {
		subscription := m.subscription
		m.subscription = nil
		return m, tea.Sequence(
			func() tea.Msg { subscription.Close(); return nil },
			tea.Quit,
		)
	}
	return m, tea.Quit
}

func (m rootModel) View() string {
	if m.screen == screenList {
		return m.list.render()
	}
	return m.auth.render()
}

// Run starts the interactive app against the given server.
func Run(c *client.Client) error {
	notify := &notifier{}
	p := tea.NewProgram(newRootModel(c, notify), tea.WithAltScreen())
	notify.bind(p.Send)

	logger.Info().Str("server", c.BaseURL()).Msg("starting interactive session")
	_, err := p.Run()
	return err
}
