package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/client"
)

// storeChangedMsg means the local todo collection changed and the list
// must re-render from a fresh snapshot.
type storeChangedMsg struct{}

// fetchDoneMsg carries the outcome of a collection fetch.
type fetchDoneMsg struct{ err error }

// feedRestoredMsg means the realtime feed reconnected after an outage;
// events were lost in between, so the collection must be refetched.
type feedRestoredMsg struct{}

// authDoneMsg carries the outcome of a sign-in or registration attempt.
type authDoneMsg struct {
	session *client.Session
	err     error
}

// registeredMsg means an account was created; the user still signs in.
type registeredMsg struct{ email string }

// resetRequestedMsg means the password-reset request was accepted.
type resetRequestedMsg struct{}

// mutationFailedMsg carries a failed create/edit/toggle/delete.
type mutationFailedMsg struct{ err error }

// notifier forwards out-of-band events (store changes, feed
// reconnects) into the running Bubble Tea program. The send hook is
// bound after the program is created.
type notifier struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (n *notifier) bind(send func(tea.Msg)) {
	n.mu.Lock()
	n.send = send
	n.mu.Unlock()
}

func (n *notifier) notify(msg tea.Msg) {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()
	if send != nil {
		send(msg)
	}
}
