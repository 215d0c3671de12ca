package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/todo"
)

type listInputMode int

const (
	inputNone listInputMode = iota
	inputSearch
	inputAdd
	inputEdit
)

// signOutRequestedMsg asks the root model to end the session.
type signOutRequestedMsg struct{}

// listModel renders the todo collection through the list-view query:
// filter, search, sort, and pagination all recompute from a snapshot on
// every render.
type listModel struct {
	store *todo.Store
	view  todo.View

	mode   listInputMode
	input  textinput.Model
	cursor int

	editID        string
	addVisibility todo.Visibility

	errText    string
	statusText string
}

func newListModel(store *todo.Store) listModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	return listModel{
		store: store,
		view: todo.View{
			Filter: todo.FilterAll,
			Sort:   todo.SortNewest,
			Page:   1,
		},
		input:         ti,
		addVisibility: todo.VisibilityPublic,
	}
}

func (m *listModel) result() todo.Result {
	return m.view.Apply(m.store.Snapshot(), m.store.Viewer())
}

func (m *listModel) signedIn() bool {
	return m.store.Viewer().ID != ""
}

// selected returns the todo under the cursor on the current page.
func (m *listModel) selected() (todo.Todo, bool) {
	items := m.result().Items
	if len(items) == 0 {
		return todo.Todo{}, false
	}
	i := m.cursor
	if i >= len(items) {
		i = len(items) - 1
	}
	return items[i], true
}

func (m *listModel) clampCursor() {
	n := len(m.result().Items)
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// resetPage returns to the first page after the filter, search, or sort
// changed.
func (m *listModel) resetPage() {
	m.view.Page = 1
	m.cursor = 0
}

func (m *listModel) fetchCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return fetchDoneMsg{err: store.Fetch(context.Background())}
	}
}

func (m *listModel) mutationCmd(run func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := run(context.Background()); err != nil {
			return mutationFailedMsg{err: err}
		}
		return nil
	}
}

func (m listModel) update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	case fetchDoneMsg:
		if msg.err != nil {
			m.errText = "Could not load todos. Retry with r."
		} else {
			m.errText = ""
			m.statusText = ""
		}
		m.clampCursor()
		return m, nil
	case storeChangedMsg:
		m.clampCursor()
		return m, nil
	case feedRestoredMsg:
		m.statusText = "Reconnected, refreshing..."
		return m, m.fetchCmd()
	case mutationFailedMsg:
		m.errText = msg.err.Error()
		return m, nil
	}
	return m, nil
}

func (m listModel) updateKeys(msg tea.KeyMsg) (listModel, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.result().Items)-1 {
			m.cursor++
		}
	case "left", "h":
		if m.view.Page > 1 {
			m.view.Page--
			m.cursor = 0
		}
	case "right", "l":
		if m.view.Page < m.result().TotalPages {
			m.view.Page++
			m.cursor = 0
		}
	case "/":
		m.mode = inputSearch
		m.input.SetValue(m.view.Search)
		m.input.Placeholder = "Search titles..."
		m.input.Focus()
	case "f":
		switch m.view.Filter {
		case todo.FilterAll:
			m.view.Filter = todo.FilterPublic
		case todo.FilterPublic:
			m.view.Filter = todo.FilterPrivateOwn
		default:
			m.view.Filter = todo.FilterAll
		}
		m.resetPage()
	case "s":
		if m.view.Sort == todo.SortNewest {
			m.view.Sort = todo.SortOldest
		} else {
			m.view.Sort = todo.SortNewest
		}
		m.resetPage()
	case " ":
		record, ok := m.selected()
		if !ok {
			break
		}
		if record.AuthorID != m.store.Viewer().ID {
			m.errText = "Only the author can modify a todo."
			break
		}
		m.errText = ""
		store := m.store
		return m, m.mutationCmd(func(ctx context.Context) error {
			return store.ToggleCompleted(ctx, record.ID)
		})
	case "a":
		if !m.signedIn() {
			m.errText = "Sign in to add todos."
			break
		}
		m.mode = inputAdd
		m.errText = ""
		m.addVisibility = todo.VisibilityPublic
		m.input.SetValue("")
		m.input.Placeholder = "New todo title..."
		m.input.Focus()
	case "e":
		record, ok := m.selected()
		if !ok {
			break
		}
		if record.AuthorID != m.store.Viewer().ID {
			m.errText = "Only the author can modify a todo."
			break
		}
		m.mode = inputEdit
		m.errText = ""
		m.editID = record.ID
		m.input.SetValue(record.Title)
		m.input.CursorEnd()
		m.input.Placeholder = "Edit todo title..."
		m.input.Focus()
	case "d":
		record, ok := m.selected()
		if !ok {
			break
		}
		if record.AuthorID != m.store.Viewer().ID {
			m.errText = "Only the author can delete a todo."
			break
		}
		m.errText = ""
		store := m.store
		return m, m.mutationCmd(func(ctx context.Context) error {
			return store.Delete(ctx, record.ID)
		})
	case "r":
		m.statusText = ""
		return m, m.fetchCmd()
	case "ctrl+s":
		return m, func() tea.Msg { return signOutRequestedMsg{} }
	}
	return m, nil
}

func (m listModel) updateInput(msg tea.KeyMsg) (listModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.mode == inputSearch {
			m.view.Search = ""
			m.resetPage()
		}
		m.closeInput()
		return m, nil
	case "enter":
		switch m.mode {
		case inputSearch:
			m.closeInput()
			return m, nil
		case inputAdd:
			title := strings.TrimSpace(m.input.Value())
			if title == "" {
				m.errText = "Title must not be empty."
				return m, nil
			}
			store, visibility := m.store, m.addVisibility
			m.closeInput()
			return m, m.mutationCmd(func(ctx context.Context) error {
				return store.Create(ctx, title, visibility)
			})
		case inputEdit:
			title := strings.TrimSpace(m.input.Value())
			if title == "" {
				m.errText = "Title must not be empty."
				return m, nil
			}
			store, id := m.store, m.editID
			m.closeInput()
			return m, m.mutationCmd(func(ctx context.Context) error {
				return store.Edit(ctx, id, title)
			})
		}
	case "ctrl+p":
		if m.mode == inputAdd {
			if m.addVisibility == todo.VisibilityPublic {
				m.addVisibility = todo.VisibilityPrivate
			} else {
				m.addVisibility = todo.VisibilityPublic
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.view.Search = m.input.Value()
		m.resetPage()
	}
	return m, cmd
}

func (m *listModel) closeInput() {
	m.mode = inputNone
	m.editID = ""
	m.errText = ""
	m.input.SetValue("")
	m.input.Blur()
}

func (m listModel) render() string {
	result := m.result()
	var b strings.Builder

	who := "guest"
	if viewer := m.store.Viewer(); viewer.ID != "" {
		who = viewer.Email
	}
	b.WriteString(fmt.Sprintf("%s   %s   %s %s   %s %s\n\n",
		titleStyle.Render("Todos"),
		mutedStyle.Render(who),
		accentStyle.Render("filter"), string(m.view.Filter),
		accentStyle.Render("sort"), sortLabel(m.view.Sort),
	))

	if m.view.Search != "" {
		b.WriteString(mutedStyle.Render("search: "+m.view.Search) + "\n\n")
	}

	if len(result.Items) == 0 {
		b.WriteString(mutedStyle.Render(m.emptyPlaceholder()) + "\n")
	}
	for i, record := range result.Items {
		b.WriteString(m.renderRow(record, i == m.cursor) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("page %d/%d · %d matching", result.Page, result.TotalPages, result.Total)) + "\n")

	if m.mode != inputNone {
		label := "Search"
		switch m.mode {
		case inputAdd:
			label = "Add todo (" + string(m.addVisibility) + ", ctrl+p to switch)"
		case inputEdit:
			label = "Edit todo"
		}
		b.WriteString(panelStyle.Render(label+"\n"+m.input.View()) + "\n")
	}

	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	}
	if m.statusText != "" {
		b.WriteString(successStyle.Render(m.statusText) + "\n")
	}

	b.WriteString(helpStyle.Render("space toggle · a add · e edit · d delete · / search · f filter · s sort · ←/→ page · r refresh · ctrl+s sign out · q quit"))
	return panelStyle.Render(b.String())
}

func (m listModel) emptyPlaceholder() string {
	if m.view.Search != "" || m.view.Filter != todo.FilterAll {
		return "Nothing matches."
	}
	if m.signedIn() {
		return "Nothing here yet. Press a to add your first todo."
	}
	return "Nothing here yet."
}

func (m listModel) renderRow(record todo.Todo, selected bool) string {
	box := mutedStyle.Render(boxUnchecked)
	title := record.Title
	if record.Completed {
		box = successStyle.Render(boxChecked)
		title = doneStyle.Render(title)
	}

	suffix := mutedStyle.Render(" — " + record.AuthorName)
	if record.Visibility == todo.VisibilityPrivate {
		suffix += " " + privateStyle.Render(lockGlyph)
	}

	prefix := "  "
	if selected {
		prefix = selectedStyle.Render("> ")
	}
	return prefix + box + " " + title + suffix
}

func sortLabel(s todo.Sort) string {
	if s == todo.SortOldest {
		return "oldest"
	}
	return "newest"
}
