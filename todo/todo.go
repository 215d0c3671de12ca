package todo

import (
	"strings"
	"time"
)

// Visibility is the access scope of a todo.
type Visibility string

const (
	// VisibilityPublic makes a todo readable by anyone, signed in or not
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate restricts a todo to its author
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the known visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Todo is a single task record as stored by the data service.
type Todo struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Completed  bool       `json:"completed"`
	Visibility Visibility `json:"visibility"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName,omitempty"`
	Created    time.Time  `json:"created"`
	LastEdited time.Time  `json:"lastEditedAt"`
}

// Viewer identifies the authenticated user a collection is scoped to.
// The zero value means an unauthenticated viewer (public todos only).
type Viewer struct {
	ID    string
	Email string
}

// VisibleTo reports whether the todo may be read by the given viewer.
// Public todos are visible to everyone; private todos only to their author.
func (t Todo) VisibleTo(viewer Viewer) bool {
	if t.Visibility == VisibilityPublic {
		return true
	}
	return t.Visibility == VisibilityPrivate && viewer.ID != "" && t.AuthorID == viewer.ID
}

// EventAction is the kind of change carried by a push event.
type EventAction string

const (
	ActionCreate EventAction = "create"
	ActionUpdate EventAction = "update"
	ActionDelete EventAction = "delete"
)

// Event is one pushed change on a watched collection.
type Event struct {
	Action EventAction `json:"action"`
	Record Todo        `json:"record"`
}

// trimTitle normalizes a user-supplied title. Whitespace-only titles
// collapse to the empty string.
func trimTitle(title string) string {
	return strings.TrimSpace(title)
}

// quoteFilterValue renders a value as a double-quoted filter literal,
// escaping backslashes and quotes so user ids cannot break out of the
// expression.
func quoteFilterValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
