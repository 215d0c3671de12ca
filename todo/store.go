package todo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskboard/log"
)

// ErrEmptyTitle is returned by Create and Edit when the trimmed title is
// empty. No request is issued in that case.
var ErrEmptyTitle = errors.New("todo: title must not be empty")

// Service is the slice of the remote data service the store depends on:
// filtered list queries and single-record mutations on the todos
// collection. Implemented by client.Collection.
type Service interface {
	List(ctx context.Context, filter, sort string) ([]Todo, error)
	Create(ctx context.Context, fields map[string]any) (Todo, error)
	Update(ctx context.Context, id string, fields map[string]any) (Todo, error)
	Delete(ctx context.Context, id string) error
}

// Store maintains the locally cached collection of todos visible to one
// viewer, kept current through the initial fetch and pushed change
// events. Mutations go straight to the service; the push feed is the
// only writer of local state after the fetch, so a confirmed mutation
// becomes visible when its own event arrives.
type Store struct {
	svc    Service
	viewer Viewer

	mu       sync.Mutex
	todos    []Todo
	onChange func()
}

var logger = log.GetLogger("TodoStore")

// NewStore creates a store scoped to the given viewer. A zero Viewer
// yields a public-only collection.
func NewStore(svc Service, viewer Viewer) *Store {
	return &Store{svc: svc, viewer: viewer}
}

// OnChange registers a callback invoked after every change to the local
// collection. Used by the list view to re-render.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Viewer returns the identity the store is scoped to.
func (s *Store) Viewer() Viewer {
	return s.viewer
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// Fetch loads the visible todo set: all public todos plus, for an
// authenticated viewer, their own private ones, each newest-created
// first. On failure the collection is emptied and the error logged; the
// fetch is not retried automatically.
func (s *Store) Fetch(ctx context.Context) error {
	public, err := s.svc.List(ctx, `visibility = "public"`, "-created")
	if err != nil {
		s.replace(nil)
		logger.Error().Err(err).Msg("todo fetch failed")
		return fmt.Errorf("fetch public todos: %w", err)
	}

	var private []Todo
	if s.viewer.ID != "" {
		filter := `visibility = "private" && authorId = ` + quoteFilterValue(s.viewer.ID)
		private, err = s.svc.List(ctx, filter, "-created")
		if err != nil {
			s.replace(nil)
			logger.Error().Err(err).Msg("todo fetch failed")
			return fmt.Errorf("fetch private todos: %w", err)
		}
	}

	s.replace(append(public, private...))
	return nil
}

// Create submits a new todo. The full field set is sent in one request;
// the record shows up locally once its create event is pushed back.
func (s *Store) Create(ctx context.Context, title string, visibility Visibility) error {
	title = trimTitle(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if !visibility.Valid() {
		visibility = VisibilityPublic
	}

	fields := map[string]any{
		"title":        title,
		"visibility":   visibility,
		"completed":    false,
		"authorId":     s.viewer.ID,
		"authorName":   s.viewer.Email,
		"lastEditedAt": time.Now().UTC(),
	}
	if _, err := s.svc.Create(ctx, fields); err != nil {
		logger.Error().Err(err).Msg("todo create failed")
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// ToggleCompleted flips the completion flag of a local todo. Unknown ids
// are a no-op.
func (s *Store) ToggleCompleted(ctx context.Context, id string) error {
	cur, ok := s.get(id)
	if !ok {
		return nil
	}

	fields := map[string]any{
		"completed":    !cur.Completed,
		"lastEditedAt": time.Now().UTC(),
	}
	if _, err := s.svc.Update(ctx, id, fields); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("todo toggle failed")
		return fmt.Errorf("toggle todo: %w", err)
	}
	return nil
}

// Edit replaces the title of a todo.
func (s *Store) Edit(ctx context.Context, id, newTitle string) error {
	newTitle = trimTitle(newTitle)
	if newTitle == "" {
		return ErrEmptyTitle
	}

	fields := map[string]any{
		"title":        newTitle,
		"lastEditedAt": time.Now().UTC(),
	}
	if _, err := s.svc.Update(ctx, id, fields); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("todo edit failed")
		return fmt.Errorf("edit todo: %w", err)
	}
	return nil
}

// Delete removes a todo. The local entry disappears when the delete
// event arrives.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.svc.Delete(ctx, id); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("todo delete failed")
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// Apply reconciles one pushed event into the local collection. Events
// are applied in arrival order:
//   - records outside the viewer's visibility are discarded
//   - create inserts at the front unless the id is already present
//   - update replaces the matching entry in place, no-op when absent
//   - delete removes the matching entry, no-op when absent
func (s *Store) Apply(event Event) {
	if event.Action != ActionDelete && !event.Record.VisibleTo(s.viewer) {
		return
	}

	s.mu.Lock()
	switch event.Action {
	case ActionCreate:
		if s.indexLocked(event.Record.ID) < 0 {
			s.todos = append([]Todo{event.Record}, s.todos...)
		}
	case ActionUpdate:
		if i := s.indexLocked(event.Record.ID); i >= 0 {
			s.todos[i] = event.Record
		}
	case ActionDelete:
		if i := s.indexLocked(event.Record.ID); i >= 0 {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
		}
	}
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Store) replace(todos []Todo) {
	s.mu.Lock()
	s.todos = todos
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Store) get(id string) (Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.todos[i], true
	}
	return Todo{}, false
}

func (s *Store) indexLocked(id string) int {
	for i, t := range s.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
