package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard/db"
	"taskboard/log"
	"taskboard/todo"
)

var recordsLogger = log.GetLogger("ApiRecords")

// ListTodos handles GET /api/collections/todos/records. Results are
// restricted to what the requesting viewer may see regardless of the
// filter: public records plus the viewer's own.
func (h *Handlers) ListTodos(c *gin.Context) {
	viewer := currentViewer(c)

	records, err := h.db.ListTodos(c.Query("filter"), c.Query("sort"))
	if err != nil {
		if errors.Is(err, db.ErrInvalidQuery) {
			RespondBadRequest(c, err.Error())
			return
		}
		recordsLogger.Error().Err(err).Msg("todo list query failed")
		RespondInternalError(c, "Failed to load todos.")
		return
	}

	visible := make([]todo.Todo, 0, len(records))
	for _, record := range records {
		if record.VisibleTo(viewer) {
			visible = append(visible, record)
		}
	}
	RespondList(c, visible)
}

// CreateTodo handles POST /api/collections/todos/records. The author is
// always the authenticated viewer; client-supplied authorship is
// overwritten.
func (h *Handlers) CreateTodo(c *gin.Context) {
	viewer := currentViewer(c)

	var body struct {
		Title      string          `json:"title"`
		Completed  bool            `json:"completed"`
		Visibility todo.Visibility `json:"visibility"`
		AuthorName string          `json:"authorName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		RespondValidationError(c, "Title must not be empty.")
		return
	}
	if body.Visibility == "" {
		body.Visibility = todo.VisibilityPublic
	}
	if !body.Visibility.Valid() {
		RespondValidationError(c, "Visibility must be public or private.")
		return
	}

	now := time.Now().UTC()
	record := todo.Todo{
		ID:         uuid.NewString(),
		Title:      body.Title,
		Completed:  body.Completed,
		Visibility: body.Visibility,
		AuthorID:   viewer.ID,
		AuthorName: strings.TrimSpace(body.AuthorName),
		Created:    now,
		LastEdited: now,
	}
	if record.AuthorName == "" {
		record.AuthorName = viewer.Email
	}

	if err := h.db.CreateTodo(record); err != nil {
		recordsLogger.Error().Err(err).Msg("todo insert failed")
		RespondInternalError(c, "Failed to create todo.")
		return
	}

	h.hub.Notify(todosCollection, todo.Event{Action: todo.ActionCreate, Record: record})
	RespondCreated(c, record)
}

// UpdateTodo handles PATCH /api/collections/todos/records/:id. Only the
// author may change a record.
func (h *Handlers) UpdateTodo(c *gin.Context) {
	viewer := currentViewer(c)
	id := c.Param("id")

	existing, err := h.db.GetTodo(id)
	if err != nil {
		recordsLogger.Error().Err(err).Str("id", id).Msg("todo lookup failed")
		RespondInternalError(c, "Failed to update todo.")
		return
	}
	if existing == nil || !existing.VisibleTo(viewer) {
		RespondNotFound(c, "Todo not found.")
		return
	}
	if existing.AuthorID != viewer.ID {
		RespondForbidden(c, "Only the author can modify a todo.")
		return
	}

	var body struct {
		Title     *string `json:"title"`
		Completed *bool   `json:"completed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}

	patch := db.TodoPatch{Completed: body.Completed}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			RespondValidationError(c, "Title must not be empty.")
			return
		}
		patch.Title = &title
	}
	now := time.Now().UTC()
	patch.LastEdited = &now

	updated, err := h.db.UpdateTodo(id, patch)
	if err != nil {
		recordsLogger.Error().Err(err).Str("id", id).Msg("todo update failed")
		RespondInternalError(c, "Failed to update todo.")
		return
	}
	if updated == nil {
		RespondNotFound(c, "Todo not found.")
		return
	}

	h.hub.Notify(todosCollection, todo.Event{Action: todo.ActionUpdate, Record: *updated})
	RespondData(c, *updated)
}

// DeleteTodo handles DELETE /api/collections/todos/records/:id. Only
// the author may delete a record.
func (h *Handlers) DeleteTodo(c *gin.Context) {
	viewer := currentViewer(c)
	id := c.Param("id")

	existing, err := h.db.GetTodo(id)
	if err != nil {
		recordsLogger.Error().Err(err).Str("id", id).Msg("todo lookup failed")
		RespondInternalError(c, "Failed to delete todo.")
		return
	}
	if existing == nil || !existing.VisibleTo(viewer) {
		RespondNotFound(c, "Todo not found.")
		return
	}
	if existing.AuthorID != viewer.ID {
		RespondForbidden(c, "Only the author can delete a todo.")
		return
	}

	if _, err := h.db.DeleteTodo(id); err != nil {
		recordsLogger.Error().Err(err).Str("id", id).Msg("todo delete failed")
		RespondInternalError(c, "Failed to delete todo.")
		return
	}

	h.hub.Notify(todosCollection, todo.Event{Action: todo.ActionDelete, Record: *existing})
	RespondNoContent(c)
}
