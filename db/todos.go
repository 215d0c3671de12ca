package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/todo"
)

// ErrInvalidQuery marks list requests with a malformed filter or an
// unknown field; handlers map it to a client error.
var ErrInvalidQuery = errors.New("invalid query")

// todoFilterColumns maps filterable record fields to columns.
var todoFilterColumns = map[string]string{
	"id":         "id",
	"visibility": "visibility",
	"authorId":   "author_id",
	"completed":  "completed",
}

// todoSortColumns maps sortable record fields to columns.
var todoSortColumns = map[string]string{
	"created":      "created_at",
	"lastEditedAt": "last_edited_at",
	"title":        "title",
}

// TodoPatch is a partial update of a todo record. Nil fields are left
// unchanged.
type TodoPatch struct {
	Title      *string
	Completed  *bool
	LastEdited *time.Time
}

// CreateTodo inserts a new todo record.
func (d *DB) CreateTodo(t todo.Todo) error {
	_, err := d.Run(`
		INSERT INTO todos (id, title, completed, visibility, author_id, author_name, created_at, last_edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, boolToInt(t.Completed), string(t.Visibility), t.AuthorID, t.AuthorName,
		formatTime(t.Created), formatTime(t.LastEdited))
	return err
}

// GetTodo retrieves a todo by id, or nil when absent.
func (d *DB) GetTodo(id string) (*todo.Todo, error) {
	return SelectOne(d, `
		SELECT id, title, completed, visibility, author_id, author_name, created_at, last_edited_at
		FROM todos WHERE id = ?
	`, []any{id}, scanTodoRow)
}

// ListTodos runs a filtered, sorted list query over the todos
// collection. The filter uses the record-query grammar; sort is a field
// name with an optional leading - for descending order.
func (d *DB) ListTodos(filter, sortSpec string) ([]todo.Todo, error) {
	terms, err := ParseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	var where []string
	var params []any
	for _, term := range terms {
		col, ok := todoFilterColumns[term.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown filter field %q", ErrInvalidQuery, term.Field)
		}
		if col == "completed" {
			where = append(where, col+" = ?")
			params = append(params, boolToInt(term.Value == "true"))
			continue
		}
		where = append(where, col+" = ?")
		params = append(params, term.Value)
	}

	orderBy, err := parseSort(sortSpec)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, title, completed, visibility, author_id, author_name, created_at, last_edited_at
		FROM todos
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy

	return Select(d, query, params, scanTodoRows)
}

// UpdateTodo applies a partial update and returns the updated record,
// or nil when the id is absent.
func (d *DB) UpdateTodo(id string, patch TodoPatch) (*todo.Todo, error) {
	var set []string
	var params []any
	if patch.Title != nil {
		set = append(set, "title = ?")
		params = append(params, *patch.Title)
	}
	if patch.Completed != nil {
		set = append(set, "completed = ?")
		params = append(params, boolToInt(*patch.Completed))
	}
	if patch.LastEdited != nil {
		set = append(set, "last_edited_at = ?")
		params = append(params, formatTime(*patch.LastEdited))
	}
	if len(set) == 0 {
		return d.GetTodo(id)
	}

	params = append(params, id)
	res, err := d.Run("UPDATE todos SET "+strings.Join(set, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return d.GetTodo(id)
}

// DeleteTodo removes a todo record. Returns false when the id is absent.
func (d *DB) DeleteTodo(id string) (bool, error) {
	res, err := d.Run("DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func parseSort(sortSpec string) (string, error) {
	sortSpec = strings.TrimSpace(sortSpec)
	if sortSpec == "" {
		return "created_at DESC, id", nil
	}

	desc := strings.HasPrefix(sortSpec, "-")
	field := strings.TrimPrefix(sortSpec, "-")
	col, ok := todoSortColumns[field]
	if !ok {
		return "", fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, field)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	// Secondary sort on id keeps ordering stable for equal timestamps
	return col + " " + dir + ", id", nil
}

func scanTodoRows(rows *sql.Rows) (todo.Todo, error) {
	var t todo.Todo
	var completed int
	var visibility, created, lastEdited string
	if err := rows.Scan(&t.ID, &t.Title, &completed, &visibility, &t.AuthorID, &t.AuthorName, &created, &lastEdited); err != nil {
		return t, err
	}
	return buildTodo(t, completed, visibility, created, lastEdited)
}

func scanTodoRow(row *sql.Row) (todo.Todo, error) {
	var t todo.Todo
	var completed int
	var visibility, created, lastEdited string
	if err := row.Scan(&t.ID, &t.Title, &completed, &visibility, &t.AuthorID, &t.AuthorName, &created, &lastEdited); err != nil {
		return t, err
	}
	return buildTodo(t, completed, visibility, created, lastEdited)
}

func buildTodo(t todo.Todo, completed int, visibility, created, lastEdited string) (todo.Todo, error) {
	t.Completed = completed != 0
	t.Visibility = todo.Visibility(visibility)

	var err error
	if t.Created, err = parseTime(created); err != nil {
		return t, fmt.Errorf("bad created_at for todo %s: %w", t.ID, err)
	}
	if t.LastEdited, err = parseTime(lastEdited); err != nil {
		return t, fmt.Errorf("bad last_edited_at for todo %s: %w", t.ID, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
