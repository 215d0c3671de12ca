package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/db"
	"taskboard/realtime"
	"taskboard/todo"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *db.DB
	hub    *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.Open(db.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	hub := realtime.NewHub()
	t.Cleanup(func() {
		hub.Shutdown()
		database.Close()
	})

	router := gin.New()
	SetupRoutes(router, NewHandlers(database, hub, testSecret, 24*time.Hour))
	return &testServer{router: router, db: database, hub: hub}
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp DataResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp.Data
}

func decodeList[T any](t *testing.T, w *httptest.ResponseRecorder) []T {
	t.Helper()
	var resp ListResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp.Data
}

// signUp registers an account and signs it in, returning the token and
// user record.
func (s *testServer) signUp(t *testing.T, email, password string) (string, UserRecord) {
	t.Helper()
	w := s.request(t, http.MethodPost, "/api/collections/users/records", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, w.Code, w.Body.String())
	}

	w = s.request(t, http.MethodPost, "/api/collections/users/auth-with-password", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sign in %s: status %d body %s", email, w.Code, w.Body.String())
	}
	payload := decodeData[AuthPayload](t, w)
	return payload.Token, payload.User
}

func (s *testServer) createTodo(t *testing.T, token, title string, vis todo.Visibility) todo.Todo {
	t.Helper()
	w := s.request(t, http.MethodPost, "/api/collections/todos/records", token, map[string]any{
		"title":      title,
		"visibility": vis,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create todo: status %d body %s", w.Code, w.Body.String())
	}
	return decodeData[todo.Todo](t, w)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "longenough"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}},
		{"mismatched confirm", map[string]string{"email": "a@example.com", "password": "longenough", "passwordConfirm": "different"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.request(t, http.MethodPost, "/api/collections/users/records", "", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "dup@example.com", "password123")

	w := s.request(t, http.MethodPost, "/api/collections/users/records", "", map[string]string{
		"email":    "dup@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthWithPassword_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "user@example.com", "password123")

	w := s.request(t, http.MethodPost, "/api/collections/users/auth-with-password", "", map[string]string{
		"email":    "user@example.com",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Code != ErrCodeUnauthorized || resp.Error.Message == "" {
		t.Errorf("unexpected error envelope: %+v", resp)
	}
}

func TestCreateTodo_RequiresAuth(t *testing.T) {
	s := newTestServer(t)
	w := s.request(t, http.MethodPost, "/api/collections/todos/records", "", map[string]string{
		"title": "no session",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateTodo_ForcesAuthorship(t *testing.T) {
	s := newTestServer(t)
	token, user := s.signUp(t, "author@example.com", "password123")

	w := s.request(t, http.MethodPost, "/api/collections/todos/records", token, map[string]any{
		"title":    "mine",
		"authorId": "someone-else",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	created := decodeData[todo.Todo](t, w)
	if created.AuthorID != user.ID {
		t.Errorf("author must be the authenticated user, got %q", created.AuthorID)
	}
	if created.ID == "" || created.Created.IsZero() {
		t.Errorf("server must stamp id and created: %+v", created)
	}
}

func TestListTodos_VisibilityEnforcement(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp(t, "alice@example.com", "password123")
	bobToken, _ := s.signUp(t, "bob@example.com", "password123")

	s.createTodo(t, aliceToken, "alice public", todo.VisibilityPublic)
	private := s.createTodo(t, aliceToken, "alice private", todo.VisibilityPrivate)

	// Anonymous viewers get public records only, even with a filter
	// that asks for everything.
	w := s.request(t, http.MethodGet, "/api/collections/todos/records", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous list: status %d", w.Code)
	}
	for _, record := range decodeList[todo.Todo](t, w) {
		if record.Visibility != todo.VisibilityPublic {
			t.Errorf("anonymous viewer saw %q record %s", record.Visibility, record.ID)
		}
	}

	// Another signed-in user cannot see Alice's private todo even when
	// filtering for it directly.
	w = s.request(t, http.MethodGet, "/api/collections/todos/records?filter="+`id%20%3D%20%22`+private.ID+`%22`, bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bob list: status %d", w.Code)
	}
	if records := decodeList[todo.Todo](t, w); len(records) != 0 {
		t.Errorf("bob saw alice's private todo: %+v", records)
	}

	// The author sees it.
	w = s.request(t, http.MethodGet, "/api/collections/todos/records", aliceToken, nil)
	found := false
	for _, record := range decodeList[todo.Todo](t, w) {
		if record.ID == private.ID {
			found = true
		}
	}
	if !found {
		t.Error("author cannot see own private todo")
	}
}

func TestUpdateTodo_AuthorOnly(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp(t, "alice@example.com", "password123")
	bobToken, _ := s.signUp(t, "bob@example.com", "password123")

	record := s.createTodo(t, aliceToken, "alice's", todo.VisibilityPublic)

	w := s.request(t, http.MethodPatch, "/api/collections/todos/records/"+record.ID, bobToken, map[string]any{
		"completed": true,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author edit, got %d: %s", w.Code, w.Body.String())
	}

	done := s.request(t, http.MethodPatch, "/api/collections/todos/records/"+record.ID, aliceToken, map[string]any{
		"completed": true,
	})
	if done.Code != http.StatusOK {
		t.Fatalf("author edit: status %d body %s", done.Code, done.Body.String())
	}
	updated := decodeData[todo.Todo](t, done)
	if !updated.Completed || updated.Title != "alice's" {
		t.Errorf("partial patch applied wrong: %+v", updated)
	}
	if !updated.LastEdited.After(record.LastEdited) {
		t.Errorf("lastEditedAt must advance on edit")
	}
}

func TestUpdateTodo_PrivateHiddenFromOthers(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp(t, "alice@example.com", "password123")
	bobToken, _ := s.signUp(t, "bob@example.com", "password123")

	record := s.createTodo(t, aliceToken, "secret", todo.VisibilityPrivate)

	// A private record of another author reads as absent, not forbidden.
	w := s.request(t, http.MethodPatch, "/api/collections/todos/records/"+record.ID, bobToken, map[string]any{
		"completed": true,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for invisible record, got %d", w.Code)
	}
}

func TestDeleteTodo_AuthorOnlyAndBroadcasts(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp(t, "alice@example.com", "password123")
	bobToken, _ := s.signUp(t, "bob@example.com", "password123")

	record := s.createTodo(t, aliceToken, "to delete", todo.VisibilityPublic)

	w := s.request(t, http.MethodDelete, "/api/collections/todos/records/"+record.ID, bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author delete, got %d", w.Code)
	}

	events, unsubscribe := s.hub.Subscribe("todos")
	defer unsubscribe()

	w = s.request(t, http.MethodDelete, "/api/collections/todos/records/"+record.ID, aliceToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("author delete: status %d body %s", w.Code, w.Body.String())
	}

	select {
	case event := <-events:
		if event.Action != todo.ActionDelete || event.Record.ID != record.ID {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("delete did not broadcast an event")
	}

	w = s.request(t, http.MethodGet, "/api/collections/todos/records", "", nil)
	if records := decodeList[todo.Todo](t, w); len(records) != 0 {
		t.Errorf("deleted record still listed: %+v", records)
	}
}

func TestCreateTodo_BroadcastsCreate(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "alice@example.com", "password123")

	events, unsubscribe := s.hub.Subscribe("todos")
	defer unsubscribe()

	record := s.createTodo(t, token, "fresh", todo.VisibilityPublic)

	select {
	case event := <-events:
		if event.Action != todo.ActionCreate || event.Record.ID != record.ID {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("create did not broadcast an event")
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	s := newTestServer(t)
	_, user := s.signUp(t, "reset@example.com", "oldpassword1")

	// Requesting a reset answers 204 whether or not the email exists.
	for _, email := range []string{"reset@example.com", "nobody@example.com"} {
		w := s.request(t, http.MethodPost, "/api/collections/users/request-password-reset", "", map[string]string{
			"email": email,
		})
		if w.Code != http.StatusNoContent {
			t.Fatalf("request reset for %s: status %d body %s", email, w.Code, w.Body.String())
		}
	}

	reset := db.PasswordReset{
		Token:   "fixed-test-token",
		UserID:  user.ID,
		Created: time.Now().UTC(),
		Expires: time.Now().UTC().Add(30 * time.Minute),
	}
	if err := s.db.CreatePasswordReset(reset); err != nil {
		t.Fatalf("seed reset: %v", err)
	}

	w := s.request(t, http.MethodPost, "/api/collections/users/confirm-password-reset", "", map[string]string{
		"token":    reset.Token,
		"password": "newpassword1",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("confirm reset: status %d body %s", w.Code, w.Body.String())
	}

	// Old password no longer works, new one does.
	w = s.request(t, http.MethodPost, "/api/collections/users/auth-with-password", "", map[string]string{
		"email": "reset@example.com", "password": "oldpassword1",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old password still accepted: status %d", w.Code)
	}
	w = s.request(t, http.MethodPost, "/api/collections/users/auth-with-password", "", map[string]string{
		"email": "reset@example.com", "password": "newpassword1",
	})
	if w.Code != http.StatusOK {
		t.Errorf("new password rejected: status %d body %s", w.Code, w.Body.String())
	}

	// The token is single use.
	w = s.request(t, http.MethodPost, "/api/collections/users/confirm-password-reset", "", map[string]string{
		"token":    reset.Token,
		"password": "anotherpassword1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("consumed token must be rejected: status %d", w.Code)
	}
}

func TestListTodos_BadFilterRejected(t *testing.T) {
	s := newTestServer(t)
	w := s.request(t, http.MethodGet, "/api/collections/todos/records?filter=password%20%3D%20%22x%22", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter field, got %d", w.Code)
	}
}
