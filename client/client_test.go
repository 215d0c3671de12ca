package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"taskboard/todo"
)

func TestList_BuildsFilterAndSortQuery(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"data": []todo.Todo{{ID: "t1", Title: "hello"}}})
	}))
	defer server.Close()

	c := New(server.URL)
	session := &Session{Token: "tok123", User: User{ID: "u1"}}
	records, err := c.Todos(session).List(context.Background(), `visibility = "public"`, "-created")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != "t1" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if gotPath != "/api/collections/todos/records" {
		t.Errorf("wrong path: %s", gotPath)
	}
	if gotQuery != `filter=visibility+%3D+%22public%22&sort=-created` {
		t.Errorf("wrong query: %s", gotQuery)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("wrong auth header: %q", gotAuth)
	}
}

func TestList_AnonymousSendsNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous request carried auth header %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []todo.Todo{}})
	}))
	defer server.Close()

	if _, err := New(server.URL).Todos(nil).List(context.Background(), "", ""); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestDo_DecodesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "FORBIDDEN", "message": "Only the author can modify a todo."},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).Todos(nil).Update(context.Background(), "t1", map[string]any{"completed": true})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Code != "FORBIDDEN" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if apiErr.Error() != "Only the author can modify a todo." {
		t.Errorf("message not surfaced verbatim: %q", apiErr.Error())
	}
}

func TestCreate_SendsFieldDelta(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"data": todo.Todo{ID: "t1", Title: "Buy milk"}})
	}))
	defer server.Close()

	session := &Session{Token: "tok", User: User{ID: "u1"}}
	record, err := New(server.URL).Todos(session).Create(context.Background(), map[string]any{
		"title":      "Buy milk",
		"visibility": "private",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID != "t1" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if gotBody["title"] != "Buy milk" || gotBody["visibility"] != "private" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestDelete_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "Todo not found."},
		})
	}))
	defer server.Close()

	err := New(server.URL).Todos(nil).Delete(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSubscribe_DeliversEvents(t *testing.T) {
	frames := make(chan todo.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/realtime" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("token"); got != "tok" {
			t.Errorf("token not passed on upgrade, got %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		event := <-frames
		frame, _ := json.Marshal(event)
		if err := conn.Write(r.Context(), websocket.MessageText, frame); err != nil {
			t.Errorf("write: %v", err)
		}
		// Hold the connection open until the client goes away
		conn.Read(r.Context())
	}))
	defer server.Close()

	received := make(chan todo.Event, 1)
	session := &Session{Token: "tok", User: User{ID: "u1"}}
	sub := New(server.URL).Subscribe(context.Background(), session, "todos", SubscribeOptions{
		OnEvent: func(e todo.Event) { received <- e },
	})
	defer sub.Close()

	frames <- todo.Event{Action: todo.ActionCreate, Record: todo.Todo{ID: "t1", Title: "pushed"}}

	select {
	case event := <-received:
		if event.Action != todo.ActionCreate || event.Record.ID != "t1" {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestNextDelay_BacksOffToCap(t *testing.T) {
	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	delay := reconnectBaseDelay
	for i, expected := range want {
		delay = nextDelay(delay)
		if delay != expected {
			t.Fatalf("step %d: got %v, want %v", i, delay, expected)
		}
	}
}

func TestRealtimeURL_SchemeAndParams(t *testing.T) {
	c := New("https://example.com")
	got := c.realtimeURL(&Session{Token: "abc"}, "todos")
	if got != "wss://example.com/api/realtime?collection=todos&token=abc" {
		t.Errorf("unexpected url: %s", got)
	}

	anon := New("http://localhost:8080").realtimeURL(nil, "todos")
	if anon != "ws://localhost:8080/api/realtime?collection=todos" {
		t.Errorf("unexpected anonymous url: %s", anon)
	}
}
