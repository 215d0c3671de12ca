package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard/log"
	"taskboard/todo"
)

var logger = log.GetLogger("Client")

// Client talks to a taskboard server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response decoded from the server's error
// envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// do sends a request and decodes the {"data": ...} envelope into out.
// A nil out discards the body. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// Collection is a record collection bound to a session. It implements
// the service interface the sync store consumes. The zero-token session
// reads as an anonymous visitor.
type Collection struct {
	client     *Client
	session    *Session
	collection string
}

// Todos returns the todos collection for the given session. A nil
// session is an anonymous one.
func (c *Client) Todos(session *Session) *Collection {
	return &Collection{client: c, session: session, collection: "todos"}
}

func (col *Collection) token() string {
	if col.session == nil {
		return ""
	}
	return col.session.Token
}

func (col *Collection) recordsPath() string {
	return "/api/collections/" + col.collection + "/records"
}

// List fetches records matching the filter in the given sort order.
func (col *Collection) List(ctx context.Context, filter, sort string) ([]todo.Todo, error) {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	path := col.recordsPath()
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var records []todo.Todo
	if err := col.client.do(ctx, http.MethodGet, path, col.token(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts a new record from a field delta.
func (col *Collection) Create(ctx context.Context, fields map[string]any) (todo.Todo, error) {
	var record todo.Todo
	err := col.client.do(ctx, http.MethodPost, col.recordsPath(), col.token(), fields, &record)
	return record, err
}

// Update applies a partial field delta to a record.
func (col *Collection) Update(ctx context.Context, id string, fields map[string]any) (todo.Todo, error) {
	var record todo.Todo
	err := col.client.do(ctx, http.MethodPatch, col.recordsPath()+"/"+id, col.token(), fields, &record)
	return record, err
}

// Delete removes a record.
func (col *Collection) Delete(ctx context.Context, id string) error {
	return col.client.do(ctx, http.MethodDelete, col.recordsPath()+"/"+id, col.token(), nil, nil)
}
