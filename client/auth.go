package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"taskboard/todo"
)

// User is the account behind a session.
type User struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Created time.Time `json:"created"`
}

// Session is an authenticated identity. It is passed explicitly to
// everything that acts on the user's behalf; there is no ambient
// signed-in state.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Viewer returns the session's identity in the form the todo layer
// uses for visibility checks. A nil session is anonymous.
func (s *Session) Viewer() todo.Viewer {
	if s == nil {
		return todo.Viewer{}
	}
	return todo.Viewer{ID: s.User.ID, Email: s.User.Email}
}

// CreateUser registers a new account. It does not sign the account in.
func (c *Client) CreateUser(ctx context.Context, email, password, passwordConfirm, name string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodPost, "/api/collections/users/records", "", map[string]string{
		"email":           email,
		"password":        password,
		"passwordConfirm": passwordConfirm,
		"name":            name,
	}, &user)
	return user, err
}

// AuthWithPassword signs in with email and password.
func (c *Client) AuthWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/collections/users/auth-with-password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("userId", session.User.ID).Msg("signed in")
	return &session, nil
}

// RequestPasswordReset asks the server to send a reset link. The server
// answers the same way whether or not the email has an account.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/collections/users/request-password-reset", "", map[string]string{
		"email": email,
	}, nil)
}

// ConfirmPasswordReset sets a new password using a reset token from the
// emailed link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/api/collections/users/confirm-password-reset", "", map[string]string{
		"token":    token,
		"password": password,
	}, nil)
}

// SignOut tells the server the session is done. Dropping the session
// locally is what actually ends it; a failed call is not an error worth
// surfacing.
func (c *Client) SignOut(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", session.Token, nil, nil); err != nil {
		logger.Debug().Err(err).Msg("logout call failed")
	}
}

// AuthWithOAuth2 runs the third-party sign-in flow: it opens a loopback
// listener for the final token hand-off, sends the browser to the
// server's authorize endpoint, and waits for the redirect back.
func (c *Client) AuthWithOAuth2(ctx context.Context) (*Session, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("open callback listener: %w", err)
	}
	defer listener.Close()

	redirect := "http://" + listener.Addr().String() + "/callback"

	type callbackResult struct {
		session *Session
		err     error
	}
	results := make(chan callbackResult, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if msg := query.Get("error"); msg != "" {
			fmt.Fprint(w, "Sign-in failed. You can close this tab.")
			results <- callbackResult{err: fmt.Errorf("sign-in failed: %s", msg)}
			return
		}
		token := query.Get("token")
		if token == "" {
			fmt.Fprint(w, "Sign-in failed. You can close this tab.")
			results <- callbackResult{err: fmt.Errorf("callback carried no token")}
			return
		}
		fmt.Fprint(w, "Signed in. You can close this tab and return to the app.")
		results <- callbackResult{session: &Session{
			Token: token,
			User: User{
				ID:    query.Get("userId"),
				Email: query.Get("email"),
				Name:  query.Get("name"),
			},
		}}
	})}
	go server.Serve(listener)
	defer server.Close()

	authorizeURL := c.baseURL + "/api/oauth/authorize?" + url.Values{"redirect": {redirect}}.Encode()
	if err := openBrowser(authorizeURL); err != nil {
		logger.Warn().Err(err).Msg("could not open browser, sign in manually")
		fmt.Printf("Open this URL to sign in:\n  %s\n", authorizeURL)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.err != nil {
			return nil, result.err
		}
		logger.Info().Str("userId", result.session.User.ID).Msg("signed in via provider")
		return result.session, nil
	}
}

func openBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
