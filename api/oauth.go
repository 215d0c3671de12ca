package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard/auth"
	"taskboard/db"
	"taskboard/log"
)

var oauthLogger = log.GetLogger("ApiOAuth")

// stateTTL bounds how long a pending authorization may take before the
// state is discarded.
const stateTTL = 10 * time.Minute

type pendingAuth struct {
	redirect string
	created  time.Time
}

var (
	pendingAuthMu sync.Mutex
	pendingAuths  = map[string]pendingAuth{}
)

func storePendingAuth(state, redirect string) {
	pendingAuthMu.Lock()
	defer pendingAuthMu.Unlock()
	for s, p := range pendingAuths {
		if time.Since(p.created) > stateTTL {
			delete(pendingAuths, s)
		}
	}
	pendingAuths[state] = pendingAuth{redirect: redirect, created: time.Now()}
}

func takePendingAuth(state string) (pendingAuth, bool) {
	pendingAuthMu.Lock()
	defer pendingAuthMu.Unlock()
	p, ok := pendingAuths[state]
	if ok {
		delete(pendingAuths, state)
	}
	if !ok || time.Since(p.created) > stateTTL {
		return pendingAuth{}, false
	}
	return p, true
}

// OAuthAuthorize handles GET /api/oauth/authorize. It starts the
// third-party sign-in flow by redirecting the browser to the identity
// provider. The redirect query parameter names the local address the
// client is listening on for the final token hand-off.
func (h *Handlers) OAuthAuthorize(c *gin.Context) {
	if !auth.Enabled() {
		RespondNotFound(c, "Third-party sign-in is not configured.")
		return
	}
	provider, err := auth.GetOIDCProvider()
	if err != nil {
		oauthLogger.Error().Err(err).Msg("OIDC provider unavailable")
		RespondInternalError(c, "Third-party sign-in is unavailable.")
		return
	}

	redirect := c.Query("redirect")
	if !isLoopbackRedirect(redirect) {
		RespondBadRequest(c, "Invalid redirect address.")
		return
	}

	state := generateState()
	storePendingAuth(state, redirect)
	c.Redirect(http.StatusFound, provider.GetAuthCodeURL(state))
}

// OAuthCallback handles GET /api/oauth/callback. The identity provider
// redirects here with an authorization code; the code is exchanged,
// the identity verified, a matching account found or created, and the
// browser sent on to the client's local callback with a session token.
func (h *Handlers) OAuthCallback(c *gin.Context) {
	provider, err := auth.GetOIDCProvider()
	if err != nil {
		oauthLogger.Error().Err(err).Msg("OIDC provider unavailable")
		RespondInternalError(c, "Third-party sign-in is unavailable.")
		return
	}

	pending, ok := takePendingAuth(c.Query("state"))
	if !ok {
		RespondBadRequest(c, "Unknown or expired sign-in attempt.")
		return
	}

	code := c.Query("code")
	if code == "" {
		redirectWithError(c, pending.redirect, "Sign-in was cancelled.")
		return
	}

	oauth2Token, err := provider.Exchange(c.Request.Context(), code)
	if err != nil {
		oauthLogger.Error().Err(err).Msg("code exchange failed")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		oauthLogger.Error().Msg("token response missing id_token")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}
	idToken, err := provider.VerifyIDToken(c.Request.Context(), rawIDToken)
	if err != nil {
		oauthLogger.Error().Err(err).Msg("ID token verification failed")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		oauthLogger.Error().Err(err).Msg("ID token has no usable email claim")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}

	user, err := h.findOrCreateOAuthUser(claims.Email, claims.Name)
	if err != nil {
		oauthLogger.Error().Err(err).Msg("account resolution failed")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}

	token, err := auth.IssueToken(h.secret, user.ID, user.Email, user.Name, h.tokenTTL)
	if err != nil {
		oauthLogger.Error().Err(err).Msg("token issue failed")
		redirectWithError(c, pending.redirect, "Sign-in failed.")
		return
	}

	oauthLogger.Info().Str("userId", user.ID).Msg("third-party sign-in successful")

	params := url.Values{}
	params.Set("token", token)
	params.Set("userId", user.ID)
	params.Set("email", user.Email)
	params.Set("name", user.Name)
	c.Redirect(http.StatusFound, pending.redirect+"?"+params.Encode())
}

func (h *Handlers) findOrCreateOAuthUser(email, name string) (*db.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := h.db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	created := db.User{
		ID:      uuid.NewString(),
		Email:   email,
		Name:    strings.TrimSpace(name),
		Created: time.Now().UTC(),
	}
	if err := h.db.CreateUser(created); err != nil {
		return nil, err
	}
	oauthLogger.Info().Str("userId", created.ID).Msg("account created from third-party identity")
	return &created, nil
}

func redirectWithError(c *gin.Context, redirect, message string) {
	params := url.Values{}
	params.Set("error", message)
	c.Redirect(http.StatusFound, redirect+"?"+params.Encode())
}

// isLoopbackRedirect accepts only loopback HTTP addresses, since the
// hand-off target is a listener the client opened on the same machine.
func isLoopbackRedirect(redirect string) bool {
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}

func generateState() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
