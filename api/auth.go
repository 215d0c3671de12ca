package api

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard/auth"
	"taskboard/db"
	"taskboard/log"
)

var authLogger = log.GetLogger("ApiAuth")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRecord is the public shape of a user account.
type UserRecord struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Created time.Time `json:"created"`
}

// AuthPayload is returned by sign-in and registration.
type AuthPayload struct {
	Token string     `json:"token"`
	User  UserRecord `json:"user"`
}

func userRecord(u db.User) UserRecord {
	return UserRecord{ID: u.ID, Email: u.Email, Name: u.Name, Created: u.Created}
}

// Register handles POST /api/collections/users/records
func (h *Handlers) Register(c *gin.Context) {
	var body struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
		Name            string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if !emailPattern.MatchString(body.Email) {
		RespondValidationError(c, "Please enter a valid email address.")
		return
	}
	if len(body.Password) < 8 {
		RespondValidationError(c, "Password must be at least 8 characters.")
		return
	}
	if body.PasswordConfirm != "" && body.Password != body.PasswordConfirm {
		RespondValidationError(c, "Passwords do not match.")
		return
	}

	if existing, err := h.db.GetUserByEmail(body.Email); err != nil {
		authLogger.Error().Err(err).Msg("user lookup failed")
		RespondInternalError(c, "Registration failed.")
		return
	} else if existing != nil {
		RespondConflict(c, "An account with that email already exists.")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		authLogger.Error().Err(err).Msg("password hash failed")
		RespondInternalError(c, "Registration failed.")
		return
	}

	user := db.User{
		ID:           uuid.NewString(),
		Email:        body.Email,
		Name:         strings.TrimSpace(body.Name),
		PasswordHash: hash,
		Created:      time.Now().UTC(),
	}
	if err := h.db.CreateUser(user); err != nil {
		authLogger.Error().Err(err).Msg("user insert failed")
		RespondInternalError(c, "Registration failed.")
		return
	}

	authLogger.Info().Str("userId", user.ID).Msg("user registered")
	RespondCreated(c, userRecord(user))
}

// AuthWithPassword handles POST /api/collections/users/auth-with-password
func (h *Handlers) AuthWithPassword(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	user, err := h.db.GetUserByEmail(body.Email)
	if err != nil {
		authLogger.Error().Err(err).Msg("user lookup failed")
		RespondInternalError(c, "Authentication failed.")
		return
	}
	if user == nil || user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, body.Password) {
		authLogger.Warn().Str("email", body.Email).Msg("failed sign-in attempt")
		RespondUnauthorized(c, "Invalid email or password.")
		return
	}

	token, err := auth.IssueToken(h.secret, user.ID, user.Email, user.Name, h.tokenTTL)
	if err != nil {
		authLogger.Error().Err(err).Msg("token issue failed")
		RespondInternalError(c, "Authentication failed.")
		return
	}

	authLogger.Info().Str("userId", user.ID).Msg("sign-in successful")
	RespondData(c, AuthPayload{Token: token, User: userRecord(*user)})
}

// RequestPasswordReset handles POST /api/collections/users/request-password-reset.
// A reset token is stored and would be mailed out by a delivery
// integration; the endpoint answers 204 either way so it does not leak
// which emails have accounts.
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if !emailPattern.MatchString(body.Email) {
		RespondValidationError(c, "Please enter a valid email address.")
		return
	}

	user, err := h.db.GetUserByEmail(body.Email)
	if err != nil {
		authLogger.Error().Err(err).Msg("user lookup failed")
		RespondInternalError(c, "Failed to send reset link.")
		return
	}
	if user != nil {
		reset := db.PasswordReset{
			Token:   generateResetToken(),
			UserID:  user.ID,
			Created: time.Now().UTC(),
			Expires: time.Now().UTC().Add(30 * time.Minute),
		}
		if err := h.db.CreatePasswordReset(reset); err != nil {
			authLogger.Error().Err(err).Msg("reset token insert failed")
			RespondInternalError(c, "Failed to send reset link.")
			return
		}
		authLogger.Info().Str("userId", user.ID).Msg("password reset requested")
	}

	RespondNoContent(c)
}

// ConfirmPasswordReset handles POST
// /api/collections/users/confirm-password-reset. The token is single
// use and expires with the stored request.
func (h *Handlers) ConfirmPasswordReset(c *gin.Context) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body.")
		return
	}
	if len(body.Password) < 8 {
		RespondValidationError(c, "Password must be at least 8 characters.")
		return
	}

	reset, err := h.db.GetPasswordReset(body.Token)
	if err != nil {
		authLogger.Error().Err(err).Msg("reset token lookup failed")
		RespondInternalError(c, "Password reset failed.")
		return
	}
	if reset == nil {
		RespondBadRequest(c, "This reset link is invalid or has expired.")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		authLogger.Error().Err(err).Msg("password hash failed")
		RespondInternalError(c, "Password reset failed.")
		return
	}
	if err := h.db.UpdateUserPassword(reset.UserID, hash); err != nil {
		authLogger.Error().Err(err).Msg("password update failed")
		RespondInternalError(c, "Password reset failed.")
		return
	}
	if err := h.db.DeletePasswordReset(reset.Token); err != nil {
		authLogger.Error().Err(err).Msg("reset token cleanup failed")
	}

	authLogger.Info().Str("userId", reset.UserID).Msg("password reset completed")
	RespondNoContent(c)
}

// Logout handles POST /api/auth/logout. Session tokens are stateless,
// so this only exists for symmetry with the client's sign-out.
func (h *Handlers) Logout(c *gin.Context) {
	RespondNoContent(c)
}

func generateResetToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
