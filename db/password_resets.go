package db

import (
	"database/sql"
	"time"
)

// PasswordReset is a pending password-reset request.
type PasswordReset struct {
	Token   string
	UserID  string
	Created time.Time
	Expires time.Time
}

// CreatePasswordReset stores a reset token for a user.
func (d *DB) CreatePasswordReset(r PasswordReset) error {
	_, err := d.Run(`
		INSERT INTO password_resets (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, r.Token, r.UserID, formatTime(r.Created), formatTime(r.Expires))
	return err
}

// GetPasswordReset retrieves a non-expired reset request, or nil.
func (d *DB) GetPasswordReset(token string) (*PasswordReset, error) {
	r, err := SelectOne(d, `
		SELECT token, user_id, created_at, expires_at FROM password_resets WHERE token = ?
	`, []any{token}, func(row *sql.Row) (PasswordReset, error) {
		var pr PasswordReset
		var created, expires string
		if err := row.Scan(&pr.Token, &pr.UserID, &created, &expires); err != nil {
			return pr, err
		}
		var err error
		if pr.Created, err = parseTime(created); err != nil {
			return pr, err
		}
		if pr.Expires, err = parseTime(expires); err != nil {
			return pr, err
		}
		return pr, nil
	})
	if err != nil || r == nil {
		return nil, err
	}
	if time.Now().After(r.Expires) {
		return nil, nil
	}
	return r, nil
}

// DeletePasswordReset removes a reset request once consumed.
func (d *DB) DeletePasswordReset(token string) error {
	_, err := d.Run("DELETE FROM password_resets WHERE token = ?", token)
	return err
}
