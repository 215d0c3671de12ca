package db

import (
	"database/sql"
	"fmt"
	"time"
)

// User is an account record.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Created      time.Time
}

// CreateUser inserts a new user record.
func (d *DB) CreateUser(u User) error {
	_, err := d.Run(`
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.PasswordHash, formatTime(u.Created))
	return err
}

// GetUserByEmail retrieves a user by email, or nil when absent.
func (d *DB) GetUserByEmail(email string) (*User, error) {
	return SelectOne(d, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?
	`, []any{email}, scanUser)
}

// GetUserByID retrieves a user by id, or nil when absent.
func (d *DB) GetUserByID(id string) (*User, error) {
	return SelectOne(d, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?
	`, []any{id}, scanUser)
}

// UpdateUserPassword replaces a user's password hash.
func (d *DB) UpdateUserPassword(id, passwordHash string) error {
	_, err := d.Run("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	return err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created); err != nil {
		return u, err
	}
	var err error
	if u.Created, err = parseTime(created); err != nil {
		return u, fmt.Errorf("bad created_at for user %s: %w", u.ID, err)
	}
	return u, nil
}
