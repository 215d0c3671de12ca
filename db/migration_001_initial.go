package db

import "database/sql"

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Initial schema - users, todos, password resets",
		Up:          migration001_initial,
	})
}

func migration001_initial(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE todos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			visibility TEXT NOT NULL DEFAULT 'public',
			author_id TEXT NOT NULL REFERENCES users(id),
			author_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_edited_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE INDEX idx_todos_visibility ON todos(visibility, created_at DESC)`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX idx_todos_author ON todos(author_id, created_at DESC)`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE password_resets (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	return tx.Commit()
}
