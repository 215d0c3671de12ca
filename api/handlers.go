package api

import (
	"time"

	"taskboard/db"
	"taskboard/realtime"
)

// todosCollection is the collection name used by record and realtime
// endpoints.
const todosCollection = "todos"

// Handlers carries the dependencies of all API endpoints. Everything is
// passed in explicitly; there is no ambient service state.
type Handlers struct {
	db       *db.DB
	hub      *realtime.Hub
	secret   string
	tokenTTL time.Duration
}

// NewHandlers creates the API handler set.
func NewHandlers(database *db.DB, hub *realtime.Hub, tokenSecret string, tokenTTL time.Duration) *Handlers {
	return &Handlers{
		db:       database,
		hub:      hub,
		secret:   tokenSecret,
		tokenTTL: tokenTTL,
	}
}
