package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"taskboard/log"
)

var realtimeLogger = log.GetLogger("ApiRealtime")

// Realtime handles GET /api/realtime. It upgrades the request to a
// WebSocket and streams collection change events as JSON frames. Events
// for records the connecting viewer may not see are dropped before they
// reach the wire.
func (h *Handlers) Realtime(c *gin.Context) {
	viewer, _ := h.viewerFromToken(c)

	collection := c.Query("collection")
	if collection == "" {
		collection = todosCollection
	}

	// Mark before upgrading so the request logger skips the hijacked
	// connection instead of touching its headers.
	log.MarkHijacked(c)

	// Gin wraps the response writer; the upgrade needs the raw one for
	// hijacking.
	var w http.ResponseWriter = c.Writer
	if unwrapper, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		w = unwrapper.Unwrap()
	}

	conn, err := websocket.Accept(w, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // auth is token-based, not origin-based
	})
	if err != nil {
		realtimeLogger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.Abort()

	// Gin's request context does not cancel when the socket closes
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe := h.hub.Subscribe(collection)
	defer unsubscribe()

	realtimeLogger.Debug().
		Str("collection", collection).
		Str("viewerId", viewer.ID).
		Msg("realtime subscriber connected")

	// Reads are discarded; their only purpose is detecting disconnects
	// and answering control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if !event.Record.VisibleTo(viewer) {
				continue
			}
			frame, err := json.Marshal(event)
			if err != nil {
				realtimeLogger.Error().Err(err).Msg("event encode failed")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				if ctx.Err() == nil {
					realtimeLogger.Debug().Err(err).Msg("realtime write failed, dropping subscriber")
				}
				return
			}
		}
	}
}
