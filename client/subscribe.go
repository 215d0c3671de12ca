package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"taskboard/todo"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// SubscribeOptions configures a realtime subscription.
type SubscribeOptions struct {
	// OnEvent receives every change event, in arrival order, from a
	// single goroutine.
	OnEvent func(todo.Event)
	// OnReconnect fires after the feed comes back from an outage.
	// Events are lost while disconnected, so this is the hook to
	// refetch.
	OnReconnect func()
}

// Subscription is a running realtime feed.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Subscribe opens the realtime feed for a collection and keeps it open:
// on connection loss it redials with exponential backoff until ctx is
// cancelled or Close is called. A nil session subscribes anonymously
// and only sees public records.
func (c *Client) Subscribe(ctx context.Context, session *Session, collection string, opts SubscribeOptions) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		c.runFeed(ctx, session, collection, opts)
	}()
	return sub
}

func (c *Client) runFeed(ctx context.Context, session *Session, collection string, opts SubscribeOptions) {
	wsURL := c.realtimeURL(session, collection)
	delay := reconnectBaseDelay
	connectedBefore := false

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug().Err(err).Dur("retryIn", delay).Msg("realtime dial failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		delay = reconnectBaseDelay
		if connectedBefore && opts.OnReconnect != nil {
			opts.OnReconnect()
		}
		connectedBefore = true
		logger.Debug().Str("collection", collection).Msg("realtime feed connected")

		c.readEvents(ctx, conn, opts)
		conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}
		logger.Debug().Str("collection", collection).Msg("realtime feed lost, reconnecting")
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn, opts SubscribeOptions) {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var event todo.Event
		if err := json.Unmarshal(frame, &event); err != nil {
			logger.Warn().Err(err).Msg("discarding malformed realtime frame")
			continue
		}
		if opts.OnEvent != nil {
			opts.OnEvent(event)
		}
	}
}

func (c *Client) realtimeURL(session *Session, collection string) string {
	wsBase := c.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}

	params := url.Values{}
	params.Set("collection", collection)
	if session != nil && session.Token != "" {
		params.Set("token", session.Token)
	}
	return wsBase + "/api/realtime?" + params.Encode()
}

func nextDelay(delay time.Duration) time.Duration {
	delay *= 2
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
