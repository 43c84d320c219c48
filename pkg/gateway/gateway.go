// Package gateway maintains the websocket connection that delivers control
// press events from the platform. It identifies, heartbeats, reconnects
// with backoff, and hands decoded press events to a single handler.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"pressbot/pkg/logger"
)

// PressEvent is one control press as delivered by the platform.
type PressEvent struct {
	CommunityID string `json:"community_id"`
	ChannelID   string `json:"channel_id"`
	MessageID   string `json:"message_id"`
	CustomID    string `json:"custom_id"`
	ActorName   string `json:"actor_name"`
	ActorAvatar string `json:"actor_avatar,omitempty"`
}

// Handler consumes press events. Handlers run on the read loop goroutine;
// a slow handler delays subsequent events on the same connection.
type Handler func(ctx context.Context, ev PressEvent)

type frame struct {
	Op   string          `json:"op"`   // hello|dispatch|heartbeat|ack
	Type string          `json:"type"` // dispatch payload type
	Data json.RawMessage `json:"data,omitempty"`
}

type helloData struct {
	HeartbeatIntervalMs int `json:"heartbeat_interval_ms"`
}

const (
	pressEventType   = "CONTROL_PRESSED"
	defaultHeartbeat = 40 * time.Second
	maxBackoff       = 60 * time.Second
)

// Gateway is the long-lived event listener.
type Gateway struct {
	url     string
	token   string
	handler Handler
	dialer  *websocket.Dialer
}

// New returns a gateway for the given websocket URL and bot token.
func New(url, token string, h Handler) *Gateway {
	return &Gateway{url: url, token: token, handler: h, dialer: websocket.DefaultDialer}
}

// Run connects and processes events until ctx is canceled, reconnecting
// with exponential backoff after connection failures.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := g.session(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("gateway_session_ended", "error", err, "retry_in", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

// session runs one connection: identify, heartbeat, read until error.
func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("gateway_connected", "url", g.url)

	// unblock the read loop when the context goes away
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sessionDone:
		}
	}()

	if err := conn.WriteJSON(map[string]string{"op": "identify", "token": g.token}); err != nil {
		return err
	}

	// the first frame is expected to be a hello carrying the heartbeat
	// interval; fall back to a default when it is not
	interval := defaultHeartbeat
	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		return err
	}
	if first.Op == "hello" {
		var h helloData
		if json.Unmarshal(first.Data, &h) == nil && h.HeartbeatIntervalMs > 0 {
			interval = time.Duration(h.HeartbeatIntervalMs) * time.Millisecond
		}
	} else {
		g.dispatch(ctx, first)
	}

	hbCtx, stopHB := context.WithCancel(ctx)
	defer stopHB()
	go g.heartbeat(hbCtx, conn, interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		g.dispatch(ctx, f)
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteJSON(map[string]string{"op": "heartbeat"}); err != nil {
				logger.Warn("gateway_heartbeat_failed", "error", err)
				return
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, f frame) {
	if f.Op != "dispatch" || f.Type != pressEventType {
		return
	}
	var ev PressEvent
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		logger.Warn("gateway_bad_press_event", "error", err)
		return
	}
	if g.handler != nil {
		g.handler(ctx, ev)
	}
}
