package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// reconnectMin is the initial backoff after a dropped connection.
	reconnectMin = time.Second
	// reconnectMax caps the backoff.
	reconnectMax = time.Minute
)

// ErrAuthInvalid indicates the WebSocket handshake rejected the token.
var ErrAuthInvalid = errors.New("websocket authentication failed")

// Watcher subscribes to state_changed events for one media player and
// emits a snapshot for every change. It reconnects on its own until
// the context is cancelled.
type Watcher struct {
	client   *Client
	entityID string
	dialer   *websocket.Dialer
	out      chan StateChange
}

// StateChange is one observed entity update.
type StateChange struct {
	State *State
}

// NewWatcher creates a watcher for the given media player entity.
func NewWatcher(client *Client, entityID string) *Watcher {
	return &Watcher{
		client:   client,
		entityID: entityID,
		dialer:   websocket.DefaultDialer,
		out:      make(chan StateChange, 8),
	}
}

// Changes returns the stream of entity updates.
func (w *Watcher) Changes() <-chan StateChange {
	return w.out
}

// Run connects, subscribes and pumps events until the context ends.
// The channel from Changes is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)

	backoff := reconnectMin
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthInvalid) {
			// Retrying with the same token cannot succeed.
			return err
		}

		log.Warn().Err(err).Dur("retry_in", backoff).Msg("Event stream dropped, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// wsMessage covers every frame shape the handshake and event stream use.
type wsMessage struct {
	ID      int    `json:"id,omitempty"`
	Type    string `json:"type"`
	Success *bool  `json:"success,omitempty"`
	Event   *struct {
		EventType string `json:"event_type"`
		Data      struct {
			EntityID string `json:"entity_id"`
			NewState *State `json:"new_state"`
		} `json:"data"`
	} `json:"event,omitempty"`
}

// session runs one connection lifecycle: dial, authenticate,
// subscribe, then pump events until the connection drops.
func (w *Watcher) session(ctx context.Context) error {
	conn, err := w.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := w.authenticate(conn); err != nil {
		return err
	}
	if err := w.subscribe(conn); err != nil {
		return err
	}
	log.Info().Str("entity", w.entityID).Msg("Watching media player state")

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Seed with the current state so a restart mid-playback still
	// renders something.
	if state, err := w.client.EntityState(ctx, w.entityID); err == nil {
		w.emit(ctx, state)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if msg.Type != "event" || msg.Event == nil {
			continue
		}
		if msg.Event.Data.EntityID != w.entityID || msg.Event.Data.NewState == nil {
			continue
		}
		w.emit(ctx, msg.Event.Data.NewState)
	}
}

func (w *Watcher) emit(ctx context.Context, state *State) {
	select {
	case w.out <- StateChange{State: state}:
	case <-ctx.Done():
	}
}

func (w *Watcher) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := w.dialer.DialContext(ctx, w.websocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return conn, nil
}

// authenticate performs the auth_required/auth/auth_ok exchange.
func (w *Watcher) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": w.client.token}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var result wsMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	if result.Type != "auth_ok" {
		return ErrAuthInvalid
	}
	return nil
}

// subscribe registers for state_changed events.
func (w *Watcher) subscribe(conn *websocket.Conn) error {
	sub := map[string]any{"id": 1, "type": "subscribe_events", "event_type": "state_changed"}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}

	var result wsMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("read subscription result: %w", err)
	}
	if result.Type != "result" || result.Success == nil || !*result.Success {
		raw, _ := json.Marshal(result)
		return fmt.Errorf("subscription rejected: %s", raw)
	}
	return nil
}

// websocketURL derives the ws endpoint from the REST base URL.
func (w *Watcher) websocketURL() string {
	u := w.client.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/websocket"
}
