// Package socketio provides the Socket.io control surface: clients
// read the daemon status and adjust display settings at runtime.
package socketio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/pixoobridge/pixoobridge/internal/domain/engine"
)

// maxExternalClients bounds concurrent non-localhost control clients.
const maxExternalClients = 4

// Server handles Socket.io connections and control events.
type Server struct {
	io      *socket.Server
	engine  *engine.Engine
	limiter *ConnectionLimiter

	mu         sync.RWMutex
	clients    map[string]*socket.Socket
	lastStatus *engine.Status
}

// NewServer creates a new Socket.io control server.
func NewServer(eng *engine.Engine) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		engine:  eng,
		limiter: NewConnectionLimiter(maxExternalClients),
		clients: make(map[string]*socket.Socket),
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		remoteIP := ""
		if hs := client.Handshake(); hs != nil {
			remoteIP = hs.Address
		}
		_, evicted := s.limiter.TryAdd(clientID, remoteIP)
		if evicted != "" {
			s.disconnectClient(evicted)
		}

		log.Info().Str("id", clientID).Str("ip", remoteIP).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial status after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			client.Emit("pushStatus", s.engine.Status())
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getStatus", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getStatus")
			client.Emit("pushStatus", s.engine.Status())
		})

		client.On("setDisplayMode", func(args ...any) {
			if mode, ok := stringArg(args, "mode"); ok {
				log.Info().Str("id", clientID).Str("mode", mode).Msg("setDisplayMode")
				s.engine.Settings().SetDisplayMode(mode)
				s.refresh()
			}
		})

		client.On("setCropMode", func(args ...any) {
			if mode, ok := stringArg(args, "mode"); ok {
				log.Info().Str("id", clientID).Str("mode", mode).Msg("setCropMode")
				s.engine.Settings().SetCropMode(mode)
				s.refresh()
			}
		})

		client.On("setLyricsOffset", func(args ...any) {
			if v, ok := floatArg(args, "value"); ok {
				log.Info().Str("id", clientID).Int("offset", int(v)).Msg("setLyricsOffset")
				s.engine.Settings().SetLyricsOffset(int(v))
				s.refresh()
			}
		})

		client.On("setEnabled", func(args ...any) {
			if v, ok := boolArg(args, "value"); ok {
				log.Info().Str("id", clientID).Bool("enabled", v).Msg("setEnabled")
				s.engine.Settings().SetEnabled(v)
				s.refresh()
			}
		})

		client.On("setFullControl", func(args ...any) {
			if v, ok := boolArg(args, "value"); ok {
				log.Info().Str("id", clientID).Bool("fullControl", v).Msg("setFullControl")
				s.engine.Settings().SetFullControl(v)
				s.refresh()
			}
		})
	})
}

// refresh re-renders the display with the new settings and pushes the
// resulting status to every client.
func (s *Server) refresh() {
	s.engine.Refresh(context.Background())
	s.BroadcastStatus(s.engine.Status())
}

// disconnectClient force-disconnects an evicted client.
func (s *Server) disconnectClient(clientID string) {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()
	if ok {
		log.Info().Str("id", clientID).Msg("Evicting oldest external client")
		client.Disconnect(true)
	}
}

// BroadcastStatus sends the status to all connected clients, skipping
// the broadcast when nothing visible changed.
func (s *Server) BroadcastStatus(status engine.Status) {
	s.mu.Lock()
	if s.lastStatus != nil && *s.lastStatus == status {
		s.mu.Unlock()
		return
	}
	s.lastStatus = &status
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.io.Emit("pushStatus", status)
	log.Debug().Int("clients", clientCount).Str("state", status.PlayerState).Msg("Broadcast status")
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.io.Close(nil)
	return nil
}

// stringArg extracts a string field from the first event payload,
// accepting both a bare string and a {key: value} map.
func stringArg(args []any, key string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	if v, ok := args[0].(string); ok {
		return v, true
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if v, ok := m[key].(string); ok {
			return v, true
		}
	}
	return "", false
}

func floatArg(args []any, key string) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	if v, ok := args[0].(float64); ok {
		return v, true
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if v, ok := m[key].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func boolArg(args []any, key string) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	if v, ok := args[0].(bool); ok {
		return v, true
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if v, ok := m[key].(bool); ok {
			return v, true
		}
	}
	return false, false
}
