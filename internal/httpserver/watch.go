// internal/httpserver/watch.go
//
// Live state stream for the presentation layer.
// GET /game/{gameID}/watch upgrades to a websocket and pushes a game.Event
// for every mutation (selects, matches, flip-backs, resets), starting with
// one synthetic "state" event carrying the current snapshot.
//
// The socket is one-way: client frames are read only to service close and
// pong control messages. Slow consumers have events dropped rather than
// blocking the game; every event carries a full snapshot, so a dropped
// intermediate frame is recoverable.

package httpserver

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/StevenLuque2003/Memory-Game/internal/game"
)

const (
	// Time allowed to write a frame to the peer.
	watchWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	watchPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than watchPongWait.
	watchPingPeriod = (watchPongWait * 9) / 10

	// Buffered events per watcher before frames get dropped.
	watchBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		allowed := os.Getenv("CLIENT_ORIGIN")
		if allowed == "" {
			allowed = "http://localhost:5173"
		}
		return origin == allowed
	},
}

// handleWatch subscribes the caller to a session's event stream.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("watch upgrade")
		return
	}

	events := make(chan game.Event, watchBuffer)
	cancel := g.Subscribe(func(ev game.Event) {
		select {
		case events <- ev:
		default: // watcher too slow; next event carries a full snapshot anyway
		}
	})

	// Seed the stream with the current state.
	events <- game.Event{Kind: game.EventState, Snapshot: g.Snapshot()}

	go s.watchWriteLoop(conn, events, cancel)
	s.watchReadLoop(conn)
}

// watchWriteLoop pushes events and periodic pings until the connection dies.
func (s *Server) watchWriteLoop(conn *websocket.Conn, events <-chan game.Event, cancel func()) {
	ticker := time.NewTicker(watchPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// watchReadLoop drains client frames so close/pong control messages are
// processed; any payload frames are ignored.
func (s *Server) watchReadLoop(conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
