// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Deck" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's deck (creates or reuses session)
//   - POST /daily/select      → tap a card on today's deck
//   - GET  /daily/leaderboard → fetch top 20 results for today (or a given date)
//
// Each user can record one completion per day (enforced by DB + in-memory
// session). Sessions are held in memory for active play and persisted to DB
// on completion. Deterministic deck construction is based on date + salt, so
// every player faces the same shuffle.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/StevenLuque2003/Memory-Game/internal/daily"
	"github.com/StevenLuque2003/Memory-Game/internal/game"
)

const dailyPairs = 6 // board size for the daily deck

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	sessions map[string]*dailySession // active sessions keyed by userID|date
	mu       sync.Mutex               // guards sessions
}

// dailySession holds transient in-memory state for an in-progress daily game.
type dailySession struct {
	Game     *game.Session
	UserID   string
	Date     string
	Start    time.Time
	Finished bool
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     getEnv("DAILY_SALT", "local_dev_salt"),
		sessions: make(map[string]*dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/select", dd.handleSelect)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// dateKeyNow returns today's date key and deterministic deck seed.
func (d *dailyServer) dateKeyNow() (date string, seed int64) {
	now := time.Now().UTC()
	return daily.DateKey(now), daily.DeckSeed(now, d.salt)
}

// userIDWithAnon returns the authenticated user ID if logged in,
// otherwise ensures an anonymous ID via Server.ensureAnonID.
func (d *dailyServer) userIDWithAnon(w http.ResponseWriter, r *http.Request) (string, bool) {
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		return me.ID, true
	}
	return d.srv.ensureAnonID(w, r), true
}

// -----------------------------------------------------------------------------
// /daily/new

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID string        `json:"gameId"`
	Date   string        `json:"date"`
	Played bool          `json:"played"`
	Game   game.Snapshot `json:"game,omitempty"`
}

// handleNew creates or reuses a daily session for the current date.
// - If user already has a DB row for today → return Played=true.
// - Otherwise create/reuse an in-memory session and return its snapshot.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid, ok := d.userIDWithAnon(w, r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	date, seed := d.dateKeyNow()

	// Check if already played (persisted in DB).
	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
		_ = json.NewEncoder(w).Encode(dailyNewRes{GameID: "", Date: date, Played: true})
		return
	}

	// Reuse or create session in memory.
	key := uid + "|" + date
	d.mu.Lock()
	if sess, ok := d.sessions[key]; ok {
		d.mu.Unlock()
		_ = json.NewEncoder(w).Encode(dailyNewRes{GameID: sess.Game.ID, Date: date, Played: false, Game: sess.Game.Snapshot()})
		return
	}
	g, err := game.New(dailyPairs, game.WithSeed(seed), game.WithFlipBackDelay(d.srv.flipBackDelay))
	if err != nil {
		d.mu.Unlock()
		log.Error().Err(err).Msg("build daily deck")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	sess := &dailySession{
		Game:   g,
		UserID: uid,
		Date:   date,
		Start:  time.Now(),
	}
	d.sessions[key] = sess
	d.mu.Unlock()

	// Also register with the session store so /game/{id} and the websocket
	// watch endpoint work for daily decks. The daily mark keeps the generic
	// mutation endpoints (/game/select, /game/reset) from touching the
	// canonical deck.
	_ = d.srv.store.Save(r.Context(), g)
	d.srv.markDaily(g.ID)

	_ = json.NewEncoder(w).Encode(dailyNewRes{GameID: g.ID, Date: date, Played: false, Game: g.Snapshot()})
}

// -----------------------------------------------------------------------------
// /daily/select

// dailySelectReq is the request payload for /daily/select.
type dailySelectReq struct {
	GameID string `json:"gameId"`
	Index  int    `json:"index"`
}

// dailySelectRes is the response payload for /daily/select.
type dailySelectRes struct {
	Outcome game.Outcome  `json:"outcome"`
	State   string        `json:"state"` // in_progress | complete | locked
	Game    game.Snapshot `json:"game"`
}

// handleSelect validates and applies a tap for today's daily session.
// - Ensures valid GameID and an active session.
// - Rejects with "locked" once the session finished.
// - Applies the tap through the shared game engine.
// - Persists the result to DB on completion.
func (d *dailyServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	uid, ok := d.userIDWithAnon(w, r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var p dailySelectReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if p.GameID == "" {
		http.Error(w, "invalid", http.StatusBadRequest)
		return
	}

	date, _ := d.dateKeyNow()

	// Find session. Finished is read under the same lock that completion
	// writes it under.
	key := uid + "|" + date
	d.mu.Lock()
	sess, ok := d.sessions[key]
	finished := ok && sess.Finished
	d.mu.Unlock()
	if !ok || sess.Game.ID != p.GameID {
		http.Error(w, "no session", http.StatusConflict)
		return
	}
	if finished {
		_ = json.NewEncoder(w).Encode(dailySelectRes{Outcome: game.OutcomeIgnored, State: "locked", Game: sess.Game.Snapshot()})
		return
	}

	outcome := sess.Game.SelectCard(p.Index)
	snap := sess.Game.Snapshot()

	// Persist and return.
	if snap.Complete {
		d.mu.Lock()
		sess.Finished = true
		d.mu.Unlock()
		elapsed := int(time.Since(sess.Start).Milliseconds())
		_ = d.store.InsertResult(r.Context(), daily.Result{
			UserID: uid, Date: date, Pairs: snap.Pairs, Flips: snap.Flips, ElapsedMs: elapsed,
		})
		_ = json.NewEncoder(w).Encode(dailySelectRes{Outcome: outcome, State: "complete", Game: snap})
		return
	}
	_ = json.NewEncoder(w).Encode(dailySelectRes{Outcome: outcome, State: "in_progress", Game: snap})
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date, _ = d.dateKeyNow()
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
