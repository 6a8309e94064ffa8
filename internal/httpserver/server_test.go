package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StevenLuque2003/Memory-Game/internal/game"
	"github.com/StevenLuque2003/Memory-Game/internal/store"
	"github.com/StevenLuque2003/Memory-Game/internal/symbols"
)

func TestMain(m *testing.M) {
	if err := symbols.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestEnv spins up the full router against an in-memory sqlite DB and
// returns an httptest server plus a cookie-carrying client.
func newTestEnv(t *testing.T) (*httptest.Server, *http.Client, *sql.DB) {
	t.Helper()
	t.Setenv("FLIP_BACK_MS", "5")

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: is per-connection; keep the pool at one conn so every
	// handler sees the schema applied below.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../sql/001_init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	srv := New(store.NewMemoryStore(), db)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}, db
}

func postJSON(t *testing.T, c *http.Client, url string, body any, out any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := c.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func getJSON(t *testing.T, c *http.Client, url string, out any) *http.Response {
	t.Helper()
	res, err := c.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

// solve plays a board to completion through doSelect, remembering every
// symbol the server reveals. It also asserts the server never leaks
// face-down content.
func solve(t *testing.T, snap game.Snapshot, doSelect func(idx int) game.Snapshot) game.Snapshot {
	t.Helper()
	known := make(map[int]string)
	record := func(s game.Snapshot) {
		for i, cv := range s.Cards {
			if cv.Content != "" {
				known[i] = cv.Content
			} else {
				require.False(t, cv.FaceUp, "face-up cards must expose content")
			}
		}
	}
	record(snap)

	// partnerOf finds an unmatched card sharing a's known symbol.
	partnerOf := func(cur game.Snapshot, a int) int {
		sym, ok := known[a]
		if !ok {
			return -1
		}
		for j, cj := range known {
			if j != a && !cur.Cards[j].Matched && cj == sym {
				return j
			}
		}
		return -1
	}
	// firstUnknown picks the lowest unrevealed, unmatched card.
	firstUnknown := func(cur game.Snapshot, skip int) int {
		for i := range cur.Cards {
			if _, ok := known[i]; !ok && !cur.Cards[i].Matched && i != skip {
				return i
			}
		}
		return -1
	}

	// Each round taps exactly two cards, so pending is always clear between
	// rounds (match and mismatch both clear it immediately).
	cur := snap
	for rounds := 0; !cur.Complete; rounds++ {
		require.Less(t, rounds, 100, "solver is stuck")

		a := -1
		for i := range known {
			if !cur.Cards[i].Matched && partnerOf(cur, i) >= 0 {
				a = i
				break
			}
		}
		if a < 0 {
			a = firstUnknown(cur, -1)
		}
		require.GreaterOrEqual(t, a, 0, "nothing left to tap")
		cur = doSelect(a)
		record(cur)

		b := partnerOf(cur, a)
		if b < 0 {
			b = firstUnknown(cur, a)
		}
		require.GreaterOrEqual(t, b, 0, "no second card to tap")
		cur = doSelect(b)
		record(cur)
	}
	return cur
}

func TestGameFlow_NewSelectComplete(t *testing.T) {
	ts, c, db := newTestEnv(t)

	var created newGameRes
	res := postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 3}, &created)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, created.GameID)
	require.Len(t, created.Game.Cards, 6)
	assert.False(t, created.Game.Complete)
	for _, cv := range created.Game.Cards {
		assert.False(t, cv.FaceUp)
		assert.Empty(t, cv.Content, "fresh deck leaks no symbols")
	}

	final := solve(t, created.Game, func(idx int) game.Snapshot {
		var sr selectRes
		res := postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: idx}, &sr)
		require.Equal(t, http.StatusOK, res.StatusCode)
		return sr.Game
	})
	assert.True(t, final.Complete)
	assert.Equal(t, "complete", final.State)
	assert.Equal(t, 3, final.Matches)

	// History row reflects the completion (owned by the anon cookie).
	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM games WHERE id=?`, created.GameID).Scan(&status))
	assert.Equal(t, "complete", status)

	// GET returns the same terminal snapshot.
	var snap game.Snapshot
	res = getJSON(t, c, ts.URL+"/game/"+created.GameID, &snap)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, snap.Complete)
}

func TestGameReset_FreshDeckSameSession(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	var created newGameRes
	postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 3}, &created)

	var sr selectRes
	postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: 0}, &sr)
	require.Equal(t, 1, sr.Game.Flips)

	var rr resetRes
	res := postJSON(t, c, ts.URL+"/game/reset", resetReq{GameID: created.GameID, Pairs: 6}, &rr)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, created.GameID, rr.Game.GameID, "session keeps its ID across resets")
	assert.Equal(t, 6, rr.Game.Pairs)
	assert.Equal(t, 0, rr.Game.Flips)
	assert.Len(t, rr.Game.Cards, 12)
	for _, cv := range rr.Game.Cards {
		assert.False(t, cv.FaceUp)
	}
}

func TestGame_BadInputs(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	res := postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 4}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "pairs outside {3,6,10}")

	res = postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: "nope", Index: 0}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = getJSON(t, c, ts.URL+"/game/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// Ignored taps are not errors: out-of-range index is a silent no-op.
	var created newGameRes
	postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 3}, &created)
	var sr selectRes
	res = postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: 99}, &sr)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, game.Outcome(game.OutcomeIgnored), sr.Outcome)
	assert.Equal(t, 0, sr.Game.Flips)
}

func TestAuth_SignupLoginStats(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	res := postJSON(t, c, ts.URL+"/auth/signup", map[string]string{"username": "player_one", "password": "hunter2hunter2"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var me authUser
	res = getJSON(t, c, ts.URL+"/auth/me", &me)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "player_one", me.Username)

	var stats map[string]any
	res = getJSON(t, c, ts.URL+"/stats/me", &stats)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 0, stats["gamesPlayed"])

	// Complete a game while authenticated; stats should move.
	var created newGameRes
	postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 3}, &created)
	solve(t, created.Game, func(idx int) game.Snapshot {
		var sr selectRes
		postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: idx}, &sr)
		return sr.Game
	})

	stats = nil
	getJSON(t, c, ts.URL+"/stats/me", &stats)
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["completions"])

	var mine []map[string]any
	res = getJSON(t, c, ts.URL+"/games/mine", &mine)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, mine, 1)
	assert.Equal(t, "complete", mine[0]["status"])

	// Logout drops access to gated routes.
	postJSON(t, c, ts.URL+"/auth/logout", nil, nil)
	res = getJSON(t, c, ts.URL+"/stats/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = postJSON(t, c, ts.URL+"/auth/login", map[string]string{"username": "player_one", "password": "hunter2hunter2"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res = getJSON(t, c, ts.URL+"/auth/me", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAuth_SignupValidation(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	res := postJSON(t, c, ts.URL+"/auth/signup", map[string]string{"username": "ab", "password": "hunter2hunter2"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "short username")

	res = postJSON(t, c, ts.URL+"/auth/signup", map[string]string{"username": "player_two", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "short password")

	res = postJSON(t, c, ts.URL+"/auth/signup", map[string]string{"username": "player_two", "password": "hunter2hunter2"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res = postJSON(t, c, ts.URL+"/auth/signup", map[string]string{"username": "PLAYER_two", "password": "hunter2hunter2"}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode, "username uniqueness is case-insensitive")
}

func TestDaily_FlowAndLeaderboard(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	var created dailyNewRes
	res := postJSON(t, c, ts.URL+"/daily/new", nil, &created)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.False(t, created.Played)
	require.NotEmpty(t, created.GameID)
	require.Len(t, created.Game.Cards, 2*dailyPairs)

	// Calling /daily/new again reuses the same session.
	var again dailyNewRes
	postJSON(t, c, ts.URL+"/daily/new", nil, &again)
	assert.Equal(t, created.GameID, again.GameID)

	final := solve(t, created.Game, func(idx int) game.Snapshot {
		var sr dailySelectRes
		res := postJSON(t, c, ts.URL+"/daily/select", dailySelectReq{GameID: created.GameID, Index: idx}, &sr)
		require.Equal(t, http.StatusOK, res.StatusCode)
		return sr.Game
	})
	require.True(t, final.Complete)

	// Further taps are locked.
	var locked dailySelectRes
	postJSON(t, c, ts.URL+"/daily/select", dailySelectReq{GameID: created.GameID, Index: 0}, &locked)
	assert.Equal(t, "locked", locked.State)

	// The completion shows up on today's board.
	var lb lbRes
	res = getJSON(t, c, ts.URL+"/daily/leaderboard", &lb)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, lb.Top, 1)
	assert.Equal(t, final.Flips, lb.Top[0].Flips)

	// A second /daily/new reports the day as played.
	var replay dailyNewRes
	postJSON(t, c, ts.URL+"/daily/new", nil, &replay)
	assert.True(t, replay.Played)
}

func TestDaily_GenericMutationsRejected(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	var created dailyNewRes
	res := postJSON(t, c, ts.URL+"/daily/new", nil, &created)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, created.GameID)

	// The generic mutation endpoints must not touch a daily deck: a reset
	// would reshuffle the date-keyed board and let a player grind for a
	// favorable layout before posting a leaderboard time.
	res = postJSON(t, c, ts.URL+"/game/reset", resetReq{GameID: created.GameID, Pairs: 3}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	res = postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: 0}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// The deck is untouched and still readable through the shared routes.
	var snap game.Snapshot
	res = getJSON(t, c, ts.URL+"/game/"+created.GameID, &snap)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, dailyPairs, snap.Pairs)
	assert.Equal(t, 0, snap.Flips)
	assert.Len(t, snap.Cards, 2*dailyPairs)

	// Play proceeds normally through the /daily routes.
	var sr dailySelectRes
	res = postJSON(t, c, ts.URL+"/daily/select", dailySelectReq{GameID: created.GameID, Index: 0}, &sr)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, sr.Game.Flips)
}

func TestDailySelect_ConcurrentTaps(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	var created dailyNewRes
	res := postJSON(t, c, ts.URL+"/daily/new", nil, &created)
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Every card tapped at once. Whatever order the server sees them in,
	// each request gets a well-formed response, including any that land
	// while another tap is completing the board.
	var wg sync.WaitGroup
	for i := 0; i < 2*dailyPairs; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			b, err := json.Marshal(dailySelectReq{GameID: created.GameID, Index: idx})
			if !assert.NoError(t, err) {
				return
			}
			resp, err := c.Post(ts.URL+"/daily/select", "application/json", bytes.NewReader(b))
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()
}

func TestGameSelect_SurvivesHistoryWriteFailure(t *testing.T) {
	ts, c, db := newTestEnv(t)

	var created newGameRes
	res := postJSON(t, c, ts.URL+"/game/new", map[string]any{"pairs": 3}, &created)
	require.Equal(t, http.StatusOK, res.StatusCode)

	// History writes are best effort: taps keep working when the DB is gone.
	require.NoError(t, db.Close())

	var sr selectRes
	res = postJSON(t, c, ts.URL+"/game/select", selectReq{GameID: created.GameID, Index: 0}, &sr)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, sr.Game.Flips)
}

func TestHealthAndDiagnostics(t *testing.T) {
	ts, c, _ := newTestEnv(t)

	res := getJSON(t, c, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var dbg map[string]int
	res = getJSON(t, c, ts.URL+"/debug/symbols", &dbg)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.GreaterOrEqual(t, dbg["symbols"], 10)

	res = getJSON(t, c, ts.URL+"/definitely/not/here", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
