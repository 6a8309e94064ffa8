// internal/game/engine.go
//
// Core game engine for a single memory-match session.
// Responsibilities:
//   - Build decks: pairCount distinct symbols, each appearing exactly twice,
//     randomly permuted, all face-down.
//   - Apply card selections: flip, pending, match/mismatch transitions.
//   - Schedule the delayed flip-back of mismatched cards, keyed by card UUID
//     and session generation so stale timers are provably inert.
//   - Reset sessions in place (newGame), bumping the generation counter.
//   - Notify subscribed observers after every mutation.
//
// Notes:
//   - Symbols come from the symbols package; card IDs from google/uuid.
//   - A single mutex serializes all mutations; the only writers are the
//     caller (one tap at a time) and the flip-back timer.
//   - randomID() is a compact hex identifier for correlating server state.
//
// Package-level defaults are kept here for clarity.
package game

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/StevenLuque2003/Memory-Game/internal/symbols"
)

const (
	// DefaultPairs is used when a client does not ask for a specific size.
	DefaultPairs = 6
	// DefaultFlipBackDelay is how long mismatched cards stay revealed.
	DefaultFlipBackDelay = time.Second
)

// intSource yields uniform ints in [0, n); it lets the daily mode swap in a
// deterministic seed while normal games use crypto randomness.
type intSource interface {
	Intn(n int) int
}

// cryptoSource draws from crypto/rand (same approach as picking a random
// answer word: rand.Int over a bounded big.Int).
type cryptoSource struct{}

func (cryptoSource) Intn(n int) int {
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}

// Option customizes a Session at construction time.
type Option func(*Session)

// WithFlipBackDelay overrides how long mismatched cards stay face-up.
func WithFlipBackDelay(d time.Duration) Option {
	return func(s *Session) { s.flipBackDelay = d }
}

// WithSeed makes deck construction deterministic (used by the daily mode so
// every player shuffles the same deck for a given date).
func WithSeed(seed int64) Option {
	return func(s *Session) { s.rng = mrand.New(mrand.NewSource(seed)) }
}

// Session holds the full state of one memory-match game.
type Session struct {
	ID string // Unique session identifier (random hex string).

	mu            sync.Mutex
	gen           uint64  // bumped on every Reset; stale timers check it
	pairs         int     // number of distinct symbols in play
	cards         []*Card // len == 2*pairs
	pending       int     // index of the unresolved selection, -1 if none
	flips         int     // total accepted selections this deck
	matches       int     // resolved pairs this deck
	startedAt     time.Time
	flipBackDelay time.Duration
	rng           intSource

	subs    map[int]func(Event)
	nextSub int
}

// New constructs a session with a freshly shuffled deck.
// pairs must be in [1, palette size]; out-of-range values are rejected
// rather than clamped so integration bugs surface early.
func New(pairs int, opts ...Option) (*Session, error) {
	s := &Session{
		ID:            randomID(),
		pending:       -1,
		flipBackDelay: DefaultFlipBackDelay,
		rng:           cryptoSource{},
		subs:          make(map[int]func(Event)),
	}
	for _, o := range opts {
		o(s)
	}
	if err := validatePairs(pairs); err != nil {
		return nil, err
	}
	s.rebuild(pairs)
	return s, nil
}

// validatePairs enforces the pair-count contract against the loaded palette.
func validatePairs(pairs int) error {
	if pairs < 1 || pairs > symbols.Size() {
		return fmt.Errorf("game: pair count %d out of range [1, %d]", pairs, symbols.Size())
	}
	return nil
}

// rebuild replaces the deck wholesale: choose pairs distinct symbols, lay
// out two cards per symbol, shuffle, clear pending and counters.
// Caller must hold s.mu (or own the session exclusively, as in New).
func (s *Session) rebuild(pairs int) {
	pal := symbols.Palette()

	// Partial Fisher–Yates: the first `pairs` slots end up as a uniform
	// sample without replacement.
	for i := 0; i < pairs; i++ {
		j := i + s.rng.Intn(len(pal)-i)
		pal[i], pal[j] = pal[j], pal[i]
	}

	deck := make([]*Card, 0, 2*pairs)
	for _, sym := range pal[:pairs] {
		deck = append(deck,
			&Card{ID: uuid.NewString(), Content: sym},
			&Card{ID: uuid.NewString(), Content: sym},
		)
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	s.pairs = pairs
	s.cards = deck
	s.pending = -1
	s.flips = 0
	s.matches = 0
	s.startedAt = time.Now()
}

// Reset starts a new game in place (newGame). pairs == 0 keeps the current
// pair count (the explicit reset button). The generation bump invalidates
// any flip-back scheduled against the old deck before it can fire.
func (s *Session) Reset(pairs int) error {
	s.mu.Lock()
	if pairs == 0 {
		pairs = s.pairs
	}
	if err := validatePairs(pairs); err != nil {
		s.mu.Unlock()
		return err
	}
	s.gen++
	s.rebuild(pairs)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventReset, Snapshot: snap})
	return nil
}

// SelectCard applies a tap on cards[index], mutating the session state.
// Precondition violations (bad index, matched card, re-tapping the pending
// card, finished board) are silent no-ops per the game rules: the UI simply
// does not respond, so no error is surfaced.
//
// State transitions:
//   - No pending selection → card flips up and becomes pending.
//   - Pending selection with equal symbol → both cards matched, stay up.
//   - Pending selection with different symbol → pending clears immediately
//     (a third tap is accepted right away) and both cards are scheduled to
//     flip back down after the delay, unless superseded in the meantime.
func (s *Session) SelectCard(index int) Outcome {
	s.mu.Lock()
	if index < 0 || index >= len(s.cards) {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	c := s.cards[index]
	if c.Matched || index == s.pending {
		s.mu.Unlock()
		return OutcomeIgnored
	}

	s.flips++
	c.FaceUp = true

	var out Outcome
	if s.pending < 0 {
		s.pending = index
		out = OutcomeFlipped
	} else {
		p := s.cards[s.pending]
		s.pending = -1
		if p.Content == c.Content {
			p.Matched, c.Matched = true, true
			s.matches++
			out = OutcomeMatched
		} else {
			out = OutcomeMismatch
			s.scheduleFlipBack(s.gen, p.ID, c.ID)
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventState, Snapshot: snap})
	return out
}

// scheduleFlipBack arms the deferred flip-down of mismatched cards.
// The timer captures card UUIDs (never indices, which a reset invalidates)
// plus the generation current at scheduling time.
func (s *Session) scheduleFlipBack(gen uint64, ids ...string) {
	time.AfterFunc(s.flipBackDelay, func() {
		s.resolveFlipBack(gen, ids...)
	})
}

// resolveFlipBack turns the captured cards face-down again, if still
// appropriate. Idempotent and identity-targeted: cards that were matched,
// already flipped down, or re-selected as the new pending card are left
// alone, and the whole callback is inert once the generation has moved on.
func (s *Session) resolveFlipBack(gen uint64, ids ...string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	changed := false
	for _, id := range ids {
		for i, c := range s.cards {
			if c.ID != id {
				continue
			}
			if !c.Matched && c.FaceUp && i != s.pending {
				c.FaceUp = false
				changed = true
			}
			break
		}
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventState, Snapshot: snap})
}

// Complete reports whether every card has been matched.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

// completeLocked is the explicit completion check run on every snapshot.
func (s *Session) completeLocked() bool {
	for _, c := range s.cards {
		if !c.Matched {
			return false
		}
	}
	return len(s.cards) > 0
}

// State reports a coarse string representation of the current game state.
func (s *Session) State() string {
	if s.Complete() {
		return "complete"
	}
	return "playing"
}

// Pairs returns the current pair count.
func (s *Session) Pairs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs
}

// Flips returns the number of accepted selections on the current deck.
func (s *Session) Flips() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flips
}

// StartedAt returns when the current deck was dealt.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Snapshot returns a consistent, render-safe view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds a Snapshot; caller must hold s.mu.
// Face-down cards omit Content so the wire never leaks hidden symbols.
func (s *Session) snapshotLocked() Snapshot {
	views := make([]CardView, len(s.cards))
	for i, c := range s.cards {
		v := CardView{ID: c.ID, FaceUp: c.FaceUp, Matched: c.Matched}
		if c.FaceUp || c.Matched {
			v.Content = c.Content
		}
		views[i] = v
	}
	complete := s.completeLocked()
	state := "playing"
	if complete {
		state = "complete"
	}
	return Snapshot{
		GameID:   s.ID,
		Pairs:    s.pairs,
		Cards:    views,
		Flips:    s.flips,
		Matches:  s.matches,
		Complete: complete,
		State:    state,
	}
}

// Subscribe registers an observer for session events and returns a cancel
// function. Callbacks run without the session lock held; they must not
// assume delivery after cancel returns.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// publish fans an event out to the observers registered at call time.
func (s *Session) publish(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
