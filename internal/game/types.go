// internal/game/types.go
//
// Core type definitions for the memory-match game engine.
// Defines:
//   - Card: one deck card (stable UUID, symbol, face-up/matched flags).
//   - Outcome: result of a single card selection.
//   - CardView/Snapshot: read-only state exposed to the presentation layer.
//   - Event/EventKind: fire-and-forget notifications for observers.

package game

// Outcome represents the result of a SelectCard call.
// Possible values:
//   - "ignored":  the tap violated a precondition and changed nothing.
//   - "flipped":  the card is now face-up and pending a second selection.
//   - "matched":  the pending card and this card share a symbol; both stay up.
//   - "mismatch": symbols differ; both flip back down after the delay.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeFlipped          = "flipped"
	OutcomeMatched          = "matched"
	OutcomeMismatch         = "mismatch"
)

// Card holds the state of a single deck card.
// ID and Content are immutable for the card's lifetime; a reset replaces
// the whole deck rather than mutating cards in place.
type Card struct {
	ID      string // Unique card identifier (UUID), stable across flips.
	Content string // The card's symbol (always a palette entry).
	FaceUp  bool   // True while the card is revealed.
	Matched bool   // True once paired; matched cards stay face-up.
}

// CardView is the render-safe projection of a Card.
// Content is omitted for face-down cards so clients cannot peek.
type CardView struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
	FaceUp  bool   `json:"faceUp"`
	Matched bool   `json:"matched"`
}

// Snapshot is a consistent read-only view of a session.
type Snapshot struct {
	GameID   string     `json:"gameId"`
	Pairs    int        `json:"pairs"`
	Cards    []CardView `json:"cards"`
	Flips    int        `json:"flips"`
	Matches  int        `json:"matches"`
	Complete bool       `json:"complete"`
	State    string     `json:"state"` // "playing" | "complete"
}

// EventKind distinguishes observer notifications.
type EventKind string

const (
	// EventState fires after any card mutation (select, match, flip-back).
	EventState EventKind = "state"
	// EventReset fires once per Reset; the presentation layer may show a
	// transient reset banner and then render the fresh snapshot.
	EventReset EventKind = "reset"
)

// Event is delivered to session observers registered via Subscribe.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}
