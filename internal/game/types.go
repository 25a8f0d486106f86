// internal/game/types.go
//
// Core type definitions for the pairs game engine.
// Defines:
//   - Symbol, Card, CardState: one face of the board.
//   - Board: the ordered cards for one round.
//   - Status: session lifecycle (not_started → running → won).
//   - Snapshot/CardView: what the presentation layer is allowed to see.

package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimension is returned for board sizes that are not positive and even.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrInvalidArgument covers bad positions, counts and undersized alphabets.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by actions on a session that has been closed.
	ErrClosed = errors.New("game closed")
)

// Symbol is an opaque card face (an emoji in the default alphabet).
type Symbol string

// CardState is the visibility of a single card.
// Allowed moves: hidden → revealed → matched, and revealed → hidden on mismatch.
type CardState string

const (
	CardHidden   CardState = "hidden"
	CardRevealed CardState = "revealed"
	CardMatched  CardState = "matched"
)

// Card is one position on the board.
type Card struct {
	Position int
	Symbol   Symbol
	State    CardState
}

// Board holds the cards of one round in board order.
type Board struct {
	Dimension int    // cards per row; the board is Dimension x Dimension
	Cards     []Card // len == Dimension*Dimension
}

// ValidateDimension reports ErrInvalidDimension unless d is positive and even.
func ValidateDimension(d int) error {
	if d <= 0 || d%2 != 0 {
		return fmt.Errorf("%w: %d (must be a positive even number)", ErrInvalidDimension, d)
	}
	return nil
}

// AllMatched reports whether every card on the board is matched.
func (b Board) AllMatched() bool {
	if len(b.Cards) == 0 {
		return false
	}
	for _, c := range b.Cards {
		if c.State != CardMatched {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	cards := make([]Card, len(b.Cards))
	copy(cards, b.Cards)
	return Board{Dimension: b.Dimension, Cards: cards}
}

// BoardBuilder produces fresh, shuffled boards (see internal/deck).
type BoardBuilder interface {
	BuildBoard(dimension int) (Board, error)
}

// Status is the coarse lifecycle of a session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusWon        Status = "won"
)

// CardView is a card as exposed to clients. Symbol is nil while the card is hidden.
type CardView struct {
	Position int       `json:"position"`
	Symbol   *Symbol   `json:"symbol"`
	State    CardState `json:"state"`
}

// Snapshot is the full renderable state of a session at one instant.
type Snapshot struct {
	GameID    string     `json:"gameId"`
	Round     int        `json:"round"` // bumps on every NewGame for the same session
	Dimension int        `json:"dimension"`
	Cards     []CardView `json:"cards"`
	Moves     int        `json:"moves"`
	Seconds   int        `json:"seconds"`
	Status    Status     `json:"status"`
}

// Summary renders the win banner for a finished snapshot, or "" if not won.
func (s Snapshot) Summary() string {
	if s.Status != StatusWon {
		return ""
	}
	return fmt.Sprintf("You won! With %d moves under %d sec", s.Moves, s.Seconds)
}

// Listener receives snapshots after every accepted transition.
type Listener func(Snapshot)
