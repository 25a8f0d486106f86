// internal/game/engine.go
//
// Core game engine for a single pairs session.
// Responsibilities:
//   - Own the board, turn state (revealed cards, moves) and the elapsed-time tick.
//   - Apply player actions: start, reveal, new game.
//   - Resolve pairs (match / scheduled flip-back) and detect the win.
//   - Emit a Snapshot to listeners after every accepted transition.
//
// Notes:
//   - Every transition runs to completion under s.mu, whether it comes from a
//     player action or a scheduled callback (tick, flip-back, win).
//   - Callbacks remember the round they were scheduled in and do nothing once a
//     new round has started, even if Stop lost a race with the timer firing.
//   - Listeners are called with s.mu held; they must not call back into the Session.
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/apps/go-server/internal/clock"
)

const (
	defaultTickInterval  = time.Second
	defaultFlipBackDelay = time.Second
	defaultWinDelay      = time.Second
)

// Options tunes session timing. Zero values fall back to one second each.
type Options struct {
	TickInterval  time.Duration // how often elapsed time is sampled; Seconds is always wall seconds
	FlipBackDelay time.Duration // how long a mismatched pair stays face up
	WinDelay      time.Duration // pause between the last match and the win
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.FlipBackDelay <= 0 {
		o.FlipBackDelay = defaultFlipBackDelay
	}
	if o.WinDelay <= 0 {
		o.WinDelay = defaultWinDelay
	}
	return o
}

// Session is one game instance: a board plus its turn and timer state.
type Session struct {
	id      string
	builder BoardBuilder
	sched   clock.Scheduler
	opts    Options
	logger  zerolog.Logger

	mu       sync.Mutex
	round    int
	board    Board
	status   Status
	revealed []int // positions currently revealed and unresolved (0..2)
	moves    int
	elapsed  time.Duration // sum of ticks this round
	closed   bool

	tick     clock.Timer
	flipBack clock.Timer
	win      clock.Timer

	nextListener int
	listeners    []listenerEntry
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewSession builds the first board and returns a session in not_started state.
func NewSession(id string, builder BoardBuilder, sched clock.Scheduler, opts Options, dimension int) (*Session, error) {
	if builder == nil || sched == nil {
		return nil, fmt.Errorf("%w: builder and scheduler are required", ErrInvalidArgument)
	}
	board, err := builder.BuildBoard(dimension)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:      id,
		builder: builder,
		sched:   sched,
		opts:    opts.withDefaults(),
		logger:  log.With().Str("gameId", id).Logger(),
		round:   1,
		board:   board,
		status:  StatusNotStarted,
	}
	s.logger.Info().Int("dimension", dimension).Msg("new game")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Subscribe registers l for future snapshots and returns a function removing it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// NewGame replaces the board with a fresh one of the given dimension.
// The new board is built before anything is touched, so an error leaves the
// current round intact. Otherwise the tick and any pending flip-back or win are
// cancelled and moves/seconds start again from zero.
func (s *Session) NewGame(dimension int) error {
	board, err := s.builder.BuildBoard(dimension)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cancelTimers()
	s.round++
	s.board = board
	s.status = StatusNotStarted
	s.revealed = nil
	s.moves = 0
	s.elapsed = 0
	s.logger.Info().Int("round", s.round).Int("dimension", dimension).Msg("new game")
	s.emit()
	return nil
}

// StartGame starts the clock. It is a no-op unless the session is not_started,
// so at most one tick is ever running.
func (s *Session) StartGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.start() {
		s.emit()
	}
}

// ClickStart is the start button; identical to StartGame.
func (s *Session) ClickStart() { s.StartGame() }

// RevealCard turns the card at position face up.
//
// An out-of-range position is an error. The call is silently ignored (false, nil)
// when the game is won, the card is not hidden, or two unresolved cards are
// already face up. Revealing the first card of a not_started game starts it.
func (s *Session) RevealCard(position int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if position < 0 || position >= len(s.board.Cards) {
		return false, fmt.Errorf("%w: position %d out of range [0,%d)", ErrInvalidArgument, position, len(s.board.Cards))
	}
	if s.status == StatusWon {
		return false, nil
	}
	card := &s.board.Cards[position]
	if card.State != CardHidden || len(s.revealed) >= 2 {
		return false, nil
	}

	if s.status == StatusNotStarted {
		s.start()
	}
	card.State = CardRevealed
	s.moves++
	s.revealed = append(s.revealed, position)
	s.logger.Debug().Int("position", position).Int("moves", s.moves).Msg("reveal")

	if len(s.revealed) == 2 {
		s.resolvePair()
	}
	s.emit()
	return true, nil
}

// Close stops every timer and retires the session. Callbacks already in
// flight are ignored; later actions return ErrClosed or do nothing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimers()
	s.round++
	s.closed = true
}

// ----------------------------- transitions ----------------------------------

// start moves not_started → running and arms the tick. Caller holds s.mu.
func (s *Session) start() bool {
	if s.status != StatusNotStarted {
		return false
	}
	s.status = StatusRunning
	s.scheduleTick()
	s.logger.Info().Msg("game started")
	return true
}

func (s *Session) scheduleTick() {
	s.tick = s.after(s.opts.TickInterval, s.onTick)
}

func (s *Session) onTick() {
	if s.status != StatusRunning {
		return
	}
	before := s.seconds()
	s.elapsed += s.opts.TickInterval
	s.scheduleTick()
	if s.seconds() != before {
		s.emit()
	}
}

// resolvePair compares the two revealed cards. Caller holds s.mu.
func (s *Session) resolvePair() {
	a := &s.board.Cards[s.revealed[0]]
	b := &s.board.Cards[s.revealed[1]]

	if a.Symbol == b.Symbol {
		a.State, b.State = CardMatched, CardMatched
		s.revealed = s.revealed[:0]
		s.logger.Debug().Int("a", a.Position).Int("b", b.Position).Msg("match")
		if s.board.AllMatched() {
			s.win = s.after(s.opts.WinDelay, s.onWin)
		}
		return
	}
	s.flipBack = s.after(s.opts.FlipBackDelay, s.onFlipBack)
}

// onFlipBack hides every card that is not matched and releases the input lock.
func (s *Session) onFlipBack() {
	s.flipBack = nil
	for i := range s.board.Cards {
		if s.board.Cards[i].State == CardRevealed {
			s.board.Cards[i].State = CardHidden
		}
	}
	s.revealed = s.revealed[:0]
	s.emit()
}

func (s *Session) onWin() {
	s.win = nil
	if s.status != StatusRunning || !s.board.AllMatched() {
		return
	}
	s.status = StatusWon
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
	s.logger.Info().Int("moves", s.moves).Int("seconds", s.seconds()).Msg("game won")
	s.emit()
}

// after schedules fn to run under s.mu, but only if the round has not changed.
func (s *Session) after(d time.Duration, fn func()) clock.Timer {
	round := s.round
	return s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.round != round {
			return
		}
		fn()
	})
}

func (s *Session) cancelTimers() {
	for _, t := range []clock.Timer{s.tick, s.flipBack, s.win} {
		if t != nil {
			t.Stop()
		}
	}
	s.tick, s.flipBack, s.win = nil, nil, nil
}

// ------------------------------ snapshots -----------------------------------

func (s *Session) snapshot() Snapshot {
	cards := make([]CardView, len(s.board.Cards))
	for i, c := range s.board.Cards {
		v := CardView{Position: c.Position, State: c.State}
		if c.State != CardHidden {
			sym := c.Symbol
			v.Symbol = &sym
		}
		cards[i] = v
	}
	return Snapshot{
		GameID:    s.id,
		Round:     s.round,
		Dimension: s.board.Dimension,
		Cards:     cards,
		Moves:     s.moves,
		Seconds:   s.seconds(),
		Status:    s.status,
	}
}

// seconds is the whole seconds elapsed this round.
func (s *Session) seconds() int { return int(s.elapsed / time.Second) }

func (s *Session) emit() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshot()
	for _, e := range s.listeners {
		e.fn(snap)
	}
}
