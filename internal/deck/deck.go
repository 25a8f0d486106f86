// internal/deck/deck.go
//
// Deck builder for the pairs game.
// Responsibilities:
//   - Shuffle: uniform Fisher–Yates permutation that leaves its input untouched.
//   - PickRandom: sample distinct elements without replacement.
//   - Builder.BuildBoard: draw d²/2 symbols, duplicate, shuffle, lay out hidden cards.
//
// Randomness comes from an explicit *rand.Rand so boards can be reproduced:
// the server seeds it from crypto/rand, the daily board from the date.
package deck

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

// Shuffle returns a uniformly random permutation of in.
// Walks from the last index down to 1, swapping i with a uniform index in [0, i].
func Shuffle[T any](rng *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PickRandom returns count distinct elements of pool (by index) without replacement.
func PickRandom[T any](rng *rand.Rand, pool []T, count int) ([]T, error) {
	if count < 0 || count > len(pool) {
		return nil, fmt.Errorf("%w: cannot pick %d from a pool of %d", game.ErrInvalidArgument, count, len(pool))
	}
	rest := make([]T, len(pool))
	copy(rest, pool)
	picks := make([]T, 0, count)
	for i := 0; i < count; i++ {
		j := rng.Intn(len(rest))
		picks = append(picks, rest[j])
		last := len(rest) - 1
		rest[j] = rest[last]
		rest = rest[:last]
	}
	return picks, nil
}

// Builder lays out boards from a fixed alphabet.
// Safe for concurrent use.
type Builder struct {
	alphabet []game.Symbol

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewBuilder validates the alphabet (non-empty, no blanks, no duplicates).
func NewBuilder(alphabet []game.Symbol, rng *rand.Rand) (*Builder, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", game.ErrInvalidArgument)
	}
	if len(alphabet) == 0 {
		return nil, fmt.Errorf("%w: empty alphabet", game.ErrInvalidArgument)
	}
	seen := make(map[game.Symbol]struct{}, len(alphabet))
	for _, s := range alphabet {
		if s == "" {
			return nil, fmt.Errorf("%w: blank symbol in alphabet", game.ErrInvalidArgument)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q in alphabet", game.ErrInvalidArgument, s)
		}
		seen[s] = struct{}{}
	}
	a := make([]game.Symbol, len(alphabet))
	copy(a, alphabet)
	return &Builder{alphabet: a, rng: rng}, nil
}

// MaxDimension is the largest even dimension the alphabet can fill.
func (b *Builder) MaxDimension() int {
	d := 0
	for next := 2; next*next/2 <= len(b.alphabet); next += 2 {
		d = next
	}
	return d
}

// BuildBoard returns a dimension x dimension board of hidden cards in which
// every drawn symbol appears exactly twice.
func (b *Builder) BuildBoard(dimension int) (game.Board, error) {
	if err := game.ValidateDimension(dimension); err != nil {
		return game.Board{}, err
	}
	pairs := dimension * dimension / 2
	if pairs > len(b.alphabet) {
		return game.Board{}, fmt.Errorf("%w: dimension %d needs %d symbols, alphabet has %d",
			game.ErrInvalidArgument, dimension, pairs, len(b.alphabet))
	}

	b.mu.Lock()
	picks, err := PickRandom(b.rng, b.alphabet, pairs)
	if err != nil {
		b.mu.Unlock()
		return game.Board{}, err
	}
	items := Shuffle(b.rng, append(picks, picks...))
	b.mu.Unlock()

	cards := make([]game.Card, len(items))
	for i, sym := range items {
		cards[i] = game.Card{Position: i, Symbol: sym, State: game.CardHidden}
	}
	return game.Board{Dimension: dimension, Cards: cards}, nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a math/rand source seeded from crypto/rand.
func NewRand() (*rand.Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}
